package repository

import (
	"context"
	"time"

	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/domain"
)

// OrderFilter defines filter criteria for listing orders.
type OrderFilter struct {
	UserID        *string
	GuestID       *string
	Status        *string
	PaymentStatus *string
	Page          int
	PerPage       int
}

// GatewayResult carries the gateway correlation fields recorded when a
// payment callback is applied.
type GatewayResult struct {
	TransactionNo string
	BankCode      string
	PaidAt        *time.Time
}

// OrderRepository defines the interface for order persistence operations.
type OrderRepository interface {
	// Create inserts a new order with its embedded items, promotion snapshot
	// and initial status history entry.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// GetByOrderCode retrieves an order by its human-facing code.
	GetByOrderCode(ctx context.Context, code string) (*domain.Order, error)

	// GetByAppTransID retrieves an order by the correlation token sent to the
	// payment gateway.
	GetByAppTransID(ctx context.Context, appTransID string) (*domain.Order, error)

	// GetByIdempotencyKey retrieves an order previously created with the given
	// client idempotency key, or a not-found error.
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error)

	// List returns orders matching the given filter along with the total count.
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, int, error)

	// TransitionStatus moves the order from fromStatus to toStatus, appending
	// entry to the status history and, when newPaymentStatus is non-empty,
	// setting the payment status in the same statement. Both the current
	// status and the current payment status are pinned: returns
	// domain.ErrStaleState when either has moved since the caller read them.
	TransitionStatus(ctx context.Context, id, fromStatus, toStatus, fromPaymentStatus string, entry domain.StatusHistoryEntry, newPaymentStatus string) error

	// UpdatePaymentStatus moves only the payment status, conditional on the
	// current value, optionally appending a history entry and recording
	// gateway correlation fields. Returns domain.ErrStaleState when the
	// payment status already changed.
	UpdatePaymentStatus(ctx context.Context, id, fromPaymentStatus, toPaymentStatus string, entry *domain.StatusHistoryEntry, gw *GatewayResult) error

	// Delete removes an order unless it is completed. Returns a conflict error
	// for completed orders.
	Delete(ctx context.Context, id string) error
}

// InventoryRepository manages per-variant stock counters.
type InventoryRepository interface {
	// Reserve atomically decrements stock for the variant if at least qty
	// units are available. Returns *domain.InsufficientStockError otherwise.
	Reserve(ctx context.Context, variantID string, qty int) error

	// Release returns previously reserved units to stock.
	Release(ctx context.Context, variantID string, qty int) error

	// IncrementPurchaseCount bumps the variant's lifetime purchase counter.
	IncrementPurchaseCount(ctx context.Context, variantID string, qty int) error
}

// VariantRepository reads purchasable variants from the catalog.
type VariantRepository interface {
	// GetByID retrieves a single variant with its product flags.
	GetByID(ctx context.Context, id string) (*domain.Variant, error)

	// GetByIDs retrieves a batch of variants keyed by ID. Missing IDs are
	// simply absent from the result.
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Variant, error)
}

// PromotionRepository manages discount codes and their redemptions.
type PromotionRepository interface {
	// GetByCode retrieves a promotion by its case-insensitive code.
	GetByCode(ctx context.Context, code string) (*domain.Promotion, error)

	// Redeem consumes one usage of the promotion for the given order. The
	// operation is idempotent per order: redeeming again for the same order
	// is a no-op. A conflict error is returned when the usage budget is
	// exhausted.
	Redeem(ctx context.Context, promotionID, orderCode string) error

	// ReleaseRedemption returns a consumed usage, used when order creation
	// fails after redemption.
	ReleaseRedemption(ctx context.Context, promotionID, orderCode string) error
}

// CartRepository stores shopper carts.
type CartRepository interface {
	// Get retrieves the cart for the given owner, or a not-found error.
	Get(ctx context.Context, owner domain.Identity) (*domain.Cart, error)

	// Save unconditionally writes the cart and refreshes its TTL.
	Save(ctx context.Context, owner domain.Identity, cart *domain.Cart) error

	// SaveIfVersion writes the cart only if the stored version still equals
	// expectedVersion. Returns domain.ErrStaleState on a lost race.
	SaveIfVersion(ctx context.Context, owner domain.Identity, cart *domain.Cart, expectedVersion int64) error

	// Delete removes the cart for the given owner.
	Delete(ctx context.Context, owner domain.Identity) error
}

// NotificationRepository persists in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
}
