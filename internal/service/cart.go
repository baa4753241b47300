package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/domain"
	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/repository"
	apperrors "github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/errors"
)

// ResolvedLine is a cart line priced and stock-checked against the catalog.
type ResolvedLine struct {
	VariantID string `json:"variant_id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Available int    `json:"available"`
}

// LineTotal returns the total price of the line.
func (l *ResolvedLine) LineTotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// ResolvedCart is the cart projected against the live catalog: unresolvable
// lines pruned, prices current.
type ResolvedCart struct {
	UserID   string         `json:"user_id,omitempty"`
	GuestID  string         `json:"guest_id,omitempty"`
	Lines    []ResolvedLine `json:"lines"`
	Subtotal int64          `json:"subtotal"`
}

// CartService implements the business logic for cart operations. Carts store
// only variant references; every read re-resolves them so a deactivated
// product silently disappears instead of blocking checkout.
type CartService struct {
	carts    repository.CartRepository
	variants repository.VariantRepository
	logger   *slog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(carts repository.CartRepository, variants repository.VariantRepository, logger *slog.Logger) *CartService {
	return &CartService{
		carts:    carts,
		variants: variants,
		logger:   logger,
	}
}

// Resolve returns the priced cart for the given owner. Items whose variant no
// longer resolves to an active, non-deleted product are pruned and the pruned
// cart persisted back. A missing cart resolves to an empty one.
func (s *CartService) Resolve(ctx context.Context, owner domain.Identity) (*ResolvedCart, error) {
	if !owner.Valid() {
		return nil, apperrors.InvalidInput("exactly one of user or guest identity is required")
	}

	cart, err := s.carts.Get(ctx, owner)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return &ResolvedCart{UserID: owner.UserID, GuestID: owner.GuestID, Lines: []ResolvedLine{}}, nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	resolved, pruned, err := s.resolveItems(ctx, cart.Items)
	if err != nil {
		return nil, err
	}

	if pruned {
		if err := s.persistPruned(ctx, owner, cart, resolved); err != nil {
			// Pruning is lazy; the next read repeats it.
			s.logger.WarnContext(ctx, "failed to persist pruned cart",
				slog.String("cart", owner.Key()),
				slog.String("error", err.Error()),
			)
		}
	}

	out := &ResolvedCart{UserID: owner.UserID, GuestID: owner.GuestID, Lines: resolved}
	for i := range resolved {
		out.Subtotal += resolved[i].LineTotal()
	}
	return out, nil
}

// AddItem validates stock and upserts a line into the owner's cart. The
// stock check covers the cumulative quantity (existing + new).
func (s *CartService) AddItem(ctx context.Context, owner domain.Identity, variantID string, qty int) (*ResolvedCart, error) {
	if !owner.Valid() {
		return nil, apperrors.InvalidInput("exactly one of user or guest identity is required")
	}
	if qty <= 0 {
		return nil, apperrors.InvalidInput("quantity must be a positive integer")
	}
	if qty > domain.MaxQuantityPerLine {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity cannot exceed %d per item", domain.MaxQuantityPerLine))
	}

	variant, err := s.variants.GetByID(ctx, variantID)
	if err != nil {
		return nil, fmt.Errorf("get variant: %w", err)
	}
	if !variant.Purchasable() {
		return nil, apperrors.NotFound("variant", variantID)
	}

	cart, err := s.carts.Get(ctx, owner)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("get cart: %w", err)
		}
		now := time.Now().UTC()
		cart = &domain.Cart{UserID: owner.UserID, GuestID: owner.GuestID, CreatedAt: now, UpdatedAt: now}
	}

	cumulative := qty
	if idx := cart.FindItem(variantID); idx >= 0 {
		cumulative += cart.Items[idx].Quantity
	}
	if cumulative > domain.MaxQuantityPerLine {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity cannot exceed %d per item", domain.MaxQuantityPerLine))
	}
	if variant.StockQuantity < cumulative {
		return nil, &domain.InsufficientStockError{
			VariantID:   variantID,
			ProductName: variant.ProductName,
			Requested:   cumulative,
			Available:   variant.StockQuantity,
		}
	}

	if idx := cart.FindItem(variantID); idx >= 0 {
		cart.Items[idx].Quantity = cumulative
	} else {
		if len(cart.Items) >= domain.MaxCartLines {
			return nil, apperrors.InvalidInput(fmt.Sprintf("cart cannot hold more than %d distinct items", domain.MaxCartLines))
		}
		cart.Items = append(cart.Items, domain.CartItem{VariantID: variantID, Quantity: cumulative})
	}

	if err := s.saveBumped(ctx, owner, cart); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "cart item added",
		slog.String("cart", owner.Key()),
		slog.String("variant_id", variantID),
		slog.Int("quantity", cumulative),
	)

	return s.Resolve(ctx, owner)
}

// UpdateItem sets a line's quantity; zero removes the line. An emptied cart
// is deleted.
func (s *CartService) UpdateItem(ctx context.Context, owner domain.Identity, variantID string, qty int) (*ResolvedCart, error) {
	if !owner.Valid() {
		return nil, apperrors.InvalidInput("exactly one of user or guest identity is required")
	}
	if qty < 0 || qty > domain.MaxQuantityPerLine {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must be between 0 and %d", domain.MaxQuantityPerLine))
	}

	cart, err := s.carts.Get(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	idx := cart.FindItem(variantID)
	if idx < 0 {
		return nil, apperrors.NotFound("cart item", variantID)
	}

	if qty == 0 {
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	} else {
		variant, err := s.variants.GetByID(ctx, variantID)
		if err != nil {
			return nil, fmt.Errorf("get variant: %w", err)
		}
		if variant.StockQuantity < qty {
			return nil, &domain.InsufficientStockError{
				VariantID:   variantID,
				ProductName: variant.ProductName,
				Requested:   qty,
				Available:   variant.StockQuantity,
			}
		}
		cart.Items[idx].Quantity = qty
	}

	if cart.IsEmpty() {
		if err := s.carts.Delete(ctx, owner); err != nil {
			return nil, fmt.Errorf("delete emptied cart: %w", err)
		}
		return &ResolvedCart{UserID: owner.UserID, GuestID: owner.GuestID, Lines: []ResolvedLine{}}, nil
	}

	if err := s.saveBumped(ctx, owner, cart); err != nil {
		return nil, err
	}
	return s.Resolve(ctx, owner)
}

// Merge folds a guest cart into the user's cart at login. Quantities for the
// same variant are summed, capped at current stock; guest items that no
// longer resolve are discarded. The guest cart is deleted afterward
// regardless of how many items survived.
func (s *CartService) Merge(ctx context.Context, guestID, userID string) (*ResolvedCart, error) {
	if guestID == "" || userID == "" {
		return nil, apperrors.InvalidInput("both guest and user identities are required for merge")
	}
	guestOwner := domain.Identity{GuestID: guestID}
	userOwner := domain.Identity{UserID: userID}

	guestCart, err := s.carts.Get(ctx, guestOwner)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Nothing to merge.
			return s.Resolve(ctx, userOwner)
		}
		return nil, fmt.Errorf("get guest cart: %w", err)
	}

	userCart, err := s.carts.Get(ctx, userOwner)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("get user cart: %w", err)
		}
		now := time.Now().UTC()
		userCart = &domain.Cart{UserID: userID, CreatedAt: now, UpdatedAt: now}
	}

	ids := make([]string, 0, len(guestCart.Items))
	for i := range guestCart.Items {
		ids = append(ids, guestCart.Items[i].VariantID)
	}
	variants, err := s.variants.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve guest items: %w", err)
	}

	merged := 0
	for _, item := range guestCart.Items {
		variant, ok := variants[item.VariantID]
		if !ok || !variant.Purchasable() {
			continue
		}
		qty := item.Quantity
		if idx := userCart.FindItem(item.VariantID); idx >= 0 {
			qty += userCart.Items[idx].Quantity
		}
		if qty > variant.StockQuantity {
			qty = variant.StockQuantity
		}
		if qty > domain.MaxQuantityPerLine {
			qty = domain.MaxQuantityPerLine
		}
		if qty <= 0 {
			continue
		}
		if idx := userCart.FindItem(item.VariantID); idx >= 0 {
			userCart.Items[idx].Quantity = qty
		} else {
			if len(userCart.Items) >= domain.MaxCartLines {
				continue
			}
			userCart.Items = append(userCart.Items, domain.CartItem{VariantID: item.VariantID, Quantity: qty})
		}
		merged++
	}

	if merged > 0 {
		if err := s.saveBumped(ctx, userOwner, userCart); err != nil {
			return nil, err
		}
	}

	if err := s.carts.Delete(ctx, guestOwner); err != nil {
		s.logger.WarnContext(ctx, "failed to delete merged guest cart",
			slog.String("guest_id", guestID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "guest cart merged",
		slog.String("guest_id", guestID),
		slog.String("user_id", userID),
		slog.Int("items_merged", merged),
	)

	return s.Resolve(ctx, userOwner)
}

// ConsumeItems removes the given variant lines from the owner's cart after
// order creation, deleting the cart when emptied.
func (s *CartService) ConsumeItems(ctx context.Context, owner domain.Identity, variantIDs []string) error {
	cart, err := s.carts.Get(ctx, owner)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get cart: %w", err)
	}

	consumed := make(map[string]bool, len(variantIDs))
	for _, id := range variantIDs {
		consumed[id] = true
	}

	kept := cart.Items[:0]
	for _, item := range cart.Items {
		if !consumed[item.VariantID] {
			kept = append(kept, item)
		}
	}
	cart.Items = kept

	if cart.IsEmpty() {
		return s.carts.Delete(ctx, owner)
	}
	return s.saveBumped(ctx, owner, cart)
}

// resolveItems projects cart items against the catalog. The second return
// reports whether any item was pruned.
func (s *CartService) resolveItems(ctx context.Context, items []domain.CartItem) ([]ResolvedLine, bool, error) {
	if len(items) == 0 {
		return []ResolvedLine{}, false, nil
	}

	ids := make([]string, 0, len(items))
	for i := range items {
		ids = append(ids, items[i].VariantID)
	}
	variants, err := s.variants.GetByIDs(ctx, ids)
	if err != nil {
		return nil, false, fmt.Errorf("resolve cart items: %w", err)
	}

	lines := make([]ResolvedLine, 0, len(items))
	pruned := false
	for _, item := range items {
		variant, ok := variants[item.VariantID]
		if !ok || !variant.Purchasable() {
			pruned = true
			continue
		}
		lines = append(lines, ResolvedLine{
			VariantID: variant.ID,
			ProductID: variant.ProductID,
			Name:      variant.ProductName,
			Quantity:  item.Quantity,
			UnitPrice: variant.CurrentPrice(),
			Available: variant.StockQuantity,
		})
	}
	return lines, pruned, nil
}

// persistPruned writes the pruned item list back, deleting an emptied cart.
func (s *CartService) persistPruned(ctx context.Context, owner domain.Identity, cart *domain.Cart, resolved []ResolvedLine) error {
	if len(resolved) == 0 {
		return s.carts.Delete(ctx, owner)
	}
	items := make([]domain.CartItem, 0, len(resolved))
	for i := range resolved {
		items = append(items, domain.CartItem{VariantID: resolved[i].VariantID, Quantity: resolved[i].Quantity})
	}
	cart.Items = items
	return s.saveBumped(ctx, owner, cart)
}

// saveBumped persists the cart under optimistic concurrency, bumping the
// version. A lost race surfaces as a conflict for the caller to retry.
func (s *CartService) saveBumped(ctx context.Context, owner domain.Identity, cart *domain.Cart) error {
	expected := cart.Version
	cart.Version++
	cart.UpdatedAt = time.Now().UTC()
	if err := s.carts.SaveIfVersion(ctx, owner, cart, expected); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}
