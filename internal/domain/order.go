package domain

import "time"

// Order status constants.
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusShipping  = "shipping"
	OrderStatusCompleted = "completed"
	OrderStatusCanceled  = "canceled"
)

// Payment status constants.
const (
	PaymentStatusPending       = "pending"
	PaymentStatusCompleted     = "completed"
	PaymentStatusFailed        = "failed"
	PaymentStatusRefundPending = "refund_pending"
	PaymentStatusRefunded      = "refunded"
	PaymentStatusExpired       = "expired"
)

// Payment method constants.
const (
	PaymentMethodCOD          = "cod"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodGateway      = "vnpay"
)

// Order is the aggregate root for a customer order. Line items, the promotion
// snapshot, and the status history are embedded and immutable once written;
// catalog changes never retroactively alter a persisted order.
type Order struct {
	ID              string               `json:"id"`
	OrderCode       string               `json:"order_code"`
	AppTransID      string               `json:"app_trans_id"`
	UserID          string               `json:"user_id,omitempty"`
	GuestID         string               `json:"guest_id,omitempty"`
	Items           []OrderLineItem      `json:"items"`
	SubtotalAmount  int64                `json:"subtotal_amount"`
	DiscountAmount  int64                `json:"discount_amount"`
	ShippingFee     int64                `json:"shipping_fee"`
	TotalAmount     int64                `json:"total_amount"`
	PaymentMethod   string               `json:"payment_method"`
	Status          string               `json:"status"`
	PaymentStatus   string               `json:"payment_status"`
	ShippingAddress Address              `json:"shipping_address"`
	Promotion       *PromotionSnapshot   `json:"promotion,omitempty"`
	StatusHistory   []StatusHistoryEntry `json:"status_history"`
	GatewayTxnID    string               `json:"gateway_txn_id,omitempty"`
	BankCode        string               `json:"bank_code,omitempty"`
	PaidAt          *time.Time           `json:"paid_at,omitempty"`
	IdempotencyKey  string               `json:"-"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// OrderLineItem is an immutable snapshot of a purchased variant taken at
// order-creation time.
type OrderLineItem struct {
	VariantID     string `json:"variant_id"`
	ProductID     string `json:"product_id"`
	Name          string `json:"name"`
	Quantity      int    `json:"quantity"`
	UnitSalePrice int64  `json:"unit_sale_price"`
}

// LineTotal returns the total price for this line item.
func (i *OrderLineItem) LineTotal() int64 {
	return i.UnitSalePrice * int64(i.Quantity)
}

// StatusHistoryEntry records a single status transition. Entries are
// append-only; one entry per transition.
type StatusHistoryEntry struct {
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changed_at"`
	Note      string    `json:"note,omitempty"`
}

// Address is the structural shipping address. All fields except the second
// address line are required for order creation.
type Address struct {
	FullName    string `json:"full_name" validate:"required"`
	Phone       string `json:"phone" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	AddressLine string `json:"address_line" validate:"required"`
	Ward        string `json:"ward" validate:"required"`
	District    string `json:"district" validate:"required"`
	City        string `json:"city" validate:"required"`
}

// Complete reports whether every structural field of the address is set.
func (a *Address) Complete() bool {
	return a.FullName != "" && a.Phone != "" && a.Email != "" &&
		a.AddressLine != "" && a.Ward != "" && a.District != "" && a.City != ""
}

// ValidStatuses returns all valid order statuses.
func ValidStatuses() []string {
	return []string{
		OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusShipping,
		OrderStatusCompleted,
		OrderStatusCanceled,
	}
}

// IsValidStatus checks if a status string is valid.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// ValidPaymentStatuses returns all valid payment statuses.
func ValidPaymentStatuses() []string {
	return []string{
		PaymentStatusPending,
		PaymentStatusCompleted,
		PaymentStatusFailed,
		PaymentStatusRefundPending,
		PaymentStatusRefunded,
		PaymentStatusExpired,
	}
}

// IsValidPaymentStatus checks whether the given status is a valid payment status.
func IsValidPaymentStatus(status string) bool {
	for _, s := range ValidPaymentStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// ValidPaymentMethods returns all valid payment methods.
func ValidPaymentMethods() []string {
	return []string{PaymentMethodCOD, PaymentMethodBankTransfer, PaymentMethodGateway}
}

// IsValidPaymentMethod checks whether the given method is a valid payment method.
func IsValidPaymentMethod(method string) bool {
	for _, m := range ValidPaymentMethods() {
		if m == method {
			return true
		}
	}
	return false
}

// AllowedTransitions defines the order status state machine. Completed and
// canceled are terminal: no manual transition leaves them.
func AllowedTransitions() map[string][]string {
	return map[string][]string{
		OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCanceled},
		OrderStatusConfirmed: {OrderStatusShipping, OrderStatusCanceled},
		OrderStatusShipping:  {OrderStatusCompleted, OrderStatusCanceled},
		OrderStatusCompleted: {},
		OrderStatusCanceled:  {},
	}
}

// CanTransitionTo checks if the order can transition to the target status.
func (o *Order) CanTransitionTo(target string) bool {
	allowed, ok := AllowedTransitions()[o.Status]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the order status admits no further transitions.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusCompleted || o.Status == OrderStatusCanceled
}

// AllowedPaymentTransitions defines which payment status updates are valid
// independently of the order status (e.g. confirming a manual refund).
func AllowedPaymentTransitions() map[string][]string {
	return map[string][]string{
		PaymentStatusPending:       {PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusExpired},
		PaymentStatusCompleted:     {PaymentStatusRefundPending, PaymentStatusRefunded},
		PaymentStatusRefundPending: {PaymentStatusRefunded},
		PaymentStatusFailed:        {},
		PaymentStatusRefunded:      {},
		PaymentStatusExpired:       {},
	}
}

// CanTransitionPaymentTo checks if the order's payment status can move to the target.
func (o *Order) CanTransitionPaymentTo(target string) bool {
	allowed, ok := AllowedPaymentTransitions()[o.PaymentStatus]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// Owner returns the cart/order owner identity, whichever side is set.
func (o *Order) Owner() Identity {
	return Identity{UserID: o.UserID, GuestID: o.GuestID}
}
