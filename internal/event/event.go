package event

import (
	"time"

	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/domain"
)

// Kafka topics for order-lifecycle events.
const (
	TopicOrderCreated       = "storefront.order.created"
	TopicOrderStatusChanged = "storefront.order.status_changed"
	TopicPaymentReconciled  = "storefront.payment.reconciled"
	TopicNotification       = "storefront.notification.requested"
)

// Event types carried inside the kafka envelope.
const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
	TypePaymentReconciled  = "payment.reconciled"
	TypeNotification       = "notification.requested"
)

// Source identifies this service as the event origin.
const Source = "order-engine"

// DomainEvent is one pending side effect produced by a core operation. Events
// are collected during the operation and dispatched only after the primary
// write commits, so a publish failure can never fail or dirty the operation.
type DomainEvent struct {
	Type        string
	Topic       string
	AggregateID string
	Payload     any
}

// OrderCreatedPayload is emitted once per successfully persisted order.
type OrderCreatedPayload struct {
	OrderID       string                 `json:"order_id"`
	OrderCode     string                 `json:"order_code"`
	UserID        string                 `json:"user_id,omitempty"`
	GuestID       string                 `json:"guest_id,omitempty"`
	TotalAmount   int64                  `json:"total_amount"`
	PaymentMethod string                 `json:"payment_method"`
	Items         []domain.OrderLineItem `json:"items"`
	CreatedAt     time.Time              `json:"created_at"`
}

// OrderStatusChangedPayload is emitted for every status transition and
// broadcast to the order's owner and to administrators.
type OrderStatusChangedPayload struct {
	OrderID       string    `json:"order_id"`
	OrderCode     string    `json:"order_code"`
	UserID        string    `json:"user_id,omitempty"`
	GuestID       string    `json:"guest_id,omitempty"`
	FromStatus    string    `json:"from_status"`
	ToStatus      string    `json:"to_status"`
	PaymentStatus string    `json:"payment_status"`
	Note          string    `json:"note,omitempty"`
	ChangedAt     time.Time `json:"changed_at"`
}

// PaymentReconciledPayload is emitted when a gateway callback is applied.
type PaymentReconciledPayload struct {
	OrderID       string    `json:"order_id"`
	OrderCode     string    `json:"order_code"`
	PaymentStatus string    `json:"payment_status"`
	TransactionNo string    `json:"transaction_no,omitempty"`
	BankCode      string    `json:"bank_code,omitempty"`
	Amount        int64     `json:"amount"`
	PaidAt        time.Time `json:"paid_at,omitempty"`
}

// NotificationPayload requests downstream delivery (email, push, socket).
// The engine decides that a message fires and what it says; transport is an
// external consumer's concern.
type NotificationPayload struct {
	UserID  string `json:"user_id,omitempty"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Link    string `json:"link,omitempty"`
}

// OrderCreated builds the order-created event.
func OrderCreated(o *domain.Order) DomainEvent {
	return DomainEvent{
		Type:        TypeOrderCreated,
		Topic:       TopicOrderCreated,
		AggregateID: o.ID,
		Payload: OrderCreatedPayload{
			OrderID:       o.ID,
			OrderCode:     o.OrderCode,
			UserID:        o.UserID,
			GuestID:       o.GuestID,
			TotalAmount:   o.TotalAmount,
			PaymentMethod: o.PaymentMethod,
			Items:         o.Items,
			CreatedAt:     o.CreatedAt,
		},
	}
}

// OrderStatusChanged builds the status-transition broadcast event.
func OrderStatusChanged(o *domain.Order, from, to, note string, at time.Time) DomainEvent {
	return DomainEvent{
		Type:        TypeOrderStatusChanged,
		Topic:       TopicOrderStatusChanged,
		AggregateID: o.ID,
		Payload: OrderStatusChangedPayload{
			OrderID:       o.ID,
			OrderCode:     o.OrderCode,
			UserID:        o.UserID,
			GuestID:       o.GuestID,
			FromStatus:    from,
			ToStatus:      to,
			PaymentStatus: o.PaymentStatus,
			Note:          note,
			ChangedAt:     at,
		},
	}
}

// PaymentReconciled builds the reconciliation event.
func PaymentReconciled(o *domain.Order, paymentStatus, txnNo, bankCode string, amount int64, paidAt time.Time) DomainEvent {
	return DomainEvent{
		Type:        TypePaymentReconciled,
		Topic:       TopicPaymentReconciled,
		AggregateID: o.ID,
		Payload: PaymentReconciledPayload{
			OrderID:       o.ID,
			OrderCode:     o.OrderCode,
			PaymentStatus: paymentStatus,
			TransactionNo: txnNo,
			BankCode:      bankCode,
			Amount:        amount,
			PaidAt:        paidAt,
		},
	}
}

// Notification builds a delivery request event.
func Notification(userID, title, message, link string) DomainEvent {
	return DomainEvent{
		Type:        TypeNotification,
		Topic:       TopicNotification,
		AggregateID: userID,
		Payload: NotificationPayload{
			UserID:  userID,
			Title:   title,
			Message: message,
			Link:    link,
		},
	}
}
