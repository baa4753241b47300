package domain

import "time"

// Notification is an in-app message produced as an order-lifecycle side
// effect. Notifications are fire-and-forget: a failed write never fails the
// operation that produced it.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
