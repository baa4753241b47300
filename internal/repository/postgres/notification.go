package postgres

import (
	"context"
	"fmt"

	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/domain"
	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/database"
)

// NotificationRepository persists in-app notifications.
type NotificationRepository struct {
	pool database.DBTX
}

// NewNotificationRepository creates a new PostgreSQL-backed notification repository.
func NewNotificationRepository(pool database.DBTX) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Create inserts a notification row.
func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, title, message, link, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query, n.ID, n.UserID, n.Title, n.Message, n.Link, n.IsRead, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}
