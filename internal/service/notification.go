package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/domain"
	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/repository"
)

// recordNotification writes an in-app notification, log-and-continue. A
// failed write never fails the operation that triggered it.
func recordNotification(ctx context.Context, notifications repository.NotificationRepository, logger *slog.Logger, now time.Time, userID, title, message, link string) {
	n := &domain.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Link:      link,
		CreatedAt: now,
	}
	if err := notifications.Create(ctx, n); err != nil {
		logger.WarnContext(ctx, "failed to create notification",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
