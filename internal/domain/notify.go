package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/civicworks/volunteerhub/internal/metrics"
	"github.com/civicworks/volunteerhub/internal/models"
	"github.com/civicworks/volunteerhub/internal/storage"
)

// Sink accepts notification requests from the lifecycle engines. Writes
// go through the store argument so they share the caller's transaction.
// Delivery is best-effort: the engines treat sink errors as fatal only
// because a failed insert must roll the surrounding transaction back.
type Sink interface {
	NotifyUser(ctx context.Context, store storage.Storage, userID, message string,
		severity models.NotificationSeverity, source models.NotificationSource, targetID string) error
	NotifyUsers(ctx context.Context, store storage.Storage, userIDs []string, message string,
		severity models.NotificationSeverity, source models.NotificationSource, targetID string) error
}

// StorageSink persists notifications as rows. A generous burst limiter
// drops excess broadcasts instead of failing the operation.
type StorageSink struct {
	limiter *rate.Limiter
}

// NewStorageSink creates a storage-backed notification sink.
func NewStorageSink() *StorageSink {
	return &StorageSink{
		limiter: rate.NewLimiter(rate.Limit(200), 1000),
	}
}

// NotifyUser enqueues a notification for one user.
func (s *StorageSink) NotifyUser(ctx context.Context, store storage.Storage, userID, message string,
	severity models.NotificationSeverity, source models.NotificationSource, targetID string) error {
	if !s.limiter.Allow() {
		metrics.NotificationsDroppedTotal.Inc()
		return nil
	}
	n := &models.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Message:   message,
		Severity:  severity,
		Source:    source,
		TargetID:  targetID,
		CreatedAt: time.Now(),
	}
	if err := store.Notifications().Create(ctx, n); err != nil {
		return err
	}
	metrics.NotificationsEnqueuedTotal.Inc()
	return nil
}

// NotifyUsers enqueues the same notification for each user.
func (s *StorageSink) NotifyUsers(ctx context.Context, store storage.Storage, userIDs []string, message string,
	severity models.NotificationSeverity, source models.NotificationSource, targetID string) error {
	for _, userID := range userIDs {
		if err := s.NotifyUser(ctx, store, userID, message, severity, source, targetID); err != nil {
			return err
		}
	}
	return nil
}
