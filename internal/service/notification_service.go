package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nikspatil0120/eduplatform-sub001/internal/db"
	"github.com/nikspatil0120/eduplatform-sub001/internal/model"
	"github.com/nikspatil0120/eduplatform-sub001/internal/notify"
	"github.com/nikspatil0120/eduplatform-sub001/internal/repo"
)

// DefaultSweepInterval is how often the scheduled-notification sweep runs.
const DefaultSweepInterval = time.Minute

// NotificationService orchestrates the dispatcher: creation, broadcast, the
// scheduled sweep and delivery analytics.
type NotificationService struct {
	dispatcher *notify.Dispatcher
	store      repo.NotificationRepository
	logger     *zap.Logger
}

func NewNotificationService(dispatcher *notify.Dispatcher, store repo.NotificationRepository, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		store:      store,
		logger:     logger,
	}
}

// Create persists and, when due, dispatches one notification.
func (s *NotificationService) Create(ctx context.Context, params notify.CreateParams) (*model.Notification, *model.DeliveryReport, error) {
	return s.dispatcher.Create(ctx, params)
}

// Broadcast delivers to many recipients with itemized per-user results.
func (s *NotificationService) Broadcast(ctx context.Context, userIDs []string, params notify.CreateParams) []model.BroadcastItem {
	return s.dispatcher.Broadcast(ctx, userIDs, params)
}

// MarkRead transitions a notification to read for its owner; idempotent.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, userID string) (*model.Notification, error) {
	return s.dispatcher.MarkRead(ctx, notificationID, userID)
}

// List pages a user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, page, limit int64) (*db.PaginatedResult[model.Notification], error) {
	return s.store.ListForUser(ctx, userID, unreadOnly, page, limit)
}

// Analytics aggregates notification delivery over a range.
func (s *NotificationService) Analytics(ctx context.Context, from, to time.Time) (*model.NotificationAnalytics, error) {
	return s.store.Analytics(ctx, from, to)
}

// StartScheduledSweep dispatches due scheduled notifications on a fixed
// interval until the context is cancelled.
func (s *NotificationService) StartScheduledSweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.dispatcher.ProcessScheduled(ctx); err != nil {
					s.logger.Error("scheduled sweep failed", zap.Error(err))
				}
			}
		}
	}()
}
