package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/nikspatil0120/eduplatform-sub001/internal/apperr"
	"github.com/nikspatil0120/eduplatform-sub001/internal/db"
	"github.com/nikspatil0120/eduplatform-sub001/internal/model"
)

// NotificationRepository persists notification records and their lifecycle:
// pending -> sent -> read, or pending -> failed.
type NotificationRepository interface {
	Insert(ctx context.Context, n *model.Notification) (*model.Notification, error)
	FindByID(ctx context.Context, id string) (*model.Notification, error)
	MarkSent(ctx context.Context, id string, at time.Time) (*model.Notification, error)
	MarkFailed(ctx context.Context, id string, reason string) error
	MarkRead(ctx context.Context, id string, at time.Time) (*model.Notification, error)
	FindDueScheduled(ctx context.Context, now time.Time) ([]model.Notification, error)
	ListForUser(ctx context.Context, userID string, unreadOnly bool, page, limit int64) (*db.PaginatedResult[model.Notification], error)
	Analytics(ctx context.Context, from, to time.Time) (*model.NotificationAnalytics, error)
}

type notificationRepository struct {
	mongoRepo *db.Repository[model.Notification]
	logger    *zap.Logger
	now       func() time.Time
}

func NewNotificationRepository(repo *db.Repository[model.Notification], logger *zap.Logger) NotificationRepository {
	return &notificationRepository{
		mongoRepo: repo,
		logger:    logger,
		now:       time.Now,
	}
}

func (r *notificationRepository) Insert(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	if err := validateNotification(n); err != nil {
		return nil, err
	}

	ctx, cancel := r.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	n.ID = primitive.NewObjectID()
	n.Status = model.StatusPending
	n.CreatedAt = r.now().UTC()
	if n.Metadata == nil {
		n.Metadata = map[string]string{}
	}

	if _, err := r.mongoRepo.Create(ctx, *n); err != nil {
		r.logger.Error("failed to insert notification",
			zap.String("user_id", n.UserID),
			zap.Error(err),
		)
		return nil, err
	}

	r.logger.Debug("notification inserted",
		zap.String("notification_id", n.ID.Hex()),
		zap.String("user_id", n.UserID),
		zap.String("type", n.Type),
	)
	return n, nil
}

func (r *notificationRepository) FindByID(ctx context.Context, id string) (*model.Notification, error) {
	ctx, cancel := r.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	n, err := r.mongoRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) || errors.Is(err, primitive.ErrInvalidHex) {
			return nil, apperr.NotFound("notification %s not found", id)
		}
		return nil, err
	}
	return n, nil
}

// MarkSent transitions pending -> sent. The filter guards the current status
// so a concurrent sweep and a direct send cannot both claim the record.
func (r *notificationRepository) MarkSent(ctx context.Context, id string, at time.Time) (*model.Notification, error) {
	ctx, cancel := r.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().
		ObjectID("_id", id).
		Eq("status", model.StatusPending).
		Build()
	update := bson.M{"$set": bson.M{
		"status":  model.StatusSent,
		"sent_at": at.UTC(),
	}}

	n, err := r.mongoRepo.FindOneAndApply(ctx, filter, update)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.State("notification %s is not pending", id)
		}
		return nil, err
	}
	return n, nil
}

func (r *notificationRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	ctx, cancel := r.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	_, err := r.mongoRepo.UpdateByID(ctx, id, bson.M{
		"status": model.StatusFailed,
		"error":  reason,
	})
	return err
}

// MarkRead transitions sent -> read and is idempotent: a second call finds
// the record already read and returns it unchanged, read_at included.
func (r *notificationRepository) MarkRead(ctx context.Context, id string, at time.Time) (*model.Notification, error) {
	ctx, cancel := r.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().
		ObjectID("_id", id).
		In("status", []string{model.StatusSent, model.StatusPending}).
		Build()
	update := bson.M{"$set": bson.M{
		"status":  model.StatusRead,
		"read_at": at.UTC(),
	}}

	n, err := r.mongoRepo.FindOneAndApply(ctx, filter, update)
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status == model.StatusRead {
		return existing, nil // already read, no-op
	}
	return nil, apperr.State("notification %s cannot transition to read from %s", id, existing.Status)
}

// FindDueScheduled returns pending notifications whose schedule_at has come.
func (r *notificationRepository) FindDueScheduled(ctx context.Context, now time.Time) ([]model.Notification, error) {
	ctx, cancel := r.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	// $lte on a date never matches null or missing schedule_at, so
	// unscheduled pending records are excluded by type bracketing.
	filter := db.NewFilter().
		Eq("status", model.StatusPending).
		Lte("schedule_at", now.UTC()).
		Build()

	return r.mongoRepo.FindAll(ctx, filter)
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID string, unreadOnly bool, page, limit int64) (*db.PaginatedResult[model.Notification], error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Validation("user ID cannot be empty")
	}

	ctx, cancel := r.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	fb := db.NewFilter().Eq("user_id", userID)
	if unreadOnly {
		fb.In("status", []string{model.StatusPending, model.StatusSent})
	}

	return r.mongoRepo.FindWithPagination(ctx, fb.Build(), db.PaginationParams{
		Page:     page,
		PageSize: limit,
		SortBy:   "created_at",
		SortDesc: true,
	})
}

func (r *notificationRepository) Analytics(ctx context.Context, from, to time.Time) (*model.NotificationAnalytics, error) {
	ctx, cancel := r.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	match := bson.D{
		{Key: "created_at", Value: bson.M{"$gte": from.UTC(), "$lte": to.UTC()}},
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"status": "$status", "type": "$type", "priority": "$priority"},
			"count": bson.M{"$sum": 1},
		}}},
	}

	var rows []struct {
		Key struct {
			Status   string `bson:"status"`
			Type     string `bson:"type"`
			Priority string `bson:"priority"`
		} `bson:"_id"`
		Count int `bson:"count"`
	}
	if err := r.mongoRepo.Aggregate(ctx, pipeline, &rows); err != nil {
		r.logger.Error("notification analytics aggregation failed", zap.Error(err))
		return nil, err
	}

	out := &model.NotificationAnalytics{
		From:             from,
		To:               to,
		CountsByStatus:   make(map[string]int),
		CountsByType:     make(map[string]int),
		CountsByPriority: make(map[string]int),
	}
	for _, row := range rows {
		out.Total += int64(row.Count)
		out.CountsByStatus[row.Key.Status] += row.Count
		out.CountsByType[row.Key.Type] += row.Count
		out.CountsByPriority[row.Key.Priority] += row.Count
	}
	if out.Total > 0 {
		out.ReadRate = float64(out.CountsByStatus[model.StatusRead]) / float64(out.Total)
	}
	return out, nil
}

func validateNotification(n *model.Notification) error {
	if n == nil {
		return apperr.Validation("notification cannot be nil")
	}
	if strings.TrimSpace(n.UserID) == "" {
		return apperr.Validation("recipient user ID cannot be empty")
	}
	if !model.ValidNotificationType(n.Type) {
		return apperr.Validation("unknown notification type %q", n.Type)
	}
	if !model.ValidPriority(n.Priority) {
		return apperr.Validation("unknown priority %q", n.Priority)
	}
	if strings.TrimSpace(n.Title) == "" {
		return apperr.Validation("title cannot be empty")
	}
	if len(n.Channels) == 0 {
		return apperr.Validation("at least one delivery channel is required")
	}
	for _, ch := range n.Channels {
		if !model.ValidChannel(ch) {
			return apperr.Validation("unknown channel %q", ch)
		}
	}
	return nil
}

func (r *notificationRepository) ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
