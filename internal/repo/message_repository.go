package repo

import (
	"context"
	"errors"
	"fmt"
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

var (
	ErrMaxRetriesExceeded = errors.New("maximum retry attempts exceeded")
	ErrInvalidGroupID     = errors.New("invalid group ID: cannot be empty")
	ErrOperationTimeout   = errors.New("operation timeout exceeded")
)

const (
	// Timeouts
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 30 * time.Second

	// Retry configuration
	maxRetries     = 3
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 2 * time.Second

	// Optimistic concurrency retries for reaction updates
	maxCASAttempts = 5
)

// attachment mime allow-list
var allowedMimeTypes = map[string]bool{
	"image/jpeg":         true,
	"image/png":          true,
	"image/gif":          true,
	"image/webp":         true,
	"application/pdf":    true,
	"application/zip":    true,
	"text/plain":         true,
	"video/mp4":          true,
	"audio/mpeg":         true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// MessageQuery bounds and filters a history read.
type MessageQuery struct {
	Before *time.Time
	After  *time.Time
	Search string
	Page   int64
	Limit  int64
}

// MessageRepository is the durable message store. Mutations enforce the
// message lifecycle invariants: sender-only edits inside the edit window,
// soft deletes freezing all further mutation, one reaction per user.
type MessageRepository interface {
	Insert(ctx context.Context, msg *model.Message) (*model.Message, error)
	FindByID(ctx context.Context, messageID string) (*model.Message, error)
	Edit(ctx context.Context, messageID, editorID, content string) (*model.Message, error)
	SoftDelete(ctx context.Context, messageID, actorID string, isModerator bool) (*model.Message, error)
	SetReaction(ctx context.Context, messageID, userID, emoji string) (*model.Message, error)
	RemoveReaction(ctx context.Context, messageID, userID string) (*model.Message, error)
	Query(ctx context.Context, groupID string, q MessageQuery) (*db.PaginatedResult[model.Message], error)
	PurgeDeleted(ctx context.Context, olderThan time.Duration) (int64, error)
	Analytics(ctx context.Context, groupID string, from, to time.Time) (*model.ChatAnalytics, error)
}

type messageRepository struct {
	mongoRepo *db.Repository[model.Message]
	logger    *zap.Logger
	now       func() time.Time
}

func NewMessageRepository(repo *db.Repository[model.Message], logger *zap.Logger) MessageRepository {
	return &messageRepository{
		mongoRepo: repo,
		logger:    logger,
		now:       time.Now,
	}
}

// -----------------------------------------------------------------------------
// Insert
// -----------------------------------------------------------------------------

func (m *messageRepository) Insert(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if err := validateMessage(msg); err != nil {
		return nil, err
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	msg.ID = primitive.NewObjectID()
	msg.CreatedAt = m.now().UTC()
	msg.IsEdited = false
	msg.IsDeleted = false
	if msg.Reactions == nil {
		msg.Reactions = []model.Reaction{}
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := m.waitForRetry(ctx, attempt); err != nil {
				return nil, err
			}
		}

		_, err := m.mongoRepo.Create(ctx, *msg)
		if err == nil {
			m.logger.Info("message inserted",
				zap.String("message_id", msg.ID.Hex()),
				zap.String("group_id", msg.GroupID),
				zap.Int("attempt", attempt+1),
			)
			return msg, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}

		m.logger.Warn("insert attempt failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxRetries),
		)
	}

	m.logger.Error("failed to insert message after all retries",
		zap.Error(lastErr),
		zap.String("group_id", msg.GroupID),
	)
	return nil, fmt.Errorf("insert message failed: %w", lastErr)
}

// -----------------------------------------------------------------------------
// FindByID
// -----------------------------------------------------------------------------

func (m *messageRepository) FindByID(ctx context.Context, messageID string) (*model.Message, error) {
	ctx, cancel := m.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	msg, err := m.mongoRepo.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) || errors.Is(err, primitive.ErrInvalidHex) {
			return nil, apperr.NotFound("message %s not found", messageID)
		}
		return nil, err
	}
	return msg, nil
}

// -----------------------------------------------------------------------------
// Edit
// -----------------------------------------------------------------------------

// Edit updates message content when the editor is the sender, the message is
// not deleted and the edit window has not elapsed. The update filter asserts
// all three so a racing delete cannot slip an edit through; when the filter
// misses, the message is re-read to report the precise reason.
func (m *messageRepository) Edit(ctx context.Context, messageID, editorID, content string) (*model.Message, error) {
	if content == "" || len(content) > model.MaxContentLength {
		return nil, apperr.Validation("content must be 1-%d characters", model.MaxContentLength)
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	now := m.now().UTC()
	windowStart := now.Add(-model.EditWindow)

	filter := db.NewFilter().
		ObjectID("_id", messageID).
		Eq("sender_id", editorID).
		Eq("is_deleted", false).
		Gt("created_at", windowStart).
		Build()

	update := bson.M{"$set": bson.M{
		"content":   content,
		"is_edited": true,
		"edited_at": now,
	}}

	updated, err := m.mongoRepo.FindOneAndApply(ctx, filter, update)
	if err == nil {
		m.logger.Info("message edited",
			zap.String("message_id", messageID),
			zap.String("editor_id", editorID),
		)
		return updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	// Guard filter missed: classify the rejection.
	msg, err := m.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != editorID {
		return nil, apperr.Authorization("only the sender can edit a message")
	}
	if msg.IsDeleted {
		return nil, apperr.State("message %s is deleted", messageID)
	}
	return nil, apperr.State("edit window of %s has expired", model.EditWindow)
}

// -----------------------------------------------------------------------------
// SoftDelete
// -----------------------------------------------------------------------------

func (m *messageRepository) SoftDelete(ctx context.Context, messageID, actorID string, isModerator bool) (*model.Message, error) {
	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	msg, err := m.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != actorID && !isModerator {
		return nil, apperr.Authorization("only the sender or a moderator can delete a message")
	}
	if msg.IsDeleted {
		return nil, apperr.State("message %s is already deleted", messageID)
	}

	now := m.now().UTC()
	filter := db.NewFilter().
		ObjectID("_id", messageID).
		Eq("is_deleted", false).
		Build()

	update := bson.M{"$set": bson.M{
		"is_deleted": true,
		"deleted_at": now,
	}}

	deleted, err := m.mongoRepo.FindOneAndApply(ctx, filter, update)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// lost the race to another delete
			return nil, apperr.State("message %s is already deleted", messageID)
		}
		return nil, err
	}

	m.logger.Info("message soft-deleted",
		zap.String("message_id", messageID),
		zap.String("actor_id", actorID),
		zap.Bool("moderator", isModerator),
	)
	return deleted, nil
}

// -----------------------------------------------------------------------------
// Reactions
// -----------------------------------------------------------------------------

// SetReaction replaces or inserts the user's reaction entry. The reactions
// array is swapped wholesale under an optimistic check on its current value,
// retried a few times so concurrent reactors never lose updates.
func (m *messageRepository) SetReaction(ctx context.Context, messageID, userID, emoji string) (*model.Message, error) {
	if emoji == "" {
		return nil, apperr.Validation("emoji cannot be empty")
	}
	return m.swapReactions(ctx, messageID, func(reactions []model.Reaction) []model.Reaction {
		next := make([]model.Reaction, 0, len(reactions)+1)
		for _, r := range reactions {
			if r.UserID != userID {
				next = append(next, r)
			}
		}
		return append(next, model.Reaction{UserID: userID, Emoji: emoji})
	})
}

// RemoveReaction removes the user's reaction entry, if present.
func (m *messageRepository) RemoveReaction(ctx context.Context, messageID, userID string) (*model.Message, error) {
	return m.swapReactions(ctx, messageID, func(reactions []model.Reaction) []model.Reaction {
		next := make([]model.Reaction, 0, len(reactions))
		for _, r := range reactions {
			if r.UserID != userID {
				next = append(next, r)
			}
		}
		return next
	})
}

func (m *messageRepository) swapReactions(ctx context.Context, messageID string, apply func([]model.Reaction) []model.Reaction) (*model.Message, error) {
	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		msg, err := m.FindByID(ctx, messageID)
		if err != nil {
			return nil, err
		}
		if msg.IsDeleted {
			return nil, apperr.NotFound("message %s not found", messageID)
		}

		next := apply(msg.Reactions)

		filter := db.NewFilter().
			Eq("_id", msg.ID).
			Eq("is_deleted", false).
			Eq("reactions", msg.Reactions).
			Build()

		updated, err := m.mongoRepo.FindOneAndApply(ctx, filter, bson.M{"$set": bson.M{"reactions": next}})
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}

		// CAS miss: another reactor or a delete changed the document.
		m.logger.Debug("reaction swap retry",
			zap.String("message_id", messageID),
			zap.Int("attempt", attempt+1),
		)
	}

	return nil, fmt.Errorf("set reaction on %s: %w", messageID, ErrMaxRetriesExceeded)
}

// -----------------------------------------------------------------------------
// Query
// -----------------------------------------------------------------------------

// Query returns non-deleted messages of a group in ascending created_at
// order. This ordering is authoritative; live broadcast may race it and
// clients reconcile against this read.
func (m *messageRepository) Query(ctx context.Context, groupID string, q MessageQuery) (*db.PaginatedResult[model.Message], error) {
	if strings.TrimSpace(groupID) == "" {
		return nil, ErrInvalidGroupID
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	fb := db.NewFilter().
		Eq("group_id", groupID).
		Eq("is_deleted", false)
	if q.Before != nil {
		fb.Lt("created_at", q.Before.UTC())
	}
	if q.After != nil {
		fb.Gt("created_at", q.After.UTC())
	}
	if q.Search != "" {
		fb.Contains("content", q.Search)
	}
	filter := fb.Build()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := m.waitForRetry(ctx, attempt); err != nil {
				return nil, err
			}
			m.logger.Warn("retrying message query",
				zap.String("group_id", groupID),
				zap.Int("attempt", attempt+1),
			)
		}

		result, err := m.mongoRepo.FindWithPagination(ctx, filter, db.PaginationParams{
			Page:     q.Page,
			PageSize: q.Limit,
			SortBy:   "created_at",
			SortDesc: false,
		})
		if err == nil {
			m.logger.Debug("messages queried",
				zap.String("group_id", groupID),
				zap.Int("count", len(result.Data)),
				zap.Int64("total", result.Total),
			)
			return result, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}

	return nil, m.handleReadError(lastErr, groupID)
}

// -----------------------------------------------------------------------------
// Retention
// -----------------------------------------------------------------------------

// PurgeDeleted hard-removes soft-deleted messages whose deletion is older
// than the retention threshold. Everything else is never hard-deleted.
func (m *messageRepository) PurgeDeleted(ctx context.Context, olderThan time.Duration) (int64, error) {
	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	cutoff := m.now().UTC().Add(-olderThan)
	filter := db.NewFilter().
		Eq("is_deleted", true).
		Lt("deleted_at", cutoff).
		Build()

	result, err := m.mongoRepo.DeleteMany(ctx, filter)
	if err != nil {
		m.logger.Error("retention purge failed", zap.Error(err))
		return 0, err
	}

	if result.DeletedCount > 0 {
		m.logger.Info("retention purge complete", zap.Int64("removed", result.DeletedCount))
	}
	return result.DeletedCount, nil
}

// -----------------------------------------------------------------------------
// Analytics
// -----------------------------------------------------------------------------

func (m *messageRepository) Analytics(ctx context.Context, groupID string, from, to time.Time) (*model.ChatAnalytics, error) {
	if strings.TrimSpace(groupID) == "" {
		return nil, ErrInvalidGroupID
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	match := bson.D{
		{Key: "group_id", Value: groupID},
		{Key: "is_deleted", Value: false},
		{Key: "created_at", Value: bson.M{"$gte": from.UTC(), "$lte": to.UTC()}},
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":       "$type",
			"count":     bson.M{"$sum": 1},
			"senders":   bson.M{"$addToSet": "$sender_id"},
			"reactions": bson.M{"$sum": bson.M{"$size": bson.M{"$ifNull": bson.A{"$reactions", bson.A{}}}}},
		}}},
	}

	var rows []struct {
		Type      string   `bson:"_id"`
		Count     int      `bson:"count"`
		Senders   []string `bson:"senders"`
		Reactions int64    `bson:"reactions"`
	}
	if err := m.mongoRepo.Aggregate(ctx, pipeline, &rows); err != nil {
		m.logger.Error("chat analytics aggregation failed",
			zap.String("group_id", groupID),
			zap.Error(err),
		)
		return nil, err
	}

	out := &model.ChatAnalytics{
		GroupID:        groupID,
		From:           from,
		To:             to,
		MessagesByType: make(map[string]int),
	}
	senders := make(map[string]struct{})
	for _, row := range rows {
		out.TotalMessages += int64(row.Count)
		out.MessagesByType[row.Type] = row.Count
		out.TotalReactions += row.Reactions
		for _, s := range row.Senders {
			senders[s] = struct{}{}
		}
	}
	out.UniqueSenders = int64(len(senders))
	return out, nil
}

// -----------------------------------------------------------------------------
// Validation
// -----------------------------------------------------------------------------

func validateMessage(msg *model.Message) error {
	if msg == nil {
		return apperr.Validation("message cannot be nil")
	}
	if strings.TrimSpace(msg.GroupID) == "" {
		return apperr.Validation("group ID cannot be empty")
	}
	if !model.ValidMessageType(msg.Type) {
		return apperr.Validation("unknown message type %q", msg.Type)
	}
	if msg.Type == model.MessageTypeText && strings.TrimSpace(msg.Content) == "" {
		return apperr.Validation("content cannot be empty")
	}
	if len(msg.Content) > model.MaxContentLength {
		return apperr.Validation("content exceeds %d characters", model.MaxContentLength)
	}
	if len(msg.Attachments) > model.MaxAttachments {
		return apperr.Validation("at most %d attachments allowed", model.MaxAttachments)
	}
	for _, a := range msg.Attachments {
		if !allowedMimeTypes[a.MimeType] {
			return apperr.Validation("attachment mime type %q not allowed", a.MimeType)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Private Helper Methods
// -----------------------------------------------------------------------------

func (m *messageRepository) ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (m *messageRepository) waitForRetry(ctx context.Context, attempt int) error {
	delay := time.Duration(1<<uint(attempt)) * baseRetryDelay
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}

func (m *messageRepository) handleReadError(err error, groupID string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		m.logger.Error("read timeout", zap.String("group_id", groupID))
		return ErrOperationTimeout
	}
	if errors.Is(err, context.Canceled) {
		m.logger.Debug("read cancelled", zap.String("group_id", groupID))
		return err
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}

	m.logger.Error("read failed", zap.Error(err), zap.String("group_id", groupID))
	return fmt.Errorf("query messages failed: %w", err)
}
