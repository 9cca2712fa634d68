package service

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/nikspatil0120/eduplatform-sub001/internal/apperr"
	"github.com/nikspatil0120/eduplatform-sub001/internal/db"
	"github.com/nikspatil0120/eduplatform-sub001/internal/directory"
	"github.com/nikspatil0120/eduplatform-sub001/internal/event"
	"github.com/nikspatil0120/eduplatform-sub001/internal/metrics"
	"github.com/nikspatil0120/eduplatform-sub001/internal/model"
	"github.com/nikspatil0120/eduplatform-sub001/internal/presence"
	"github.com/nikspatil0120/eduplatform-sub001/internal/repo"
)

// Broker is the live fan-out surface the chat service publishes through.
// Satisfied by *hub.Hub.
type Broker interface {
	Publish(groupID string, ev event.WsEvent)
	PublishPresenceSnapshot(groupID string)
	PublishTypingSnapshot(groupID string)
}

// SendParams carries one inbound message send.
type SendParams struct {
	GroupID     string
	SenderID    string
	Content     string
	Type        string
	Attachments []model.Attachment
	ReplyTo     string
}

// ChatService orchestrates the message store, presence tracker and broker
// behind one contract. Every mutation authorizes first, persists second and
// publishes last; the stored order is authoritative and live delivery is
// best effort.
type ChatService struct {
	store   repo.MessageRepository
	tracker *presence.Tracker
	broker  Broker
	authz   directory.AuthZ
	users   directory.UserDirectory
	logger  *zap.Logger
}

func NewChatService(store repo.MessageRepository, tracker *presence.Tracker, broker Broker, authz directory.AuthZ, users directory.UserDirectory, logger *zap.Logger) *ChatService {
	return &ChatService{
		store:   store,
		tracker: tracker,
		broker:  broker,
		authz:   authz,
		users:   users,
		logger:  logger,
	}
}

// SendMessage validates, authorizes membership, persists the message with a
// denormalized sender snapshot and fans the chatMessage event out.
func (s *ChatService) SendMessage(ctx context.Context, params SendParams) (*model.Message, error) {
	member, err := s.authz.IsMember(ctx, params.GroupID, params.SenderID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, apperr.Authorization("user %s is not a member of group %s", params.SenderID, params.GroupID)
	}

	sender, err := s.users.Get(ctx, params.SenderID)
	if err != nil {
		return nil, err
	}

	msg := &model.Message{
		GroupID:  params.GroupID,
		SenderID: params.SenderID,
		Sender: model.SenderSnapshot{
			Name:      sender.Name,
			AvatarURL: sender.AvatarURL,
		},
		Content:     params.Content,
		Type:        params.Type,
		Attachments: params.Attachments,
	}
	if params.ReplyTo != "" {
		replyID, err := primitive.ObjectIDFromHex(params.ReplyTo)
		if err != nil {
			return nil, apperr.Validation("invalid replyTo message ID %q", params.ReplyTo)
		}
		msg.ReplyTo = &replyID
	}

	msg, err = s.store.Insert(ctx, msg)
	if err != nil {
		return nil, err
	}
	metrics.MessagesSent.WithLabelValues(msg.Type).Inc()

	s.broker.Publish(msg.GroupID, event.New(event.EventChatMessage, msg.GroupID, event.ChatMessagePayload{
		ID:         msg.ID.Hex(),
		GroupID:    msg.GroupID,
		SenderID:   msg.SenderID,
		SenderName: msg.Sender.Name,
		Content:    msg.Content,
		Type:       msg.Type,
		Timestamp:  msg.CreatedAt,
	}))
	return msg, nil
}

// EditMessage updates content within the edit window; sender-only.
func (s *ChatService) EditMessage(ctx context.Context, messageID, editorID, content string) (*model.Message, error) {
	msg, err := s.store.Edit(ctx, messageID, editorID, content)
	if err != nil {
		return nil, err
	}

	s.broker.Publish(msg.GroupID, event.New(event.EventMessageEdited, msg.GroupID, event.MessageEditedPayload{
		MessageID: msg.ID.Hex(),
		Content:   msg.Content,
		EditedAt:  *msg.EditedAt,
	}))
	return msg, nil
}

// DeleteMessage soft-deletes. The sender may delete their own message; any
// group moderator may delete anyone's.
func (s *ChatService) DeleteMessage(ctx context.Context, messageID, actorID string) (*model.Message, error) {
	existing, err := s.store.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	isModerator := false
	if existing.SenderID != actorID {
		isModerator, err = s.authz.IsModerator(ctx, existing.GroupID, actorID)
		if err != nil {
			return nil, err
		}
	}

	msg, err := s.store.SoftDelete(ctx, messageID, actorID, isModerator)
	if err != nil {
		return nil, err
	}

	s.broker.Publish(msg.GroupID, event.New(event.EventMessageDeleted, msg.GroupID, event.MessageDeletedPayload{
		MessageID: msg.ID.Hex(),
		DeletedAt: *msg.DeletedAt,
	}))
	return msg, nil
}

// AddReaction sets the user's reaction, replacing any prior one.
func (s *ChatService) AddReaction(ctx context.Context, messageID, userID, emoji string) (*model.Message, error) {
	if err := s.authorizeOnMessage(ctx, messageID, userID); err != nil {
		return nil, err
	}

	msg, err := s.store.SetReaction(ctx, messageID, userID, emoji)
	if err != nil {
		return nil, err
	}

	s.publishReaction(event.EventMessageReaction, msg, userID, emoji)
	return msg, nil
}

// RemoveReaction clears the user's reaction entry.
func (s *ChatService) RemoveReaction(ctx context.Context, messageID, userID string) (*model.Message, error) {
	if err := s.authorizeOnMessage(ctx, messageID, userID); err != nil {
		return nil, err
	}

	msg, err := s.store.RemoveReaction(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}

	s.publishReaction(event.EventMessageReactionRemoved, msg, userID, "")
	return msg, nil
}

func (s *ChatService) publishReaction(name string, msg *model.Message, userID, emoji string) {
	reactions := make(map[string]string, len(msg.Reactions))
	for _, r := range msg.Reactions {
		reactions[r.UserID] = r.Emoji
	}

	s.broker.Publish(msg.GroupID, event.New(name, msg.GroupID, event.ReactionPayload{
		MessageID: msg.ID.Hex(),
		UserID:    userID,
		Emoji:     emoji,
		Reactions: reactions,
	}))
}

func (s *ChatService) authorizeOnMessage(ctx context.Context, messageID, userID string) error {
	msg, err := s.store.FindByID(ctx, messageID)
	if err != nil {
		return err
	}
	member, err := s.authz.IsMember(ctx, msg.GroupID, userID)
	if err != nil {
		return err
	}
	if !member {
		return apperr.Authorization("user %s is not a member of group %s", userID, msg.GroupID)
	}
	return nil
}

// JoinGroup authorizes, marks the user active and republishes the presence
// snapshot.
func (s *ChatService) JoinGroup(ctx context.Context, groupID, userID string) error {
	member, err := s.authz.IsMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !member {
		return apperr.Authorization("user %s is not a member of group %s", userID, groupID)
	}

	s.tracker.MarkActive(groupID, userID)
	s.broker.PublishPresenceSnapshot(groupID)
	return nil
}

// LeaveGroup drops the user from the presence sets and republishes both
// snapshots.
func (s *ChatService) LeaveGroup(groupID, userID string) {
	s.tracker.MarkLeft(groupID, userID)
	s.broker.PublishPresenceSnapshot(groupID)
	s.broker.PublishTypingSnapshot(groupID)
}

// SetTyping drives the typing state machine and republishes the snapshot.
func (s *ChatService) SetTyping(groupID, userID string, isTyping bool) {
	s.tracker.SetTyping(groupID, userID, isTyping)
	s.broker.PublishTypingSnapshot(groupID)
}

// GetMessages reads group history: member-only, chronological, deleted
// messages excluded.
func (s *ChatService) GetMessages(ctx context.Context, groupID, userID string, q repo.MessageQuery) (*db.PaginatedResult[model.Message], error) {
	member, err := s.authz.IsMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, apperr.Authorization("user %s is not a member of group %s", userID, groupID)
	}

	return s.store.Query(ctx, groupID, q)
}

// Analytics aggregates group activity over a range.
func (s *ChatService) Analytics(ctx context.Context, groupID string, from, to time.Time) (*model.ChatAnalytics, error) {
	return s.store.Analytics(ctx, groupID, from, to)
}

// -----------------------------------------------------------------
// hub.EventHandler - client-originated events
// -----------------------------------------------------------------

func (s *ChatService) HandleTyping(groupID, userID string, isTyping bool) {
	s.SetTyping(groupID, userID, isTyping)
}

func (s *ChatService) HandleHeartbeat(groupID, userID string) {
	s.tracker.MarkActive(groupID, userID)
}

func (s *ChatService) HandleDisconnect(groupID, userID string) {
	s.LeaveGroup(groupID, userID)
}

// -----------------------------------------------------------------
// Retention
// -----------------------------------------------------------------

// StartRetentionSweep hard-purges soft-deleted messages past the retention
// threshold on a fixed interval, until the context is cancelled.
func (s *ChatService) StartRetentionSweep(ctx context.Context, interval, retain time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.store.PurgeDeleted(ctx, retain); err != nil {
					s.logger.Error("retention sweep failed", zap.Error(err))
				}
			}
		}
	}()
}
