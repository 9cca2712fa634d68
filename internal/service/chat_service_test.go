package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikspatil0120/eduplatform-sub001/internal/apperr"
	"github.com/nikspatil0120/eduplatform-sub001/internal/db"
	"github.com/nikspatil0120/eduplatform-sub001/internal/event"
	"github.com/nikspatil0120/eduplatform-sub001/internal/model"
	"github.com/nikspatil0120/eduplatform-sub001/internal/presence"
	"github.com/nikspatil0120/eduplatform-sub001/internal/repo"
)

// fakeMessageStore keeps messages in memory and enforces the same lifecycle
// rules as the Mongo-backed repository. Its clock is controllable so the edit
// window can be crossed without sleeping.
type fakeMessageStore struct {
	mu       sync.Mutex
	messages map[string]*model.Message
	order    []string
	now      time.Time
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{
		messages: make(map[string]*model.Message),
		now:      time.Now().UTC(),
	}
}

func (s *fakeMessageStore) advance(d time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(d)
	s.mu.Unlock()
}

func (s *fakeMessageStore) Insert(_ context.Context, msg *model.Message) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *msg
	stored.ID = primitive.NewObjectID()
	stored.CreatedAt = s.now
	if stored.Reactions == nil {
		stored.Reactions = []model.Reaction{}
	}
	s.messages[stored.ID.Hex()] = &stored
	s.order = append(s.order, stored.ID.Hex())
	out := stored
	return &out, nil
}

func (s *fakeMessageStore) FindByID(_ context.Context, messageID string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return nil, apperr.NotFound("message %s not found", messageID)
	}
	out := *msg
	return &out, nil
}

func (s *fakeMessageStore) Edit(_ context.Context, messageID, editorID, content string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return nil, apperr.NotFound("message %s not found", messageID)
	}
	if msg.SenderID != editorID {
		return nil, apperr.Authorization("only the sender can edit a message")
	}
	if !msg.Editable(s.now) {
		if msg.IsDeleted {
			return nil, apperr.State("message %s is deleted", messageID)
		}
		return nil, apperr.State("edit window of %s has expired", model.EditWindow)
	}
	msg.Content = content
	msg.IsEdited = true
	at := s.now
	msg.EditedAt = &at
	out := *msg
	return &out, nil
}

func (s *fakeMessageStore) SoftDelete(_ context.Context, messageID, actorID string, isModerator bool) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return nil, apperr.NotFound("message %s not found", messageID)
	}
	if msg.SenderID != actorID && !isModerator {
		return nil, apperr.Authorization("only the sender or a moderator can delete a message")
	}
	if msg.IsDeleted {
		return nil, apperr.State("message %s is already deleted", messageID)
	}
	msg.IsDeleted = true
	at := s.now
	msg.DeletedAt = &at
	out := *msg
	return &out, nil
}

func (s *fakeMessageStore) SetReaction(_ context.Context, messageID, userID, emoji string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok || msg.IsDeleted {
		return nil, apperr.NotFound("message %s not found", messageID)
	}
	next := make([]model.Reaction, 0, len(msg.Reactions)+1)
	for _, r := range msg.Reactions {
		if r.UserID != userID {
			next = append(next, r)
		}
	}
	msg.Reactions = append(next, model.Reaction{UserID: userID, Emoji: emoji})
	out := *msg
	return &out, nil
}

func (s *fakeMessageStore) RemoveReaction(_ context.Context, messageID, userID string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok || msg.IsDeleted {
		return nil, apperr.NotFound("message %s not found", messageID)
	}
	next := make([]model.Reaction, 0, len(msg.Reactions))
	for _, r := range msg.Reactions {
		if r.UserID != userID {
			next = append(next, r)
		}
	}
	msg.Reactions = next
	out := *msg
	return &out, nil
}

func (s *fakeMessageStore) Query(_ context.Context, groupID string, q repo.MessageQuery) (*db.PaginatedResult[model.Message], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Message
	for _, id := range s.order {
		msg := s.messages[id]
		if msg.GroupID != groupID || msg.IsDeleted {
			continue
		}
		if q.Before != nil && !msg.CreatedAt.Before(*q.Before) {
			continue
		}
		if q.After != nil && !msg.CreatedAt.After(*q.After) {
			continue
		}
		out = append(out, *msg)
	}
	return &db.PaginatedResult[model.Message]{Data: out, Total: int64(len(out))}, nil
}

func (s *fakeMessageStore) PurgeDeleted(_ context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now.Add(-olderThan)
	var removed int64
	kept := s.order[:0]
	for _, id := range s.order {
		msg := s.messages[id]
		if msg.IsDeleted && msg.DeletedAt.Before(cutoff) {
			delete(s.messages, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return removed, nil
}

func (s *fakeMessageStore) Analytics(_ context.Context, groupID string, from, to time.Time) (*model.ChatAnalytics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := &model.ChatAnalytics{
		GroupID:        groupID,
		From:           from,
		To:             to,
		MessagesByType: make(map[string]int),
	}
	senders := make(map[string]struct{})
	for _, msg := range s.messages {
		if msg.GroupID != groupID || msg.IsDeleted {
			continue
		}
		if msg.CreatedAt.Before(from) || msg.CreatedAt.After(to) {
			continue
		}
		out.TotalMessages++
		out.MessagesByType[msg.Type]++
		out.TotalReactions += int64(len(msg.Reactions))
		senders[msg.SenderID] = struct{}{}
	}
	out.UniqueSenders = int64(len(senders))
	return out, nil
}

type fakeAuthZ struct {
	members    map[string]bool // "group/user"
	moderators map[string]bool
}

func (a *fakeAuthZ) IsMember(_ context.Context, groupID, userID string) (bool, error) {
	return a.members[groupID+"/"+userID], nil
}

func (a *fakeAuthZ) IsModerator(_ context.Context, groupID, userID string) (bool, error) {
	return a.moderators[groupID+"/"+userID], nil
}

type fakeUsers struct {
	users map[string]*model.User
}

func (u *fakeUsers) Get(_ context.Context, userID string) (*model.User, error) {
	user, ok := u.users[userID]
	if !ok {
		return nil, apperr.NotFound("user %s not found", userID)
	}
	return user, nil
}

type fakeBroker struct {
	mu                sync.Mutex
	events            []event.WsEvent
	presenceSnapshots []string
	typingSnapshots   []string
}

func (b *fakeBroker) Publish(groupID string, ev event.WsEvent) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
}

func (b *fakeBroker) PublishPresenceSnapshot(groupID string) {
	b.mu.Lock()
	b.presenceSnapshots = append(b.presenceSnapshots, groupID)
	b.mu.Unlock()
}

func (b *fakeBroker) PublishTypingSnapshot(groupID string) {
	b.mu.Lock()
	b.typingSnapshots = append(b.typingSnapshots, groupID)
	b.mu.Unlock()
}

func (b *fakeBroker) lastEvent(t *testing.T) event.WsEvent {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.events)
	return b.events[len(b.events)-1]
}

type chatFixture struct {
	svc    *ChatService
	store  *fakeMessageStore
	broker *fakeBroker
	authz  *fakeAuthZ
}

func newChatFixture() *chatFixture {
	store := newFakeMessageStore()
	broker := &fakeBroker{}
	authz := &fakeAuthZ{
		members: map[string]bool{
			"course-42/alice": true,
			"course-42/bob":   true,
			"course-42/mod":   true,
		},
		moderators: map[string]bool{"course-42/mod": true},
	}
	users := &fakeUsers{users: map[string]*model.User{
		"alice": {ID: "alice", Name: "Alice", AvatarURL: "https://cdn.example.com/a.png"},
		"bob":   {ID: "bob", Name: "Bob"},
		"mod":   {ID: "mod", Name: "Dr. Mod"},
	}}
	tracker := presence.NewTracker(time.Minute, nil)
	svc := NewChatService(store, tracker, broker, authz, users, zap.NewNop())
	return &chatFixture{svc: svc, store: store, broker: broker, authz: authz}
}

func (f *chatFixture) send(t *testing.T, sender, content string) *model.Message {
	t.Helper()
	msg, err := f.svc.SendMessage(context.Background(), SendParams{
		GroupID:  "course-42",
		SenderID: sender,
		Content:  content,
		Type:     model.MessageTypeText,
	})
	require.NoError(t, err)
	return msg
}

func TestSendMessageVisibleAfterJoin(t *testing.T) {
	f := newChatFixture()

	sent := f.send(t, "alice", "Hello")
	assert.Equal(t, "Alice", sent.Sender.Name)

	ev := f.broker.lastEvent(t)
	assert.Equal(t, event.EventChatMessage, ev.Event)
	var payload event.ChatMessagePayload
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, "Hello", payload.Content)
	assert.Equal(t, "alice", payload.SenderID)

	require.NoError(t, f.svc.JoinGroup(context.Background(), "course-42", "bob"))

	page, err := f.svc.GetMessages(context.Background(), "course-42", "bob", repo.MessageQuery{})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Hello", page.Data[0].Content)
}

func TestSendMessageNonMember(t *testing.T) {
	f := newChatFixture()

	_, err := f.svc.SendMessage(context.Background(), SendParams{
		GroupID:  "course-42",
		SenderID: "mallory",
		Content:  "hi",
		Type:     model.MessageTypeText,
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeAuthorization))
}

func TestSendMessageInvalidReplyTo(t *testing.T) {
	f := newChatFixture()

	_, err := f.svc.SendMessage(context.Background(), SendParams{
		GroupID:  "course-42",
		SenderID: "alice",
		Content:  "hi",
		Type:     model.MessageTypeText,
		ReplyTo:  "not-a-hex-id",
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestEditMessageWindow(t *testing.T) {
	f := newChatFixture()
	msg := f.send(t, "alice", "Hello")

	f.store.advance(time.Minute)
	edited, err := f.svc.EditMessage(context.Background(), msg.ID.Hex(), "alice", "Hello, world")
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", edited.Content)
	assert.True(t, edited.IsEdited)
	require.NotNil(t, edited.EditedAt)

	ev := f.broker.lastEvent(t)
	assert.Equal(t, event.EventMessageEdited, ev.Event)

	f.store.advance(19 * time.Minute)
	_, err = f.svc.EditMessage(context.Background(), msg.ID.Hex(), "alice", "too late")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeState))
}

func TestEditMessageBySomeoneElse(t *testing.T) {
	f := newChatFixture()
	msg := f.send(t, "alice", "Hello")

	_, err := f.svc.EditMessage(context.Background(), msg.ID.Hex(), "bob", "hijacked")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeAuthorization))
}

func TestDeleteMessageBySender(t *testing.T) {
	f := newChatFixture()
	msg := f.send(t, "alice", "oops")

	deleted, err := f.svc.DeleteMessage(context.Background(), msg.ID.Hex(), "alice")
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	require.NotNil(t, deleted.DeletedAt)

	ev := f.broker.lastEvent(t)
	assert.Equal(t, event.EventMessageDeleted, ev.Event)

	// repeat delete is a state error
	_, err = f.svc.DeleteMessage(context.Background(), msg.ID.Hex(), "alice")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeState))
}

func TestDeleteMessageByModerator(t *testing.T) {
	f := newChatFixture()
	msg := f.send(t, "alice", "spam")

	deleted, err := f.svc.DeleteMessage(context.Background(), msg.ID.Hex(), "mod")
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
}

func TestDeleteMessageByNonModerator(t *testing.T) {
	f := newChatFixture()
	msg := f.send(t, "alice", "mine")

	_, err := f.svc.DeleteMessage(context.Background(), msg.ID.Hex(), "bob")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeAuthorization))
}

func TestReactionReplaceAndRemove(t *testing.T) {
	f := newChatFixture()
	msg := f.send(t, "alice", "react to me")

	_, err := f.svc.AddReaction(context.Background(), msg.ID.Hex(), "bob", "👍")
	require.NoError(t, err)

	// a second reaction from the same user replaces the first
	withReaction, err := f.svc.AddReaction(context.Background(), msg.ID.Hex(), "bob", "🎉")
	require.NoError(t, err)
	require.Len(t, withReaction.Reactions, 1)
	r, ok := withReaction.ReactionFor("bob")
	require.True(t, ok)
	assert.Equal(t, "🎉", r.Emoji)

	ev := f.broker.lastEvent(t)
	assert.Equal(t, event.EventMessageReaction, ev.Event)
	var payload event.ReactionPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, map[string]string{"bob": "🎉"}, payload.Reactions)

	cleared, err := f.svc.RemoveReaction(context.Background(), msg.ID.Hex(), "bob")
	require.NoError(t, err)
	assert.Empty(t, cleared.Reactions)
	assert.Equal(t, event.EventMessageReactionRemoved, f.broker.lastEvent(t).Event)
}

func TestReactionByNonMember(t *testing.T) {
	f := newChatFixture()
	msg := f.send(t, "alice", "hi")

	_, err := f.svc.AddReaction(context.Background(), msg.ID.Hex(), "mallory", "👀")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeAuthorization))
}

func TestGetMessagesChronologicalExcludingDeleted(t *testing.T) {
	f := newChatFixture()

	var ids []string
	for i := 1; i <= 3; i++ {
		msg := f.send(t, "alice", fmt.Sprintf("msg %d", i))
		ids = append(ids, msg.ID.Hex())
		f.store.advance(time.Second)
	}

	_, err := f.svc.DeleteMessage(context.Background(), ids[1], "alice")
	require.NoError(t, err)

	page, err := f.svc.GetMessages(context.Background(), "course-42", "bob", repo.MessageQuery{})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "msg 1", page.Data[0].Content)
	assert.Equal(t, "msg 3", page.Data[1].Content)
	assert.True(t, page.Data[0].CreatedAt.Before(page.Data[1].CreatedAt))
}

func TestGetMessagesNonMember(t *testing.T) {
	f := newChatFixture()

	_, err := f.svc.GetMessages(context.Background(), "course-42", "mallory", repo.MessageQuery{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeAuthorization))
}

func TestJoinGroupPublishesPresence(t *testing.T) {
	f := newChatFixture()

	require.NoError(t, f.svc.JoinGroup(context.Background(), "course-42", "alice"))
	assert.Equal(t, []string{"course-42"}, f.broker.presenceSnapshots)

	err := f.svc.JoinGroup(context.Background(), "course-42", "mallory")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeAuthorization))
}

func TestLeaveGroupPublishesBothSnapshots(t *testing.T) {
	f := newChatFixture()

	require.NoError(t, f.svc.JoinGroup(context.Background(), "course-42", "alice"))
	f.svc.LeaveGroup("course-42", "alice")

	assert.Len(t, f.broker.presenceSnapshots, 2)
	assert.Equal(t, []string{"course-42"}, f.broker.typingSnapshots)
}

func TestHandleTypingPublishesSnapshot(t *testing.T) {
	f := newChatFixture()

	f.svc.HandleTyping("course-42", "alice", true)
	assert.Equal(t, []string{"course-42"}, f.broker.typingSnapshots)

	f.svc.HandleTyping("course-42", "alice", false)
	assert.Len(t, f.broker.typingSnapshots, 2)
}

func TestRetentionPurge(t *testing.T) {
	f := newChatFixture()

	old := f.send(t, "alice", "old")
	_, err := f.svc.DeleteMessage(context.Background(), old.ID.Hex(), "alice")
	require.NoError(t, err)

	f.store.advance(48 * time.Hour)
	recent := f.send(t, "alice", "recent")
	_, err = f.svc.DeleteMessage(context.Background(), recent.ID.Hex(), "alice")
	require.NoError(t, err)

	removed, err := f.store.PurgeDeleted(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = f.store.FindByID(context.Background(), old.ID.Hex())
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	_, err = f.store.FindByID(context.Background(), recent.ID.Hex())
	assert.NoError(t, err)
}
