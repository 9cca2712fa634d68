package event

import (
	"encoding/json"
	"time"
)

// Server-published event names
const (
	EventChatMessage            = "chatMessage"
	EventMessageEdited          = "messageEdited"
	EventMessageDeleted         = "messageDeleted"
	EventMessageReaction        = "messageReaction"
	EventMessageReactionRemoved = "messageReactionRemoved"
	EventActiveUsers            = "activeUsers"
	EventTypingUsers            = "typingUsers"
	EventNotification           = "notification"
	EventError                  = "error"
)

// Client-sent event names
const (
	EventClientTyping    = "typing"
	EventClientHeartbeat = "heartbeat"
)

// WsEvent is the envelope for every frame on a live connection.
type WsEvent struct {
	Event   string          `json:"event"`
	GroupID string          `json:"groupId,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// New marshals payload into a WsEvent. Marshal failures are programming
// errors (all payloads below are plain structs), so they surface as an
// empty payload rather than a dropped event.
func New(name, groupID string, payload any) WsEvent {
	raw, _ := json.Marshal(payload)
	return WsEvent{Event: name, GroupID: groupID, Payload: raw}
}

// ChatMessagePayload is broadcast when a new message lands in a group.
type ChatMessagePayload struct {
	ID         string    `json:"id"`
	GroupID    string    `json:"groupId"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
}

// MessageEditedPayload is broadcast after a successful edit.
type MessageEditedPayload struct {
	MessageID string    `json:"messageId"`
	Content   string    `json:"content"`
	EditedAt  time.Time `json:"editedAt"`
}

// MessageDeletedPayload is broadcast after a soft delete.
type MessageDeletedPayload struct {
	MessageID string    `json:"messageId"`
	DeletedAt time.Time `json:"deletedAt"`
}

// ReactionPayload is broadcast for both reaction add and remove; Emoji is
// empty on removal. Reactions carries the full post-change set.
type ReactionPayload struct {
	MessageID string            `json:"messageId"`
	UserID    string            `json:"userId"`
	Emoji     string            `json:"emoji,omitempty"`
	Reactions map[string]string `json:"reactions"`
}

// ActiveUsersPayload is the presence snapshot for a group.
type ActiveUsersPayload struct {
	Count int      `json:"count"`
	Users []string `json:"users"`
}

// TypingUsersPayload is the typing snapshot for a group.
type TypingUsersPayload struct {
	Users []string `json:"users"`
}

// TypingPayload is the client-sent typing signal.
type TypingPayload struct {
	GroupID  string `json:"groupId"`
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// NotificationPayload is the in-app channel frame pushed to a user route.
type NotificationPayload struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Priority  string            `json:"priority"`
	ActionURL string            `json:"actionUrl,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
