package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message types
const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeFile   = "file"
	MessageTypeSystem = "system"
)

// Content bounds enforced at send time
const (
	MaxContentLength = 4000
	MaxAttachments   = 5
	EditWindow       = 15 * time.Minute
)

// Message represents a chat message in MongoDB. Messages are soft-deleted:
// is_deleted flips to true and the content is retained for moderation audit,
// but normal reads exclude the document.
type Message struct {
	ID          primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	GroupID     string              `json:"groupId" bson:"group_id"`
	SenderID    string              `json:"senderId" bson:"sender_id"`
	Sender      SenderSnapshot      `json:"sender" bson:"sender"`
	Content     string              `json:"content" bson:"content"`
	Type        string              `json:"type" bson:"type"`
	Attachments []Attachment        `json:"attachments" bson:"attachments"`
	ReplyTo     *primitive.ObjectID `json:"replyTo" bson:"reply_to"`
	Reactions   []Reaction          `json:"reactions" bson:"reactions"`
	IsEdited    bool                `json:"isEdited" bson:"is_edited"`
	EditedAt    *time.Time          `json:"editedAt" bson:"edited_at"`
	IsDeleted   bool                `json:"isDeleted" bson:"is_deleted"`
	DeletedAt   *time.Time          `json:"deletedAt" bson:"deleted_at"`
	CreatedAt   time.Time           `json:"createdAt" bson:"created_at"`
}

// SenderSnapshot denormalizes the sender's display fields at send time so
// history survives later profile changes.
type SenderSnapshot struct {
	Name      string `json:"name" bson:"name"`
	AvatarURL string `json:"avatarUrl" bson:"avatar_url"`
}

// Attachment describes a file attached to a message
type Attachment struct {
	FileName string `json:"fileName" bson:"file_name"`
	URL      string `json:"url" bson:"url"`
	Size     int64  `json:"size" bson:"size"`
	MimeType string `json:"mimeType" bson:"mime_type"`
}

// Reaction represents a reaction on a message. A user holds at most one
// reaction per message; a new reaction replaces the prior one.
type Reaction struct {
	UserID string `json:"userId" bson:"user_id"`
	Emoji  string `json:"emoji" bson:"emoji"`
}

// ErrorPayload represents an error response sent to client via WebSocket
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidMessageType reports whether t is one of the allowed message types.
func ValidMessageType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeSystem:
		return true
	}
	return false
}

// Editable reports whether the message can still be edited at the given
// instant: not deleted and within the edit window since creation.
func (m *Message) Editable(now time.Time) bool {
	if m.IsDeleted {
		return false
	}
	return now.Sub(m.CreatedAt) < EditWindow
}

// ReactionFor returns the reaction entry for userID, if any.
func (m *Message) ReactionFor(userID string) (Reaction, bool) {
	for _, r := range m.Reactions {
		if r.UserID == userID {
			return r, true
		}
	}
	return Reaction{}, false
}
