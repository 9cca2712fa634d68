package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification types
const (
	NotificationTypeSystem       = "system"
	NotificationTypeCourse       = "course"
	NotificationTypeAssignment   = "assignment"
	NotificationTypeDiscussion   = "discussion"
	NotificationTypeGrade        = "grade"
	NotificationTypeAnnouncement = "announcement"
	NotificationTypeCertificate  = "certificate"
	NotificationTypePayment      = "payment"
)

// Notification priorities, lowest to highest
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Delivery channels
const (
	ChannelInApp = "in_app"
	ChannelEmail = "email"
	ChannelPush  = "push"
	ChannelSMS   = "sms"
)

// Notification statuses. pending -> sent -> read is one-way; pending -> failed
// is terminal absent a manual resend.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusRead    = "read"
	StatusFailed  = "failed"
)

// Notification represents a notification record in MongoDB. Status "sent"
// means dispatch was attempted on at least one channel, not that a provider
// confirmed delivery.
type Notification struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID     string             `json:"userId" bson:"user_id"`
	Type       string             `json:"type" bson:"type"`
	Title      string             `json:"title" bson:"title"`
	Message    string             `json:"message" bson:"message"`
	Priority   string             `json:"priority" bson:"priority"`
	Channels   []string           `json:"channels" bson:"channels"`
	ActionURL  string             `json:"actionUrl" bson:"action_url"`
	Metadata   map[string]string  `json:"metadata" bson:"metadata"`
	Status     string             `json:"status" bson:"status"`
	ScheduleAt *time.Time         `json:"scheduleAt" bson:"schedule_at"`
	SentAt     *time.Time         `json:"sentAt" bson:"sent_at"`
	ReadAt     *time.Time         `json:"readAt" bson:"read_at"`
	Error      string             `json:"error" bson:"error"`
	CreatedAt  time.Time          `json:"createdAt" bson:"created_at"`
}

var priorityRanks = map[string]int{
	PriorityLow:    0,
	PriorityMedium: 1,
	PriorityHigh:   2,
	PriorityUrgent: 3,
}

// PriorityRank returns the ordinal rank of a priority. Unknown priorities
// rank lowest.
func PriorityRank(priority string) int {
	return priorityRanks[priority]
}

// ValidNotificationType reports whether t is a known notification type.
func ValidNotificationType(t string) bool {
	switch t {
	case NotificationTypeSystem, NotificationTypeCourse, NotificationTypeAssignment,
		NotificationTypeDiscussion, NotificationTypeGrade, NotificationTypeAnnouncement,
		NotificationTypeCertificate, NotificationTypePayment:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p string) bool {
	_, ok := priorityRanks[p]
	return ok
}

// ValidChannel reports whether ch is a known delivery channel.
func ValidChannel(ch string) bool {
	switch ch {
	case ChannelInApp, ChannelEmail, ChannelPush, ChannelSMS:
		return true
	}
	return false
}

// Due reports whether the notification should be dispatched immediately:
// no schedule, or a schedule at or before now.
func (n *Notification) Due(now time.Time) bool {
	return n.ScheduleAt == nil || !n.ScheduleAt.After(now)
}

// ChannelResult records the outcome of one channel dispatch attempt.
type ChannelResult struct {
	Channel string `json:"channel"`
	OK      bool   `json:"ok"`
	Skipped bool   `json:"skipped"`
	Error   string `json:"error,omitempty"`
}

// DeliveryReport aggregates per-channel outcomes for one notification send.
// A channel failure never fails the other channels.
type DeliveryReport struct {
	NotificationID string          `json:"notificationId"`
	UserID         string          `json:"userId"`
	Channels       []ChannelResult `json:"channels"`
}

// Dispatched returns the channels the report actually attempted (not skipped).
func (r *DeliveryReport) Dispatched() []string {
	var out []string
	for _, c := range r.Channels {
		if !c.Skipped {
			out = append(out, c.Channel)
		}
	}
	return out
}

// BroadcastItem is the per-recipient outcome of a broadcast.
type BroadcastItem struct {
	UserID string          `json:"userId"`
	OK     bool            `json:"ok"`
	Error  string          `json:"error,omitempty"`
	Report *DeliveryReport `json:"report,omitempty"`
}
