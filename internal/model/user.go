package model

// User is the slice of the platform user record this subsystem reads: display
// fields for sender snapshots and contact/preference data for notification
// routing. Owned by the user service; read-only here.
type User struct {
	ID          string                 `json:"id" bson:"_id"`
	Name        string                 `json:"name" bson:"name"`
	AvatarURL   string                 `json:"avatarUrl" bson:"avatar_url"`
	Email       string                 `json:"email" bson:"email"`
	Phone       string                 `json:"phone" bson:"phone"`
	DeviceToken string                 `json:"deviceToken" bson:"device_token"`
	Preferences NotificationPreference `json:"preferences" bson:"preferences"`
}

// NotificationPreference holds a user's delivery preferences: per-channel
// enable flags, per-type opt-outs and a minimum priority threshold.
type NotificationPreference struct {
	InApp       bool     `json:"inApp" bson:"in_app"`
	Email       bool     `json:"email" bson:"email"`
	Push        bool     `json:"push" bson:"push"`
	SMS         bool     `json:"sms" bson:"sms"`
	MutedTypes  []string `json:"mutedTypes" bson:"muted_types"`
	MinPriority string   `json:"minPriority" bson:"min_priority"`
}

// DefaultPreferences is what a user without a stored preference document gets:
// everything but SMS on, no muted types, no priority floor.
func DefaultPreferences() NotificationPreference {
	return NotificationPreference{
		InApp:       true,
		Email:       true,
		Push:        true,
		SMS:         false,
		MinPriority: PriorityLow,
	}
}

// ChannelEnabled reports whether the given channel is enabled.
func (p NotificationPreference) ChannelEnabled(channel string) bool {
	switch channel {
	case ChannelInApp:
		return p.InApp
	case ChannelEmail:
		return p.Email
	case ChannelPush:
		return p.Push
	case ChannelSMS:
		return p.SMS
	}
	return false
}

// TypeMuted reports whether the user opted out of the given notification type.
func (p NotificationPreference) TypeMuted(notificationType string) bool {
	for _, t := range p.MutedTypes {
		if t == notificationType {
			return true
		}
	}
	return false
}
