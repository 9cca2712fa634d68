package notify

import (
	"context"
	"time"

	"github.com/nikspatil0120/eduplatform-sub001/internal/event"
	"github.com/nikspatil0120/eduplatform-sub001/internal/model"
)

// UserRoute is the slice of the hub the in-app channel needs: targeted
// delivery to one user's live connections.
type UserRoute interface {
	PublishToUser(userID string, ev event.WsEvent) int
}

// InApp delivers notifications over the live WebSocket routes. A user with
// no open connection simply misses the live frame; the stored record remains
// readable through the notification list.
type InApp struct {
	route UserRoute
}

func NewInApp(route UserRoute) *InApp {
	return &InApp{route: route}
}

func (s *InApp) Channel() string { return model.ChannelInApp }

func (s *InApp) Send(ctx context.Context, n *model.Notification, recipient *model.User) error {
	_ = ctx
	payload := event.NotificationPayload{
		ID:        n.ID.Hex(),
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Priority:  n.Priority,
		ActionURL: n.ActionURL,
		Metadata:  n.Metadata,
		Timestamp: time.Now().UTC(),
	}
	s.route.PublishToUser(recipient.ID, event.New(event.EventNotification, "", payload))
	return nil
}
