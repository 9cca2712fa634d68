package notify

import (
	"context"

	"github.com/nikspatil0120/eduplatform-sub001/internal/apperr"
	"github.com/nikspatil0120/eduplatform-sub001/internal/model"
)

// Push delivers notifications through a push provider webhook.
type Push struct {
	Endpoint string
	APIKey   string
}

func (p *Push) Channel() string { return model.ChannelPush }

type pushRequest struct {
	DeviceToken string            `json:"deviceToken"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Priority    string            `json:"priority"`
	ActionURL   string            `json:"actionUrl,omitempty"`
	Data        map[string]string `json:"data,omitempty"`
	APIKey      string            `json:"apiKey"`
}

func (p *Push) Send(ctx context.Context, n *model.Notification, recipient *model.User) error {
	if recipient.DeviceToken == "" {
		return apperr.Validation("recipient %s has no registered device", recipient.ID)
	}

	req := pushRequest{
		DeviceToken: recipient.DeviceToken,
		Title:       n.Title,
		Body:        n.Message,
		Priority:    n.Priority,
		ActionURL:   n.ActionURL,
		Data:        n.Metadata,
		APIKey:      p.APIKey,
	}

	return sendWithRetries(ctx, func(ctx context.Context) error {
		return postJSON(ctx, p.Endpoint, req)
	})
}
