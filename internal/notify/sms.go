package notify

import (
	"context"

	"github.com/nikspatil0120/eduplatform-sub001/internal/apperr"
	"github.com/nikspatil0120/eduplatform-sub001/internal/model"
)

// SMS delivers notifications through an SMS gateway webhook.
type SMS struct {
	Endpoint string
	APIKey   string
	Sender   string
}

func (s *SMS) Channel() string { return model.ChannelSMS }

type smsRequest struct {
	To     string `json:"to"`
	From   string `json:"from"`
	Text   string `json:"text"`
	APIKey string `json:"apiKey"`
}

func (s *SMS) Send(ctx context.Context, n *model.Notification, recipient *model.User) error {
	if recipient.Phone == "" {
		return apperr.Validation("recipient %s has no phone number", recipient.ID)
	}

	req := smsRequest{
		To:     recipient.Phone,
		From:   s.Sender,
		Text:   n.Title + ": " + n.Message,
		APIKey: s.APIKey,
	}

	return sendWithRetries(ctx, func(ctx context.Context) error {
		return postJSON(ctx, s.Endpoint, req)
	})
}
