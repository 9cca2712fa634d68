package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/nikspatil0120/eduplatform-sub001/internal/apperr"
	"github.com/nikspatil0120/eduplatform-sub001/internal/model"
)

// sendMailHook allows tests to override SMTP sending behavior.
var sendMailHook = smtp.SendMail

// Email delivers notifications via SMTP.
type Email struct {
	Host, User, Pass string
	Port             int
	From             string
}

func (e *Email) Channel() string { return model.ChannelEmail }

func (e *Email) Send(ctx context.Context, n *model.Notification, recipient *model.User) error {
	if recipient.Email == "" {
		return apperr.Validation("recipient %s has no email address", recipient.ID)
	}

	addr := fmt.Sprintf("%s:%d", e.Host, e.Port)
	auth := smtp.PlainAuth("", e.User, e.Pass, e.Host)
	header := fmt.Sprintf(
		"To: %s\r\nSubject: %s\r\n\r\n",
		recipient.Email,
		n.Title,
	)
	body := header + n.Message
	if n.ActionURL != "" {
		body += "\r\n\r\n" + n.ActionURL
	}

	return sendWithRetries(ctx, func(context.Context) error {
		return sendMailHook(addr, auth, e.From, []string{recipient.Email}, []byte(body))
	})
}
