// Package notify implements the notification delivery fabric: one
// ChannelSender per delivery medium and a Dispatcher that filters channels by
// user preference and fans dispatch out concurrently.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nikspatil0120/eduplatform-sub001/internal/model"
)

// retry settings shared by the external providers (can be tuned in tests)
var (
	senderMaxRetries  = 3
	senderBaseBackoff = 100 * time.Millisecond
)

// sleepHook is used in tests to avoid sleeping for real
var sleepHook = time.Sleep

// ChannelSender delivers one notification over one medium. Implementations
// must be safe for concurrent use; the dispatcher calls them from multiple
// goroutines.
type ChannelSender interface {
	Channel() string
	Send(ctx context.Context, n *model.Notification, recipient *model.User) error
}

// sendWithRetries drives an attempt loop with exponential backoff around a
// single provider call. Context cancellation aborts between attempts.
func sendWithRetries(ctx context.Context, attempt func(context.Context) error) error {
	var lastErr error
	for i := 1; i <= senderMaxRetries; i++ {
		if err := attempt(ctx); err != nil {
			lastErr = err
			if i < senderMaxRetries {
				d := senderBaseBackoff * time.Duration(1<<uint(i-1))
				done := make(chan struct{})
				go func() {
					sleepHook(d)
					close(done)
				}()
				select {
				case <-done:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			continue
		}
		return nil
	}
	return lastErr
}

// postJSON is a shared helper used by the webhook-backed providers
func postJSON(ctx context.Context, url string, data interface{}) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
	return nil
}
