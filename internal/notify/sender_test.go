package notify

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikspatil0120/eduplatform-sub001/internal/apperr"
	"github.com/nikspatil0120/eduplatform-sub001/internal/model"
)

func muteSleep(t *testing.T) {
	t.Helper()
	old := sleepHook
	sleepHook = func(time.Duration) {}
	t.Cleanup(func() { sleepHook = old })
}

func TestSendWithRetriesSucceedsAfterFailures(t *testing.T) {
	muteSleep(t)

	attempts := 0
	err := sendWithRetries(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestSendWithRetriesExhausted(t *testing.T) {
	muteSleep(t)

	attempts := 0
	err := sendWithRetries(context.Background(), func(context.Context) error {
		attempts++
		return errors.New("still down")
	})
	require.Error(t, err)
	assert.Equal(t, "still down", err.Error())
	assert.Equal(t, senderMaxRetries, attempts)
}

func TestSendWithRetriesBackoffDoubles(t *testing.T) {
	var delays []time.Duration
	old := sleepHook
	sleepHook = func(d time.Duration) { delays = append(delays, d) }
	t.Cleanup(func() { sleepHook = old })

	_ = sendWithRetries(context.Background(), func(context.Context) error {
		return errors.New("nope")
	})

	require.Len(t, delays, senderMaxRetries-1)
	assert.Equal(t, senderBaseBackoff, delays[0])
	assert.Equal(t, 2*senderBaseBackoff, delays[1])
}

func TestSendWithRetriesContextCancel(t *testing.T) {
	old := sleepHook
	sleepHook = func(time.Duration) { time.Sleep(time.Hour) }
	t.Cleanup(func() { sleepHook = old })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := sendWithRetries(ctx, func(context.Context) error {
		return errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmailSend(t *testing.T) {
	muteSleep(t)

	var gotAddr, gotFrom string
	var gotTo []string
	var gotBody []byte
	old := sendMailHook
	sendMailHook = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotBody = addr, from, to, msg
		return nil
	}
	t.Cleanup(func() { sendMailHook = old })

	e := &Email{Host: "smtp.example.com", Port: 587, From: "noreply@example.com"}
	n := &model.Notification{
		Title:     "Assignment posted",
		Message:   "Problem set 3 is up",
		ActionURL: "https://app.eduplatform.io/courses/42",
	}
	recipient := &model.User{ID: "u1", Email: "u1@example.com"}

	require.NoError(t, e.Send(context.Background(), n, recipient))

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "noreply@example.com", gotFrom)
	assert.Equal(t, []string{"u1@example.com"}, gotTo)
	assert.Contains(t, string(gotBody), "Subject: Assignment posted")
	assert.Contains(t, string(gotBody), "Problem set 3 is up")
	assert.Contains(t, string(gotBody), "https://app.eduplatform.io/courses/42")
}

func TestEmailSendNoAddress(t *testing.T) {
	e := &Email{Host: "smtp.example.com", Port: 587}
	err := e.Send(context.Background(), &model.Notification{}, &model.User{ID: "u1"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestEmailSendRetriesSMTPFailures(t *testing.T) {
	muteSleep(t)

	calls := 0
	old := sendMailHook
	sendMailHook = func(string, smtp.Auth, string, []string, []byte) error {
		calls++
		if calls < 2 {
			return errors.New("451 temporary failure")
		}
		return nil
	}
	t.Cleanup(func() { sendMailHook = old })

	e := &Email{Host: "smtp.example.com", Port: 587}
	n := &model.Notification{Title: "t", Message: "m"}
	require.NoError(t, e.Send(context.Background(), n, &model.User{ID: "u1", Email: "u1@example.com"}))
	assert.Equal(t, 2, calls)
}
