// Package apperr defines the error taxonomy surfaced to callers. Every error
// carries a machine-readable code that transport layers map to a status.
package apperr

import (
	"errors"
	"fmt"
)

// Error codes
const (
	CodeAuthorization   = "AUTHORIZATION_ERROR"
	CodeValidation      = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeState           = "STATE_ERROR"
	CodeChannelDelivery = "CHANNEL_DELIVERY_ERROR"
	CodeScheduling      = "SCHEDULING_ERROR"
	CodeInternal        = "INTERNAL_ERROR"
)

// Error is a coded error. Cause is optional.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Authorization builds an AUTHORIZATION_ERROR.
func Authorization(format string, args ...any) *Error {
	return &Error{Code: CodeAuthorization, Message: fmt.Sprintf(format, args...)}
}

// Validation builds a VALIDATION_ERROR.
func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a NOT_FOUND error.
func NotFound(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// State builds a STATE_ERROR (invalid lifecycle transition).
func State(format string, args ...any) *Error {
	return &Error{Code: CodeState, Message: fmt.Sprintf(format, args...)}
}

// ChannelDelivery builds a per-channel delivery error. These are aggregated
// into delivery reports and never abort a send.
func ChannelDelivery(channel string, cause error) *Error {
	return &Error{Code: CodeChannelDelivery, Message: fmt.Sprintf("channel %s delivery failed", channel), Cause: cause}
}

// Scheduling builds a SCHEDULING_ERROR.
func Scheduling(format string, args ...any) *Error {
	return &Error{Code: CodeScheduling, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure.
func Internal(cause error) *Error {
	return &Error{Code: CodeInternal, Message: "internal error", Cause: cause}
}

// CodeOf extracts the code from err, or CodeInternal when err carries none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return CodeOf(err) == code
}
