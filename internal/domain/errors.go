package domain

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ErrorKind classifies failures surfaced by the service.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation_error"
	KindAuth        ErrorKind = "auth_error"
	KindNotFound    ErrorKind = "not_found"
	KindRateLimited ErrorKind = "rate_limited"
	KindProvider    ErrorKind = "provider_error"
	KindInternal    ErrorKind = "internal_error"
)

// Error is the single typed failure returned by service operations.
type Error struct {
	Kind    ErrorKind
	Message string

	// SessionID is set once a session has been resolved, so callers can
	// continue the conversation after a failure.
	SessionID string

	// Retriable and RetryAfter are filled for rate limits and provider failures.
	Retriable  bool
	RetryAfter time.Duration

	// FailureType names the provider failure kind for KindProvider.
	FailureType string

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Cause lets github.com/pkg/errors.Cause walk through the typed error.
func (e *Error) Cause() error { return e.Err }

// NewValidationError rejects malformed input.
func NewValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewAuthError rejects unauthenticated callers.
func NewAuthError(msg string, err error) *Error {
	return &Error{Kind: KindAuth, Message: msg, Err: err}
}

// NewNotFoundError reports a missing or foreign session.
func NewNotFoundError(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// NewRateLimitedError reports a throttled identity.
func NewRateLimitedError(msg string, retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimited, Message: msg, Retriable: true, RetryAfter: retryAfter}
}

// NewInternalError wraps persistence or infrastructure failures.
func NewInternalError(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// AsError extracts a typed *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, treating untyped errors as internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return KindInternal
}

// IsNotFound reports whether err is a NotFound failure.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
