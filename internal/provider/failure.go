package provider

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// FailureKind classifies a failed generation.
type FailureKind string

const (
	KindRateLimitExceeded      FailureKind = "RateLimitExceeded"
	KindAuthConfigurationError FailureKind = "AuthConfigurationError"
	KindEmptyGeneration        FailureKind = "EmptyGeneration"
	KindTransientNetworkError  FailureKind = "TransientNetworkError"
	KindUpstreamError          FailureKind = "UpstreamError"
)

const (
	fallbackDefault     = "Sorry, I encountered an error processing your request."
	fallbackRateLimited = "I am currently experiencing high demand. Please try again in a moment."
	fallbackAuthConfig  = "There is an issue with the AI service configuration."
	fallbackTransient   = "The request took too long or the AI service could not be reached. Please try again."
)

// Failure is the typed error returned by Gateway.Generate.
type Failure struct {
	Kind       FailureKind
	StatusCode int
	LatencyMs  int64
	Err        error
}

func (f *Failure) Error() string {
	if f.StatusCode != 0 {
		return fmt.Sprintf("provider %s (status %d): %v", f.Kind, f.StatusCode, f.Err)
	}
	return fmt.Sprintf("provider %s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Retriable reports whether the caller may try again later.
func (f *Failure) Retriable() bool {
	return f.Kind == KindRateLimitExceeded || f.Kind == KindTransientNetworkError
}

// FallbackText is the assistant reply persisted in place of a generation.
func (f *Failure) FallbackText() string {
	return FallbackText(f.Kind)
}

// FallbackText maps a failure kind to its user facing reply.
func FallbackText(kind FailureKind) string {
	switch kind {
	case KindRateLimitExceeded:
		return fallbackRateLimited
	case KindAuthConfigurationError:
		return fallbackAuthConfig
	case KindTransientNetworkError:
		return fallbackTransient
	default:
		return fallbackDefault
	}
}

// AsFailure extracts a *Failure from err's chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// classify turns a client error into a Failure.
func classify(err error) *Failure {
	if f, ok := AsFailure(err); ok {
		return f
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &Failure{Kind: kindForStatus(apiErr.HTTPStatusCode), StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 0 {
			return &Failure{Kind: KindTransientNetworkError, Err: err}
		}
		return &Failure{Kind: kindForStatus(reqErr.HTTPStatusCode), StatusCode: reqErr.HTTPStatusCode, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Failure{Kind: KindTransientNetworkError, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &Failure{Kind: KindTransientNetworkError, Err: err}
	}

	return &Failure{Kind: KindUpstreamError, Err: err}
}

func kindForStatus(status int) FailureKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimitExceeded
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthConfigurationError
	case status == http.StatusRequestTimeout || status >= 500:
		return KindTransientNetworkError
	default:
		return KindUpstreamError
	}
}
