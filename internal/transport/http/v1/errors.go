package v1

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/xiaot623/gogo/chat/internal/domain"
	"github.com/xiaot623/gogo/chat/internal/provider"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Message   string `json:"message"`
	Code      string `json:"code"`
	SessionID string `json:"sessionId,omitempty"`
	Retriable bool   `json:"retriable,omitempty"`
}

// RateLimited builds the error returned for throttled requests.
func RateLimited(msg string, retryAfter time.Duration) error {
	return domain.NewRateLimitedError(msg, retryAfter)
}

// InternalError wraps an infrastructure failure.
func InternalError(msg string, err error) error {
	return domain.NewInternalError(msg, err)
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(e *domain.Error) int {
	switch e.Kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuth:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	case domain.KindProvider:
		if e.FailureType == string(provider.KindAuthConfigurationError) {
			return http.StatusInternalServerError
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler is the echo HTTPErrorHandler for the chat API.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := http.StatusInternalServerError, ErrorResponse{
		Message: "Internal server error",
		Code:    string(domain.KindInternal),
	}

	if e, ok := domain.AsError(err); ok {
		status = StatusFor(e)
		body = ErrorResponse{
			Message:   e.Message,
			Code:      string(e.Kind),
			SessionID: e.SessionID,
			Retriable: e.Retriable,
		}
		if e.Kind == domain.KindInternal {
			body.Message = "Internal server error"
			log.Error().Err(err).Str("session_id", e.SessionID).Msg("internal error")
		}
		if e.Kind == domain.KindRateLimited && e.RetryAfter > 0 {
			c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(e.RetryAfter.Seconds()))))
		}
	} else if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		body = ErrorResponse{Message: http.StatusText(he.Code), Code: codeForStatus(he.Code)}
		if msg, ok := he.Message.(string); ok && msg != "" {
			body.Message = msg
		}
	} else {
		log.Error().Err(err).Msg("unhandled error")
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, body)
	}
	if writeErr != nil {
		log.Error().Err(writeErr).Msg("failed to write error response")
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return string(domain.KindValidation)
	case http.StatusUnauthorized, http.StatusForbidden:
		return string(domain.KindAuth)
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return string(domain.KindNotFound)
	case http.StatusTooManyRequests:
		return string(domain.KindRateLimited)
	default:
		return string(domain.KindInternal)
	}
}
