// Package http provides the HTTP server implementation for the chat service.
package http

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/xiaot623/gogo/chat/internal/auth"
	"github.com/xiaot623/gogo/chat/internal/ratelimit"
	"github.com/xiaot623/gogo/chat/internal/service"
	v1 "github.com/xiaot623/gogo/chat/internal/transport/http/v1"
)

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 10 * time.Second

// Options configures the middleware pipeline.
type Options struct {
	CORSOrigins []string
	BodyLimit   string
	Version     string
}

// NewServer creates the public HTTP server: request id, recover, secure
// headers, CORS, body limit and access logging, then the chat API.
func NewServer(svc *service.Service, authn auth.Authenticator, limiter ratelimit.Limiter, opts Options) *echo.Echo {
	if opts.BodyLimit == "" {
		opts.BodyLimit = "10M"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = v1.ErrorHandler

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Error != nil || v.Status >= 500 {
				evt = log.Error().Err(v.Error)
			}
			evt.
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("owner_id", auth.OwnerID(c)).
				Msg("request")
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     opts.CORSOrigins,
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit(opts.BodyLimit))

	// Handlers
	handler := v1.NewHandler(svc, opts.Version)

	// Register Routes
	handler.RegisterRoutes(e, auth.Middleware(authn), GlobalRateLimit(limiter))

	return e
}

// GlobalRateLimit applies the global scope through echo's rate limiter.
func GlobalRateLimit(limiter ratelimit.Limiter) echo.MiddlewareFunc {
	store := ratelimit.NewStore(limiter, ratelimit.ScopeGlobal)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return auth.OwnerID(c), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return v1.InternalError("rate limiter unavailable", err)
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return v1.RateLimited("Too many requests from this user, please try again later.", store.RetryAfter())
		},
	})
}
