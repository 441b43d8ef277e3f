package ratelimit

import (
	"context"
	"time"

	"github.com/labstack/echo/v4/middleware"
)

// Store adapts a Limiter scope to echo's RateLimiterStore.
type Store struct {
	limiter Limiter
	scope   Scope
	timeout time.Duration
}

var _ middleware.RateLimiterStore = (*Store)(nil)

func NewStore(limiter Limiter, scope Scope) *Store {
	return &Store{limiter: limiter, scope: scope, timeout: 2 * time.Second}
}

// Allow implements middleware.RateLimiterStore.
func (s *Store) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	d, err := s.limiter.Admit(ctx, identifier, s.scope)
	if err != nil {
		return false, err
	}
	return d.Allowed, nil
}

// RetryAfter is the longest wait a rejected caller may face in this scope.
func (s *Store) RetryAfter() time.Duration {
	return s.limiter.Limits()[s.scope].Window
}
