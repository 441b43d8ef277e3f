// Package ratelimit enforces per-identity fixed-window request limits.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Scope names an independent counter family.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeChat   Scope = "chat"
)

// Window allows Max requests per Window per identity.
type Window struct {
	Window time.Duration
	Max    int
}

// Limits maps each scope to its window.
type Limits map[Scope]Window

// DefaultLimits returns 100 requests per 15 minutes globally and 20 chat
// messages per minute.
func DefaultLimits() Limits {
	return Limits{
		ScopeGlobal: {Window: 15 * time.Minute, Max: 100},
		ScopeChat:   {Window: time.Minute, Max: 20},
	}
}

// Decision is the outcome of Admit.
type Decision struct {
	Allowed bool
	// Scope is the first scope that rejected the request.
	Scope      Scope
	RetryAfter time.Duration
}

// Limiter admits a request against every named scope at once: either all
// counters have room and are incremented, or none is touched.
type Limiter interface {
	Admit(ctx context.Context, key string, scopes ...Scope) (Decision, error)
	Limits() Limits
}

func lookup(limits Limits, scope Scope) (Window, error) {
	w, ok := limits[scope]
	if !ok || w.Window <= 0 || w.Max <= 0 {
		return Window{}, fmt.Errorf("ratelimit: scope %q is not configured", scope)
	}
	return w, nil
}
