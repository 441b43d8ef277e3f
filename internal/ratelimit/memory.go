package ratelimit

import (
	"context"
	"sync"
	"time"
)

type counterKey struct {
	scope Scope
	key   string
}

type counter struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps counters in process memory.
type MemoryLimiter struct {
	limits Limits
	now    func() time.Time

	mu        sync.Mutex
	counters  map[counterKey]*counter
	nextSweep time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

func NewMemoryLimiter(limits Limits) *MemoryLimiter {
	return &MemoryLimiter{
		limits:   limits,
		now:      time.Now,
		counters: make(map[counterKey]*counter),
	}
}

func (m *MemoryLimiter) Limits() Limits { return m.limits }

func (m *MemoryLimiter) Admit(_ context.Context, key string, scopes ...Scope) (Decision, error) {
	windows := make([]Window, len(scopes))
	for i, scope := range scopes {
		w, err := lookup(m.limits, scope)
		if err != nil {
			return Decision{}, err
		}
		windows[i] = w
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	live := make([]*counter, len(scopes))
	for i, scope := range scopes {
		k := counterKey{scope: scope, key: key}
		c, ok := m.counters[k]
		if !ok || !now.Before(c.resetAt) {
			c = &counter{resetAt: now.Add(windows[i].Window)}
		}
		live[i] = c
		if c.count >= windows[i].Max {
			return Decision{Scope: scope, RetryAfter: c.resetAt.Sub(now)}, nil
		}
	}

	for i, scope := range scopes {
		live[i].count++
		m.counters[counterKey{scope: scope, key: key}] = live[i]
	}
	return Decision{Allowed: true}, nil
}

// sweep drops expired counters at most once per minute.
func (m *MemoryLimiter) sweep(now time.Time) {
	if now.Before(m.nextSweep) {
		return
	}
	for k, c := range m.counters {
		if !now.Before(c.resetAt) {
			delete(m.counters, k)
		}
	}
	m.nextSweep = now.Add(time.Minute)
}
