// Package service orchestrates the per-message unit of work.
package service

import (
	"github.com/google/uuid"

	"github.com/xiaot623/gogo/chat/internal/contextwindow"
	"github.com/xiaot623/gogo/chat/internal/history"
	"github.com/xiaot623/gogo/chat/internal/policy"
	"github.com/xiaot623/gogo/chat/internal/provider"
	"github.com/xiaot623/gogo/chat/internal/ratelimit"
	"github.com/xiaot623/gogo/chat/internal/session"
)

const DefaultMaxMessageLength = 2000

type Service struct {
	sessions     *session.Store
	paginator    *history.Paginator
	window       *contextwindow.Builder
	gateway      *provider.Gateway
	limiter      ratelimit.Limiter
	policyEngine *policy.Engine

	maxMessageLength int
	newSessionID     func() string
}

func New(sessions *session.Store, paginator *history.Paginator, window *contextwindow.Builder, gateway *provider.Gateway, limiter ratelimit.Limiter, policyEngine *policy.Engine, maxMessageLength int) *Service {
	if maxMessageLength <= 0 {
		maxMessageLength = DefaultMaxMessageLength
	}
	return &Service{
		sessions:         sessions,
		paginator:        paginator,
		window:           window,
		gateway:          gateway,
		limiter:          limiter,
		policyEngine:     policyEngine,
		maxMessageLength: maxMessageLength,
		newSessionID:     uuid.NewString,
	}
}
