// Package repository defines the session persistence interface and its SQLite implementation.
package repository

import (
	"context"
	"time"

	"github.com/xiaot623/gogo/chat/internal/domain"
)

// SessionRepository persists one record per (owner, session) with the turn
// log embedded in it.
type SessionRepository interface {
	// GetSession returns the session with the given id regardless of owner or
	// state, or nil when it does not exist.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// CreateSession inserts a new session. It reports false when the id is
	// already taken.
	CreateSession(ctx context.Context, session *domain.Session) (bool, error)

	// UpdateSession writes the turn log of an active session if its stored
	// version still equals expectedVersion. It reports false on a conflict.
	UpdateSession(ctx context.Context, session *domain.Session, expectedVersion int64) (bool, error)

	DeactivateSession(ctx context.Context, ownerID, sessionID string, at time.Time) (bool, error)
	DeactivateSessions(ctx context.Context, ownerID string, at time.Time) (int64, error)

	// ListSessions returns active sessions ordered by most recent update.
	ListSessions(ctx context.Context, filter SessionFilter) ([]domain.Session, error)
	CountSessions(ctx context.Context, filter SessionFilter) (int, error)
	SessionStats(ctx context.Context, ownerID string) (domain.UsageStats, error)

	Close() error
}

// SessionFilter selects active sessions of one owner.
type SessionFilter struct {
	OwnerID   string
	SessionID string
	Offset    int
	Limit     int
}
