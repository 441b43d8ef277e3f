// Package session owns the append-only turn log of each conversation.
package session

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/xiaot623/gogo/chat/internal/domain"
	"github.com/xiaot623/gogo/chat/internal/repository"
)

// DefaultMaxAttempts bounds the compare-and-swap retries of AppendTurn.
const DefaultMaxAttempts = 5

// ErrConflict is returned when a write keeps losing the version race.
var ErrConflict = errors.New("session: too many concurrent writers")

type Store struct {
	repo        repository.SessionRepository
	maxAttempts int
	now         func() time.Time
}

type Option func(*Store)

// WithMaxAttempts overrides the number of version-conflict retries.
func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(repo repository.SessionRepository, opts ...Option) *Store {
	s := &Store{
		repo:        repo,
		maxAttempts: DefaultMaxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate returns the owner's active session with the given id, creating
// an empty one when the id has never been seen.
func (s *Store) GetOrCreate(ctx context.Context, ownerID, sessionID string) (*domain.Session, error) {
	existing, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, domain.NewInternalError("failed to load session", err)
	}
	if existing == nil {
		created, err := s.repo.CreateSession(ctx, domain.NewSession(ownerID, sessionID, s.now()))
		if err != nil {
			return nil, domain.NewInternalError("failed to create session", err)
		}
		if created {
			log.Debug().Str("owner_id", ownerID).Str("session_id", sessionID).Msg("session created")
		}
		// Re-read so concurrent creators converge on the same row.
		existing, err = s.repo.GetSession(ctx, sessionID)
		if err != nil {
			return nil, domain.NewInternalError("failed to load session", err)
		}
		if existing == nil {
			return nil, domain.NewInternalError("session vanished after create", nil)
		}
	}
	if existing.OwnerID != ownerID || !existing.Active {
		return nil, domain.NewNotFoundError("Session not found")
	}
	return existing, nil
}

// Get returns the owner's active session or NotFound.
func (s *Store) Get(ctx context.Context, ownerID, sessionID string) (*domain.Session, error) {
	existing, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, domain.NewInternalError("failed to load session", err)
	}
	if existing == nil || existing.OwnerID != ownerID || !existing.Active {
		return nil, domain.NewNotFoundError("Session not found")
	}
	return existing, nil
}

// StartTurn appends the first turn of a request to the owner's session. A
// session seen for the first time is inserted together with its turn, so a
// failed write never leaves an empty session behind.
func (s *Store) StartTurn(ctx context.Context, ownerID, sessionID string, role domain.Role, content string, metadata *domain.TurnMetadata) (*domain.Session, error) {
	turn, err := s.newTurn(role, content, metadata)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, domain.NewInternalError("failed to load session", err)
	}
	if existing == nil {
		fresh := domain.NewSession(ownerID, sessionID, turn.Timestamp).WithTurn(turn)
		created, err := s.repo.CreateSession(ctx, fresh)
		if err != nil {
			return nil, &domain.Error{
				Kind:      domain.KindInternal,
				Message:   "failed to persist turn",
				SessionID: sessionID,
				Err:       err,
			}
		}
		if created {
			log.Debug().Str("owner_id", ownerID).Str("session_id", sessionID).Msg("session created")
			return fresh, nil
		}
		// Lost the insert race; append to the winner's row instead.
		existing, err = s.repo.GetSession(ctx, sessionID)
		if err != nil {
			return nil, domain.NewInternalError("failed to load session", err)
		}
		if existing == nil {
			return nil, domain.NewInternalError("session vanished after create", nil)
		}
	}
	if existing.OwnerID != ownerID || !existing.Active {
		return nil, domain.NewNotFoundError("Session not found")
	}
	if err := s.appendTurn(ctx, existing, turn); err != nil {
		return nil, err
	}
	return existing, nil
}

// AppendTurn durably appends one turn and then updates session in place.
// On failure session is left untouched.
func (s *Store) AppendTurn(ctx context.Context, session *domain.Session, role domain.Role, content string, metadata *domain.TurnMetadata) error {
	if session == nil {
		return domain.NewValidationError("session is required")
	}
	turn, err := s.newTurn(role, content, metadata)
	if err != nil {
		return err
	}
	return s.appendTurn(ctx, session, turn)
}

func (s *Store) newTurn(role domain.Role, content string, metadata *domain.TurnMetadata) (domain.Turn, error) {
	if !role.Valid() {
		return domain.Turn{}, domain.NewValidationError("invalid role %q", role)
	}
	if domain.ContentLength(content) > domain.MaxTurnContentLength {
		return domain.Turn{}, domain.NewValidationError("content exceeds %d characters", domain.MaxTurnContentLength)
	}
	return domain.Turn{Role: role, Content: content, Timestamp: s.now(), Metadata: metadata}, nil
}

func (s *Store) appendTurn(ctx context.Context, session *domain.Session, turn domain.Turn) error {
	current := session
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		next := current.WithTurn(turn)
		ok, err := s.repo.UpdateSession(ctx, next, current.Version)
		if err != nil {
			return &domain.Error{
				Kind:      domain.KindInternal,
				Message:   "failed to persist turn",
				SessionID: session.SessionID,
				Err:       err,
			}
		}
		if ok {
			next.Version = current.Version + 1
			*session = *next
			return nil
		}

		log.Debug().
			Str("session_id", session.SessionID).
			Int("attempt", attempt).
			Msg("session version conflict, reloading")

		latest, err := s.repo.GetSession(ctx, session.SessionID)
		if err != nil {
			return &domain.Error{
				Kind:      domain.KindInternal,
				Message:   "failed to reload session",
				SessionID: session.SessionID,
				Err:       err,
			}
		}
		if latest == nil || latest.OwnerID != session.OwnerID || !latest.Active {
			return domain.NewNotFoundError("Session not found")
		}
		current = latest
	}

	return &domain.Error{
		Kind:      domain.KindInternal,
		Message:   "failed to persist turn",
		SessionID: session.SessionID,
		Err:       ErrConflict,
	}
}

// SoftDelete marks the owner's session inactive. Deleting twice is NotFound.
func (s *Store) SoftDelete(ctx context.Context, ownerID, sessionID string) error {
	ok, err := s.repo.DeactivateSession(ctx, ownerID, sessionID, s.now())
	if err != nil {
		return domain.NewInternalError("failed to delete session", err)
	}
	if !ok {
		return domain.NewNotFoundError("Session not found")
	}
	return nil
}

// SoftDeleteAll deactivates every active session of the owner.
func (s *Store) SoftDeleteAll(ctx context.Context, ownerID string) (int64, error) {
	n, err := s.repo.DeactivateSessions(ctx, ownerID, s.now())
	if err != nil {
		return 0, domain.NewInternalError("failed to clear history", err)
	}
	return n, nil
}
