package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/xiaot623/gogo/chat/internal/domain"
)

// ListHistory returns a page of the owner's active sessions.
func (s *Service) ListHistory(ctx context.Context, ownerID string, q domain.HistoryQuery) (*domain.HistoryPage, error) {
	return s.paginator.List(ctx, ownerID, q)
}

// GetSession returns one active session with its turns.
func (s *Service) GetSession(ctx context.Context, ownerID, sessionID string) (*domain.Session, error) {
	if err := domain.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	return s.sessions.Get(ctx, ownerID, sessionID)
}

// DeleteSession soft-deletes one session.
func (s *Service) DeleteSession(ctx context.Context, ownerID, sessionID string) error {
	if err := domain.ValidateSessionID(sessionID); err != nil {
		return err
	}
	if err := s.sessions.SoftDelete(ctx, ownerID, sessionID); err != nil {
		return err
	}
	log.Info().Str("owner_id", ownerID).Str("session_id", sessionID).Msg("session deleted")
	return nil
}

// ClearHistory soft-deletes every active session of the owner.
func (s *Service) ClearHistory(ctx context.Context, ownerID string) (int64, error) {
	n, err := s.sessions.SoftDeleteAll(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	log.Info().Str("owner_id", ownerID).Int64("cleared", n).Msg("history cleared")
	return n, nil
}

// Stats aggregates the owner's active sessions.
func (s *Service) Stats(ctx context.Context, ownerID string) (domain.UsageStats, error) {
	return s.paginator.Stats(ctx, ownerID)
}
