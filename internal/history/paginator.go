// Package history serves paged reads over an owner's active sessions.
package history

import (
	"context"

	"github.com/xiaot623/gogo/chat/internal/domain"
	"github.com/xiaot623/gogo/chat/internal/repository"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 50
)

type Paginator struct {
	repo repository.SessionRepository
}

func NewPaginator(repo repository.SessionRepository) *Paginator {
	return &Paginator{repo: repo}
}

// Validate rejects out of range paging input before anything is queried.
func Validate(q domain.HistoryQuery) error {
	if q.Page < 1 {
		return domain.NewValidationError("Page must be at least 1")
	}
	if q.PageSize < 1 || q.PageSize > MaxPageSize {
		return domain.NewValidationError("Limit must be between 1 and %d", MaxPageSize)
	}
	if q.SessionID != "" {
		if err := domain.ValidateSessionID(q.SessionID); err != nil {
			return err
		}
	}
	return nil
}

// List returns one page of active sessions, most recently updated first.
// Pages past the end are empty with HasNext=false.
func (p *Paginator) List(ctx context.Context, ownerID string, q domain.HistoryQuery) (*domain.HistoryPage, error) {
	if err := Validate(q); err != nil {
		return nil, err
	}

	filter := repository.SessionFilter{
		OwnerID:   ownerID,
		SessionID: q.SessionID,
		Limit:     q.PageSize,
	}

	total, err := p.repo.CountSessions(ctx, filter)
	if err != nil {
		return nil, domain.NewInternalError("failed to count sessions", err)
	}
	totalPages := (total + q.PageSize - 1) / q.PageSize

	// Offset is only computed for existing pages so huge page numbers cannot overflow.
	sessions := []domain.Session{}
	if q.Page <= totalPages {
		filter.Offset = (q.Page - 1) * q.PageSize
		sessions, err = p.repo.ListSessions(ctx, filter)
		if err != nil {
			return nil, domain.NewInternalError("failed to list sessions", err)
		}
	}

	return &domain.HistoryPage{
		Sessions: sessions,
		Pagination: domain.Pagination{
			CurrentPage:   q.Page,
			Limit:         q.PageSize,
			TotalSessions: total,
			TotalPages:    totalPages,
			HasNext:       q.Page < totalPages,
			HasPrev:       q.Page > 1,
		},
	}, nil
}

// Stats aggregates the owner's active sessions; zero values when there are none.
func (p *Paginator) Stats(ctx context.Context, ownerID string) (domain.UsageStats, error) {
	stats, err := p.repo.SessionStats(ctx, ownerID)
	if err != nil {
		return domain.UsageStats{}, domain.NewInternalError("failed to compute stats", err)
	}
	return stats, nil
}
