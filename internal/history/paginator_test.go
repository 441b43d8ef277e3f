package history

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/chat/internal/domain"
	"github.com/xiaot623/gogo/chat/internal/repository"
	"github.com/xiaot623/gogo/chat/tests/helpers"
)

func seed(t *testing.T, repo repository.SessionRepository, owner string, n int) {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < n; i++ {
		s := domain.NewSession(owner, fmt.Sprintf("%s-s%02d", owner, i), base.Add(time.Duration(i)*time.Second))
		_, err := repo.CreateSession(context.Background(), s)
		require.NoError(t, err)
	}
}

func TestListPages(t *testing.T) {
	ctx := context.Background()
	repo := helpers.NewTestSQLiteStore(t)
	seed(t, repo, "u1", 25)
	seed(t, repo, "u2", 3)
	p := NewPaginator(repo)

	page, err := p.List(ctx, "u1", domain.HistoryQuery{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Sessions, 10)
	assert.Equal(t, "u1-s24", page.Sessions[0].SessionID, "newest first")
	assert.Equal(t, domain.Pagination{
		CurrentPage: 1, Limit: 10, TotalSessions: 25, TotalPages: 3, HasNext: true, HasPrev: false,
	}, page.Pagination)

	page, err = p.List(ctx, "u1", domain.HistoryQuery{Page: 3, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, page.Sessions, 5)
	assert.False(t, page.Pagination.HasNext)
	assert.True(t, page.Pagination.HasPrev)
}

func TestListPastLastPage(t *testing.T) {
	repo := helpers.NewTestSQLiteStore(t)
	seed(t, repo, "u1", 4)

	page, err := NewPaginator(repo).List(context.Background(), "u1", domain.HistoryQuery{Page: 7, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, page.Sessions)
	assert.NotNil(t, page.Sessions)
	assert.False(t, page.Pagination.HasNext)
	assert.Equal(t, 2, page.Pagination.TotalPages)

	page, err = NewPaginator(repo).List(context.Background(), "u1", domain.HistoryQuery{Page: math.MaxInt, PageSize: MaxPageSize})
	require.NoError(t, err)
	assert.Empty(t, page.Sessions)
	assert.Equal(t, math.MaxInt, page.Pagination.CurrentPage)
	assert.True(t, page.Pagination.HasPrev)

	page, err = NewPaginator(repo).List(context.Background(), "u1", domain.HistoryQuery{Page: 1<<62 + 1, PageSize: MaxPageSize})
	require.NoError(t, err)
	assert.Empty(t, page.Sessions)
}

func TestListFilterBySession(t *testing.T) {
	repo := helpers.NewTestSQLiteStore(t)
	seed(t, repo, "u1", 3)

	page, err := NewPaginator(repo).List(context.Background(), "u1", domain.HistoryQuery{Page: 1, PageSize: 10, SessionID: "u1-s01"})
	require.NoError(t, err)
	require.Len(t, page.Sessions, 1)
	assert.Equal(t, 1, page.Pagination.TotalSessions)

	page, err = NewPaginator(repo).List(context.Background(), "u2", domain.HistoryQuery{Page: 1, PageSize: 10, SessionID: "u1-s01"})
	require.NoError(t, err)
	assert.Empty(t, page.Sessions)
}

func TestListValidation(t *testing.T) {
	p := NewPaginator(helpers.NewTestSQLiteStore(t))

	for _, q := range []domain.HistoryQuery{
		{Page: 0, PageSize: 10},
		{Page: 1, PageSize: 0},
		{Page: 1, PageSize: 51},
		{Page: 1, PageSize: 10, SessionID: "bad id"},
	} {
		_, err := p.List(context.Background(), "u1", q)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err), "query %+v", q)
	}
}

func TestStatsEmpty(t *testing.T) {
	stats, err := NewPaginator(helpers.NewTestSQLiteStore(t)).Stats(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.UsageStats{}, stats)
}
