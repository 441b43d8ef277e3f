package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/chat/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	now := time.Now().UTC()
	session := domain.NewSession("u1", "s1", now)
	session.Tags = []string{"work"}
	created, err := store.CreateSession(ctx, session)
	require.NoError(t, err)
	assert.True(t, created)

	again, err := store.CreateSession(ctx, domain.NewSession("u2", "s1", now))
	require.NoError(t, err)
	assert.False(t, again, "duplicate id must not be inserted")

	got, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.OwnerID)
	assert.True(t, got.Active)
	assert.Empty(t, got.Turns)
	assert.Equal(t, []string{"work"}, got.Tags)
	assert.Equal(t, now.UnixNano(), got.CreatedAt.UnixNano())

	missing, err := store.GetSession(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteStoreUpdateVersionCheck(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	session := domain.NewSession("u1", "s1", time.Now())
	_, err := store.CreateSession(ctx, session)
	require.NoError(t, err)

	next := session.WithTurn(domain.Turn{Role: domain.RoleUser, Content: "hello", Timestamp: time.Now()})
	ok, err := store.UpdateSession(ctx, next, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	// A writer still holding version 0 loses.
	stale := session.WithTurn(domain.Turn{Role: domain.RoleUser, Content: "other", Timestamp: time.Now()})
	ok, err = store.UpdateSession(ctx, stale, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	require.Len(t, got.Turns, 1)
	assert.Equal(t, "hello", got.Turns[0].Content)
	assert.Equal(t, 1, got.TurnCount)
	assert.Equal(t, "hello", got.Summary)
}

func TestSQLiteStoreDeactivate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, id := range []string{"s1", "s2"} {
		_, err := store.CreateSession(ctx, domain.NewSession("u1", id, time.Now()))
		require.NoError(t, err)
	}
	_, err := store.CreateSession(ctx, domain.NewSession("u2", "s3", time.Now()))
	require.NoError(t, err)

	ok, err := store.DeactivateSession(ctx, "u2", "s1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "foreign owner must not deactivate")

	ok, err = store.DeactivateSession(ctx, "u1", "s1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.DeactivateSession(ctx, "u1", "s1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	// Inactive sessions reject writes.
	s1, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, s1.Active)
	ok, err = store.UpdateSession(ctx, s1.WithTurn(domain.Turn{Role: domain.RoleUser, Content: "x", Timestamp: time.Now()}), s1.Version)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := store.DeactivateSessions(ctx, "u1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count, err := store.CountSessions(ctx, SessionFilter{OwnerID: "u2"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteStoreListOrderAndStats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"a", "b", "c"} {
		s := domain.NewSession("u1", id, base.Add(time.Duration(i)*time.Minute))
		_, err := store.CreateSession(ctx, s)
		require.NoError(t, err)
	}

	// Touch "a" so it becomes the most recent.
	a, err := store.GetSession(ctx, "a")
	require.NoError(t, err)
	for _, role := range []domain.Role{domain.RoleUser, domain.RoleAssistant} {
		next := a.WithTurn(domain.Turn{Role: role, Content: "hi", Timestamp: time.Now()})
		ok, err := store.UpdateSession(ctx, next, a.Version)
		require.NoError(t, err)
		require.True(t, ok)
		next.Version = a.Version + 1
		a = next
	}

	list, err := store.ListSessions(ctx, SessionFilter{OwnerID: "u1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].SessionID)
	assert.Equal(t, "c", list[1].SessionID)

	list, err = store.ListSessions(ctx, SessionFilter{OwnerID: "u1", Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].SessionID)

	filtered, err := store.ListSessions(ctx, SessionFilter{OwnerID: "u1", SessionID: "b", Limit: 10})
	require.NoError(t, err)
	require.Len(t, filtered, 1)

	stats, err := store.SessionStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalSessions)
	assert.Equal(t, 2, stats.TotalMessages)
	assert.InDelta(t, 2.0/3.0, stats.AverageMessagesPerSession, 0.0001)

	empty, err := store.SessionStats(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, domain.UsageStats{}, empty)
}

func TestFileDSN(t *testing.T) {
	dsn, err := FileDSN("/var/lib/chat/chat.db")
	require.NoError(t, err)
	assert.Equal(t, "file:/var/lib/chat/chat.db?_journal_mode=WAL&_busy_timeout=5000", dsn)

	_, err = FileDSN("  ")
	assert.Error(t, err)
}
