package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisLimiter(t *testing.T, limits Limits) *RedisLimiter {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLimiter(client, limits, "test:ratelimit:"+uuid.NewString())
	require.NoError(t, l.Ping(context.Background()))
	return l
}

func TestRedisLimiterAllOrNothing(t *testing.T) {
	ctx := context.Background()
	l := newTestRedisLimiter(t, Limits{
		ScopeGlobal: {Window: time.Hour, Max: 3},
		ScopeChat:   {Window: time.Minute, Max: 1},
	})

	d, err := l.Admit(ctx, "u1", ScopeGlobal, ScopeChat)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Admit(ctx, "u1", ScopeGlobal, ScopeChat)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ScopeChat, d.Scope)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)

	for i := 0; i < 2; i++ {
		d, err = l.Admit(ctx, "u1", ScopeGlobal)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err = l.Admit(ctx, "u1", ScopeGlobal)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ScopeGlobal, d.Scope)
}
