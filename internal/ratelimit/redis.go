package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// admitScript checks every counter first and only increments when all have
// room. KEYS[i] pairs with ARGV[2i-1]=max and ARGV[2i]=window in ms.
// Returns {allowed, retry_after_ms, denied_index}.
var admitScript = redis.NewScript(`
for i = 1, #KEYS do
  local cur = tonumber(redis.call('GET', KEYS[i]) or '0')
  if cur >= tonumber(ARGV[2*i-1]) then
    local ttl = redis.call('PTTL', KEYS[i])
    if ttl < 0 then
      ttl = tonumber(ARGV[2*i])
      redis.call('PEXPIRE', KEYS[i], ttl)
    end
    return {0, ttl, i}
  end
end
for i = 1, #KEYS do
  local n = redis.call('INCR', KEYS[i])
  if n == 1 then
    redis.call('PEXPIRE', KEYS[i], ARGV[2*i])
  end
end
return {1, 0, 0}
`)

// RedisLimiter shares counters between processes through Redis.
type RedisLimiter struct {
	client redis.UniversalClient
	limits Limits
	prefix string
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client redis.UniversalClient, limits Limits, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "chat:ratelimit"
	}
	return &RedisLimiter{client: client, limits: limits, prefix: prefix}
}

func (r *RedisLimiter) Limits() Limits { return r.limits }

// counterKey hash-tags the identity so all scopes of one caller share a slot.
func (r *RedisLimiter) counterKey(scope Scope, key string) string {
	return r.prefix + ":" + string(scope) + ":{" + key + "}"
}

func (r *RedisLimiter) Admit(ctx context.Context, key string, scopes ...Scope) (Decision, error) {
	keys := make([]string, 0, len(scopes))
	args := make([]any, 0, 2*len(scopes))
	for _, scope := range scopes {
		w, err := lookup(r.limits, scope)
		if err != nil {
			return Decision{}, err
		}
		keys = append(keys, r.counterKey(scope, key))
		args = append(args, w.Max, strconv.FormatInt(w.Window.Milliseconds(), 10))
	}
	if len(keys) == 0 {
		return Decision{Allowed: true}, nil
	}

	res, err := admitScript.Run(ctx, r.client, keys, args...).Int64Slice()
	if err != nil {
		return Decision{}, errors.Wrap(err, "ratelimit: redis admit")
	}
	if len(res) != 3 {
		return Decision{}, errors.Errorf("ratelimit: unexpected script reply %v", res)
	}
	if res[0] == 1 {
		return Decision{Allowed: true}, nil
	}
	d := Decision{RetryAfter: time.Duration(res[1]) * time.Millisecond}
	if idx := int(res[2]) - 1; idx >= 0 && idx < len(scopes) {
		d.Scope = scopes[idx]
	}
	return d, nil
}

// Ping checks connectivity at startup.
func (r *RedisLimiter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
