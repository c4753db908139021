package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/authcore/internal/apperrors"
)

// Increment counter and start window on the first hit.
// Key without ttl (left by a failed earlier call) gets the window too.
var admitScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if count == 1 or ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisLimiter shares counters between instances.
// Each admit is one script call so increments per key are atomic.
type RedisLimiter struct {
	redis    redis.UniversalClient
	policies Policies
}

func NewRedisLimiter(client redis.UniversalClient, policies Policies) *RedisLimiter {
	return &RedisLimiter{
		redis:    client,
		policies: policies,
	}
}

func (l *RedisLimiter) Admit(ctx context.Context, key string, endpoint string) (Decision, error) {
	policy, err := l.policies.lookup(endpoint)
	if err != nil {
		return Decision{}, err
	}
	if policy.Max <= 0 {
		return Decision{Allowed: true}, nil
	}

	res, err := admitScript.Run(ctx, l.redis, []string{bucketKey(endpoint, key)}, policy.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, apperrors.Infrastructure(fmt.Errorf("rate limit redis: %w", err))
	}
	if len(res) != 2 {
		return Decision{}, apperrors.Infrastructure(fmt.Errorf("rate limit redis: unexpected reply %v", res))
	}

	d := Decision{
		Count:   int(res[0]),
		Allowed: res[0] <= int64(policy.Max),
	}
	if !d.Allowed {
		d.RetryAfter = time.Duration(res[1]) * time.Millisecond
	}

	return d, nil
}
