package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// windowScript admits a request when the counter is below the cap, starting the
// window expiry on the first hit. A denied request leaves the counter unchanged.
// Returns {allowed, count, pttl_ms}.
const windowScript = `
local max = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current >= max then
  return {0, current, redis.call("PTTL", KEYS[1])}
end

local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], window)
end
return {1, count, redis.call("PTTL", KEYS[1])}
`

// RedisWindowLimiter is the fixed window limiter with counters held in Redis,
// so every instance behind a load balancer shares one budget per key.
type RedisWindowLimiter struct {
	client    redis.UniversalClient
	script    *redis.Script
	max       int
	window    time.Duration
	keyPrefix string
	now       Clock
}

var _ Limiter = (*RedisWindowLimiter)(nil)

func NewRedisWindowLimiter(client redis.UniversalClient, limit int, window time.Duration, keyPrefix string) *RedisWindowLimiter {
	return &RedisWindowLimiter{
		client:    client,
		script:    redis.NewScript(windowScript),
		max:       limit,
		window:    window,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

func (l *RedisWindowLimiter) Allow(ctx context.Context, key string) (bool, Info, error) {
	if key == "" {
		return false, Info{}, errors.New("rate limiter key is empty")
	}

	res, err := l.script.Run(ctx, l.client, []string{l.keyPrefix + key}, l.max, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return false, Info{}, fmt.Errorf("redis window limiter: %w", err)
	}
	if len(res) < 3 {
		return false, Info{}, errors.New("invalid rate limit script response")
	}

	allowed := res[0] == 1
	count := int(res[1])
	ttl := time.Duration(res[2]) * time.Millisecond
	if ttl < 0 {
		ttl = l.window
	}

	now := l.now()
	info := Info{
		Limit:     l.max,
		Remaining: max(0, l.max-count),
		ResetAt:   now.Add(ttl),
	}
	if !allowed {
		info.RetryAfter = ttl
	}
	return allowed, info, nil
}

// Ping checks connectivity for health reporting.
func (l *RedisWindowLimiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (l *RedisWindowLimiter) Close() error {
	return l.client.Close()
}
