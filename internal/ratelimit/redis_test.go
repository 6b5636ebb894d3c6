package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisLimiter(t *testing.T, limit int, window time.Duration) *RedisWindowLimiter {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set, skipping Redis limiter tests")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	prefix := "leadgate:test:" + uuid.NewString() + ":"
	limiter := NewRedisWindowLimiter(client, limit, window, prefix)
	require.NoError(t, limiter.Ping(context.Background()))

	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := client.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		limiter.Close()
	})
	return limiter
}

func TestRedisWindowLimiter_Cap(t *testing.T) {
	limiter := newTestRedisLimiter(t, 5, time.Hour)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		allowed, info, err := limiter.Allow(ctx, "203.0.113.7")
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 5-i, info.Remaining)
	}

	allowed, info, err := limiter.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.True(t, info.RetryAfter > 0 && info.RetryAfter <= time.Hour)

	allowed, _, err = limiter.Allow(ctx, "198.51.100.1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisWindowLimiter_WindowExpiry(t *testing.T) {
	limiter := newTestRedisLimiter(t, 1, 200*time.Millisecond)
	ctx := context.Background()

	allowed, _, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, _ = limiter.Allow(ctx, "k")
	assert.False(t, allowed)

	assert.Eventually(t, func() bool {
		ok, _, _ := limiter.Allow(ctx, "k")
		return ok
	}, 2*time.Second, 50*time.Millisecond)
}

func TestRedisWindowLimiter_EmptyKey(t *testing.T) {
	limiter := NewRedisWindowLimiter(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), 1, time.Minute, "p:")
	defer limiter.Close()

	_, _, err := limiter.Allow(context.Background(), "")
	assert.Error(t, err)
}
