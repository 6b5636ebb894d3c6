package ratelimit

import (
	"context"
	"sync"
	"time"

	"leadgate/internal/models"

	"golang.org/x/time/rate"
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// BucketLimiter throttles bursts with one token bucket per key. Buckets idle
// for two cleanup intervals are dropped, which is harmless because an idle
// bucket is full again anyway.
type BucketLimiter struct {
	refill          rate.Limit
	burst           int
	perMinute       int
	cleanupInterval time.Duration
	now             Clock

	mu      sync.Mutex
	buckets map[string]*bucket
	done    chan struct{}
	closed  bool
}

var _ Limiter = (*BucketLimiter)(nil)

// BucketOption configures a BucketLimiter.
type BucketOption func(*BucketLimiter)

// WithBucketClock replaces time.Now.
func WithBucketClock(clock Clock) BucketOption {
	return func(b *BucketLimiter) {
		b.now = clock
	}
}

// NewBucketLimiter builds the burst throttle from cfg. A non-positive rate or
// burst falls back to one request per second with a burst of one.
func NewBucketLimiter(cfg models.RateLimitConfig, opts ...BucketOption) *BucketLimiter {
	perMinute := max(cfg.RequestsPerMinute, 1)
	b := &BucketLimiter{
		refill:          rate.Every(time.Minute / time.Duration(perMinute)),
		burst:           max(cfg.BurstSize, 1),
		perMinute:       perMinute,
		cleanupInterval: cfg.CleanupInterval,
		now:             time.Now,
		buckets:         make(map[string]*bucket),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.cleanupInterval > 0 {
		go b.cleanup()
	}
	return b
}

func (b *BucketLimiter) Allow(_ context.Context, key string) (bool, Info, error) {
	now := b.now()

	b.mu.Lock()
	bk, ok := b.buckets[key]
	if !ok {
		bk = &bucket{limiter: rate.NewLimiter(b.refill, b.burst)}
		b.buckets[key] = bk
	}
	bk.lastSeen = now
	b.mu.Unlock()

	allowed := bk.limiter.AllowN(now, 1)
	tokens := bk.limiter.TokensAt(now)

	info := Info{
		Limit:     b.perMinute,
		Remaining: max(0, int(tokens)),
		ResetAt:   now.Add(b.timeToRefill(float64(b.burst) - tokens)),
	}
	if !allowed {
		info.RetryAfter = b.timeToRefill(1 - tokens)
	}
	return allowed, info, nil
}

// timeToRefill is how long the bucket takes to gain n tokens.
func (b *BucketLimiter) timeToRefill(n float64) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n / float64(b.refill) * float64(time.Second))
}

// Len reports how many keys are tracked.
func (b *BucketLimiter) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buckets)
}

// Close stops the cleanup goroutine if one is running.
func (b *BucketLimiter) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
	return nil
}

func (b *BucketLimiter) cleanup() {
	ticker := time.NewTicker(b.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.evictIdle(b.now())
		}
	}
}

func (b *BucketLimiter) evictIdle(now time.Time) {
	cutoff := now.Add(-2 * b.cleanupInterval)
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, bk := range b.buckets {
		if bk.lastSeen.Before(cutoff) {
			delete(b.buckets, key)
		}
	}
}
