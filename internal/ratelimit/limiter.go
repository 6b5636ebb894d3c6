// Package ratelimit provides request throttling for the HTTP surface.
//
// Two algorithms are available behind one Limiter contract:
//   - BucketLimiter: a token bucket per key (golang.org/x/time/rate), used as a
//     general burst throttle on every API route.
//   - WindowLimiter / RedisWindowLimiter: a fixed window counter per key that
//     caps how many analysis requests one client address may issue per window.
//
// Middleware applies any Limiter and sets the standard rate limit headers.
package ratelimit

import (
	"context"
	"time"
)

// Limiter defines the rate limiting contract. Implementations must be safe for
// concurrent use.
type Limiter interface {
	// Allow checks whether a request identified by key should be allowed and,
	// when it is, records it. A denied request is not counted.
	Allow(ctx context.Context, key string) (allowed bool, info Info, err error)

	// Close stops background goroutines and releases resources.
	Close() error
}

// Info contains rate limit state for populating response headers.
type Info struct {
	Limit      int           // Maximum requests per window
	Remaining  int           // Requests left in the current window
	ResetAt    time.Time     // When the window or bucket resets
	RetryAfter time.Duration // How long to wait (meaningful only when denied)
}

// Clock returns the current time. Limiters accept one so tests can move time
// without sleeping.
type Clock func() time.Time
