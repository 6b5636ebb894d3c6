package ratelimit

import (
	"context"
	"sync"
	"time"
)

type windowRecord struct {
	count       int
	windowStart time.Time
}

// WindowLimiter caps requests per key within a fixed window that starts at the
// key's first admitted request. State lives in process memory and is lost on
// restart.
//
// For a record that exists:
//   - now - windowStart > window: the window restarts with count 1 (allow)
//   - count < cap: count is incremented (allow)
//   - otherwise: deny without incrementing
type WindowLimiter struct {
	max             int
	window          time.Duration
	cleanupInterval time.Duration
	now             Clock

	mu      sync.Mutex
	records map[string]*windowRecord
	done    chan struct{}
	closed  bool
}

var _ Limiter = (*WindowLimiter)(nil)

// WindowOption configures a WindowLimiter.
type WindowOption func(*WindowLimiter)

// WithClock replaces time.Now.
func WithClock(clock Clock) WindowOption {
	return func(w *WindowLimiter) {
		w.now = clock
	}
}

// WithCleanupInterval enables periodic eviction of expired windows. Zero disables it.
func WithCleanupInterval(d time.Duration) WindowOption {
	return func(w *WindowLimiter) {
		w.cleanupInterval = d
	}
}

// NewWindowLimiter allows limit requests per key per window.
func NewWindowLimiter(limit int, window time.Duration, opts ...WindowOption) *WindowLimiter {
	w := &WindowLimiter{
		max:     limit,
		window:  window,
		now:     time.Now,
		records: make(map[string]*windowRecord),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.cleanupInterval > 0 {
		go w.cleanup()
	}
	return w
}

func (w *WindowLimiter) Allow(_ context.Context, key string) (bool, Info, error) {
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	rec, exists := w.records[key]
	if !exists || now.Sub(rec.windowStart) > w.window {
		rec = &windowRecord{count: 1, windowStart: now}
		w.records[key] = rec
		return true, w.info(rec), nil
	}

	if rec.count < w.max {
		rec.count++
		return true, w.info(rec), nil
	}

	info := w.info(rec)
	info.RetryAfter = info.ResetAt.Sub(now)
	return false, info, nil
}

func (w *WindowLimiter) info(rec *windowRecord) Info {
	return Info{
		Limit:     w.max,
		Remaining: max(0, w.max-rec.count),
		ResetAt:   rec.windowStart.Add(w.window),
	}
}

// Len reports how many keys are tracked.
func (w *WindowLimiter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.records)
}

// Close stops the cleanup goroutine if one is running.
func (w *WindowLimiter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.done)
	}
	return nil
}

func (w *WindowLimiter) cleanup() {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.evictExpired()
		}
	}
}

// evictExpired drops records whose window has elapsed. Such a record would be
// reset on its next request anyway.
func (w *WindowLimiter) evictExpired() {
	now := w.now()
	w.mu.Lock()
	defer w.mu.Unlock()
	for key, rec := range w.records {
		if now.Sub(rec.windowStart) > w.window {
			delete(w.records, key)
		}
	}
}
