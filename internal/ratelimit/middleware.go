package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"leadgate/internal/models"
)

// KeyFunc derives the limiter key for a request.
type KeyFunc func(r *http.Request) string

type middlewareConfig struct {
	scope   string
	message string
	onDeny  func(r *http.Request, key string)
}

// MiddlewareOption customizes Middleware.
type MiddlewareOption func(*middlewareConfig)

// WithScope names the limiter in log records.
func WithScope(scope string) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.scope = scope
	}
}

// WithMessage sets the message returned in the 429 body.
func WithMessage(message string) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.message = message
	}
}

// WithDenyHook is called for every denied request, e.g. to count denials.
func WithDenyHook(fn func(r *http.Request, key string)) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.onDeny = fn
	}
}

// Middleware enforces limiter on every request, keyed by keyFn. Rate limit
// headers are always set. A limiter error lets the request through and is
// logged, so a Redis outage degrades throttling rather than the service.
func Middleware(limiter Limiter, keyFn KeyFunc, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := middlewareConfig{
		scope:   "api",
		message: "Rate limit exceeded. Please try again later.",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)

			allowed, info, err := limiter.Allow(r.Context(), key)
			if err != nil {
				slog.Error("Rate limiter unavailable, allowing request",
					"scope", cfg.scope,
					"key", key,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))

			if !allowed {
				retryAfterSecs := int(info.RetryAfter.Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				errorResp := models.NewErrorResponse(cfg.message, models.ErrorCodeRateLimitExceeded)
				if err := json.NewEncoder(w).Encode(errorResp); err != nil {
					slog.Error("Failed to encode rate limit response", "error", err)
				}

				slog.Warn("Rate limit exceeded",
					"scope", cfg.scope,
					"key", key,
					"limit", info.Limit,
					"retry_after", retryAfterSecs,
				)
				if cfg.onDeny != nil {
					cfg.onDeny(r, key)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
