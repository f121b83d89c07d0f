// Package ratelimit throttles callers. SlidingWindow backs the per-user
// checkout limit; the public limiter wraps ulule/limiter for anonymous traffic.
package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-sneakers/internal/common"
)

// Config describes how to derive a rate limit key and thresholds.
type Config struct {
	Name   string
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// Handler enforces a sliding-window limit before delegating to the next handler.
// Limiter failures fail open.
type Handler struct {
	Limiter SlidingWindow
	Config  Config
}

// Middleware implements the chi middleware signature.
func (h Handler) Middleware(next http.Handler) http.Handler {
	keyFn := h.Config.Key
	if keyFn == nil {
		keyFn = common.CallerKey
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := h.Config.Name + ":" + keyFn(r)
		decision, err := h.Limiter.Allow(r.Context(), key, h.Config.Window, h.Config.Max)
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("limit", h.Config.Name).Msg("rate_limit_unavailable")
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		if !decision.Allowed {
			retryAfter := int(time.Until(decision.ResetAt).Seconds()) + 1
			if retryAfter < 1 {
				retryAfter = 1
			}
			headers.Set("Retry-After", strconv.Itoa(retryAfter))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
