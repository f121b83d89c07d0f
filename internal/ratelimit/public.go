package ratelimit

import (
	"fmt"
	"net/http"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/backend-sneakers/internal/common"
)

// NewPublic builds a fixed-window limiter from a formatted rate such as
// "300-M". A nil client keeps counters in memory.
func NewPublic(client *redis.Client, formatted, prefix string) (*limiter.Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", formatted, err)
	}
	opts := limiter.StoreOptions{Prefix: prefix}
	var store limiter.Store
	if client == nil {
		store = memory.NewStoreWithOptions(opts)
	} else {
		store, err = limiterredis.NewStoreWithOptions(client, opts)
		if err != nil {
			return nil, fmt.Errorf("limiter store: %w", err)
		}
	}
	return limiter.New(store, rate), nil
}

// PublicMiddleware applies l per caller. Store failures fail open.
func PublicMiddleware(l *limiter.Limiter) func(http.Handler) http.Handler {
	mw := stdlib.NewMiddleware(l,
		stdlib.WithKeyGetter(common.CallerKey),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", nil)
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("public_rate_limit_unavailable")
		}),
	)
	return mw.Handler
}
