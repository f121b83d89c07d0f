package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// SlidingWindow is a Redis sorted-set sliding window limiter. Each admitted
// event is a member scored by its timestamp; rejected events are not recorded.
type SlidingWindow struct {
	Client *redis.Client
	Prefix string
	Now    func() time.Time
}

// Allow records an event for key when fewer than max events happened within window.
func (l SlidingWindow) Allow(ctx context.Context, key string, window time.Duration, max int) (Decision, error) {
	now := l.now()
	if l.Client == nil || max <= 0 || window <= 0 {
		return Decision{Allowed: true, Limit: max, Remaining: max, ResetAt: now.Add(window)}, nil
	}

	redisKey := l.Prefix + key
	cutoff := strconv.FormatInt(now.Add(-window).UnixNano(), 10)
	member := uuid.NewString()

	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", cutoff)
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	countCmd := pipe.ZCard(ctx, redisKey)
	oldestCmd := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	pipe.PExpire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("sliding window: %w", err)
	}

	count := int(countCmd.Val())
	resetAt := now.Add(window)
	if oldest := oldestCmd.Val(); len(oldest) == 1 {
		resetAt = time.Unix(0, int64(oldest[0].Score)).Add(window)
	}
	if count > max {
		if err := l.Client.ZRem(ctx, redisKey, member).Err(); err != nil {
			return Decision{}, fmt.Errorf("sliding window rollback: %w", err)
		}
		return Decision{Allowed: false, Limit: max, Remaining: 0, ResetAt: resetAt}, nil
	}
	return Decision{Allowed: true, Limit: max, Remaining: max - count, ResetAt: resetAt}, nil
}

func (l SlidingWindow) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}
