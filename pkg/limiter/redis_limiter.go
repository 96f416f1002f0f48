package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements the fixed window with a single INCR per check, so
// increment-and-check is atomic across instances. The window key embeds the
// window start; EXPIRE is set when the key is first created.
type RedisLimiter struct {
	rdb    *redis.Client
	source SubscriptionSource
	now    func() time.Time
}

func NewRedisLimiter(rdb *redis.Client, source SubscriptionSource) *RedisLimiter {
	return &RedisLimiter{
		rdb:    rdb,
		source: source,
		now:    time.Now,
	}
}

func (l *RedisLimiter) CheckAndReserve(ctx context.Context, userID uuid.UUID) (*Decision, error) {
	active, err := l.source.IsActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("subscription lookup: %w", err)
	}
	if !active {
		return &Decision{Allowed: false}, nil
	}

	limit, err := l.source.GetUsageLimit(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("usage limit lookup: %w", err)
	}
	if limit < 0 { // negative limit means unlimited
		return &Decision{Allowed: true, Limit: limit}, nil
	}

	now := l.now()
	windowStart := now.Truncate(Window)
	key := fmt.Sprintf("usage:%s:%d", userID, windowStart.Unix())

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis incr: %w", err)
	}
	if count == 1 {
		// first hit of the window owns the expiry
		l.rdb.Expire(ctx, key, Window)
	}

	if int(count) > limit {
		return &Decision{
			Allowed:    false,
			RetryAfter: windowStart.Add(Window).Sub(now),
			Limit:      limit,
			Used:       limit,
		}, nil
	}

	return &Decision{Allowed: true, Limit: limit, Used: int(count)}, nil
}
