package limiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type counter struct {
	count       int
	windowStart time.Time
}

// MemoryLimiter is the single-instance fallback used when redis is not
// configured, and the backend of choice in tests. One mutex guards the whole
// counter map, making check-and-increment atomic.
type MemoryLimiter struct {
	source SubscriptionSource
	now    func() time.Time

	mu       sync.Mutex
	counters map[uuid.UUID]*counter
}

func NewMemoryLimiter(source SubscriptionSource) *MemoryLimiter {
	return &MemoryLimiter{
		source:   source,
		now:      time.Now,
		counters: make(map[uuid.UUID]*counter),
	}
}

// SetClock overrides the time source. Test hook.
func (l *MemoryLimiter) SetClock(now func() time.Time) { l.now = now }

func (l *MemoryLimiter) CheckAndReserve(ctx context.Context, userID uuid.UUID) (*Decision, error) {
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
	if limit < 0 {
		return &Decision{Allowed: true, Limit: limit}, nil
	}

	now := l.now()
	windowStart := now.Truncate(Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[userID]
	if !ok || c.windowStart.Before(windowStart) {
		c = &counter{windowStart: windowStart}
		l.counters[userID] = c
	}

	if c.count >= limit {
		return &Decision{
			Allowed:    false,
			RetryAfter: windowStart.Add(Window).Sub(now),
			Limit:      limit,
			Used:       c.count,
		}, nil
	}

	c.count++
	return &Decision{Allowed: true, Limit: limit, Used: c.count}, nil
}
