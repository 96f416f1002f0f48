// Package limiter enforces per-user fixed-window usage quotas ahead of any
// provider dispatch.
package limiter

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Window is the fixed quota window. Counts reset when the window rolls over;
// there is no sliding behavior.
const Window = time.Hour

// SubscriptionSource is the external user/subscription collaborator.
type SubscriptionSource interface {
	GetUsageLimit(ctx context.Context, userID uuid.UUID) (int, error)
	IsActive(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Limit      int
	Used       int
}

// Limiter reserves one unit of quota per dispatched provider call.
// CheckAndReserve must be atomic: concurrent requests from the same user
// (two tabs) may never both slip past the limit.
type Limiter interface {
	CheckAndReserve(ctx context.Context, userID uuid.UUID) (*Decision, error)
}
