package contract

import (
	"context"

	"ai-agent-gateway/internal/entity"
	"ai-agent-gateway/internal/repository/specification"

	"github.com/google/uuid"
)

type SubscriptionRepository interface {
	CreatePlan(ctx context.Context, plan *entity.Plan) error
	FindOnePlan(ctx context.Context, specs ...specification.Specification) (*entity.Plan, error)
	FindAllPlans(ctx context.Context, specs ...specification.Specification) ([]*entity.Plan, error)

	CreateSubscription(ctx context.Context, subscription *entity.UserSubscription) error
	UpdateSubscription(ctx context.Context, subscription *entity.UserSubscription) error
	// FindActiveByUserId returns the user's active subscription joined with
	// its plan, or nil when the user has none.
	FindActiveByUserId(ctx context.Context, userId uuid.UUID) (*entity.UserSubscription, *entity.Plan, error)
}
