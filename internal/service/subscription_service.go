package service

import (
	"context"
	"time"

	"ai-agent-gateway/internal/entity"
	"ai-agent-gateway/internal/repository/unitofwork"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// planCacheTTL keeps hot subscription lookups off the database. Entitlement
// changes take effect within this window.
const planCacheTTL = 30 * time.Second

// ISubscriptionService resolves plan entitlements for a user. It backs the
// usage limiter and the feature gates on the websocket path.
type ISubscriptionService interface {
	GetUsageLimit(ctx context.Context, userId uuid.UUID) (int, error)
	IsActive(ctx context.Context, userId uuid.UUID) (bool, error)
	CanUseAgentChat(ctx context.Context, userId uuid.UUID) (bool, error)
	CanStream(ctx context.Context, userId uuid.UUID) (bool, error)
}

type subscriptionService struct {
	uowFactory unitofwork.RepositoryFactory
	cache      *gocache.Cache
}

func NewSubscriptionService(uowFactory unitofwork.RepositoryFactory) ISubscriptionService {
	return &subscriptionService{
		uowFactory: uowFactory,
		cache:      gocache.New(planCacheTTL, 2*planCacheTTL),
	}
}

type entitlement struct {
	active bool
	plan   *entity.Plan
}

func (ss *subscriptionService) resolve(ctx context.Context, userId uuid.UUID) (*entitlement, error) {
	key := "entitlement:" + userId.String()
	if cached, found := ss.cache.Get(key); found {
		return cached.(*entitlement), nil
	}

	uow := ss.uowFactory.NewUnitOfWork(ctx)
	subscription, plan, err := uow.SubscriptionRepository().FindActiveByUserId(ctx, userId)
	if err != nil {
		return nil, err
	}

	ent := &entitlement{}
	if subscription != nil && subscription.CurrentPeriodEnd.After(time.Now()) {
		ent.active = true
		ent.plan = plan
	}
	ss.cache.Set(key, ent, gocache.DefaultExpiration)
	return ent, nil
}

// GetUsageLimit returns the hourly request allowance. Negative means
// unlimited; zero means no chat allowance at all.
func (ss *subscriptionService) GetUsageLimit(ctx context.Context, userId uuid.UUID) (int, error) {
	ent, err := ss.resolve(ctx, userId)
	if err != nil {
		return 0, err
	}
	if !ent.active || ent.plan == nil {
		return 0, nil
	}
	return ent.plan.ApiRequestsPerHour, nil
}

func (ss *subscriptionService) IsActive(ctx context.Context, userId uuid.UUID) (bool, error) {
	ent, err := ss.resolve(ctx, userId)
	if err != nil {
		return false, err
	}
	return ent.active, nil
}

func (ss *subscriptionService) CanUseAgentChat(ctx context.Context, userId uuid.UUID) (bool, error) {
	ent, err := ss.resolve(ctx, userId)
	if err != nil {
		return false, err
	}
	return ent.active && ent.plan != nil && ent.plan.AgentChatEnabled, nil
}

func (ss *subscriptionService) CanStream(ctx context.Context, userId uuid.UUID) (bool, error) {
	ent, err := ss.resolve(ctx, userId)
	if err != nil {
		return false, err
	}
	return ent.active && ent.plan != nil && ent.plan.StreamingEnabled, nil
}
