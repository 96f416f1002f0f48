package mapper

import (
	"ai-agent-gateway/internal/entity"
	"ai-agent-gateway/internal/model"
)

type SubscriptionMapper struct{}

func NewSubscriptionMapper() *SubscriptionMapper {
	return &SubscriptionMapper{}
}

func (m *SubscriptionMapper) PlanToEntity(p *model.Plan) *entity.Plan {
	if p == nil {
		return nil
	}

	return &entity.Plan{
		Id:                 p.Id,
		Name:               p.Name,
		Slug:               p.Slug,
		ApiRequestsPerHour: p.ApiRequestsPerHour,
		AgentChatEnabled:   p.AgentChatEnabled,
		StreamingEnabled:   p.StreamingEnabled,
	}
}

func (m *SubscriptionMapper) SubscriptionToEntity(s *model.UserSubscription) *entity.UserSubscription {
	if s == nil {
		return nil
	}

	return &entity.UserSubscription{
		Id:               s.Id,
		UserId:           s.UserId,
		PlanId:           s.PlanId,
		Status:           s.Status,
		CurrentPeriodEnd: s.CurrentPeriodEnd,
		CreatedAt:        s.CreatedAt,
	}
}

func (m *SubscriptionMapper) PlanToModel(p *entity.Plan) *model.Plan {
	if p == nil {
		return nil
	}

	return &model.Plan{
		Id:                 p.Id,
		Name:               p.Name,
		Slug:               p.Slug,
		ApiRequestsPerHour: p.ApiRequestsPerHour,
		AgentChatEnabled:   p.AgentChatEnabled,
		StreamingEnabled:   p.StreamingEnabled,
	}
}

func (m *SubscriptionMapper) SubscriptionToModel(s *entity.UserSubscription) *model.UserSubscription {
	if s == nil {
		return nil
	}

	return &model.UserSubscription{
		Id:               s.Id,
		UserId:           s.UserId,
		PlanId:           s.PlanId,
		Status:           s.Status,
		CurrentPeriodEnd: s.CurrentPeriodEnd,
		CreatedAt:        s.CreatedAt,
	}
}
