package contract

import (
	"context"

	"ai-agent-gateway/internal/entity"
	"ai-agent-gateway/internal/repository/specification"
)

type AgentRepository interface {
	Create(ctx context.Context, agent *entity.Agent) error
	Update(ctx context.Context, agent *entity.Agent) error
	FindByAgentId(ctx context.Context, agentId string) (*entity.Agent, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Agent, error)
}
