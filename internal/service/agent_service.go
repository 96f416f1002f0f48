package service

import (
	"context"
	"fmt"

	"ai-agent-gateway/internal/dto"
	"ai-agent-gateway/internal/entity"
	"ai-agent-gateway/internal/repository/specification"
	"ai-agent-gateway/internal/repository/unitofwork"
	"ai-agent-gateway/pkg/agent"
	"ai-agent-gateway/pkg/llm/factory"
)

// IAgentService is the read side of the agent persona registry.
type IAgentService interface {
	ListAgents(ctx context.Context) ([]*dto.AgentResponse, error)
	GetAgent(ctx context.Context, agentId string) (*entity.Agent, error)

	// EngineConstructor adapts the registry into the form the agent pool
	// expects. Constructed engines carry a live provider client.
	EngineConstructor() func(agentId string) (*agent.Engine, error)
}

type agentService struct {
	uowFactory unitofwork.RepositoryFactory
	providers  *factory.Registry
}

func NewAgentService(uowFactory unitofwork.RepositoryFactory, providers *factory.Registry) IAgentService {
	return &agentService{
		uowFactory: uowFactory,
		providers:  providers,
	}
}

func (as *agentService) ListAgents(ctx context.Context) ([]*dto.AgentResponse, error) {
	uow := as.uowFactory.NewUnitOfWork(ctx)

	agents, err := uow.AgentRepository().FindAll(ctx, specification.ActiveOnly{}, specification.OrderBy{Field: "name"})
	if err != nil {
		return nil, err
	}

	responses := make([]*dto.AgentResponse, len(agents))
	for i, a := range agents {
		responses[i] = &dto.AgentResponse{
			AgentId:  a.AgentId,
			Name:     a.Name,
			Provider: a.Provider,
			ModelId:  a.ModelId,
		}
	}
	return responses, nil
}

func (as *agentService) GetAgent(ctx context.Context, agentId string) (*entity.Agent, error) {
	uow := as.uowFactory.NewUnitOfWork(ctx)
	return uow.AgentRepository().FindByAgentId(ctx, agentId)
}

func (as *agentService) EngineConstructor() func(agentId string) (*agent.Engine, error) {
	return func(agentId string) (*agent.Engine, error) {
		ctx := context.Background()
		record, err := as.GetAgent(ctx, agentId)
		if err != nil {
			return nil, err
		}
		if record == nil || !record.IsActive {
			return nil, fmt.Errorf("agent %q not found", agentId)
		}

		descriptor := descriptorFromEntity(record)
		provider, err := as.providers.Get(descriptor.Provider, descriptor.Model)
		if err != nil {
			return nil, err
		}
		return agent.NewEngine(descriptor, provider), nil
	}
}

func descriptorFromEntity(record *entity.Agent) *agent.Descriptor {
	return &agent.Descriptor{
		AgentID:          record.AgentId,
		Name:             record.Name,
		Provider:         record.Provider,
		Model:            record.ModelId,
		SystemPrompt:     record.SystemPrompt,
		Temperature:      record.Temperature,
		MaxTokens:        record.MaxTokens,
		TopP:             record.TopP,
		FrequencyPenalty: record.FrequencyPenalty,
		PresencePenalty:  record.PresencePenalty,
		MemoryEnabled:    record.MemoryEnabled,
		Behaviors:        record.Behaviors,
	}
}
