package mapper

import (
	"encoding/json"

	"ai-agent-gateway/internal/entity"
	"ai-agent-gateway/internal/model"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// Conversation Mappers

func (m *ChatMapper) ConversationToEntity(c *model.Conversation) *entity.Conversation {
	if c == nil {
		return nil
	}

	return &entity.Conversation{
		Id:              c.Id,
		UserId:          c.UserId,
		AgentId:         c.AgentId,
		Title:           c.Title,
		Status:          c.Status,
		TotalTokensUsed: c.TotalTokensUsed,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func (m *ChatMapper) ConversationToModel(c *entity.Conversation) *model.Conversation {
	if c == nil {
		return nil
	}

	return &model.Conversation{
		Id:              c.Id,
		UserId:          c.UserId,
		AgentId:         c.AgentId,
		Title:           c.Title,
		Status:          c.Status,
		TotalTokensUsed: c.TotalTokensUsed,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// Message Mappers

func (m *ChatMapper) MessageToEntity(msg *model.Message) *entity.Message {
	if msg == nil {
		return nil
	}

	return &entity.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Role:           msg.Role,
		Content:        msg.Content,
		TokensUsed:     msg.TokensUsed,
		Partial:        msg.Partial,
		Sequence:       msg.Sequence,
		CreatedAt:      msg.CreatedAt,
	}
}

func (m *ChatMapper) MessageToModel(msg *entity.Message) *model.Message {
	if msg == nil {
		return nil
	}

	return &model.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Role:           msg.Role,
		Content:        msg.Content,
		TokensUsed:     msg.TokensUsed,
		Partial:        msg.Partial,
		Sequence:       msg.Sequence,
		CreatedAt:      msg.CreatedAt,
	}
}

// Agent Mappers

func (m *ChatMapper) AgentToEntity(a *model.Agent) *entity.Agent {
	if a == nil {
		return nil
	}

	var behaviors []string
	if len(a.Behaviors) > 0 {
		// jsonb column holds a plain string array; ignore garbage rows
		_ = json.Unmarshal(a.Behaviors, &behaviors)
	}

	return &entity.Agent{
		Id:               a.Id,
		AgentId:          a.AgentId,
		Name:             a.Name,
		Provider:         a.Provider,
		ModelId:          a.ModelId,
		SystemPrompt:     a.SystemPrompt,
		Temperature:      a.Temperature,
		MaxTokens:        a.MaxTokens,
		TopP:             a.TopP,
		FrequencyPenalty: a.FrequencyPenalty,
		PresencePenalty:  a.PresencePenalty,
		MemoryEnabled:    a.MemoryEnabled,
		Behaviors:        behaviors,
		IsActive:         a.IsActive,
		CreatedAt:        a.CreatedAt,
	}
}

func (m *ChatMapper) AgentToModel(a *entity.Agent) *model.Agent {
	if a == nil {
		return nil
	}

	behaviors, _ := json.Marshal(a.Behaviors)

	return &model.Agent{
		Id:               a.Id,
		AgentId:          a.AgentId,
		Name:             a.Name,
		Provider:         a.Provider,
		ModelId:          a.ModelId,
		SystemPrompt:     a.SystemPrompt,
		Temperature:      a.Temperature,
		MaxTokens:        a.MaxTokens,
		TopP:             a.TopP,
		FrequencyPenalty: a.FrequencyPenalty,
		PresencePenalty:  a.PresencePenalty,
		MemoryEnabled:    a.MemoryEnabled,
		Behaviors:        behaviors,
		IsActive:         a.IsActive,
		CreatedAt:        a.CreatedAt,
	}
}
