package service

import (
	"context"
	"fmt"
	"time"

	"ai-agent-gateway/internal/dto"
	"ai-agent-gateway/internal/entity"
	"ai-agent-gateway/internal/repository/specification"
	"ai-agent-gateway/internal/repository/unitofwork"

	"github.com/google/uuid"
)

const conversationTitleLimit = 50

// IConversationService is the append-only store for conversations and their
// message logs.
type IConversationService interface {
	GetOrCreate(ctx context.Context, userId uuid.UUID, agentId string, conversationId *uuid.UUID, firstMessage string) (*entity.Conversation, error)
	AppendMessage(ctx context.Context, conversationId uuid.UUID, role, content string, tokensUsed int, partial bool) (*entity.Message, error)
	RecentMessages(ctx context.Context, conversationId uuid.UUID, limit int) ([]*entity.Message, error)
	ListConversations(ctx context.Context, userId uuid.UUID) ([]*dto.ConversationResponse, error)
	GetHistory(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) ([]*dto.MessageResponse, error)
	Archive(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) error
	AddTokensUsed(ctx context.Context, conversationId uuid.UUID, tokens int) error
}

type conversationService struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewConversationService(uowFactory unitofwork.RepositoryFactory) IConversationService {
	return &conversationService{
		uowFactory: uowFactory,
	}
}

// GetOrCreate resolves the target conversation. A nil conversationId starts a
// fresh one titled after the first message.
func (cs *conversationService) GetOrCreate(ctx context.Context, userId uuid.UUID, agentId string, conversationId *uuid.UUID, firstMessage string) (*entity.Conversation, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	if conversationId != nil {
		conversation, err := uow.ConversationRepository().FindOne(ctx,
			specification.ByID{ID: *conversationId},
			specification.UserOwnedBy{UserID: userId},
		)
		if err != nil {
			return nil, err
		}
		if conversation == nil {
			return nil, fmt.Errorf("conversation %s not found", *conversationId)
		}
		if conversation.AgentId != agentId {
			return nil, fmt.Errorf("conversation %s belongs to another agent", *conversationId)
		}
		return conversation, nil
	}

	now := time.Now()
	conversation := &entity.Conversation{
		Id:        uuid.New(),
		UserId:    userId,
		AgentId:   agentId,
		Title:     truncateTitle(firstMessage),
		Status:    entity.ConversationStatusActive,
		CreatedAt: now,
	}
	if err := uow.ConversationRepository().Create(ctx, conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

func (cs *conversationService) AppendMessage(ctx context.Context, conversationId uuid.UUID, role, content string, tokensUsed int, partial bool) (*entity.Message, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	message := &entity.Message{
		Id:             uuid.New(),
		ConversationId: conversationId,
		Role:           role,
		Content:        content,
		TokensUsed:     tokensUsed,
		Partial:        partial,
		CreatedAt:      time.Now(),
	}
	if err := uow.MessageRepository().Create(ctx, message); err != nil {
		return nil, err
	}

	now := time.Now()
	conversation, err := uow.ConversationRepository().FindOne(ctx, specification.ByID{ID: conversationId})
	if err == nil && conversation != nil {
		conversation.UpdatedAt = &now
		_ = uow.ConversationRepository().Update(ctx, conversation)
	}

	return message, nil
}

// RecentMessages returns up to limit latest messages, oldest first.
func (cs *conversationService) RecentMessages(ctx context.Context, conversationId uuid.UUID, limit int) ([]*entity.Message, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	return uow.MessageRepository().FindRecent(ctx, conversationId, limit)
}

func (cs *conversationService) ListConversations(ctx context.Context, userId uuid.UUID) ([]*dto.ConversationResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	conversations, err := uow.ConversationRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "updated_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	responses := make([]*dto.ConversationResponse, len(conversations))
	for i, c := range conversations {
		responses[i] = &dto.ConversationResponse{
			Id:              c.Id,
			AgentId:         c.AgentId,
			Title:           c.Title,
			Status:          c.Status,
			TotalTokensUsed: c.TotalTokensUsed,
			CreatedAt:       c.CreatedAt,
			UpdatedAt:       c.UpdatedAt,
		}
	}
	return responses, nil
}

func (cs *conversationService) GetHistory(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) ([]*dto.MessageResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	conversation, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: conversationId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, fmt.Errorf("conversation %s not found", conversationId)
	}

	messages, err := uow.MessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: conversationId},
		specification.OrderBy{Field: "sequence"},
	)
	if err != nil {
		return nil, err
	}

	responses := make([]*dto.MessageResponse, len(messages))
	for i, m := range messages {
		responses[i] = &dto.MessageResponse{
			Id:        m.Id,
			Role:      m.Role,
			Content:   m.Content,
			Partial:   m.Partial,
			CreatedAt: m.CreatedAt,
		}
	}
	return responses, nil
}

func (cs *conversationService) Archive(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	conversation, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: conversationId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return err
	}
	if conversation == nil {
		return fmt.Errorf("conversation %s not found", conversationId)
	}
	return uow.ConversationRepository().Archive(ctx, conversationId)
}

func (cs *conversationService) AddTokensUsed(ctx context.Context, conversationId uuid.UUID, tokens int) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	return uow.ConversationRepository().AddTokensUsed(ctx, conversationId, tokens)
}

func truncateTitle(message string) string {
	runes := []rune(message)
	if len(runes) <= conversationTitleLimit {
		return message
	}
	return string(runes[:conversationTitleLimit]) + "..."
}
