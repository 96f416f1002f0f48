package unitofwork

import (
	"context"

	"ai-agent-gateway/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ConversationRepository() contract.ConversationRepository
	MessageRepository() contract.MessageRepository
	AgentRepository() contract.AgentRepository
	SubscriptionRepository() contract.SubscriptionRepository
}
