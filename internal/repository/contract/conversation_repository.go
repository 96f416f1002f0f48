package contract

import (
	"context"

	"ai-agent-gateway/internal/entity"
	"ai-agent-gateway/internal/repository/specification"

	"github.com/google/uuid"
)

type ConversationRepository interface {
	Create(ctx context.Context, conversation *entity.Conversation) error
	Update(ctx context.Context, conversation *entity.Conversation) error
	Archive(ctx context.Context, id uuid.UUID) error
	AddTokensUsed(ctx context.Context, id uuid.UUID, tokens int) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Conversation, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
