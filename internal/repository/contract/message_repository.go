package contract

import (
	"context"

	"ai-agent-gateway/internal/entity"
	"ai-agent-gateway/internal/repository/specification"

	"github.com/google/uuid"
)

type MessageRepository interface {
	// Create persists the message and assigns the next sequence number
	// within its conversation. Messages are append-only.
	Create(ctx context.Context, message *entity.Message) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Message, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error)
	FindRecent(ctx context.Context, conversationId uuid.UUID, limit int) ([]*entity.Message, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
