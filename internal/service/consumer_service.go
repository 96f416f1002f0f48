package service

import (
	"context"
	"encoding/json"

	"ai-agent-gateway/internal/dto"
	"ai-agent-gateway/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// IConsumerService drains the token-usage topic and folds counts into
// conversation totals off the hot path.
type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub        *gochannel.GoChannel
	topicName     string
	conversations IConversationService
	logger        logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	conversations IConversationService,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:        pubSub,
		topicName:     topicName,
		conversations: conversations,
		logger:        log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.TokenUsageMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("Consumer", "Failed to unmarshal usage message", map[string]interface{}{"error": err.Error()})
		msg.Ack() // invalid payloads never become valid, don't retry
		return
	}

	if err := cs.conversations.AddTokensUsed(ctx, payload.ConversationId, payload.TokensUsed); err != nil {
		cs.logger.Error("Consumer", "Failed to record token usage", map[string]interface{}{
			"conversation_id": payload.ConversationId,
			"error":           err.Error(),
		})
		msg.Nack() // retriable
		return
	}

	msg.Ack()
}
