package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"ai-agent-gateway/internal/constant"
	"ai-agent-gateway/internal/dto"
	"ai-agent-gateway/internal/entity"
	"ai-agent-gateway/internal/pkg/logger"
	"ai-agent-gateway/pkg/agent"
	"ai-agent-gateway/pkg/agentpool"
	"ai-agent-gateway/pkg/events"
	"ai-agent-gateway/pkg/limiter"
	"ai-agent-gateway/pkg/llm"
	natsbus "ai-agent-gateway/pkg/nats"
	"ai-agent-gateway/pkg/responsecache"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// generationTimeout bounds one provider round trip, streaming included.
const generationTimeout = 2 * time.Minute

// EventSink delivers gateway events back to connected clients. The websocket
// hub implements it; tests substitute a recorder.
type EventSink interface {
	SendToUser(userId uuid.UUID, event interface{})
	BroadcastRoom(room string, event interface{})
}

// IGatewayService routes validated user messages to agent engines and fans
// the results back out. Messages within one conversation are processed
// strictly in arrival order; distinct conversations run concurrently.
type IGatewayService interface {
	EnqueueUserMessage(userId, sessionId uuid.UUID, agentId string, request *dto.UserMessageRequest, sink EventSink)
	// CancelInflight aborts every in-flight generation started from one
	// websocket session. Called on that session's disconnect; the user's
	// other connections are untouched. Safe with nothing in flight.
	CancelInflight(sessionId uuid.UUID)
}

type gatewayService struct {
	conversations IConversationService
	subscriptions ISubscriptionService
	pool          *agentpool.Pool
	cache         *responsecache.Cache
	limiter       limiter.Limiter
	pubSub        *gochannel.GoChannel
	usageTopic    string
	eventBus      *natsbus.Publisher
	logger        logger.ILogger

	dispatcher *dispatcher
	inflight   *inflightRegistry
}

func NewGatewayService(
	conversations IConversationService,
	subscriptions ISubscriptionService,
	pool *agentpool.Pool,
	cache *responsecache.Cache,
	usageLimiter limiter.Limiter,
	pubSub *gochannel.GoChannel,
	usageTopic string,
	eventBus *natsbus.Publisher,
	log logger.ILogger,
) IGatewayService {
	return &gatewayService{
		conversations: conversations,
		subscriptions: subscriptions,
		pool:          pool,
		cache:         cache,
		limiter:       usageLimiter,
		pubSub:        pubSub,
		usageTopic:    usageTopic,
		eventBus:      eventBus,
		logger:        log,
		dispatcher:    newDispatcher(),
		inflight:      newInflightRegistry(),
	}
}

func (gs *gatewayService) EnqueueUserMessage(userId, sessionId uuid.UUID, agentId string, request *dto.UserMessageRequest, sink EventSink) {
	// New conversations have no ordering constraint yet; give them a
	// private queue key so they never block an existing conversation.
	key := uuid.New()
	if request.ConversationId != nil {
		key = *request.ConversationId
	}

	gs.dispatcher.enqueue(key, func() {
		gs.process(userId, sessionId, agentId, request, sink)
	})
}

func (gs *gatewayService) CancelInflight(sessionId uuid.UUID) {
	gs.inflight.cancelAll(sessionId)
}

func (gs *gatewayService) process(userId, sessionId uuid.UUID, agentId string, request *dto.UserMessageRequest, sink EventSink) {
	ctx, cancel := context.WithTimeout(context.Background(), generationTimeout)
	jobId := gs.inflight.register(sessionId, cancel)
	defer gs.inflight.unregister(sessionId, jobId)
	defer cancel()

	if allowed, err := gs.subscriptions.CanUseAgentChat(ctx, userId); err != nil || !allowed {
		if err != nil {
			gs.logger.Error("Gateway", "Entitlement check failed", map[string]interface{}{"user_id": userId, "error": err.Error()})
		}
		sink.SendToUser(userId, dto.ErrorEvent{
			Type:    "error",
			Kind:    dto.ErrorKindQuotaExceeded,
			Message: "Agent chat is not available on your current plan.",
		})
		return
	}

	decision, err := gs.limiter.CheckAndReserve(ctx, userId)
	if err != nil {
		// Limiter backend down: fail open, never block chat on quota
		// accounting.
		gs.logger.Warn("Gateway", "Limiter unavailable, allowing request", map[string]interface{}{"user_id": userId, "error": err.Error()})
		decision = &limiter.Decision{Allowed: true}
	}
	if !decision.Allowed {
		sink.SendToUser(userId, dto.ErrorEvent{
			Type:    "error",
			Kind:    dto.ErrorKindQuotaExceeded,
			Message: (&dto.LimitExceededError{Limit: decision.Limit, RetryAfter: decision.RetryAfter}).Error(),
		})
		return
	}

	engine, err := gs.pool.Acquire(agentId)
	if err != nil {
		gs.logger.Warn("Gateway", "Agent acquisition failed", map[string]interface{}{"agent_id": agentId, "error": err.Error()})
		sink.SendToUser(userId, dto.ErrorEvent{
			Type:    "error",
			Kind:    dto.ErrorKindAgentNotFound,
			Message: "The requested agent is not available.",
		})
		return
	}

	conversation, err := gs.conversations.GetOrCreate(ctx, userId, agentId, request.ConversationId, request.Message)
	if err != nil {
		gs.logger.Error("Gateway", "Conversation resolution failed", map[string]interface{}{"user_id": userId, "error": err.Error()})
		sink.SendToUser(userId, dto.ErrorEvent{
			Type:    "error",
			Kind:    dto.ErrorKindInvalidInput,
			Message: "Conversation not found.",
		})
		return
	}

	history, err := gs.conversations.RecentMessages(ctx, conversation.Id, constant.ContextWindowMessages*2)
	if err != nil {
		gs.logger.Warn("Gateway", "History load failed, continuing without it", map[string]interface{}{"conversation_id": conversation.Id, "error": err.Error()})
		history = nil
	}

	userMessage, err := gs.conversations.AppendMessage(ctx, conversation.Id, constant.MessageRoleUser, request.Message, 0, false)
	if err != nil {
		gs.logger.Error("Gateway", "User message persistence failed", map[string]interface{}{"conversation_id": conversation.Id, "error": err.Error()})
		sink.SendToUser(userId, dto.ErrorEvent{
			Type:    "error",
			Kind:    dto.ErrorKindProviderUnavailable,
			Message: "Could not record your message. Please try again.",
		})
		return
	}
	gs.publishDomainEvent(ctx, events.NewMessageCreated(conversation.Id, userMessage.Id, agentId, constant.MessageRoleUser, 0))

	sink.SendToUser(userId, dto.AgentTypingEvent{Type: "agent_typing", AgentId: agentId})

	descriptor := engine.Descriptor()
	contextMessages := engine.BuildMessages(conversation.Id.String(), historyToLLM(history), request.Message)

	canStream, _ := gs.subscriptions.CanStream(ctx, userId)
	if descriptor.Streaming() && canStream {
		gs.generateStreaming(ctx, userId, conversation.Id, engine, request.Message, contextMessages, sink)
		return
	}

	// The cache serves the non-streaming path only; a replayed cached reply
	// would arrive as one message where the client expects chunks.
	cacheKey := responsecache.Key(descriptor.Provider, descriptor.Model, contextMessages)
	if cached, hit := gs.cache.Get(cacheKey); hit {
		gs.deliverReply(ctx, userId, conversation.Id, engine, request.Message, cached, sink)
		return
	}

	result, err := gs.generateOnce(ctx, engine, contextMessages, descriptor.Params())
	if err != nil {
		gs.sendProviderError(userId, agentId, err, sink)
		return
	}

	result.Content = engine.Decorate(result.Content)
	gs.cache.Put(cacheKey, result, 0)
	gs.deliverReply(ctx, userId, conversation.Id, engine, request.Message, result, sink)
}

// generateOnce calls the provider, retrying a single time after a short
// backoff when the failure is transient.
func (gs *gatewayService) generateOnce(ctx context.Context, engine *agent.Engine, messages []llm.Message, params llm.Params) (*llm.Result, error) {
	result, err := engine.Provider().Generate(ctx, messages, params)
	if err != nil && llm.IsTransient(err) && ctx.Err() == nil {
		time.Sleep(constant.TransientRetryBackoff)
		result, err = engine.Provider().Generate(ctx, messages, params)
	}
	return result, err
}

func (gs *gatewayService) generateStreaming(ctx context.Context, userId, conversationId uuid.UUID, engine *agent.Engine, userMessage string, messages []llm.Message, sink EventSink) {
	descriptor := engine.Descriptor()
	started := time.Now()

	stream, err := engine.Provider().GenerateStream(ctx, messages, descriptor.Params())
	if err != nil && llm.IsTransient(err) && ctx.Err() == nil {
		time.Sleep(constant.TransientRetryBackoff)
		stream, err = engine.Provider().GenerateStream(ctx, messages, descriptor.Params())
	}
	if err != nil {
		gs.sendProviderError(userId, descriptor.AgentID, err, sink)
		return
	}

	var reply strings.Builder
	for delta := range stream.Deltas() {
		reply.WriteString(delta)
		sink.SendToUser(userId, dto.AgentMessageChunkEvent{
			Type:           "agent_message_chunk",
			Chunk:          delta,
			AgentId:        descriptor.AgentID,
			ConversationId: conversationId,
		})
	}

	if streamErr := stream.Err(); streamErr != nil {
		if ctx.Err() != nil || reply.Len() > 0 {
			// Interrupted mid-stream: keep what the user already saw.
			gs.persistPartial(userId, conversationId, descriptor.AgentID, reply.String(), sink)
			return
		}
		gs.sendProviderError(userId, descriptor.AgentID, streamErr, sink)
		return
	}

	result := &llm.Result{
		Content:    engine.Decorate(reply.String()),
		TokensUsed: estimateTokens(reply.String()),
		LatencyMs:  time.Since(started).Milliseconds(),
	}
	gs.deliverStreamed(ctx, userId, conversationId, engine, userMessage, result, sink)
}

// deliverReply persists a complete agent reply and emits it as one message.
func (gs *gatewayService) deliverReply(ctx context.Context, userId, conversationId uuid.UUID, engine *agent.Engine, userMessage string, result *llm.Result, sink EventSink) {
	agentId := engine.Descriptor().AgentID

	persisted, err := gs.conversations.AppendMessage(ctx, conversationId, constant.MessageRoleAgent, result.Content, result.TokensUsed, false)
	if err != nil {
		gs.logger.Error("Gateway", "Agent message persistence failed", map[string]interface{}{"conversation_id": conversationId, "error": err.Error()})
		sink.SendToUser(userId, dto.ErrorEvent{
			Type:    "error",
			Kind:    dto.ErrorKindPartialFailure,
			Message: "The reply was generated but could not be saved.",
		})
		return
	}

	engine.Remember(conversationId.String(), userMessage, result.Content)
	gs.publishUsage(conversationId, persisted.Id, agentId, result.TokensUsed)
	gs.publishDomainEvent(ctx, events.NewMessageCreated(conversationId, persisted.Id, agentId, constant.MessageRoleAgent, result.TokensUsed))

	sink.SendToUser(userId, dto.AgentMessageEvent{
		Type:           "agent_message",
		Message:        result.Content,
		MessageId:      persisted.Id,
		ConversationId: conversationId,
		Timestamp:      persisted.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// deliverStreamed persists a fully streamed reply and emits the completion
// marker; the content already reached the client chunk by chunk.
func (gs *gatewayService) deliverStreamed(ctx context.Context, userId, conversationId uuid.UUID, engine *agent.Engine, userMessage string, result *llm.Result, sink EventSink) {
	agentId := engine.Descriptor().AgentID

	persisted, err := gs.conversations.AppendMessage(ctx, conversationId, constant.MessageRoleAgent, result.Content, result.TokensUsed, false)
	if err != nil {
		gs.logger.Error("Gateway", "Streamed message persistence failed", map[string]interface{}{"conversation_id": conversationId, "error": err.Error()})
		sink.SendToUser(userId, dto.ErrorEvent{
			Type:    "error",
			Kind:    dto.ErrorKindPartialFailure,
			Message: "The reply was generated but could not be saved.",
		})
		return
	}

	engine.Remember(conversationId.String(), userMessage, result.Content)
	gs.publishUsage(conversationId, persisted.Id, agentId, result.TokensUsed)
	gs.publishDomainEvent(ctx, events.NewMessageCreated(conversationId, persisted.Id, agentId, constant.MessageRoleAgent, result.TokensUsed))

	sink.SendToUser(userId, dto.AgentMessageCompleteEvent{
		Type:           "agent_message_complete",
		MessageId:      persisted.Id,
		ConversationId: conversationId,
		Timestamp:      persisted.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// persistPartial saves whatever content was streamed before interruption.
// Uses a fresh context: the generation context is already dead.
func (gs *gatewayService) persistPartial(userId, conversationId uuid.UUID, agentId, content string, sink EventSink) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if content != "" {
		if _, err := gs.conversations.AppendMessage(ctx, conversationId, constant.MessageRoleAgent, content, 0, true); err != nil {
			gs.logger.Error("Gateway", "Partial message persistence failed", map[string]interface{}{"conversation_id": conversationId, "error": err.Error()})
		}
	}
	gs.publishDomainEvent(ctx, events.NewStreamCancelled(conversationId, agentId))

	sink.SendToUser(userId, dto.ErrorEvent{
		Type:    "error",
		Kind:    dto.ErrorKindPartialFailure,
		Message: "The response was interrupted before completion.",
	})
}

func (gs *gatewayService) sendProviderError(userId uuid.UUID, agentId string, err error, sink EventSink) {
	kind := dto.ErrorKindProviderUnavailable
	msg := "The agent could not respond. Please try again."

	switch {
	case llm.IsQuota(err):
		kind = dto.ErrorKindQuotaExceeded
		msg = "The agent's provider is over capacity. Please try again later."
	case llm.IsInvalidRequest(err):
		kind = dto.ErrorKindProviderRejected
		msg = "The agent's provider rejected this request."
	}

	gs.logger.Warn("Gateway", "Provider call failed", map[string]interface{}{"agent_id": agentId, "kind": kind, "error": err.Error()})
	sink.SendToUser(userId, dto.ErrorEvent{Type: "error", Kind: kind, Message: msg})
}

func (gs *gatewayService) publishUsage(conversationId, messageId uuid.UUID, agentId string, tokensUsed int) {
	if gs.pubSub == nil || tokensUsed == 0 {
		return
	}
	payload, err := json.Marshal(dto.TokenUsageMessage{
		ConversationId: conversationId,
		MessageId:      messageId,
		AgentId:        agentId,
		TokensUsed:     tokensUsed,
	})
	if err != nil {
		return
	}
	if err := gs.pubSub.Publish(gs.usageTopic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		gs.logger.Warn("Gateway", "Usage publish failed", map[string]interface{}{"conversation_id": conversationId, "error": err.Error()})
	}
}

func (gs *gatewayService) publishDomainEvent(ctx context.Context, event events.Event) {
	if gs.eventBus == nil {
		return
	}
	if err := gs.eventBus.Publish(ctx, event); err != nil {
		gs.logger.Warn("Gateway", "Event publish failed", map[string]interface{}{"event": event.EventType(), "error": err.Error()})
	}
}

// estimateTokens approximates usage for streamed replies. Backends do not
// report token counts on the delta path, so conversation totals use the
// common four-characters-per-token approximation.
func estimateTokens(content string) int {
	return (len(content) + 3) / 4
}

// historyToLLM maps persisted messages onto provider roles. Partial rows
// are included: the user saw that content.
func historyToLLM(history []*entity.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Role == constant.MessageRoleAgent {
			role = "assistant"
		} else if m.Role == constant.MessageRoleSystem {
			role = "system"
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}
