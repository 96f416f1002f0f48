package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ai-agent-gateway/internal/dto"
	"ai-agent-gateway/internal/entity"
	"ai-agent-gateway/pkg/agent"
	"ai-agent-gateway/pkg/agentpool"
	"ai-agent-gateway/pkg/limiter"
	"ai-agent-gateway/pkg/llm"
	"ai-agent-gateway/pkg/responsecache"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- test doubles ---

type noopLogger struct{}

func (noopLogger) Debug(string, string, map[string]interface{}) {}
func (noopLogger) Info(string, string, map[string]interface{})  {}
func (noopLogger) Warn(string, string, map[string]interface{})  {}
func (noopLogger) Error(string, string, map[string]interface{}) {}
func (noopLogger) Sync() error                                  { return nil }

type memoryConversations struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*entity.Conversation
	messages      map[uuid.UUID][]*entity.Message
}

func newMemoryConversations() *memoryConversations {
	return &memoryConversations{
		conversations: make(map[uuid.UUID]*entity.Conversation),
		messages:      make(map[uuid.UUID][]*entity.Message),
	}
}

func (m *memoryConversations) GetOrCreate(ctx context.Context, userId uuid.UUID, agentId string, conversationId *uuid.UUID, firstMessage string) (*entity.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conversationId != nil {
		c, ok := m.conversations[*conversationId]
		if !ok {
			return nil, fmt.Errorf("conversation %s not found", *conversationId)
		}
		return c, nil
	}

	c := &entity.Conversation{
		Id:        uuid.New(),
		UserId:    userId,
		AgentId:   agentId,
		Title:     truncateTitle(firstMessage),
		Status:    entity.ConversationStatusActive,
		CreatedAt: time.Now(),
	}
	m.conversations[c.Id] = c
	return c, nil
}

func (m *memoryConversations) AppendMessage(ctx context.Context, conversationId uuid.UUID, role, content string, tokensUsed int, partial bool) (*entity.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := &entity.Message{
		Id:             uuid.New(),
		ConversationId: conversationId,
		Role:           role,
		Content:        content,
		TokensUsed:     tokensUsed,
		Partial:        partial,
		Sequence:       int64(len(m.messages[conversationId]) + 1),
		CreatedAt:      time.Now(),
	}
	m.messages[conversationId] = append(m.messages[conversationId], msg)
	return msg, nil
}

func (m *memoryConversations) RecentMessages(ctx context.Context, conversationId uuid.UUID, limit int) ([]*entity.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.messages[conversationId]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]*entity.Message, len(all))
	copy(out, all)
	return out, nil
}

func (m *memoryConversations) ListConversations(ctx context.Context, userId uuid.UUID) ([]*dto.ConversationResponse, error) {
	return nil, nil
}

func (m *memoryConversations) GetHistory(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) ([]*dto.MessageResponse, error) {
	return nil, nil
}

func (m *memoryConversations) Archive(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) error {
	return nil
}

func (m *memoryConversations) AddTokensUsed(ctx context.Context, conversationId uuid.UUID, tokens int) error {
	return nil
}

func (m *memoryConversations) messagesOf(conversationId uuid.UUID) []*entity.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.Message, len(m.messages[conversationId]))
	copy(out, m.messages[conversationId])
	return out
}

func (m *memoryConversations) onlyConversation(t *testing.T) *entity.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	require.Len(t, m.conversations, 1)
	for _, c := range m.conversations {
		return c
	}
	return nil
}

type stubSubscriptions struct {
	limit     int
	active    bool
	agentChat bool
	streaming bool
}

func (s *stubSubscriptions) GetUsageLimit(ctx context.Context, userId uuid.UUID) (int, error) {
	return s.limit, nil
}
func (s *stubSubscriptions) IsActive(ctx context.Context, userId uuid.UUID) (bool, error) {
	return s.active, nil
}
func (s *stubSubscriptions) CanUseAgentChat(ctx context.Context, userId uuid.UUID) (bool, error) {
	return s.active && s.agentChat, nil
}
func (s *stubSubscriptions) CanStream(ctx context.Context, userId uuid.UUID) (bool, error) {
	return s.active && s.streaming, nil
}

// scriptedProvider plays back queued errors, then succeeds.
type scriptedProvider struct {
	mu     sync.Mutex
	calls  int
	errs   []error
	reply  string
	tokens int

	streamDeltas []string
	streamHold   bool // keep the stream open until cancelled
}

func (p *scriptedProvider) nextErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		return err
	}
	return nil
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *scriptedProvider) Generate(ctx context.Context, messages []llm.Message, params llm.Params) (*llm.Result, error) {
	if err := p.nextErr(); err != nil {
		return nil, err
	}
	return &llm.Result{Content: p.reply, TokensUsed: p.tokens, LatencyMs: 1}, nil
}

func (p *scriptedProvider) GenerateStream(ctx context.Context, messages []llm.Message, params llm.Params) (*llm.Stream, error) {
	if err := p.nextErr(); err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream := llm.NewStream(cancel)
	go func() {
		for _, delta := range p.streamDeltas {
			if !stream.Send(streamCtx, delta) {
				stream.Finish(streamCtx.Err())
				return
			}
		}
		if p.streamHold {
			<-streamCtx.Done()
			stream.Finish(streamCtx.Err())
			return
		}
		stream.Finish(nil)
	}()
	return stream, nil
}

type recorderSink struct {
	events chan interface{}
}

func newRecorderSink() *recorderSink {
	return &recorderSink{events: make(chan interface{}, 64)}
}

func (r *recorderSink) SendToUser(userId uuid.UUID, event interface{}) { r.events <- event }
func (r *recorderSink) BroadcastRoom(room string, event interface{})   { r.events <- event }

func (r *recorderSink) next(t *testing.T) interface{} {
	t.Helper()
	select {
	case e := <-r.events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

// --- fixture ---

type gatewayFixture struct {
	service       IGatewayService
	conversations *memoryConversations
	provider      *scriptedProvider
	sink          *recorderSink
	subs          *stubSubscriptions
	session       uuid.UUID
}

func newGatewayFixture(t *testing.T, descriptor *agent.Descriptor, provider *scriptedProvider) *gatewayFixture {
	t.Helper()

	conversations := newMemoryConversations()
	subs := &stubSubscriptions{limit: 100, active: true, agentChat: true, streaming: true}
	pool := agentpool.New(4, func(agentID string) (*agent.Engine, error) {
		return agent.NewEngine(descriptor, provider), nil
	})
	cache := responsecache.New(time.Minute)
	usageLimiter := limiter.NewMemoryLimiter(subs)

	svc := NewGatewayService(
		conversations,
		subs,
		pool,
		cache,
		usageLimiter,
		nil, // pub/sub wired only in the full container
		"TOKEN_USAGE",
		nil, // nats likewise
		noopLogger{},
	)

	return &gatewayFixture{
		service:       svc,
		conversations: conversations,
		provider:      provider,
		sink:          newRecorderSink(),
		subs:          subs,
		session:       uuid.New(),
	}
}

func plainDescriptor(behaviors ...string) *agent.Descriptor {
	return &agent.Descriptor{
		AgentID:       "neochat",
		Name:          "NeoChat",
		Provider:      "openai",
		Model:         "gpt-4o-mini",
		SystemPrompt:  "You are NeoChat.",
		MaxTokens:     100,
		MemoryEnabled: true,
		Behaviors:     behaviors,
	}
}

// --- tests ---

func TestUserMessageProducesAgentReply(t *testing.T) {
	provider := &scriptedProvider{reply: "Hi! How can I help?", tokens: 9}
	f := newGatewayFixture(t, plainDescriptor(), provider)
	userId := uuid.New()

	f.service.EnqueueUserMessage(userId, f.session, "neochat", &dto.UserMessageRequest{Message: "Hello"}, f.sink)

	typing, ok := f.sink.next(t).(dto.AgentTypingEvent)
	require.True(t, ok, "first event must be agent_typing")
	assert.Equal(t, "neochat", typing.AgentId)

	reply, ok := f.sink.next(t).(dto.AgentMessageEvent)
	require.True(t, ok, "second event must be agent_message")
	assert.Equal(t, "Hi! How can I help?", reply.Message)

	conversation := f.conversations.onlyConversation(t)
	assert.Equal(t, "Hello", conversation.Title)

	messages := f.conversations.messagesOf(conversation.Id)
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "Hello", messages[0].Content)
	assert.Equal(t, "agent", messages[1].Role)
	assert.Equal(t, "Hi! How can I help?", messages[1].Content)
	assert.False(t, messages[1].Partial)

	assert.Equal(t, 1, provider.callCount())
}

func TestIdenticalPromptServedFromCache(t *testing.T) {
	provider := &scriptedProvider{reply: "cached answer", tokens: 3}
	descriptor := plainDescriptor()
	descriptor.MemoryEnabled = false // identical context across conversations
	f := newGatewayFixture(t, descriptor, provider)
	userId := uuid.New()

	f.service.EnqueueUserMessage(userId, f.session, "neochat", &dto.UserMessageRequest{Message: "Hello"}, f.sink)
	f.sink.next(t) // typing
	first, ok := f.sink.next(t).(dto.AgentMessageEvent)
	require.True(t, ok)

	f.service.EnqueueUserMessage(userId, f.session, "neochat", &dto.UserMessageRequest{Message: "Hello"}, f.sink)
	f.sink.next(t) // typing
	second, ok := f.sink.next(t).(dto.AgentMessageEvent)
	require.True(t, ok)

	assert.Equal(t, first.Message, second.Message)
	assert.NotEqual(t, first.ConversationId, second.ConversationId)
	assert.Equal(t, 1, provider.callCount(), "second reply must come from cache")
}

func TestQuotaDenialShortCircuitsProvider(t *testing.T) {
	provider := &scriptedProvider{reply: "ok"}
	f := newGatewayFixture(t, plainDescriptor(), provider)
	f.subs.limit = 1
	userId := uuid.New()

	f.service.EnqueueUserMessage(userId, f.session, "neochat", &dto.UserMessageRequest{Message: "first"}, f.sink)
	f.sink.next(t) // typing
	f.sink.next(t) // agent_message

	f.service.EnqueueUserMessage(userId, f.session, "neochat", &dto.UserMessageRequest{Message: "second"}, f.sink)

	errEvent, ok := f.sink.next(t).(dto.ErrorEvent)
	require.True(t, ok, "denied request must produce an error event")
	assert.Equal(t, dto.ErrorKindQuotaExceeded, errEvent.Kind)

	assert.Equal(t, 1, provider.callCount(), "denied request must never reach the provider")
}

func TestTransientFailureRetriedOnce(t *testing.T) {
	provider := &scriptedProvider{
		reply: "recovered",
		errs:  []error{&llm.TransientError{Provider: "openai", Err: fmt.Errorf("upstream 502")}},
	}
	f := newGatewayFixture(t, plainDescriptor(), provider)

	f.service.EnqueueUserMessage(uuid.New(), f.session, "neochat", &dto.UserMessageRequest{Message: "Hello"}, f.sink)
	f.sink.next(t) // typing

	reply, ok := f.sink.next(t).(dto.AgentMessageEvent)
	require.True(t, ok, "transient failure must be retried into success")
	assert.Equal(t, "recovered", reply.Message)
	assert.Equal(t, 2, provider.callCount())
}

func TestTransientFailureTwiceSurfacesError(t *testing.T) {
	provider := &scriptedProvider{
		reply: "never",
		errs: []error{
			&llm.TransientError{Provider: "openai", Err: fmt.Errorf("upstream 502")},
			&llm.TransientError{Provider: "openai", Err: fmt.Errorf("upstream 502")},
		},
	}
	f := newGatewayFixture(t, plainDescriptor(), provider)

	f.service.EnqueueUserMessage(uuid.New(), f.session, "neochat", &dto.UserMessageRequest{Message: "Hello"}, f.sink)
	f.sink.next(t) // typing

	errEvent, ok := f.sink.next(t).(dto.ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, dto.ErrorKindProviderUnavailable, errEvent.Kind)
	assert.Equal(t, 2, provider.callCount(), "exactly one retry")
}

func TestInvalidRequestNotRetried(t *testing.T) {
	provider := &scriptedProvider{
		reply: "never",
		errs:  []error{&llm.InvalidRequestError{Provider: "openai", Err: fmt.Errorf("bad model")}},
	}
	f := newGatewayFixture(t, plainDescriptor(), provider)

	f.service.EnqueueUserMessage(uuid.New(), f.session, "neochat", &dto.UserMessageRequest{Message: "Hello"}, f.sink)
	f.sink.next(t) // typing

	errEvent, ok := f.sink.next(t).(dto.ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, dto.ErrorKindProviderRejected, errEvent.Kind)
	assert.Equal(t, 1, provider.callCount())
}

func TestStreamingDeliversChunksThenComplete(t *testing.T) {
	provider := &scriptedProvider{streamDeltas: []string{"Hel", "lo ", "world"}}
	f := newGatewayFixture(t, plainDescriptor(agent.BehaviorStreaming), provider)
	userId := uuid.New()

	f.service.EnqueueUserMessage(userId, f.session, "neochat", &dto.UserMessageRequest{Message: "Hello"}, f.sink)
	f.sink.next(t) // typing

	var streamed string
	for {
		event := f.sink.next(t)
		if chunk, ok := event.(dto.AgentMessageChunkEvent); ok {
			streamed += chunk.Chunk
			continue
		}
		complete, ok := event.(dto.AgentMessageCompleteEvent)
		require.True(t, ok, "stream must end with agent_message_complete, got %T", event)
		assert.NotEqual(t, uuid.Nil, complete.MessageId)
		break
	}
	assert.Equal(t, "Hello world", streamed)

	conversation := f.conversations.onlyConversation(t)
	messages := f.conversations.messagesOf(conversation.Id)
	require.Len(t, messages, 2)
	assert.Equal(t, "Hello world", messages[1].Content)
	assert.False(t, messages[1].Partial)
	assert.Greater(t, messages[1].TokensUsed, 0, "streamed usage is estimated, not dropped")
}

func TestDisconnectMidStreamPersistsPartial(t *testing.T) {
	provider := &scriptedProvider{streamDeltas: []string{"partial ", "answer"}, streamHold: true}
	f := newGatewayFixture(t, plainDescriptor(agent.BehaviorStreaming), provider)
	userId := uuid.New()

	f.service.EnqueueUserMessage(userId, f.session, "neochat", &dto.UserMessageRequest{Message: "Hello"}, f.sink)
	f.sink.next(t) // typing

	// Wait until both deltas reached the client.
	for received := 0; received < 2; {
		if _, ok := f.sink.next(t).(dto.AgentMessageChunkEvent); ok {
			received++
		}
	}

	f.service.CancelInflight(f.session)

	errEvent, ok := f.sink.next(t).(dto.ErrorEvent)
	require.True(t, ok, "interrupted stream must surface an error event")
	assert.Equal(t, dto.ErrorKindPartialFailure, errEvent.Kind)

	conversation := f.conversations.onlyConversation(t)
	messages := f.conversations.messagesOf(conversation.Id)
	require.Len(t, messages, 2)
	assert.Equal(t, "partial answer", messages[1].Content)
	assert.True(t, messages[1].Partial, "interrupted reply must be flagged partial")
}

func TestInactivePlanBlocksChat(t *testing.T) {
	provider := &scriptedProvider{reply: "never"}
	f := newGatewayFixture(t, plainDescriptor(), provider)
	f.subs.active = false

	f.service.EnqueueUserMessage(uuid.New(), f.session, "neochat", &dto.UserMessageRequest{Message: "Hello"}, f.sink)

	errEvent, ok := f.sink.next(t).(dto.ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, dto.ErrorKindQuotaExceeded, errEvent.Kind)
	assert.Equal(t, 0, provider.callCount())
}

func TestMessagesWithinConversationStaySequential(t *testing.T) {
	provider := &scriptedProvider{reply: "ack", tokens: 1}
	f := newGatewayFixture(t, plainDescriptor(), provider)
	userId := uuid.New()

	// Seed a conversation first.
	f.service.EnqueueUserMessage(userId, f.session, "neochat", &dto.UserMessageRequest{Message: "seed"}, f.sink)
	f.sink.next(t)
	f.sink.next(t)
	conversation := f.conversations.onlyConversation(t)

	for i := 0; i < 5; i++ {
		msg := fmt.Sprintf("msg-%d", i)
		f.service.EnqueueUserMessage(userId, f.session, "neochat", &dto.UserMessageRequest{
			Message:        msg,
			ConversationId: &conversation.Id,
		}, f.sink)
	}
	// Drain typing+reply for each of the 5 messages.
	for i := 0; i < 10; i++ {
		f.sink.next(t)
	}

	messages := f.conversations.messagesOf(conversation.Id)
	require.Len(t, messages, 12)

	// User messages must appear in submission order.
	var userContents []string
	for _, m := range messages {
		if m.Role == "user" && m.Content != "seed" {
			userContents = append(userContents, m.Content)
		}
	}
	require.Len(t, userContents, 5)
	for i, content := range userContents {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), content)
	}
}

func TestStreamingBypassesResponseCache(t *testing.T) {
	provider := &scriptedProvider{streamDeltas: []string{"str", "eamed"}}
	descriptor := plainDescriptor(agent.BehaviorStreaming)
	descriptor.MemoryEnabled = false // identical context on both requests
	f := newGatewayFixture(t, descriptor, provider)
	userId := uuid.New()

	for i := 0; i < 2; i++ {
		f.service.EnqueueUserMessage(userId, f.session, "neochat", &dto.UserMessageRequest{Message: "Hello"}, f.sink)
		f.sink.next(t) // typing

		var streamed string
		for {
			event := f.sink.next(t)
			if chunk, ok := event.(dto.AgentMessageChunkEvent); ok {
				streamed += chunk.Chunk
				continue
			}
			_, ok := event.(dto.AgentMessageCompleteEvent)
			require.True(t, ok, "request %d must be delivered chunked, got %T", i+1, event)
			break
		}
		assert.Equal(t, "streamed", streamed)
	}

	assert.Equal(t, 2, provider.callCount(), "identical streaming requests must both reach the provider")
}

func TestCancelScopedToSession(t *testing.T) {
	provider := &scriptedProvider{streamDeltas: []string{"he", "llo"}, streamHold: true}
	f := newGatewayFixture(t, plainDescriptor(agent.BehaviorStreaming), provider)
	userId := uuid.New()
	tabA := uuid.New()
	tabB := uuid.New()

	f.service.EnqueueUserMessage(userId, tabA, "neochat", &dto.UserMessageRequest{Message: "from tab A"}, f.sink)
	f.service.EnqueueUserMessage(userId, tabB, "neochat", &dto.UserMessageRequest{Message: "from tab B"}, f.sink)

	// Wait until both streams delivered their deltas and are holding open.
	for chunks := 0; chunks < 4; {
		if _, ok := f.sink.next(t).(dto.AgentMessageChunkEvent); ok {
			chunks++
		}
	}

	f.service.CancelInflight(tabA)

	errEvent, ok := f.sink.next(t).(dto.ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, dto.ErrorKindPartialFailure, errEvent.Kind)

	// The same user's other session must keep streaming.
	select {
	case event := <-f.sink.events:
		t.Fatalf("cancelling one session disturbed another: %#v", event)
	case <-time.After(100 * time.Millisecond):
	}

	f.service.CancelInflight(tabB)
	errEvent, ok = f.sink.next(t).(dto.ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, dto.ErrorKindPartialFailure, errEvent.Kind)
}
