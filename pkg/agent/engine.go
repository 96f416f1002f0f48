package agent

import (
	"sync"

	"ai-agent-gateway/pkg/llm"
)

// memoryWindow bounds the per-conversation short-term memory to the last
// N exchanges (user+agent pairs). Dropping it is always safe: durable
// history lives in the conversation store, not here.
const memoryWindow = 10

const safetyDisclaimer = "\n\n---\nThis response is AI-generated and may contain inaccuracies. Please verify important information."

// Engine is a live instance of one agent persona. Engines are stateless
// across conversations except for the bounded short-term memory window.
type Engine struct {
	descriptor *Descriptor
	provider   llm.Provider

	mu     sync.Mutex
	memory map[string][]llm.Message // conversationID -> recent messages
}

func NewEngine(descriptor *Descriptor, provider llm.Provider) *Engine {
	return &Engine{
		descriptor: descriptor,
		provider:   provider,
		memory:     make(map[string][]llm.Message),
	}
}

func (e *Engine) Descriptor() *Descriptor { return e.descriptor }
func (e *Engine) Provider() llm.Provider  { return e.provider }

// BuildMessages assembles the provider payload: system prompt, context
// window, then the new user message. history comes from the conversation
// store; when it is empty (store degraded) the in-memory window fills in.
func (e *Engine) BuildMessages(conversationID string, history []llm.Message, userMessage string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: e.descriptor.SystemPrompt})

	if e.descriptor.MemoryEnabled {
		if len(history) == 0 {
			history = e.Window(conversationID)
		}
		messages = append(messages, history...)
	}

	messages = append(messages, llm.Message{Role: "user", Content: userMessage})
	return messages
}

// Remember records one completed exchange in the short-term window.
func (e *Engine) Remember(conversationID, userMessage, reply string) {
	if !e.descriptor.MemoryEnabled {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	window := append(e.memory[conversationID],
		llm.Message{Role: "user", Content: userMessage},
		llm.Message{Role: "assistant", Content: reply},
	)
	if max := memoryWindow * 2; len(window) > max {
		window = window[len(window)-max:]
	}
	e.memory[conversationID] = window
}

// Window returns a copy of the short-term memory for a conversation.
func (e *Engine) Window(conversationID string) []llm.Message {
	e.mu.Lock()
	defer e.mu.Unlock()

	window := e.memory[conversationID]
	out := make([]llm.Message, len(window))
	copy(out, window)
	return out
}

// Decorate applies behavior-tagged post-processing to a completed reply.
func (e *Engine) Decorate(content string) string {
	if e.descriptor.HasBehavior(BehaviorSafetyDisclaimer) {
		return content + safetyDisclaimer
	}
	return content
}
