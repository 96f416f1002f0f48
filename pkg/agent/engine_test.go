package agent

import (
	"fmt"
	"testing"

	"ai-agent-gateway/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDescriptor(behaviors ...string) *Descriptor {
	return &Descriptor{
		AgentID:       "neochat",
		Name:          "NeoChat",
		Provider:      "openai",
		Model:         "gpt-4o-mini",
		SystemPrompt:  "You are NeoChat.",
		MemoryEnabled: true,
		Behaviors:     behaviors,
	}
}

func TestBuildMessagesOrdering(t *testing.T) {
	engine := NewEngine(testDescriptor(), nil)

	history := []llm.Message{
		{Role: "user", Content: "Hi"},
		{Role: "assistant", Content: "Hello!"},
	}
	messages := engine.BuildMessages("conv-1", history, "What's the weather?")

	require.Len(t, messages, 4)
	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, "You are NeoChat.", messages[0].Content)
	assert.Equal(t, history[0], messages[1])
	assert.Equal(t, history[1], messages[2])
	assert.Equal(t, llm.Message{Role: "user", Content: "What's the weather?"}, messages[3])
}

func TestBuildMessagesFallsBackToWindow(t *testing.T) {
	engine := NewEngine(testDescriptor(), nil)
	engine.Remember("conv-1", "Hi", "Hello!")

	messages := engine.BuildMessages("conv-1", nil, "Again?")

	require.Len(t, messages, 4)
	assert.Equal(t, "Hi", messages[1].Content)
	assert.Equal(t, "Hello!", messages[2].Content)
}

func TestBuildMessagesSkipsHistoryWhenMemoryDisabled(t *testing.T) {
	descriptor := testDescriptor()
	descriptor.MemoryEnabled = false
	engine := NewEngine(descriptor, nil)

	history := []llm.Message{{Role: "user", Content: "old"}}
	messages := engine.BuildMessages("conv-1", history, "new")

	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, "new", messages[1].Content)
}

func TestMemoryWindowIsBounded(t *testing.T) {
	engine := NewEngine(testDescriptor(), nil)

	for i := 0; i < memoryWindow+5; i++ {
		engine.Remember("conv-1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	window := engine.Window("conv-1")
	require.Len(t, window, memoryWindow*2)

	// Oldest surviving exchange is the 6th one.
	assert.Equal(t, "q5", window[0].Content)
	assert.Equal(t, fmt.Sprintf("a%d", memoryWindow+4), window[len(window)-1].Content)
}

func TestWindowsAreIsolatedPerConversation(t *testing.T) {
	engine := NewEngine(testDescriptor(), nil)
	engine.Remember("conv-1", "one", "uno")
	engine.Remember("conv-2", "two", "dos")

	assert.Len(t, engine.Window("conv-1"), 2)
	assert.Len(t, engine.Window("conv-2"), 2)
	assert.Equal(t, "one", engine.Window("conv-1")[0].Content)
}

func TestDecorateAppliesSafetyDisclaimer(t *testing.T) {
	plain := NewEngine(testDescriptor(), nil)
	assert.Equal(t, "answer", plain.Decorate("answer"))

	flagged := NewEngine(testDescriptor(BehaviorSafetyDisclaimer), nil)
	decorated := flagged.Decorate("answer")
	assert.Contains(t, decorated, "answer")
	assert.Contains(t, decorated, "AI-generated")
}

func TestStreamingBehaviorFlag(t *testing.T) {
	assert.False(t, testDescriptor().Streaming())
	assert.True(t, testDescriptor(BehaviorStreaming).Streaming())
}
