package llm

import (
	"context"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Params carries the generation parameters for a single request.
// Zero values mean "use the provider default".
type Params struct {
	Model            string
	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

// Result is a completed (non-streaming) generation.
type Result struct {
	Content    string `json:"content"`
	TokensUsed int    `json:"tokens_used"`
	LatencyMs  int64  `json:"latency_ms"`
}

// Provider defines the contract for any text-generation backend.
// The router never branches on the concrete backend; errors are normalized
// via the taxonomy in errors.go.
type Provider interface {
	// Generate sends the full chat history and returns the complete response.
	Generate(ctx context.Context, messages []Message, params Params) (*Result, error)

	// GenerateStream returns a stream of text deltas. The caller must drain
	// the stream or Close it; Close releases backend resources.
	GenerateStream(ctx context.Context, messages []Message, params Params) (*Stream, error)
}
