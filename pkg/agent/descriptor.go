package agent

import "ai-agent-gateway/pkg/llm"

// Behavior tags select the small fixed set of engine variants. They replace
// the per-persona subclassing of earlier iterations: personas differ by data,
// not code.
const (
	BehaviorStreaming        = "streaming"
	BehaviorSafetyDisclaimer = "safety_disclaimer"
)

// Descriptor is the read-only configuration for one agent persona.
// Loaded once at startup and shared by every session.
type Descriptor struct {
	AgentID      string `json:"agent_id"`
	Name         string `json:"name"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	SystemPrompt string `json:"system_prompt"` // opaque, assembled upstream

	Temperature      float64 `json:"temperature"`
	MaxTokens        int     `json:"max_tokens"`
	TopP             float64 `json:"top_p"`
	FrequencyPenalty float64 `json:"frequency_penalty"`
	PresencePenalty  float64 `json:"presence_penalty"`

	MemoryEnabled bool     `json:"memory_enabled"`
	Behaviors     []string `json:"behaviors"`
}

// HasBehavior reports whether the descriptor carries the given tag.
func (d *Descriptor) HasBehavior(tag string) bool {
	for _, b := range d.Behaviors {
		if b == tag {
			return true
		}
	}
	return false
}

// Streaming reports whether responses for this agent should be streamed.
func (d *Descriptor) Streaming() bool {
	return d.HasBehavior(BehaviorStreaming)
}

// Params maps the descriptor defaults onto generation parameters.
func (d *Descriptor) Params() llm.Params {
	return llm.Params{
		Model:            d.Model,
		Temperature:      d.Temperature,
		MaxTokens:        d.MaxTokens,
		TopP:             d.TopP,
		FrequencyPenalty: d.FrequencyPenalty,
		PresencePenalty:  d.PresencePenalty,
	}
}
