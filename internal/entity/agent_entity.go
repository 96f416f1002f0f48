package entity

import (
	"time"

	"github.com/google/uuid"
)

// Agent is the persisted form of an agent persona descriptor. Read-only at
// runtime; edits happen through external admin tooling.
type Agent struct {
	Id           uuid.UUID
	AgentId      string
	Name         string
	Provider     string
	ModelId      string
	SystemPrompt string

	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64

	MemoryEnabled bool
	Behaviors     []string
	IsActive      bool
	CreatedAt     time.Time
}
