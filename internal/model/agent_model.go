package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Agent struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey"`
	AgentId      string    `gorm:"uniqueIndex"`
	Name         string
	Provider     string
	ModelId      string
	SystemPrompt string `gorm:"type:text"`

	Temperature      float64 `gorm:"default:0.7"`
	MaxTokens        int     `gorm:"default:1000"`
	TopP             float64 `gorm:"default:1.0"`
	FrequencyPenalty float64
	PresencePenalty  float64

	MemoryEnabled bool           `gorm:"default:true"`
	Behaviors     datatypes.JSON `gorm:"type:jsonb"`
	IsActive      bool           `gorm:"default:true;index"`
	CreatedAt     time.Time
}
