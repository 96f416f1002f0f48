package model

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	Id              uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId          uuid.UUID `gorm:"type:uuid;index"`
	AgentId         string    `gorm:"index"`
	Title           string
	Status          string `gorm:"default:active;index"`
	TotalTokensUsed int
	CreatedAt       time.Time
	UpdatedAt       *time.Time
}
