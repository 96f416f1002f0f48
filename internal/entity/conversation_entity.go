package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	ConversationStatusActive   = "active"
	ConversationStatusArchived = "archived"
)

type Conversation struct {
	Id              uuid.UUID
	UserId          uuid.UUID
	AgentId         string
	Title           string
	Status          string
	TotalTokensUsed int
	CreatedAt       time.Time
	UpdatedAt       *time.Time
}
