package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ByConversationID filters messages of one conversation
type ByConversationID struct {
	ConversationID uuid.UUID
}

func (s ByConversationID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversation_id = ?", s.ConversationID)
}

// ByAgentID filters by the public agent identifier
type ByAgentID struct {
	AgentID string
}

func (s ByAgentID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("agent_id = ?", s.AgentID)
}

// ActiveOnly filters rows flagged active
type ActiveOnly struct{}

func (s ActiveOnly) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ?", true)
}
