package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Message struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConversationId uuid.UUID `gorm:"type:uuid;index:idx_messages_conversation_seq,priority:1"`
	Role           string
	Content        string `gorm:"type:text"`
	TokensUsed     int
	Partial        bool
	Sequence       int64          `gorm:"index:idx_messages_conversation_seq,priority:2"`
	Metadata       datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time
}
