package entity

import (
	"time"

	"github.com/google/uuid"
)

// Message is append-only once persisted. A partial message records the
// content produced before a stream was cancelled or failed; it may be
// superseded by a retry but is never edited in place.
type Message struct {
	Id             uuid.UUID
	ConversationId uuid.UUID
	Role           string
	Content        string
	TokensUsed     int
	Partial        bool
	Sequence       int64
	CreatedAt      time.Time
}
