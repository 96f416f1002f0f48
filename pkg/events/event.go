package events

import (
	"time"

	"github.com/google/uuid"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "CHAT_MESSAGE_CREATED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent helps embed common logic if needed.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewMessageCreated is emitted after a chat message is persisted.
func NewMessageCreated(conversationId, messageId uuid.UUID, agentId, role string, tokensUsed int) Event {
	return BaseEvent{
		Type: "CHAT_MESSAGE_CREATED",
		Data: map[string]interface{}{
			"conversation_id": conversationId.String(),
			"message_id":      messageId.String(),
			"agent_id":        agentId,
			"role":            role,
			"tokens_used":     tokensUsed,
		},
		OccurredAt: time.Now(),
	}
}

// NewStreamCancelled is emitted when a client abandons an in-flight
// streaming generation.
func NewStreamCancelled(conversationId uuid.UUID, agentId string) Event {
	return BaseEvent{
		Type: "CHAT_STREAM_CANCELLED",
		Data: map[string]interface{}{
			"conversation_id": conversationId.String(),
			"agent_id":        agentId,
		},
		OccurredAt: time.Now(),
	}
}
