package dto

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// --- Inbound WebSocket envelopes ---

// InboundEnvelope is the decoded client frame. Type selects which fields are
// meaningful.
type InboundEnvelope struct {
	Type           string `json:"type" validate:"required,oneof=user_message typing community_message"`
	Message        string `json:"message,omitempty"`
	ConversationId string `json:"conversation_id,omitempty" validate:"omitempty,uuid"`
	IsTyping       bool   `json:"is_typing,omitempty"`
}

// UserMessageRequest is the validated payload handed to the router.
type UserMessageRequest struct {
	Message        string     `json:"message" validate:"required,max=10000"`
	ConversationId *uuid.UUID `json:"conversation_id,omitempty"`
}

// --- Outbound WebSocket events ---

type ConnectionEstablishedEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type AgentTypingEvent struct {
	Type    string `json:"type"`
	AgentId string `json:"agent_id"`
}

type AgentMessageEvent struct {
	Type           string    `json:"type"`
	Message        string    `json:"message"`
	MessageId      uuid.UUID `json:"message_id"`
	ConversationId uuid.UUID `json:"conversation_id"`
	Timestamp      string    `json:"timestamp"`
}

type AgentMessageChunkEvent struct {
	Type           string    `json:"type"`
	Chunk          string    `json:"chunk"`
	AgentId        string    `json:"agent_id"`
	ConversationId uuid.UUID `json:"conversation_id"`
}

type AgentMessageCompleteEvent struct {
	Type           string    `json:"type"`
	MessageId      uuid.UUID `json:"message_id"`
	ConversationId uuid.UUID `json:"conversation_id"`
	Timestamp      string    `json:"timestamp"`
}

type TypingIndicatorEvent struct {
	Type     string    `json:"type"`
	UserId   uuid.UUID `json:"user_id"`
	IsTyping bool      `json:"is_typing"`
}

type CommunityMessageEvent struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	UserId    uuid.UUID `json:"user_id"`
	Timestamp string    `json:"timestamp"`
}

type UserStatusEvent struct {
	Type   string    `json:"type"`
	UserId uuid.UUID `json:"user_id"`
	Status string    `json:"status"` // "online" | "offline"
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// Error kinds surfaced to clients
const (
	ErrorKindInvalidInput        = "invalid_input"
	ErrorKindQuotaExceeded       = "quota_exceeded"
	ErrorKindProviderUnavailable = "provider_unavailable"
	ErrorKindProviderRejected    = "provider_rejected"
	ErrorKindPartialFailure      = "partial_failure"
	ErrorKindAgentNotFound       = "agent_not_found"
)

// --- REST responses ---

type AgentResponse struct {
	AgentId  string `json:"agent_id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
	ModelId  string `json:"model_id"`
}

type ConversationResponse struct {
	Id              uuid.UUID  `json:"id"`
	AgentId         string     `json:"agent_id"`
	Title           string     `json:"title"`
	Status          string     `json:"status"`
	TotalTokensUsed int        `json:"total_tokens_used"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at"`
}

type MessageResponse struct {
	Id        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Partial   bool      `json:"partial"`
	CreatedAt time.Time `json:"created_at"`
}

// --- Errors ---

// LimitExceededError is returned by the limiter path; RetryAfter hints the
// client when the window rolls over.
type LimitExceededError struct {
	Limit      int
	RetryAfter time.Duration
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("usage limit of %d requests/hour exceeded, retry in %s", e.Limit, e.RetryAfter.Round(time.Second))
}

// TokenUsageMessage rides the internal pub/sub to the usage consumer, which
// rolls token counts up into the conversation totals.
type TokenUsageMessage struct {
	ConversationId uuid.UUID `json:"conversation_id"`
	MessageId      uuid.UUID `json:"message_id"`
	AgentId        string    `json:"agent_id"`
	TokensUsed     int       `json:"tokens_used"`
}
