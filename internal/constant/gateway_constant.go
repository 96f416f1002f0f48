package constant

import "time"

// Message roles
const (
	MessageRoleUser   = "user"
	MessageRoleAgent  = "agent"
	MessageRoleSystem = "system"
)

// Gateway limits
const (
	// MaxMessageLength is the hard cap on inbound chat content.
	MaxMessageLength = 10000

	// ContextWindowMessages is how much persisted history feeds a generation.
	ContextWindowMessages = 10

	// TransientRetryBackoff is the pause before the single retry of a
	// transient provider failure.
	TransientRetryBackoff = 250 * time.Millisecond
)

// WebSocket close codes
const (
	CloseCodeUnauthenticated = 4001
)

// Room name prefixes
const (
	RoomPrefixAgent = "agent"
	CommunityRoom   = "community:global"
)

// Domain event types
const (
	EventMessageCreated  = "CHAT_MESSAGE_CREATED"
	EventStreamCancelled = "CHAT_STREAM_CANCELLED"
)
