package websocket

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"ai-agent-gateway/internal/constant"
	"ai-agent-gateway/internal/dto"
	"ai-agent-gateway/internal/pkg/logger"
	"ai-agent-gateway/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// GatewayHandler terminates websocket sessions: authentication, envelope
// decoding and routing into the gateway service.
type GatewayHandler struct {
	hub      *Hub
	gateway  service.IGatewayService
	agents   service.IAgentService
	validate *validator.Validate
	logger   logger.ILogger
}

func NewGatewayHandler(hub *Hub, gateway service.IGatewayService, agents service.IAgentService, log logger.ILogger) *GatewayHandler {
	return &GatewayHandler{
		hub:      hub,
		gateway:  gateway,
		agents:   agents,
		validate: validator.New(),
		logger:   log,
	}
}

// ServeAgentChat handles /ws/agents/:agentId connections.
func (gh *GatewayHandler) ServeAgentChat(conn *websocket.Conn) {
	userID, ok := gh.authenticate(conn)
	if !ok {
		return
	}

	agentID := conn.Params("agentId")
	record, err := gh.agents.GetAgent(context.Background(), agentID)
	if err != nil || record == nil || !record.IsActive {
		gh.writeEvent(conn, dto.ErrorEvent{Type: "error", Kind: dto.ErrorKindAgentNotFound, Message: "Unknown agent."})
		conn.Close()
		return
	}

	client := &Client{
		Hub:       gh.hub,
		Conn:      conn,
		UserID:    userID,
		SessionID: uuid.New(),
		AgentID:   agentID,
		// The room is scoped per user so typing relays never cross
		// between users of the same agent.
		Room:       constant.RoomPrefixAgent + ":" + agentID + ":" + userID.String(),
		Send:       make(chan []byte, 256),
		handler:    gh.handleFrame,
		registered: make(chan struct{}),
	}
	gh.serve(client, "Connected to agent "+record.Name)
}

// ServeCommunity handles the shared community room.
func (gh *GatewayHandler) ServeCommunity(conn *websocket.Conn) {
	userID, ok := gh.authenticate(conn)
	if !ok {
		return
	}

	client := &Client{
		Hub:        gh.hub,
		Conn:       conn,
		UserID:     userID,
		SessionID:  uuid.New(),
		Room:       constant.CommunityRoom,
		Send:       make(chan []byte, 256),
		handler:    gh.handleFrame,
		registered: make(chan struct{}),
	}
	gh.serve(client, "Connected to community chat")
}

func (gh *GatewayHandler) serve(client *Client, greeting string) {
	client.Hub.register <- client
	<-client.registered

	go client.writePump()

	gh.hub.SendToUser(client.UserID, dto.ConnectionEstablishedEvent{
		Type:    "connection_established",
		Message: greeting,
	})
	if client.Room == constant.CommunityRoom {
		gh.hub.BroadcastRoomExcept(client.Room, dto.UserStatusEvent{
			Type:   "user_status",
			UserId: client.UserID,
			Status: "online",
		}, client)
	}

	client.readPump()

	// readPump returned: the connection is gone.
	gh.gateway.CancelInflight(client.SessionID)
	if client.Room == constant.CommunityRoom {
		gh.hub.BroadcastRoomExcept(client.Room, dto.UserStatusEvent{
			Type:   "user_status",
			UserId: client.UserID,
			Status: "offline",
		}, client)
	}
}

// authenticate validates the JWT passed as ?token=. Closing with 4001 tells
// well-behaved clients to reauthenticate instead of reconnecting blindly.
func (gh *GatewayHandler) authenticate(conn *websocket.Conn) (uuid.UUID, bool) {
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		gh.closeUnauthenticated(conn)
		return uuid.Nil, false
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		gh.logger.Warn("Handler", "Rejected websocket token", map[string]interface{}{"remote": conn.RemoteAddr().String()})
		gh.closeUnauthenticated(conn)
		return uuid.Nil, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		gh.closeUnauthenticated(conn)
		return uuid.Nil, false
	}
	sub, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		gh.closeUnauthenticated(conn)
		return uuid.Nil, false
	}
	return userID, true
}

func (gh *GatewayHandler) closeUnauthenticated(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(constant.CloseCodeUnauthenticated, "authentication required")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	conn.Close()
}

func (gh *GatewayHandler) handleFrame(client *Client, data []byte) {
	var envelope dto.InboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		gh.hub.SendToUser(client.UserID, dto.ErrorEvent{Type: "error", Kind: dto.ErrorKindInvalidInput, Message: "Malformed message."})
		return
	}
	if err := gh.validate.Struct(&envelope); err != nil {
		gh.hub.SendToUser(client.UserID, dto.ErrorEvent{Type: "error", Kind: dto.ErrorKindInvalidInput, Message: "Unsupported message type."})
		return
	}

	switch envelope.Type {
	case "user_message":
		gh.handleUserMessage(client, &envelope)
	case "typing":
		gh.handleTyping(client, &envelope)
	case "community_message":
		gh.handleCommunityMessage(client, &envelope)
	}
}

func (gh *GatewayHandler) handleUserMessage(client *Client, envelope *dto.InboundEnvelope) {
	if client.AgentID == "" {
		gh.hub.SendToUser(client.UserID, dto.ErrorEvent{Type: "error", Kind: dto.ErrorKindInvalidInput, Message: "Agent messages are not accepted on this channel."})
		return
	}

	request := &dto.UserMessageRequest{Message: envelope.Message}
	if envelope.ConversationId != "" {
		id, err := uuid.Parse(envelope.ConversationId)
		if err != nil {
			gh.hub.SendToUser(client.UserID, dto.ErrorEvent{Type: "error", Kind: dto.ErrorKindInvalidInput, Message: "Invalid conversation id."})
			return
		}
		request.ConversationId = &id
	}
	if err := gh.validate.Struct(request); err != nil {
		gh.hub.SendToUser(client.UserID, dto.ErrorEvent{Type: "error", Kind: dto.ErrorKindInvalidInput, Message: "Message must be between 1 and 10000 characters."})
		return
	}

	gh.gateway.EnqueueUserMessage(client.UserID, client.SessionID, client.AgentID, request, gh.hub)
}

func (gh *GatewayHandler) handleTyping(client *Client, envelope *dto.InboundEnvelope) {
	if !client.AllowTyping() {
		return
	}
	gh.hub.BroadcastRoomExcept(client.Room, dto.TypingIndicatorEvent{
		Type:     "typing_indicator",
		UserId:   client.UserID,
		IsTyping: envelope.IsTyping,
	}, client)
}

func (gh *GatewayHandler) handleCommunityMessage(client *Client, envelope *dto.InboundEnvelope) {
	if client.Room != constant.CommunityRoom {
		gh.hub.SendToUser(client.UserID, dto.ErrorEvent{Type: "error", Kind: dto.ErrorKindInvalidInput, Message: "Community messages are not accepted on this channel."})
		return
	}
	if envelope.Message == "" || len(envelope.Message) > constant.MaxMessageLength {
		gh.hub.SendToUser(client.UserID, dto.ErrorEvent{Type: "error", Kind: dto.ErrorKindInvalidInput, Message: "Message must be between 1 and 10000 characters."})
		return
	}

	gh.hub.BroadcastRoom(client.Room, dto.CommunityMessageEvent{
		Type:      "community_message",
		Message:   envelope.Message,
		UserId:    client.UserID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (gh *GatewayHandler) writeEvent(conn *websocket.Conn, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	conn.WriteMessage(websocket.TextMessage, data)
}
