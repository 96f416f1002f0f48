package websocket

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Inbound frames carry up to 10k chars of content plus JSON framing.
	maxMessageSize = 32 * 1024

	// typingInterval throttles typing relays per connection.
	typingInterval = 2 * time.Second
)

// InboundHandler processes one raw frame from a client.
type InboundHandler func(client *Client, data []byte)

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	Hub *Hub

	Conn *websocket.Conn

	UserID uuid.UUID

	// SessionID identifies this connection. Cancellation of in-flight
	// generations is scoped to it, not to the user, so closing one tab
	// never aborts a stream another tab is watching.
	SessionID uuid.UUID

	// AgentID is set for agent chat connections, empty for community ones.
	AgentID string

	// Room this connection belongs to (agent:{id} or the community room).
	Room string

	// Buffered channel of outbound messages.
	Send chan []byte

	handler InboundHandler

	// Closed by the hub once this client is in the maps. Senders may race
	// the register channel otherwise and drop the first events.
	registered chan struct{}

	mu         sync.Mutex
	lastTyping time.Time
}

// AllowTyping reports whether a typing relay may be sent now, and if so
// stamps the send. Throttled per connection.
func (c *Client) AllowTyping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if now.Sub(c.lastTyping) < typingInterval {
		return false
	}
	c.lastTyping = now
	return true
}

// readPump pumps frames from the websocket connection to the handler.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("Client", "Unexpected close", map[string]interface{}{"user_id": c.UserID, "error": err.Error()})
			}
			break
		}
		if c.handler != nil {
			c.handler(c, data)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
