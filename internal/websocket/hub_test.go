package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quietLogger struct{}

func (quietLogger) Debug(string, string, map[string]interface{}) {}
func (quietLogger) Info(string, string, map[string]interface{})  {}
func (quietLogger) Warn(string, string, map[string]interface{})  {}
func (quietLogger) Error(string, string, map[string]interface{}) {}
func (quietLogger) Sync() error                                  { return nil }

func newTestHub() *Hub {
	h := NewHub(nil, quietLogger{})
	go h.Run()
	return h
}

func newTestClient(h *Hub, userID uuid.UUID, room string) *Client {
	return &Client{
		Hub:        h,
		UserID:     userID,
		SessionID:  uuid.New(),
		Room:       room,
		Send:       make(chan []byte, 8),
		registered: make(chan struct{}),
	}
}

func registerAndWait(t *testing.T, h *Hub, c *Client) {
	t.Helper()
	h.register <- c
	select {
	case <-c.registered:
	case <-time.After(time.Second):
		t.Fatal("client was not registered in time")
	}
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case data := <-c.Send:
		return data
	case <-time.After(time.Second):
		t.Fatal("no message delivered within 1s")
		return nil
	}
}

func TestBroadcastRoomReachesAllMembers(t *testing.T) {
	h := newTestHub()

	a := newTestClient(h, uuid.New(), "agent:neochat")
	b := newTestClient(h, uuid.New(), "agent:neochat")
	outsider := newTestClient(h, uuid.New(), "agent:other")
	registerAndWait(t, h, a)
	registerAndWait(t, h, b)
	registerAndWait(t, h, outsider)

	h.BroadcastRoom("agent:neochat", map[string]string{"type": "test", "payload": "hello"})

	for _, c := range []*Client{a, b} {
		var decoded map[string]string
		require.NoError(t, json.Unmarshal(receive(t, c), &decoded))
		assert.Equal(t, "hello", decoded["payload"])
	}

	select {
	case <-outsider.Send:
		t.Fatal("message leaked into another room")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastRoomExceptSkipsSender(t *testing.T) {
	h := newTestHub()

	sender := newTestClient(h, uuid.New(), "community:global")
	peer := newTestClient(h, uuid.New(), "community:global")
	registerAndWait(t, h, sender)
	registerAndWait(t, h, peer)

	h.BroadcastRoomExcept("community:global", map[string]string{"type": "typing"}, sender)

	receive(t, peer)
	select {
	case <-sender.Send:
		t.Fatal("sender received its own broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSendToUserReachesEveryDevice(t *testing.T) {
	h := newTestHub()
	userID := uuid.New()

	phone := newTestClient(h, userID, "agent:neochat")
	laptop := newTestClient(h, userID, "agent:aethon")
	registerAndWait(t, h, phone)
	registerAndWait(t, h, laptop)

	h.SendToUser(userID, map[string]string{"type": "agent_message"})

	receive(t, phone)
	receive(t, laptop)
}

func TestUnregisterClosesSendAndLeavesRoom(t *testing.T) {
	h := newTestHub()

	c := newTestClient(h, uuid.New(), "agent:neochat")
	registerAndWait(t, h, c)

	h.unregister <- c

	deadline := time.Now().Add(time.Second)
	for h.RoomMembers("agent:neochat") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("room membership was not cleaned up")
		}
		time.Sleep(time.Millisecond)
	}

	select {
	case _, open := <-c.Send:
		assert.False(t, open, "send channel must be closed on unregister")
	case <-time.After(time.Second):
		t.Fatal("send channel was not closed")
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	h := newTestHub()

	c := newTestClient(h, uuid.New(), "agent:neochat")
	c.Send = make(chan []byte, 1)
	registerAndWait(t, h, c)

	// First fill the buffer, then overflow it. Nobody drains c.Send, which
	// is exactly the stuck-client case the hub must survive.
	h.BroadcastRoom("agent:neochat", map[string]string{"n": "1"})
	h.BroadcastRoom("agent:neochat", map[string]string{"n": "2"})

	deadline := time.Now().Add(time.Second)
	for h.RoomMembers("agent:neochat") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("overflowing client was never torn down")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestTypingThrottle(t *testing.T) {
	c := &Client{}

	assert.True(t, c.AllowTyping(), "first typing frame passes")
	assert.False(t, c.AllowTyping(), "immediate repeat is throttled")

	c.lastTyping = time.Now().Add(-typingInterval - time.Millisecond)
	assert.True(t, c.AllowTyping(), "throttle lifts after the interval")
}

func TestDeliveryImmediatelyAfterRegisterAck(t *testing.T) {
	h := newTestHub()

	for i := 0; i < 50; i++ {
		c := newTestClient(h, uuid.New(), "agent:neochat")
		h.register <- c
		<-c.registered

		// Once the ack fires the client must be addressable, both
		// directly and through its room.
		h.SendToUser(c.UserID, map[string]string{"type": "connection_established"})
		h.BroadcastRoom(c.Room, map[string]string{"type": "greeting"})
		receive(t, c)
		receive(t, c)

		h.unregister <- c
	}
}
