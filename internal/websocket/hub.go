package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"ai-agent-gateway/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "cluster_events"

// Hub tracks connected clients and their room membership. It is the fan-out
// point for everything the gateway pushes to browsers, locally and across
// instances via Redis pub/sub.
type Hub struct {
	// UserID -> connections (multi-device)
	clients map[uuid.UUID][]*Client

	// room name -> members
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Redis connection for cross-instance fan-out. Nil in single-node mode.
	rdb *redis.Client

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rooms:      make(map[string]map[*Client]bool),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			if client.Room != "" {
				if h.rooms[client.Room] == nil {
					h.rooms[client.Room] = make(map[*Client]bool)
				}
				h.rooms[client.Room][client] = true
			}
			h.mu.Unlock()
			if client.registered != nil {
				close(client.registered)
			}
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"user_id": client.UserID, "room": client.Room})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.UserID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.UserID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.UserID]) == 0 {
					delete(h.clients, client.UserID)
				}
			}
			if members, ok := h.rooms[client.Room]; ok {
				delete(members, client)
				if len(members) == 0 {
					delete(h.rooms, client.Room)
				}
			}
			h.mu.Unlock()
			h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"user_id": client.UserID, "room": client.Room})
		}
	}
}

// SendToUser delivers an event to every connection of one user, here or on
// another instance.
func (h *Hub) SendToUser(userID uuid.UUID, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	clients := h.clients[userID]
	for _, client := range clients {
		h.push(client, data)
	}
	h.mu.RUnlock()

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterEnvelope{
			TargetUserID: userID.String(),
			Message:      data,
		})
		h.rdb.Publish(context.Background(), clusterChannel, payload)
	}
}

// BroadcastRoom delivers an event to every member of a room.
func (h *Hub) BroadcastRoom(room string, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.broadcastRoomLocal(room, data, nil)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterEnvelope{
			TargetRoom: room,
			Message:    data,
		})
		h.rdb.Publish(context.Background(), clusterChannel, payload)
	}
}

// BroadcastRoomExcept is BroadcastRoom minus the originating client, used for
// typing indicators and presence.
func (h *Hub) BroadcastRoomExcept(room string, event interface{}, except *Client) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.broadcastRoomLocal(room, data, except)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterEnvelope{
			TargetRoom: room,
			Message:    data,
		})
		h.rdb.Publish(context.Background(), clusterChannel, payload)
	}
}

func (h *Hub) broadcastRoomLocal(room string, data []byte, except *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[room] {
		if client == except {
			continue
		}
		h.push(client, data)
	}
}

// push assumes the read lock is held. A client with a full send buffer is
// torn down rather than allowed to block the hub.
func (h *Hub) push(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{"user_id": client.UserID})
		go func() { h.unregister <- client }()
	}
}

// RoomMembers reports the number of local members in a room.
func (h *Hub) RoomMembers(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

type clusterEnvelope struct {
	TargetUserID string          `json:"target_user_id,omitempty"`
	TargetRoom   string          `json:"target_room,omitempty"`
	Message      json.RawMessage `json:"message"`
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload clusterEnvelope
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "Cluster message parse error", map[string]interface{}{"error": err.Error()})
			continue
		}

		if payload.TargetRoom != "" {
			h.broadcastRoomLocal(payload.TargetRoom, payload.Message, nil)
			continue
		}

		uid, err := uuid.Parse(payload.TargetUserID)
		if err != nil {
			continue
		}

		h.mu.RLock()
		clients := h.clients[uid]
		for _, client := range clients {
			h.push(client, payload.Message)
		}
		h.mu.RUnlock()
	}
}
