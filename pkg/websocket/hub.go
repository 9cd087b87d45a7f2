package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"goride/internal/models"
	"goride/pkg/logger"
)

// RoomAuthorizer decides whether a session may join a room other than its
// own user room.
type RoomAuthorizer func(ctx context.Context, userID, userType, room string) bool

// InboundHandler receives client-originated updates.
type InboundHandler interface {
	HandleLocation(ctx context.Context, userID, userType string, lat, lng float64) error
}

type Message struct {
	Type      string                 `json:"type"`
	Channel   string                 `json:"channel,omitempty"`
	RideID    string                 `json:"ride_id,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// Hub is the session table: every live connection keyed by its connection
// id, plus the rooms each one has joined.
type Hub struct {
	sessions   map[string]*Client
	rooms      map[string]map[string]*Client
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex

	authorizer RoomAuthorizer
	inbound    InboundHandler
	logger     *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		sessions:   make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     log,
	}
}

func (h *Hub) SetRoomAuthorizer(a RoomAuthorizer) {
	h.authorizer = a
}

func (h *Hub) SetInboundHandler(handler InboundHandler) {
	h.inbound = handler
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	h.sessions[client.ID] = client
	h.joinRoom(client, models.UserChannel(client.UserID))
	h.mutex.Unlock()

	h.logger.WithFields(map[string]interface{}{
		"session_id": client.ID,
		"user_id":    client.UserID,
		"user_type":  client.UserType,
	}).Info("WebSocket session opened")

	client.enqueue(h.encode(Message{
		Type:      "welcome",
		SessionID: client.ID,
		Timestamp: getCurrentTimestamp(),
		Data: map[string]interface{}{
			"message": "Connected successfully",
		},
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	removed := h.removeLocked(client)
	h.mutex.Unlock()

	if removed {
		h.logger.WithFields(map[string]interface{}{
			"session_id": client.ID,
			"user_id":    client.UserID,
		}).Info("WebSocket session closed")
	}
}

// removeLocked must be called with the write lock held.
func (h *Hub) removeLocked(client *Client) bool {
	if _, ok := h.sessions[client.ID]; !ok {
		return false
	}
	delete(h.sessions, client.ID)
	for roomID := range client.rooms {
		if room, exists := h.rooms[roomID]; exists {
			delete(room, client.ID)
			if len(room) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	client.close()
	return true
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for _, client := range h.sessions {
		h.removeLocked(client)
	}
}

// Deliver sends an event to every session in any of the channels' rooms,
// once per session. Sessions whose buffers are full are dropped rather than
// waited on.
func (h *Hub) Deliver(_ context.Context, event *models.Event, channels []string) error {
	h.mutex.RLock()
	seen := make(map[string]struct{})
	var slow []*Client
	for _, channel := range channels {
		var data []byte
		for id, client := range h.rooms[channel] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if data == nil {
				data = h.encode(Message{
					Type:      string(event.Type),
					Channel:   channel,
					RideID:    event.RideID,
					Data:      event.Data,
					Timestamp: event.Timestamp.Unix(),
				})
			}
			if !client.enqueue(data) {
				slow = append(slow, client)
			}
		}
	}
	h.mutex.RUnlock()

	if len(slow) > 0 {
		h.mutex.Lock()
		for _, client := range slow {
			h.removeLocked(client)
		}
		h.mutex.Unlock()
		h.logger.WithField("event", string(event.Type)).Warnf("Dropped %d slow websocket sessions", len(slow))
	}

	return nil
}

func (h *Hub) Name() string {
	return "websocket"
}

func (h *Hub) JoinRoom(ctx context.Context, client *Client, room string) bool {
	if room != models.UserChannel(client.UserID) {
		if h.authorizer == nil || !h.authorizer(ctx, client.UserID, client.UserType, room) {
			return false
		}
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.sessions[client.ID]; !ok {
		return false
	}
	h.joinRoom(client, room)
	return true
}

// joinRoom must be called with the write lock held.
func (h *Hub) joinRoom(client *Client, room string) {
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*Client)
	}
	h.rooms[room][client.ID] = client
	client.rooms[room] = true
}

func (h *Hub) LeaveRoom(client *Client, room string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if r, exists := h.rooms[room]; exists {
		delete(r, client.ID)
		delete(client.rooms, room)
		if len(r) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) SessionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.sessions)
}

func (h *Hub) RoomSize(room string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) encode(msg Message) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode websocket message")
		return nil
	}
	return data
}

func getCurrentTimestamp() int64 {
	return time.Now().Unix()
}
