package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"goride/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
)

type Options struct {
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

func DefaultOptions() Options {
	return Options{
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 512,
		SendBuffer:     256,
	}
}

// Client is one websocket session.
type Client struct {
	ID       string
	UserID   string
	UserType string

	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	rooms     map[string]bool
	opts      Options
	closeOnce sync.Once
	closed    chan struct{}
}

func NewClient(hub *Hub, conn *websocket.Conn, id, userID, userType string, opts Options) *Client {
	return &Client{
		ID:       id,
		UserID:   userID,
		UserType: userType,
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, opts.SendBuffer),
		rooms:    make(map[string]bool),
		opts:     opts,
		closed:   make(chan struct{}),
	}
}

// enqueue never blocks; false means the session's buffer is full.
func (c *Client) enqueue(data []byte) bool {
	if data == nil {
		return true
	}
	select {
	case <-c.closed:
		return true
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithError(err).WithField("session_id", c.ID).Warn("WebSocket read error")
			}
			break
		}

		c.handleMessage(ctx, message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-c.closed:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(ctx context.Context, message []byte) {
	var msg Message
	if err := json.Unmarshal(message, &msg); err != nil {
		c.reply("error", map[string]interface{}{"message": "invalid message"})
		return
	}

	switch msg.Type {
	case "join_ride":
		rideID, _ := msg.Data["ride_id"].(string)
		if rideID == "" {
			c.reply("error", map[string]interface{}{"message": "ride_id is required"})
			return
		}
		room := models.RideChannel(rideID)
		if !c.hub.JoinRoom(ctx, c, room) {
			c.reply("error", map[string]interface{}{"message": "not a participant of this ride"})
			return
		}
		c.reply("joined_ride", map[string]interface{}{"ride_id": rideID})

	case "leave_ride":
		rideID, _ := msg.Data["ride_id"].(string)
		c.hub.LeaveRoom(c, models.RideChannel(rideID))
		c.reply("left_ride", map[string]interface{}{"ride_id": rideID})

	case "location_update":
		lat, latOK := msg.Data["lat"].(float64)
		lng, lngOK := msg.Data["lng"].(float64)
		if !latOK || !lngOK || c.hub.inbound == nil {
			c.reply("error", map[string]interface{}{"message": "lat and lng are required"})
			return
		}
		if err := c.hub.inbound.HandleLocation(ctx, c.UserID, c.UserType, lat, lng); err != nil {
			c.reply("error", map[string]interface{}{"message": err.Error()})
		}

	case "ping":
		c.reply("pong", nil)

	default:
		c.reply("error", map[string]interface{}{"message": "unsupported message type"})
	}
}

func (c *Client) reply(msgType string, data map[string]interface{}) {
	c.enqueue(c.hub.encode(Message{
		Type:      msgType,
		SessionID: c.ID,
		Data:      data,
		Timestamp: getCurrentTimestamp(),
	}))
}
