package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"goride/internal/models"
	"goride/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(hub *Hub, id, userID string, buffer int) *Client {
	opts := DefaultOptions()
	opts.SendBuffer = buffer
	return NewClient(hub, nil, id, userID, "rider", opts)
}

func readMessage(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message queued")
		return Message{}
	}
}

func TestHub_RegisterJoinsUserRoom(t *testing.T) {
	hub := NewHub(logger.Nop())
	client := newTestClient(hub, "s1", "u1", 8)

	hub.registerClient(client)

	assert.Equal(t, 1, hub.SessionCount())
	assert.Equal(t, 1, hub.RoomSize(models.UserChannel("u1")))

	welcome := readMessage(t, client)
	assert.Equal(t, "welcome", welcome.Type)
	assert.Equal(t, "s1", welcome.SessionID)
}

func TestHub_DeliverReachesOnlyRoomMembers(t *testing.T) {
	hub := NewHub(logger.Nop())
	alice := newTestClient(hub, "s1", "alice", 8)
	bob := newTestClient(hub, "s2", "bob", 8)
	hub.registerClient(alice)
	hub.registerClient(bob)
	readMessage(t, alice)
	readMessage(t, bob)

	event := models.NewEvent(models.EventRideAccepted, "r1", map[string]interface{}{"status": "ACCEPTED"})
	require.NoError(t, hub.Deliver(context.Background(), event, []string{models.UserChannel("alice")}))

	msg := readMessage(t, alice)
	assert.Equal(t, "ride.accepted", msg.Type)
	assert.Equal(t, "r1", msg.RideID)
	assert.Equal(t, "user:alice", msg.Channel)
	assert.Empty(t, bob.send)
}

func TestHub_DeliverOncePerSessionAcrossChannels(t *testing.T) {
	hub := NewHub(logger.Nop())
	hub.SetRoomAuthorizer(func(context.Context, string, string, string) bool { return true })
	rider := newTestClient(hub, "s1", "rider", 8)
	hub.registerClient(rider)
	readMessage(t, rider)
	require.True(t, hub.JoinRoom(context.Background(), rider, models.RideChannel("r1")))

	event := models.NewEvent(models.EventRideCompleted, "r1", nil)
	require.NoError(t, hub.Deliver(context.Background(), event, []string{models.RideChannel("r1"), models.UserChannel("rider")}))

	msg := readMessage(t, rider)
	assert.Equal(t, "ride.completed", msg.Type)
	assert.Equal(t, "ride:r1", msg.Channel)
	assert.Empty(t, rider.send)
}

func TestHub_JoinRideRoomRequiresAuthorization(t *testing.T) {
	hub := NewHub(logger.Nop())
	hub.SetRoomAuthorizer(func(_ context.Context, userID, _ string, room string) bool {
		return userID == "rider-1" && room == models.RideChannel("r1")
	})

	rider := newTestClient(hub, "s1", "rider-1", 8)
	stranger := newTestClient(hub, "s2", "stranger", 8)
	hub.registerClient(rider)
	hub.registerClient(stranger)

	assert.True(t, hub.JoinRoom(context.Background(), rider, models.RideChannel("r1")))
	assert.False(t, hub.JoinRoom(context.Background(), stranger, models.RideChannel("r1")))
	assert.Equal(t, 1, hub.RoomSize(models.RideChannel("r1")))

	hub.LeaveRoom(rider, models.RideChannel("r1"))
	assert.Equal(t, 0, hub.RoomSize(models.RideChannel("r1")))
}

func TestHub_SlowSessionIsDropped(t *testing.T) {
	hub := NewHub(logger.Nop())
	client := newTestClient(hub, "s1", "u1", 1)
	hub.registerClient(client)

	// The welcome message fills the buffer.
	event := models.NewEvent(models.EventRideStarted, "r1", nil)
	require.NoError(t, hub.Deliver(context.Background(), event, []string{models.UserChannel("u1")}))

	assert.Equal(t, 0, hub.SessionCount())
	assert.Equal(t, 0, hub.RoomSize(models.UserChannel("u1")))
	select {
	case <-client.closed:
	default:
		t.Fatal("slow session was not closed")
	}
}

func TestHub_UnregisterCleansRooms(t *testing.T) {
	hub := NewHub(logger.Nop())
	hub.SetRoomAuthorizer(func(context.Context, string, string, string) bool { return true })
	client := newTestClient(hub, "s1", "u1", 8)
	hub.registerClient(client)
	require.True(t, hub.JoinRoom(context.Background(), client, "ride:r9"))

	hub.unregisterClient(client)
	hub.unregisterClient(client)

	assert.Equal(t, 0, hub.SessionCount())
	assert.Equal(t, 0, hub.RoomSize("ride:r9"))
	assert.Equal(t, 0, hub.RoomSize("user:u1"))
}

type recordingInbound struct {
	calls chan [2]float64
}

func (r *recordingInbound) HandleLocation(_ context.Context, _, _ string, lat, lng float64) error {
	r.calls <- [2]float64{lat, lng}
	return nil
}

func TestHandler_EndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(logger.Nop())
	hub.SetRoomAuthorizer(func(_ context.Context, userID, _ string, room string) bool {
		return room == models.RideChannel("r1")
	})
	inbound := &recordingInbound{calls: make(chan [2]float64, 1)}
	hub.SetInboundHandler(inbound)
	go hub.Run(ctx)

	handler := NewHandler(ctx, hub, []string{"*"}, 1024, 1024, DefaultOptions())
	router := gin.New()
	router.GET("/ws", func(c *gin.Context) {
		c.Set("user_id", "driver-user")
		c.Set("user_type", "driver")
		c.Next()
	}, handler.HandleWebSocket)

	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() Message {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	assert.Equal(t, "welcome", read().Type)

	require.NoError(t, conn.WriteJSON(Message{Type: "join_ride", Data: map[string]interface{}{"ride_id": "r1"}}))
	assert.Equal(t, "joined_ride", read().Type)

	require.NoError(t, hub.Deliver(ctx, models.NewEvent(models.EventRideStarted, "r1", nil), []string{models.RideChannel("r1")}))
	msg := read()
	assert.Equal(t, "ride.started", msg.Type)
	assert.Equal(t, "ride:r1", msg.Channel)

	require.NoError(t, conn.WriteJSON(Message{Type: "location_update", Data: map[string]interface{}{"lat": 1.5, "lng": 2.5}}))
	select {
	case got := <-inbound.calls:
		assert.Equal(t, [2]float64{1.5, 2.5}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("location update not forwarded")
	}
}
