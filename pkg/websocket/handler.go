package websocket

import (
	"context"
	"net/http"

	"goride/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	opts     Options
	ctx      context.Context
}

// NewHandler upgrades HTTP requests into hub sessions. ctx bounds the life
// of every session it creates.
func NewHandler(ctx context.Context, hub *Hub, allowedOrigins []string, readBuffer, writeBuffer int, opts Options) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBuffer,
			WriteBufferSize: writeBuffer,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		opts: opts,
		ctx:  ctx,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// HandleWebSocket expects the auth layer to have set user_id and user_type.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	userID := c.GetString("user_id")
	userType := c.GetString("user_type")
	if userID == "" || userType == "" {
		utils.UnauthorizedResponse(c)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := NewClient(h.hub, conn, uuid.NewString(), userID, userType, h.opts)
	h.hub.register <- client

	go client.writePump()
	go client.readPump(h.ctx)
}

func (h *Handler) GetHub() *Hub {
	return h.hub
}
