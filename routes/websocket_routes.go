package routes

import (
	"goride/pkg/websocket"

	"github.com/gin-gonic/gin"
)

// SetupWebSocketRoutes mounts the realtime endpoint behind the identity
// middleware; the upgrade is refused without a user.
func SetupWebSocketRoutes(r *gin.Engine, path string, wsHandler *websocket.Handler, auth gin.HandlerFunc) {
	r.GET(path, auth, wsHandler.HandleWebSocket)
}
