package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/vaultgate/vaultgate/internal/ws"
	"github.com/vaultgate/vaultgate/pkg/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, validate origin
	},
}

// WSHandler handles WebSocket connections
type WSHandler struct {
	dispatcher *ws.Dispatcher
	jwtManager *auth.JWTManager
}

func NewWSHandler(dispatcher *ws.Dispatcher, jwtManager *auth.JWTManager) *WSHandler {
	return &WSHandler{
		dispatcher: dispatcher,
		jwtManager: jwtManager,
	}
}

// HandleWebSocket upgrades HTTP to WebSocket and manages the connection
// Client connects with: ws://host/ws?token=<jwt_token>
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	// Authenticate via query parameter (WebSocket can't use Authorization header)
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
		return
	}

	claims, err := h.jwtManager.ValidateToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := ws.NewClient(conn, claims.AccountID)
	log.Printf("✅ WS connected: conn=%s account=%s", client.ID, claims.AccountID)

	go client.WritePump()
	go client.ReadPump(
		func(client *ws.Client, raw []byte) {
			h.dispatcher.Dispatch(client, raw)
		},
		func(client *ws.Client) {
			h.dispatcher.Disconnect(client)
			log.Printf("❌ WS disconnected: conn=%s", client.ID)
		},
	)
}
