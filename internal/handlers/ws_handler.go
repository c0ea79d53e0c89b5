package handlers

import (
	"net/http"

	"github.com/fidelya/notification-service/internal/channels"
	jwtutil "github.com/fidelya/notification-service/pkg/jwt"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SessionHandler upgrades dashboard connections into browser-channel
// sessions. A connected socket is what makes the browser channel reachable
// for that user.
type SessionHandler struct {
	Hub       *channels.BrowserSender
	JWTSecret string
}

// NewSessionHandler creates a new instance of SessionHandler.
func NewSessionHandler(hub *channels.BrowserSender, jwtSecret string) *SessionHandler {
	return &SessionHandler{Hub: hub, JWTSecret: jwtSecret}
}

// GET /ws?token=...
func (h *SessionHandler) SessionWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}
	claims, err := jwtutil.ValidateToken(token, h.JWTSecret)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Error("WebSocket upgrade failed")
		return
	}

	userID := claims.UserID
	h.Hub.Register(userID, conn)

	// Keep the socket open until the client goes away. Inbound frames are
	// discarded; this channel is push-only.
	go func() {
		defer func() {
			h.Hub.Unregister(userID, conn)
			conn.Close()
			logrus.WithField("userID", userID).Info("Browser session disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
