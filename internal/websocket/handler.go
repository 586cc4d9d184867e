package websocket

import (
	"log"
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/websocket"

	"lorry-backend/internal/middleware"
	"lorry-backend/pkg/utils"
)

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
		},
	}
}

// HandleWebSocket upgrades HTTP connection to WebSocket.
// Browsers cannot set headers on a WebSocket handshake, so the token comes from ?token=
// with the Authorization header as fallback.
func HandleWebSocket(hub *Hub, jwtSecret string, allowedOrigins []string) http.HandlerFunc {
	upgrader := newUpgrader(allowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.URL.Query().Get("token")
		if tokenString == "" {
			tokenString = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if tokenString == "" {
			log.Println("❌ No token for WebSocket connection")
			utils.RespondError(w, http.StatusUnauthorized, "Authorization header missing")
			return
		}

		claims, err := middleware.ParseToken(jwtSecret, tokenString)
		if err != nil {
			log.Printf("❌ Invalid WebSocket token: %v", err)
			utils.RespondError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("❌ WebSocket upgrade failed: %v", err)
			return
		}

		client := NewClient(claims.UserID, claims.Role, conn, hub)
		if !hub.join(client) {
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()

		log.Printf("✅ WebSocket connection established for user: %s (%s)", claims.Email, claims.UserID)
	}
}
