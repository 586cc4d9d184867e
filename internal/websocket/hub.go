package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"lorry-backend/internal/models"
)

// Hub maintains active WebSocket connections and broadcasts messages
type Hub struct {
	// Registered clients; a user may hold several connections (tabs, devices)
	clients map[*Client]struct{}

	// Outbound messages addressed to a user or a role
	broadcast chan *Message

	register   chan *Client
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	// Guards clients for readers outside Run
	mu sync.RWMutex
}

// Message is addressed to every connection of UserID, or of Role when UserID is empty
type Message struct {
	UserID string
	Role   models.Role
	Data   []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run owns the client set until ctx is cancelled, then closes every connection
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Println("🛑 [WEBSOCKET] Hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("✅ [WEBSOCKET] Client CONNECTED user=%s role=%s (total: %d)", client.UserID, client.Role, total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("🔴 [WEBSOCKET] Client DISCONNECTED user=%s role=%s (remaining: %d)", client.UserID, client.Role, len(h.clients))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !message.matches(client) {
					continue
				}
				select {
				case client.send <- message.Data:
				default:
					// Client buffer full, disconnect
					delete(h.clients, client)
					close(client.send)
					log.Printf("⚠️ Client buffer full, disconnecting: %s", client.UserID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// join registers a client; false when the hub has stopped
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (m *Message) matches(c *Client) bool {
	if m.UserID != "" {
		return c.UserID == m.UserID
	}
	return c.Role == m.Role
}

// BroadcastToUser sends a message to every connection of a specific user
func (h *Hub) BroadcastToUser(userID string, data interface{}) {
	h.enqueue(&Message{UserID: userID}, data)
}

// BroadcastToRole sends a message to all users with a specific role
func (h *Hub) BroadcastToRole(role models.Role, data interface{}) {
	h.enqueue(&Message{Role: role}, data)
}

func (h *Hub) enqueue(msg *Message, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("❌ Failed to marshal broadcast message: %v", err)
		return
	}
	msg.Data = payload

	select {
	case h.broadcast <- msg:
	default:
		log.Printf("⚠️ Broadcast queue full, dropping message (user=%q role=%q)", msg.UserID, msg.Role)
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsUserConnected checks if a user has at least one open connection
func (h *Hub) IsUserConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client.UserID == userID {
			return true
		}
	}
	return false
}
