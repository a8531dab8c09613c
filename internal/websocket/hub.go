package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Message types pushed to the browser.
const (
	TypeRefresh   = "refresh"
	TypeSignedOut = "signed_out"
)

// Message tells a browser that the state behind its page changed.
type Message struct {
	Type string `json:"type"`
	Tab  string `json:"tab,omitempty"`
}

// Hub tracks the connected browsers, grouped by session.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*Client]struct{}
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		sessions: make(map[string]map[*Client]struct{}),
		logger:   logger,
	}
}

// Register adds a client under its session key.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.sessions[c.key] == nil {
		h.sessions[c.key] = make(map[*Client]struct{})
	}
	h.sessions[c.key][c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if clients, ok := h.sessions[c.key]; ok {
		if _, ok := clients[c]; ok {
			delete(clients, c)
			close(c.send)
		}
		if len(clients) == 0 {
			delete(h.sessions, c.key)
		}
	}
	h.mu.Unlock()
}

// Publish sends a message to every connection of one session.
func (h *Hub) Publish(key string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.sessions[key] {
		c.enqueue(data)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.sessions {
		n += len(clients)
	}
	return n
}

// SessionClientCount returns the number of connections of one session.
func (h *Hub) SessionClientCount(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[key])
}
