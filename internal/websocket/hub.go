package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/nifastore/nifa/internal/model"
)

// Catalog actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Event is pushed to connected admin dashboards: catalog changes and
// backup status updates.
type Event struct {
	Type      string         `json:"type"`
	Action    string         `json:"action"`
	ProductID int64          `json:"product_id,omitempty"`
	Product   *model.Product `json:"product,omitempty"`
	Data      any            `json:"data,omitempty"`
}

// ProductEvent builds an Event of type "product_<action>". p may be nil for
// deletions.
func ProductEvent(action string, id int64, p *model.Product) Event {
	return Event{
		Type:      "product_" + action,
		Action:    action,
		ProductID: id,
		Product:   p,
	}
}

// Hub maintains the set of active clients and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends ev to every client. Clients whose buffer is full miss the
// event rather than blocking the caller.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn("dropped event for slow clients", "type", ev.Type, "clients", dropped)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
