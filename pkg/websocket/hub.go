package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/pkg/messaging"
	"github.com/jwalitptl/fieldservice-api/pkg/metrics"
)

var ErrHubClosed = errors.New("websocket hub closed")

// Hub keeps the connected live feed clients and fans broker messages out to them
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan *messaging.Message
	done       chan struct{}
	closeOnce  sync.Once

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewHub(logger *zerolog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *messaging.Message, 256),
		done:       make(chan struct{}),
		logger:     logger.With().Str("component", "websocket_hub").Logger(),
		metrics:    m,
	}
}

// Run serves registrations and broadcasts until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.metrics.WebsocketClients.Inc()
			h.logger.Debug().
				Str("user_id", client.UserID.String()).
				Str("role", string(client.Role)).
				Msg("Client registered")

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Publish queues msg for delivery. It matches the handler signature of messaging.Consume.
func (h *Hub) Publish(msg *messaging.Message) error {
	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}

	select {
	case h.broadcast <- msg:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) deliver(msg *messaging.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("event_type", msg.Type).Msg("Failed to encode event")
		return
	}
	technicianID := payloadTechnician(msg.Payload)

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c.accepts(technicianID) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- data:
			h.metrics.WebsocketDelivered.WithLabelValues(msg.Type).Inc()
		default:
			// A client that cannot keep up is dropped
			h.logger.Warn().Str("user_id", c.UserID.String()).Msg("Client send buffer full, disconnecting")
			h.remove(c)
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	if ok {
		h.metrics.WebsocketClients.Dec()
		h.logger.Debug().Str("user_id", c.UserID.String()).Msg("Client unregistered")
	}
}

func (h *Hub) shutdown() {
	h.closeOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		h.metrics.WebsocketClients.Dec()
	}
	h.mu.Unlock()
}

func (h *Hub) join(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// payloadTechnician extracts technician_id from an event payload, if present
func payloadTechnician(payload json.RawMessage) *uuid.UUID {
	var p struct {
		TechnicianID *uuid.UUID `json:"technician_id"`
	}
	if len(payload) == 0 || json.Unmarshal(payload, &p) != nil {
		return nil
	}
	return p.TechnicianID
}

// accepts reports whether an event about technicianID may be pushed to the client
func (c *Client) accepts(technicianID *uuid.UUID) bool {
	switch c.Role {
	case model.RoleAdmin:
		return true
	case model.RoleTechnician:
		return technicianID != nil && *technicianID == c.UserID
	}
	return false
}
