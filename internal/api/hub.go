package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/keg-monitor-core/internal/auth"
	"github.com/nerrad567/keg-monitor-core/internal/events"
	"github.com/nerrad567/keg-monitor-core/internal/infrastructure/config"
	"github.com/nerrad567/keg-monitor-core/internal/infrastructure/logging"
)

// Hub tracks WebSocket clients and relays device events to the ones
// subscribed to the event's channel. It implements events.Publisher.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// WSClient is one WebSocket connection.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// principal is the caller the connection's ticket was issued to.
	principal *auth.Principal

	mu            sync.RWMutex // guards the fields below
	subscriptions map[string]struct{}
	devices       map[string]struct{} // empty means every device
	closed        bool
}

// NewHub creates a hub. A nil logger discards output.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.shutdown()
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// Register adds a client.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n, "principal", c.principalID())
}

// Unregister removes a client and closes its send channel. Repeat calls
// are no-ops.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.shutdown()
		h.logger.Debug("websocket client disconnected", "clients", n)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish relays e on the channel named by its type.
func (h *Hub) Publish(_ context.Context, e events.Event) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: e.Type,
		DeviceID:  e.DeviceID,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
		Payload:   e.Payload,
	})
	if err != nil {
		h.logger.Error("failed to encode websocket event", "type", e.Type, "error", err)
		return
	}

	h.mu.RLock()
	recipients := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		if c.wants(e.Type, e.DeviceID) {
			recipients = append(recipients, c)
		}
	}
	h.mu.RUnlock()

	dropped := 0
	for _, c := range recipients {
		if !c.enqueue(data) {
			dropped++
		}
	}
	if len(recipients) > 0 {
		h.logger.Debug("websocket event relayed",
			"channel", e.Type,
			"recipients", len(recipients),
			"dropped", dropped,
		)
	}
}

// wants reports whether the client should receive an event of eventType
// about deviceID. Device connections only hear about themselves.
func (c *WSClient) wants(eventType, deviceID string) bool {
	if c.principal != nil && c.principal.Kind == auth.KindDevice && c.principal.ID != deviceID {
		return false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.subscriptions[eventType]; !ok {
		return false
	}
	if len(c.devices) == 0 {
		return true
	}
	_, ok := c.devices[deviceID]
	return ok
}

// enqueue queues data without blocking. It returns false when the client
// is gone or its buffer is full.
func (c *WSClient) enqueue(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// shutdown closes the send channel once so the write pump exits.
func (c *WSClient) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *WSClient) principalID() string {
	if c.principal == nil {
		return ""
	}
	return string(c.principal.Kind) + ":" + c.principal.ID
}
