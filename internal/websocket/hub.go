package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/shwndea/automated-padc-processor/internal/infrastructure"
)

// Message types sent to browsers.
const (
	TypeConnection = "connection"
	TypeError      = "error"
)

const broadcastQueue = 256

// Message is the envelope of every frame written to a client.
type Message struct {
	Type      string      `json:"type"`
	Step      string      `json:"step,omitempty"`
	Status    string      `json:"status,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// Stats is a point-in-time view of the hub counters.
type Stats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	Dropped          int64 `json:"dropped"`
}

// Hub maintains the set of active clients and fans out audit progress to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	logger  *slog.Logger
	metrics *Metrics

	totalConnections int64
	messagesSent     int64
	dropped          int64

	quit    chan struct{}
	done    chan struct{}
	running bool
}

// NewHub creates a hub. Call Start before registering clients.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastQueue),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     infrastructure.WithComponent(logger, "websocket.hub"),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// SetMetrics attaches OpenTelemetry instruments. Nil disables them.
func (h *Hub) SetMetrics(m *Metrics) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metrics = m
}

func (h *Hub) currentMetrics() *Metrics {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.metrics
}

// Start runs the hub loop in the background. It is idempotent.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

// Stop ends the hub loop and closes every client. It is idempotent.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
	<-h.done
}

// Register adds a client. It returns false when the hub is stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes a client and closes its send queue.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			h.logger.Info("hub stopped")
			return

		case c := <-h.register:
			h.addClient(c)

		case c := <-h.unregister:
			h.removeClient(c, "closed")

		case payload := <-h.broadcast:
			h.fanOut(payload)
		}
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.totalConnections++
	metrics := h.metrics
	h.mu.Unlock()

	ctx := c.context()
	metrics.recordConnect(ctx)
	h.logger.InfoContext(ctx, "client registered",
		slog.String("client_id", c.id),
		slog.String("remote_addr", c.remoteAddr),
		slog.Int("total_clients", count))

	hello, err := encode(Message{
		Type: TypeConnection,
		Data: map[string]string{
			"status":    "connected",
			"client_id": c.id,
		},
		TraceID: c.traceID,
	})
	if err != nil {
		return
	}
	select {
	case c.send <- hello:
	default:
		h.logger.WarnContext(ctx, "client buffer full, connection message dropped",
			slog.String("client_id", c.id))
	}
}

func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	metrics := h.metrics
	h.mu.Unlock()

	ctx := c.context()
	metrics.recordDisconnect(ctx, time.Since(c.connectedAt), reason)
	h.logger.InfoContext(ctx, "client unregistered",
		slog.String("client_id", c.id),
		slog.String("reason", reason),
		slog.Int("total_clients", count),
		slog.Duration("connection_duration", time.Since(c.connectedAt)))
}

func (h *Hub) fanOut(payload []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	metrics := h.metrics
	h.mu.RUnlock()

	var slow []*Client
	for _, c := range clients {
		select {
		case c.send <- payload:
			metrics.recordMessage(context.Background(), "out", len(payload))
			h.mu.Lock()
			h.messagesSent++
			h.mu.Unlock()
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		metrics.recordDropped(c.context(), "client")
		h.logger.WarnContext(c.context(), "client send buffer full, disconnecting",
			slog.String("client_id", c.id))
		h.removeClient(c, "slow")
	}
}

// BroadcastUpdate queues an event for every connected client. It never blocks:
// when the queue is full the event is dropped and counted.
func (h *Hub) BroadcastUpdate(eventType, step, status string, metadata interface{}) {
	h.BroadcastUpdateWithTrace(eventType, step, status, metadata, "")
}

// BroadcastUpdateWithTrace is BroadcastUpdate with a trace id in the envelope.
func (h *Hub) BroadcastUpdateWithTrace(eventType, step, status string, metadata interface{}, traceID string) {
	payload, err := encode(Message{
		Type:    eventType,
		Step:    step,
		Status:  status,
		Data:    metadata,
		TraceID: traceID,
	})
	if err != nil {
		h.logger.Error("failed to encode websocket message",
			slog.String("type", eventType),
			slog.String("error", err.Error()))
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		h.mu.Lock()
		h.dropped++
		metrics := h.metrics
		h.mu.Unlock()
		metrics.recordDropped(context.Background(), "hub")
		h.logger.Warn("broadcast queue full, message dropped", slog.String("type", eventType))
	}
}

// BroadcastError sends a structured error event.
func (h *Hub) BroadcastError(step, message string, recoverable bool) {
	h.BroadcastUpdate(TypeError, step, "failed", map[string]interface{}{
		"message":     message,
		"recoverable": recoverable,
	})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns the hub counters.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stats{
		ActiveClients:    len(h.clients),
		TotalConnections: h.totalConnections,
		MessagesSent:     h.messagesSent,
		Dropped:          h.dropped,
	}
}

func encode(m Message) ([]byte, error) {
	m.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return json.Marshal(m)
}
