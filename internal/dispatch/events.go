package dispatch

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"pooled-vault/internal/domain"
	"pooled-vault/internal/observability"
)

// EventHubConfig configures WebSocket event hub behavior.
type EventHubConfig struct {
	// WriteTimeout is timeout for writing messages to a subscriber.
	WriteTimeout time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// PongTimeout is how long a subscriber may go silent before its
	// connection is dropped.
	PongTimeout time.Duration
	// SendBuffer is the per-subscriber outbound queue length.
	SendBuffer int
}

// DefaultEventHubConfig returns default hub configuration.
func DefaultEventHubConfig() EventHubConfig {
	return EventHubConfig{
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
		PongTimeout:  60 * time.Second,
		SendBuffer:   64,
	}
}

// EventHub fans committed operations out to WebSocket subscribers.
// Subscribers that cannot keep up miss events rather than stall the
// dispatcher.
type EventHub struct {
	config   EventHubConfig
	logger   *log.Logger
	upgrader websocket.Upgrader

	clients   map[*websocket.Conn]chan []byte
	clientsMu sync.Mutex

	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewEventHub creates a hub with the given config, or defaults when nil.
func NewEventHub(config *EventHubConfig, logger *log.Logger) *EventHub {
	cfg := DefaultEventHubConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[events] ", log.LstdFlags)
	}

	return &EventHub{
		config: cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]chan []byte),
		done:    make(chan struct{}),
	}
}

// HandleWS upgrades the request and registers the connection as a
// subscriber until it disconnects.
func (h *EventHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	if h.closed.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed: %v", err)
		return
	}

	send := make(chan []byte, h.config.SendBuffer)

	h.clientsMu.Lock()
	h.clients[conn] = send
	count := len(h.clients)
	h.clientsMu.Unlock()
	observability.UpdateWSClients(count)

	h.wg.Add(2)
	go h.writeLoop(conn, send)
	go h.readLoop(conn)
}

// Broadcast pushes one committed operation to every subscriber.
func (h *EventHub) Broadcast(op *domain.Operation) {
	payload, err := json.Marshal(op)
	if err != nil {
		h.logger.Printf("marshal event: %v", err)
		return
	}

	h.clientsMu.Lock()
	for conn, send := range h.clients {
		select {
		case send <- payload:
		default:
			// Queue full: the subscriber misses this event
			h.logger.Printf("dropping event for slow subscriber %s", conn.RemoteAddr())
		}
	}
	h.clientsMu.Unlock()

	observability.RecordEventBroadcast()
}

// ClientCount returns the number of connected subscribers.
func (h *EventHub) ClientCount() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}

// Close disconnects all subscribers and stops the hub.
func (h *EventHub) Close() error {
	if h.closed.Swap(true) {
		return nil // Already closed
	}

	close(h.done)

	h.clientsMu.Lock()
	for conn := range h.clients {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}
	h.clientsMu.Unlock()

	h.wg.Wait()
	return nil
}

// writeLoop drains the subscriber's queue and keeps the connection
// alive with pings.
func (h *EventHub) writeLoop(conn *websocket.Conn, send chan []byte) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case payload := <-send:
			conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.unregister(conn)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(conn)
				return
			}
		}
	}
}

// readLoop discards inbound frames and detects disconnects. The feed
// is one-way; subscribers only listen.
func (h *EventHub) readLoop(conn *websocket.Conn) {
	defer h.wg.Done()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.unregister(conn)
			return
		}
	}
}

// unregister removes one subscriber and closes its connection.
func (h *EventHub) unregister(conn *websocket.Conn) {
	h.clientsMu.Lock()
	_, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
	}
	count := len(h.clients)
	h.clientsMu.Unlock()

	if ok {
		conn.Close()
		observability.UpdateWSClients(count)
	}
}
