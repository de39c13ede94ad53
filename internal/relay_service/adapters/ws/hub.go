package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/chanrelay/chanrelay/internal/relay_service/domain"
)

var connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "relay",
	Name:      "ws_clients",
	Help:      "Number of currently connected websocket viewers.",
})

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

// frame is the JSON envelope pushed to every connected viewer.
type frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type deletedPayload struct {
	ID string `json:"id"`
}

type statusPayload struct {
	ID     string               `json:"id"`
	Status domain.MessageStatus `json:"status"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts message notifications to all connected websocket viewers.
// Delivery is best-effort: a client whose send buffer is full is dropped
// rather than waited on, so broadcasting never blocks the event path.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates an empty hub. The upgrader accepts any origin; viewer
// authentication is out of scope for this service.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger.With("component", "ws_hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// HandleWS upgrades an HTTP request into a hub subscription.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	connectedClients.Inc()
	h.logger.Info("viewer connected", "remote_addr", conn.RemoteAddr().String())

	go h.writeLoop(c)
	go h.readLoop(c)
}

// writeLoop drains the client's send channel and keeps the connection alive
// with pings. Closing the send channel terminates it.
func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop discards inbound frames (viewers are read-only) and detects
// disconnects.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, present := h.clients[c]
	if present {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	if present {
		connectedClients.Dec()
		h.logger.Info("viewer disconnected", "remote_addr", c.conn.RemoteAddr().String())
	}
	c.conn.Close()
}

func (h *Hub) broadcast(event string, data any) {
	payload, err := json.Marshal(frame{Event: event, Data: data})
	if err != nil {
		h.logger.Error("failed to marshal notification frame", "event", event, "error", err)
		return
	}

	h.mu.Lock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow viewer", "remote_addr", c.conn.RemoteAddr().String())
		h.remove(c)
	}
}

// MessageCreated implements domain.Notifier.
func (h *Hub) MessageCreated(msg *domain.Message) {
	h.broadcast("message.new", msg)
}

// MessageDeleted implements domain.Notifier.
func (h *Hub) MessageDeleted(externalID string) {
	h.broadcast("message.deleted", deletedPayload{ID: externalID})
}

// MessageStatusUpdated implements domain.Notifier.
func (h *Hub) MessageStatusUpdated(externalID string, status domain.MessageStatus) {
	h.broadcast("message.status", statusPayload{ID: externalID, Status: status})
}

// Shutdown disconnects every viewer and refuses new registrations.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
}
