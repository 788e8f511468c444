package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/anstrom/lanscan/internal/api/middleware"
	"github.com/anstrom/lanscan/internal/session"
)

const (
	// WebSocket configuration constants.
	writeWait       = 10 * time.Second                                   // Time allowed to write a message to the peer
	pongWait        = 60 * time.Second                                   // Time to read next pong message from peer
	pingPeriodRatio = 0.9                                                // Ratio of pongWait for pingPeriod
	pingPeriod      = time.Duration(float64(pongWait) * pingPeriodRatio) // Send pings to peer (must be < pongWait)
	maxMessageSize  = 512                                                // Maximum message size allowed from peer
	bufferSize      = 256                                                // Per client send queue
)

// Message types sent to websocket clients.
const (
	MessageTypeStatus = "status"
	MessageTypeEvent  = "event"
)

// WebSocketMessage represents a WebSocket message structure.
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// wsClient is one connected peer. send is closed exactly once, by
// removeClient.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// WebSocketHandler streams session events to connected clients. Each new
// client first receives a status snapshot, then every event as it is
// logged. Clients that fall behind lose messages rather than stall the
// session.
type WebSocketHandler struct {
	controller  SessionController
	logger      *slog.Logger
	upgrader    websocket.Upgrader
	unsubscribe func()

	mutex   sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

// NewWebSocketHandler creates a handler subscribed to controller's events.
// allowedOrigins limits cross-origin upgrades; empty allows same-origin
// requests only and "*" allows any origin.
func NewWebSocketHandler(controller SessionController, logger *slog.Logger, allowedOrigins []string) *WebSocketHandler {
	h := &WebSocketHandler{
		controller: controller,
		logger:     logger.With("handler", "websocket"),
		clients:    make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
	h.unsubscribe = controller.Subscribe(h.broadcastEvent)
	return h
}

// ServeWS handles GET /api/v1/ws.
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade WebSocket connection", "request_id", requestID, "error", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, bufferSize)}

	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mutex.Unlock()

	h.logger.Info("WebSocket client connected",
		"request_id", requestID, "remote_addr", r.RemoteAddr, "clients", total)

	if msg, err := encodeMessage(MessageTypeStatus, h.controller.Status()); err == nil {
		h.enqueue(client, msg)
	}

	go h.writePump(client)
	h.readPump(client)
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHandler) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Close unsubscribes from events and disconnects every client.
func (h *WebSocketHandler) Close() error {
	h.unsubscribe()

	h.mutex.Lock()
	h.closed = true
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mutex.Unlock()

	for _, c := range clients {
		h.removeClient(c)
	}
	return nil
}

// broadcastEvent runs on the goroutine that logged the event and never
// blocks.
func (h *WebSocketHandler) broadcastEvent(e session.Event) {
	msg, err := encodeMessage(MessageTypeEvent, e)
	if err != nil {
		h.logger.Error("Failed to encode event", "error", err)
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()
	for c := range h.clients {
		h.trySend(c, msg)
	}
}

// enqueue queues msg for c unless c has already been removed.
func (h *WebSocketHandler) enqueue(c *wsClient, msg []byte) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if _, ok := h.clients[c]; ok {
		h.trySend(c, msg)
	}
}

// trySend must be called with the mutex held.
func (h *WebSocketHandler) trySend(c *wsClient, msg []byte) {
	select {
	case c.send <- msg:
	default:
		h.logger.Debug("Dropping message for slow WebSocket client", "remote_addr", c.conn.RemoteAddr().String())
	}
}

func (h *WebSocketHandler) removeClient(c *wsClient) {
	h.mutex.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mutex.Unlock()

	if ok {
		_ = c.conn.Close()
		h.logger.Debug("WebSocket client disconnected", "remote_addr", c.conn.RemoteAddr().String())
	}
}

// readPump drains client messages so control frames are processed, and
// removes the client once the connection fails.
func (h *WebSocketHandler) readPump(c *wsClient) {
	defer h.removeClient(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", "error", err)
			}
			return
		}
	}
}

func (h *WebSocketHandler) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.removeClient(c)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func encodeMessage(messageType string, data interface{}) ([]byte, error) {
	return json.Marshal(WebSocketMessage{
		Type:      messageType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] || set[origin] {
			return true
		}
		// Same-origin requests carry the host in the Origin header.
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}
