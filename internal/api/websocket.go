package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sugarline/sugarline-core/internal/entry"
	"github.com/sugarline/sugarline-core/internal/infrastructure/config"
	"github.com/sugarline/sugarline-core/internal/infrastructure/logging"
	"github.com/sugarline/sugarline-core/internal/tenant"
)

// WebSocket message types.
const (
	WSTypePing     = "ping"
	WSTypePong     = "pong"
	WSTypeNewEntry = "new_entry"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256
)

// WSMessage is the JSON frame exchanged with dashboard clients.
type WSMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Hub manages WebSocket connections grouped by tenant and fans stored
// entries out to that tenant's dashboards only.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	tenants map[string]map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient represents one connected dashboard.
type WSClient struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	tenantID string
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		tenants: make(map[string]map[*WSClient]struct{}),
	}
}

// Run blocks until the context is cancelled, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client under its tenant.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	set, ok := h.tenants[client.tenantID]
	if !ok {
		set = make(map[*WSClient]struct{})
		h.tenants[client.tenantID] = set
	}
	set[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected",
		"tenant_id", client.tenantID, "clients", h.ClientCount())
}

// Unregister removes a client, pruning its tenant's set when it empties.
// Only the goroutine that successfully removes the client from the map
// closes the send channel, preventing double-close panics during shutdown.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	set, ok := h.tenants[client.tenantID]
	_, existed := set[client]
	if ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.tenants, client.tenantID)
		}
	}
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected",
		"tenant_id", client.tenantID, "clients", h.ClientCount())
}

// NotifyNewEntries pushes one new_entry message per stored entry, in storage
// order, to every dashboard of the owning tenant. Implements entry.Notifier.
func (h *Hub) NotifyNewEntries(tenantID string, entries []entry.Entry) {
	for i := range entries {
		h.broadcastToTenant(tenantID, WSMessage{
			Type: WSTypeNewEntry,
			Data: entries[i],
		})
	}
}

// broadcastToTenant sends a message to every client of one tenant.
// Lock ordering: the client snapshot is taken under the hub lock, sends
// happen outside it, and clients whose buffers are full are unregistered
// only after the pass completes.
func (h *Hub) broadcastToTenant(tenantID string, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.tenants[tenantID]))
	for client := range h.tenants[tenantID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	var failed []*WSClient
	for _, client := range clients {
		if !client.trySend(data) {
			failed = append(failed, client)
		}
	}
	for _, client := range failed {
		h.logger.Warn("dropping unresponsive websocket client", "tenant_id", tenantID)
		h.Unregister(client)
		if client.conn != nil {
			client.conn.Close()
		}
	}

	if len(clients) > 0 {
		h.logger.Debug("broadcast sent", "tenant_id", tenantID,
			"type", msg.Type, "recipients", len(clients)-len(failed))
	}
}

// ClientCount returns the number of connected clients across all tenants.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.tenants {
		n += len(set)
	}
	return n
}

// TenantCount returns the number of tenants with at least one connection.
func (h *Hub) TenantCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.tenants)
}

// closeAll disconnects all clients and closes their send channels
// so writePump goroutines can exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for tenantID, set := range h.tenants {
		for client := range set {
			close(client.send)
			if client.conn != nil {
				client.conn.Close()
			}
		}
		delete(h.tenants, tenantID)
	}
}

// handleWebSocket upgrades the connection and authenticates it via the token
// query parameter, using the same bearer validation as the HTTP routes. The
// connection is upgraded before the auth check so failures can close with a
// policy-violation code the client can distinguish from a network error.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	tenantID, err := s.resolver.Resolve(r.Context(), tenant.Credentials{BearerToken: token})
	if err != nil {
		s.logger.Debug("websocket auth rejected", "error", err)
		//nolint:errcheck // Best-effort close handshake on a dying connection
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication required"),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}

	client := &WSClient{
		hub:      s.hub,
		conn:     conn,
		send:     make(chan []byte, wsSendBufferSize),
		tenantID: tenantID,
	}

	s.hub.Register(client)

	// Start read/write pumps
	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readPump reads messages from the WebSocket connection.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Any client message resets the read deadline (keeps connection alive
		// even if the browser doesn't respond to protocol-level pings).
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(message)
	}
}

// writePump writes messages to the WebSocket connection. On idle it sends a
// JSON-level ping (legacy dashboards answer in JSON, not protocol frames)
// followed by a protocol ping as the transport backstop.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	pongWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; write errors caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, pingFrame); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Pre-marshalled keepalive frames.
var (
	pingFrame = []byte(`{"type":"ping"}`)
	pongFrame = []byte(`{"type":"pong"}`)
)

// handleMessage processes an incoming WebSocket message.
func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.hub.logger.Debug("ignoring malformed websocket message", "error", err)
		return
	}

	switch msg.Type {
	case WSTypePing:
		c.trySend(pongFrame)
	case WSTypePong:
		// Reply to our JSON-level ping; the read deadline reset is enough.
	default:
		c.hub.logger.Debug("ignoring unknown websocket message type", "type", msg.Type)
	}
}

// trySend attempts to send data to the client's send channel. It reports
// false for full buffers (slow client) and silently absorbs sends on a
// channel closed by a concurrent unregister.
func (c *WSClient) trySend(data []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}
