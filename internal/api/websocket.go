package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/citywalk-core/internal/infrastructure/config"
	"github.com/nerrad567/citywalk-core/internal/infrastructure/logging"
	"github.com/nerrad567/citywalk-core/internal/metrics"
	"github.com/nerrad567/citywalk-core/internal/telemetry"
)

// Message types exchanged over the socket.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

const (
	wsSendBufferSize        = 256
	maxClientSubscriptions  = 16
	defaultWSMaxMessageSize = 8192
	defaultWSPingInterval   = 30 * time.Second
	defaultWSPongTimeout    = 10 * time.Second
)

// Channels a client may subscribe to. A phone following its own walk
// subscribes to "navigation:<session_id>"; dashboards take "events".
const (
	ChannelEvents           = telemetry.DefaultChannel
	ChannelNavigationPrefix = "navigation:"
)

// WSMessage is the envelope for every frame the server writes.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload carries the channel list of subscribe/unsubscribe.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// validChannel reports whether name is "events" or a navigation channel
// with a positive session ID.
func validChannel(name string) bool {
	if name == ChannelEvents {
		return true
	}
	_, ok := navigationSessionID(name)
	return ok
}

// navigationSessionID extracts the session ID of a navigation channel.
func navigationSessionID(name string) (int64, bool) {
	id, ok := strings.CutPrefix(name, ChannelNavigationPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// ChannelAuthorizer returns an error when userID may not subscribe to channel.
type ChannelAuthorizer func(ctx context.Context, userID, channel string) error

const authorizeTimeout = 5 * time.Second

func encodeWS(msg WSMessage) ([]byte, error) {
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return json.Marshal(msg)
}

// Hub tracks connected clients and fans broadcasts out to the ones
// subscribed to a channel. It implements telemetry.Broadcaster.
//
// Lock order is hub then client; clients never take the hub lock.
type Hub struct {
	cfg       config.WebSocketConfig
	logger    *logging.Logger
	authorize ChannelAuthorizer

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// SetAuthorizer installs the subscription check. It must be called before
// clients connect.
func (h *Hub) SetAuthorizer(fn ChannelAuthorizer) {
	h.authorize = fn
}

// allowed reports whether userID may subscribe to channel.
func (h *Hub) allowed(userID, channel string) bool {
	if h.authorize == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), authorizeTimeout)
	defer cancel()
	if err := h.authorize(ctx, userID, channel); err != nil {
		h.logger.Debug("websocket subscription denied", "user_id", userID, "channel", channel, "error", err)
		return false
	}
	return true
}

// Run blocks until ctx is cancelled and then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.shutdown()
	}
	metrics.WebSocketClients.Set(0)
}

// Register adds a client.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketClients.Set(float64(n))
	h.logger.Debug("websocket client connected", "user_id", c.userID, "clients", n)
}

// Unregister removes a client and closes its send queue. Calling it again
// for the same client is a no-op.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	c.closeSend()
	metrics.WebSocketClients.Set(float64(n))
	h.logger.Debug("websocket client disconnected", "user_id", c.userID, "clients", n)
}

// Broadcast queues payload for every client subscribed to channel. Slow
// clients whose queue is full miss the event.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := encodeWS(WSMessage{Type: WSTypeEvent, EventType: channel, Payload: payload})
	if err != nil {
		h.logger.Error("encoding websocket event", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	var recipients []*WSClient
	for c := range h.clients {
		if c.subscribed(channel) {
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
	if dropped > 0 {
		h.logger.Warn("websocket queue full, event dropped",
			"channel", channel, "dropped", dropped, "recipients", len(recipients))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS middleware.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// handleWebSocket upgrades GET /api/v1/ws. A ?ticket= from
// POST /api/v1/auth/ws-ticket ties the socket to a user; without auth
// enabled the ticket is optional.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	var userID string
	if ticket := r.URL.Query().Get("ticket"); ticket != "" {
		var ok bool
		if userID, ok = s.tickets.Consume(ticket); !ok {
			writeUnauthorized(w, "invalid or expired ticket")
			return
		}
	} else if s.secCfg.Auth.Enabled {
		writeUnauthorized(w, "ticket query parameter is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := newWSClient(s.hub, conn, userID)
	s.hub.Register(c)

	maxSize, pingInterval, pongWait := wsTimings(s.wsCfg)
	go c.writeLoop(pingInterval, pongWait)
	go c.readLoop(maxSize, pingInterval+pongWait)
}

// wsTimings resolves the socket limits, substituting defaults for unset values.
func wsTimings(cfg config.WebSocketConfig) (maxSize int64, pingInterval, pongWait time.Duration) {
	maxSize, pingInterval, pongWait = defaultWSMaxMessageSize, defaultWSPingInterval, defaultWSPongTimeout
	if cfg.MaxMessageSize > 0 {
		maxSize = int64(cfg.MaxMessageSize)
	}
	if cfg.PingInterval > 0 {
		pingInterval = time.Duration(cfg.PingInterval) * time.Second
	}
	if cfg.PongTimeout > 0 {
		pongWait = time.Duration(cfg.PongTimeout) * time.Second
	}
	return maxSize, pingInterval, pongWait
}
