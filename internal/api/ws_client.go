package api

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// WSClient is one connected socket.
type WSClient struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string // from the ticket; empty when anonymous

	mu            sync.Mutex
	send          chan []byte
	closed        bool
	subscriptions map[string]struct{}
}

// wsRequest is a frame sent by the client. Payload is decoded per type.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

func newWSClient(hub *Hub, conn *websocket.Conn, userID string) *WSClient {
	return &WSClient{
		hub:           hub,
		conn:          conn,
		userID:        userID,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
}

// enqueue hands data to the write loop without blocking. It returns false
// when the queue is full.
func (c *WSClient) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend closes the send queue once; the write loop then says goodbye.
func (c *WSClient) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *WSClient) shutdown() {
	c.closeSend()
	if c.conn != nil {
		c.conn.Close() //nolint:errcheck // closing on shutdown
	}
}

func (c *WSClient) subscribed(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subscriptions[channel]
	return ok
}

// readLoop consumes client frames until the connection fails. Any frame,
// not only a pong, extends the read deadline.
func (c *WSClient) readLoop(maxSize int64, idle time.Duration) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close() //nolint:errcheck // connection already failing
	}()

	c.conn.SetReadLimit(maxSize)
	extend := func(string) error { return c.conn.SetReadDeadline(time.Now().Add(idle)) }
	extend("") //nolint:errcheck // a failed deadline surfaces on the next read
	c.conn.SetPongHandler(extend)

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", "user_id", c.userID, "error", err)
			}
			return
		}
		extend("") //nolint:errcheck // see above
		c.dispatch(frame)
	}
}

// writeLoop drains the send queue and pings on an interval.
func (c *WSClient) writeLoop(pingInterval, writeWait time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close() //nolint:errcheck // paired with readLoop's close
	}()

	write := func(kind int, data []byte) error {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // best-effort goodbye
				return
			}
			if write(websocket.TextMessage, data) != nil {
				return
			}
		case <-ticker.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

func (c *WSClient) dispatch(frame []byte) {
	var req wsRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		c.reply("", WSTypeError, errorPayload("invalid JSON message"))
		return
	}

	switch req.Type {
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	case WSTypeSubscribe:
		c.subscribe(req)
	case WSTypeUnsubscribe:
		c.unsubscribe(req)
	default:
		c.reply(req.ID, WSTypeError, errorPayload("unknown message type: "+req.Type))
	}
}

func channelsOf(req wsRequest) ([]string, error) {
	var p WSSubscribePayload
	if len(req.Payload) == 0 {
		return nil, fmt.Errorf("payload.channels is required")
	}
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		return nil, fmt.Errorf("invalid %s payload", req.Type)
	}
	if len(p.Channels) == 0 {
		return nil, fmt.Errorf("payload.channels is required")
	}
	return p.Channels, nil
}

func (c *WSClient) subscribe(req wsRequest) {
	channels, err := channelsOf(req)
	if err != nil {
		c.reply(req.ID, WSTypeError, errorPayload(err.Error()))
		return
	}

	var invalid []string
	for _, ch := range channels {
		if !validChannel(ch) {
			invalid = append(invalid, ch)
		}
	}
	if len(invalid) > 0 {
		c.reply(req.ID, WSTypeError, errorPayload("unknown channels: "+strings.Join(invalid, ", ")))
		return
	}

	var denied []string
	for _, ch := range channels {
		if !c.hub.allowed(c.userID, ch) {
			denied = append(denied, ch)
		}
	}
	if len(denied) > 0 {
		c.reply(req.ID, WSTypeError, errorPayload("not permitted: "+strings.Join(denied, ", ")))
		return
	}

	c.mu.Lock()
	var added []string
	for _, ch := range channels {
		if _, ok := c.subscriptions[ch]; !ok {
			c.subscriptions[ch] = struct{}{}
			added = append(added, ch)
		}
	}
	over := len(c.subscriptions) > maxClientSubscriptions
	if over {
		// Only this request's additions are undone.
		for _, ch := range added {
			delete(c.subscriptions, ch)
		}
	}
	c.mu.Unlock()

	if over {
		c.reply(req.ID, WSTypeError, errorPayload(
			fmt.Sprintf("at most %d subscriptions per connection", maxClientSubscriptions)))
		return
	}
	c.hub.logger.Debug("websocket subscribed", "user_id", c.userID, "channels", channels)
	c.reply(req.ID, WSTypeResponse, map[string]any{"subscribed": channels})
}

func (c *WSClient) unsubscribe(req wsRequest) {
	channels, err := channelsOf(req)
	if err != nil {
		c.reply(req.ID, WSTypeError, errorPayload(err.Error()))
		return
	}

	c.mu.Lock()
	for _, ch := range channels {
		delete(c.subscriptions, ch)
	}
	c.mu.Unlock()

	c.reply(req.ID, WSTypeResponse, map[string]any{"unsubscribed": channels})
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := encodeWS(WSMessage{Type: msgType, ID: id, Payload: payload})
	if err != nil {
		c.hub.logger.Error("encoding websocket reply", "type", msgType, "error", err)
		return
	}
	c.enqueue(data)
}

func errorPayload(message string) map[string]string {
	return map[string]string{"message": message}
}
