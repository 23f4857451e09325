// Package stream pushes widget updates to WebSocket clients by topic.
package stream

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Topics.
const (
	TopicWeather = "weather"
	TopicClock   = "clock"
	TopicQuote   = "quote"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// ErrHubClosed is returned by ServeWS after Close.
var ErrHubClosed = errors.New("stream hub closed")

// Event is the message envelope sent to clients.
type Event struct {
	Topic  string    `json:"topic"`
	Data   any       `json:"data"`
	SentAt time.Time `json:"sentAt"`
}

// HubConfig holds configuration for the hub.
type HubConfig struct {
	Logger zerolog.Logger

	// CheckOrigin overrides the same-origin check (optional).
	CheckOrigin func(r *http.Request) bool

	// OnClientsChanged is called with +1/-1 as clients come and go (optional).
	OnClientsChanged func(topic string, delta int)

	// Now stamps events (default: time.Now).
	Now func() time.Time
}

type client struct {
	topic string
	conn  *websocket.Conn
	send  chan []byte
	once  sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub tracks connections per topic and fans out published events. Each
// connection has a single writer goroutine; a client whose buffer is full is
// dropped.
type Hub struct {
	upgrader websocket.Upgrader
	logger   zerolog.Logger
	onChange func(topic string, delta int)
	now      func() time.Time

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	last    map[string][]byte
	closed  bool
}

// NewHub creates a hub.
func NewHub(cfg HubConfig) *Hub {
	onChange := cfg.OnClientsChanged
	if onChange == nil {
		onChange = func(string, int) {}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
		logger:   cfg.Logger,
		onChange: onChange,
		now:      now,
		clients:  make(map[string]map[*client]struct{}),
		last:     make(map[string][]byte),
	}
}

// Publish sends data to every subscriber of topic and keeps it as the
// topic's latest event for clients that connect later.
func (h *Hub) Publish(topic string, data any) {
	msg, err := json.Marshal(Event{Topic: topic, Data: data, SentAt: h.now()})
	if err != nil {
		h.logger.Error().Err(err).Str("topic", topic).Msg("failed to marshal stream event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.last[topic] = msg

	for c := range h.clients[topic] {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn().Str("topic", topic).Msg("dropping slow stream client")
			h.removeLocked(c)
		}
	}
}

// ServeWS upgrades the request and streams topic until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, topic string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{topic: topic, conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.add(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return ErrHubClosed
	}

	h.logger.Debug().Str("topic", topic).Str("remote", r.RemoteAddr).Msg("stream client connected")

	go h.writePump(c)
	h.readPump(c)
	return nil
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	if h.clients[c.topic] == nil {
		h.clients[c.topic] = make(map[*client]struct{})
	}
	h.clients[c.topic][c] = struct{}{}
	if msg, ok := h.last[c.topic]; ok {
		c.send <- msg
	}
	h.onChange(c.topic, 1)
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	conns, ok := h.clients[c.topic]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.clients, c.topic)
	}
	c.close()
	h.onChange(c.topic, -1)
}

// readPump discards client messages and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
		h.logger.Debug().Str("topic", c.topic).Msg("stream client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Str("topic", c.topic).Msg("stream read error")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
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

// ClientCount returns the number of clients subscribed to topic.
func (h *Hub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, conns := range h.clients {
		for c := range conns {
			h.removeLocked(c)
		}
	}
}
