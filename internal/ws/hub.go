package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ai-trading-agent/internal/logger"
)

// Topics pushed to dashboard clients.
const (
	TopicPortfolio    = "portfolio"
	TopicTrades       = "trades"
	TopicAIDecisions  = "ai_decisions"
	TopicEngineStatus = "engine_status"
	TopicNews         = "news"
	TopicMarketData   = "market_data"
)

var validTopics = map[string]bool{
	TopicPortfolio:    true,
	TopicTrades:       true,
	TopicAIDecisions:  true,
	TopicEngineStatus: true,
	TopicNews:         true,
	TopicMarketData:   true,
}

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(*http.Request) bool { return true },
	EnableCompression: true,
}

// Envelope is the wire format for every pushed message.
type Envelope struct {
	Topic     string `json:"topic"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}

// controlMsg is what clients send: subscribe, unsubscribe or ping.
type controlMsg struct {
	Action string `json:"action"`
	Topic  string `json:"topic,omitempty"`
}

type client struct {
	id     string
	conn   *websocket.Conn
	out    chan Envelope
	done   chan struct{}
	once   sync.Once
	topics map[string]bool
	mu     sync.RWMutex
}

// close signals both loops to stop. The out channel is never closed, so a
// racing send can only park until done is observed.
func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *client) subscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topics[topic]
}

func (c *client) setTopic(topic string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.topics[topic] = true
	} else {
		delete(c.topics, topic)
	}
}

// Hub fans broadcast messages out to connected websocket clients. New clients
// start subscribed to every topic and narrow the set with control messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
	}
}

// Broadcast pushes data to all clients subscribed to a topic. Clients with a
// full send buffer are dropped.
func (h *Hub) Broadcast(topic string, data any) {
	env := Envelope{
		Topic:     topic,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	}

	h.mu.RLock()
	var stale []*client
	for c := range h.clients {
		if !c.subscribed(topic) {
			continue
		}
		select {
		case c.out <- env:
		default:
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		h.remove(c)
	}
}

// ClientCount reports connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

// ServeHTTP lets the hub mount directly on a router.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.ServeWS(w, r)
}

// ServeWS upgrades the request and pumps messages until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.ErrorWithErr(r.Context(), "Websocket upgrade failed", err)
		return
	}

	c := &client{
		id:     uuid.NewString(),
		conn:   conn,
		out:    make(chan Envelope, 64),
		done:   make(chan struct{}),
		topics: make(map[string]bool, len(validTopics)),
	}
	for topic := range validTopics {
		c.topics[topic] = true
	}

	h.add(c)
	logger.Info(r.Context(), "Websocket client connected", "client_id", c.id)

	go h.writeLoop(c)
	h.readLoop(r.Context(), c)
}

func (h *Hub) writeLoop(c *client) {
	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-c.done:
			return
		case env := <-c.out:
			if err := c.conn.WriteJSON(env); err != nil {
				h.remove(c)
				return
			}
		case <-ping.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

func (h *Hub) readLoop(ctx context.Context, c *client) {
	defer func() {
		h.remove(c)
		logger.Info(ctx, "Websocket client disconnected", "client_id", c.id)
	}()

	c.conn.SetReadLimit(4096)
	for {
		var ctrl controlMsg
		if err := c.conn.ReadJSON(&ctrl); err != nil {
			return
		}

		switch ctrl.Action {
		case "subscribe":
			if validTopics[ctrl.Topic] {
				c.setTopic(ctrl.Topic, true)
			}
		case "unsubscribe":
			if validTopics[ctrl.Topic] {
				c.setTopic(ctrl.Topic, false)
			}
		case "ping":
			select {
			case c.out <- Envelope{
				Topic:     "pong",
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			}:
			case <-c.done:
				return
			default:
			}
		}
	}
}
