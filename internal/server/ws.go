package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// wsClient is one connection and its pending message. The slot holds at most one
// message; a newer snapshot replaces one the writer has not picked up yet.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// offer replaces any pending message with msg. Only the hub calls it, under h.mu.
func (c *wsClient) offer(msg []byte) {
	select {
	case c.send <- msg:
		return
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- msg:
	default:
	}
}

// Hub broadcasts session snapshots to connected WebSocket clients. New clients
// receive the latest snapshot immediately. Each client is written from its own
// goroutine, so Publish never waits on the network.
type Hub struct {
	logger  zerolog.Logger
	clients map[*wsClient]bool
	latest  []byte
	mu      sync.Mutex
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*wsClient]bool),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish encodes v as JSON and queues it for every client. Slow clients skip
// intermediate snapshots.
func (h *Hub) Publish(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		h.logger.Error().Err(err).Msg("encode snapshot")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = msg
	for c := range h.clients {
		c.offer(msg)
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, 1)}

	h.mu.Lock()
	if h.latest != nil {
		c.offer(h.latest)
	}
	h.clients[c] = true
	h.mu.Unlock()

	done := make(chan struct{})
	go h.write(c, done)

	defer func() {
		h.remove(c)
		close(done)
		conn.Close()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// write sends queued messages to c until done is closed or a write fails.
func (h *Hub) write(c *wsClient, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug().Err(err).Msg("dropping websocket client")
				h.remove(c)
				c.conn.Close()
				return
			}
		}
	}
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}
