package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	updateTimeout  = 15 * time.Second
	maxMessageSize = 512

	// Messages queued for a client beyond this many drop the client.
	sendBuffer = 16
)

// UpdateFunc computes the message sent to a client that asks for one.
type UpdateFunc func(ctx context.Context) (any, error)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans messages out to WebSocket subscribers. A subscriber that sends a
// text message is sent the result of the hub's UpdateFunc. Subscribers that
// can't keep up are disconnected.
type Hub struct {
	update   UpdateFunc
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub returns a hub that accepts connections from the given origins, or
// from anywhere if origins contains "*".
func NewHub(update UpdateFunc, origins []string) *Hub {
	return &Hub{
		update: update,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowOrigin(origins, origin)
				return ok
			},
		},
		clients: make(map[*client]struct{}),
	}
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// remove closes c's send queue, which ends its write loop. It is safe to
// call more than once.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// queue hands b to c without blocking, dropping c if its queue is full.
func (h *Hub) queue(c *client, b []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		delete(h.clients, c)
		close(c.send)
		return false
	}
}

// Broadcast sends v, encoded as JSON, to every subscriber. It returns the
// number of subscribers it was queued for.
func (h *Hub) Broadcast(v any) (int, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}

	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	sent := 0
	for _, c := range clients {
		if h.queue(c, b) {
			sent++
		}
	}
	return sent, nil
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	lg := zerolog.Ctx(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already responded.
		lg.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.add(c)
	lg.Info().Int("clients", h.Len()).Msg("WebSocket connected")

	go h.writeLoop(c)
	h.readLoop(context.WithoutCancel(r.Context()), c)

	lg.Info().Int("clients", h.Len()).Msg("WebSocket disconnected")
}

func (h *Hub) readLoop(ctx context.Context, c *client) {
	defer h.remove(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zerolog.Ctx(ctx).Warn().Err(err).Msg("WebSocket read failed")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if mt != websocket.TextMessage || h.update == nil {
			continue
		}
		h.reply(ctx, c)
	}
}

func (h *Hub) reply(ctx context.Context, c *client) {
	ctx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	v, err := h.update(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to compute update")
		v = errorResponse{Error: err.Error()}
	}

	b, err := json.Marshal(v)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to marshal update")
		return
	}
	h.queue(c, b)
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case b, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}
