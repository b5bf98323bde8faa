package wsctl

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("main.wsctl")

// broadcastQueueLen is the per-client outbound buffer depth. A client
// that can't keep up gets dropped rather than letting it stall the
// broadcast to everyone else.
const broadcastQueueLen = 32

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler dispatches a parsed Command. The device owner implements this.
type Handler interface {
	Handle(cmd Command) error
	// StatusSnapshot returns the frames a newly connected client should
	// be greeted with: current playback status (omitted entirely if
	// idle), volume, and generation availability.
	StatusSnapshot() []string
}

// client is one connected WebSocket peer.
type client struct {
	conn *websocket.Conn
	send chan string
}

// Hub tracks every connected client and fans broadcasts out to them.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	handler Handler
}

func NewHub(handler Handler) *Hub {
	return &Hub{clients: make(map[*client]struct{}), handler: handler}
}

// Broadcast sends msg to every connected client's outbound queue,
// non-blocking: a full queue means that client is dropped.
func (h *Hub) Broadcast(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			logger.Warningf("client send queue full, dropping client")
			h.removeLocked(c)
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// ServeHTTP upgrades the request to a WebSocket, sends the current
// status as a unicast frame, then pumps reads and writes until the
// connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warningf("ws upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan string, broadcastQueueLen)}
	h.add(c)

	for _, frame := range h.handler.StatusSnapshot() {
		c.send <- frame
	}

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		cmd, err := Parse(string(data))
		if err != nil {
			logger.Debugf("dropping malformed frame: %v", err)
			continue
		}
		if err := h.handler.Handle(cmd); err != nil {
			logger.Warningf("command handling failed: %v", err)
		}
	}
}

func (h *Hub) writePump(c *client) {
	const writeWait = 5 * time.Second
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			return
		}
	}
}
