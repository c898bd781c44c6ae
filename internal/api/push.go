package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/tomz197/sshtargets/internal/leaderboard"
	"github.com/tomz197/sshtargets/internal/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// pushHub fans high-score documents out to websocket subscribers.
type pushHub struct {
	mu      sync.Mutex
	clients map[*pushClient]bool
	logger  *log.Logger
}

type pushClient struct {
	conn *websocket.Conn
	send chan []byte
}

func newPushHub(logger *log.Logger) *pushHub {
	return &pushHub{clients: make(map[*pushClient]bool), logger: logger}
}

func (h *pushHub) add(c *pushClient) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

func (h *pushHub) remove(c *pushClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

// broadcast queues the document for every client; clients too slow to keep
// up are dropped.
func (h *pushHub) broadcast(list []leaderboard.Record) {
	data, err := store.Encode(list)
	if err != nil {
		h.logger.Error("failed to encode broadcast", "err", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *pushHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *pushHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.Load(r.Context())
	if err != nil {
		s.internalError(w, r, "failed to load highscores", err)
		return
	}
	initial, err := store.Encode(list)
	if err != nil {
		s.internalError(w, r, "failed to encode highscores", err)
		return
	}

	up := upgrader
	up.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || s.allowOrigin(origin)
	}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &pushClient{conn: conn, send: make(chan []byte, 8)}
	c.send <- initial
	s.push.add(c)

	go c.writePump()
	c.readPump(s.push)
}

// readPump discards incoming messages and notices when the peer goes away.
func (c *pushClient) readPump(h *pushHub) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *pushClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
