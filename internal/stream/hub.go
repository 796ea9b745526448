package stream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Faultbox/physbox/internal/logger"
)

const (
	writeTimeout  = time.Second
	commandBuffer = 64
)

// Command is a client request. It is applied between ticks by Run.
type Command struct {
	Type     string     `json:"type"`
	Object   string     `json:"object,omitempty"`
	Position [3]float32 `json:"position"`
}

// Hub is an http.Handler that upgrades requests to websocket connections
// and fans broadcasts out to every connected client.
type Hub struct {
	upgrader websocket.Upgrader
	commands chan Command
	log      *zap.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	last    []byte
	closed  bool
}

// NewHub creates a hub that accepts connections from any origin.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		commands: make(chan Command, commandBuffer),
		log:      logger.Named("stream"),
		clients:  make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP registers the client and sends it the latest broadcast so it
// does not wait a tick for the first state.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[conn] = struct{}{}
	if h.last != nil {
		if err := write(conn, h.last); err != nil {
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
			return
		}
	}
	n := len(h.clients)
	h.mu.Unlock()

	h.log.Info("client connected", zap.String("remote", r.RemoteAddr), zap.Int("clients", n))
	go h.read(conn)
}

func (h *Hub) read(conn *websocket.Conn) {
	defer h.drop(conn)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("client read failed", zap.Error(err))
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.log.Warn("malformed command", zap.Error(err))
			continue
		}
		select {
		case h.commands <- cmd:
		default:
			h.log.Warn("command dropped", zap.String("type", cmd.Type))
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	n := len(h.clients)
	h.mu.Unlock()

	conn.Close()
	if ok {
		h.log.Info("client disconnected", zap.String("remote", conn.RemoteAddr().String()), zap.Int("clients", n))
	}
}

func write(conn *websocket.Conn, data []byte) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Broadcast encodes v once and writes it to every client. Clients that
// cannot keep up are disconnected.
func (h *Hub) Broadcast(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = data
	for conn := range h.clients {
		if err := write(conn, data); err != nil {
			h.log.Debug("dropping slow client", zap.Error(err))
			delete(h.clients, conn)
			conn.Close()
		}
	}
	return nil
}

// Commands delivers client commands in arrival order.
func (h *Hub) Commands() <-chan Command { return h.commands }

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close says goodbye to every client and refuses new connections.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for conn := range h.clients {
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
		conn.Close()
	}
	clear(h.clients)
}
