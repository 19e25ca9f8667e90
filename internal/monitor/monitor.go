// Package monitor streams virtual controller state to websocket clients.
package monitor

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Alia5/padbridge/bridge"
	"github.com/Alia5/padbridge/xinput"
	"github.com/Alia5/padbridge/xoutput"

	"github.com/gorilla/websocket"
)

const sendBuffer = 64

// Message is one controller state update.
type Message struct {
	Type       string             `json:"type"`
	Seq        int64              `json:"seq"`
	Timestamp  int64              `json:"timestamp"`
	Controller string             `json:"controller"`
	Name       string             `json:"name"`
	Running    bool               `json:"running"`
	Slot       int                `json:"slot"`
	Values     map[string]float64 `json:"values"`
	Changed    []string           `json:"changed,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans controller updates out to every connected client. A client whose
// buffer is full is dropped.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	seq     int64
	latest  map[string][]byte
	unsubs  map[string]func()
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: map[*client]struct{}{},
		latest:  map[string][]byte{},
		unsubs:  map[string]func(){},
	}
}

// Watch broadcasts every output change of c until Close. Watching a
// controller twice is a no-op.
func (h *Hub) Watch(c *bridge.GameController) {
	h.mu.Lock()
	if _, ok := h.unsubs[c.ID()]; ok {
		h.mu.Unlock()
		return
	}
	h.unsubs[c.ID()] = func() {}
	h.mu.Unlock()

	h.publish(c, xoutput.ChangedEvent{State: c.Output()})
	unsub := c.OnOutputChanged(func(e xoutput.ChangedEvent) { h.publish(c, e) })

	h.mu.Lock()
	h.unsubs[c.ID()] = unsub
	h.mu.Unlock()
}

func (h *Hub) publish(c *bridge.GameController, e xoutput.ChangedEvent) {
	msg := Message{
		Type:       "state",
		Timestamp:  time.Now().UnixMilli(),
		Controller: c.ID(),
		Name:       c.Name(),
		Running:    c.State() == bridge.Running,
		Slot:       c.Slot(),
		Values:     make(map[string]float64, xinput.ChannelCount),
	}
	for _, ch := range xinput.Channels() {
		msg.Values[ch.String()] = e.State.Value(ch)
	}
	for _, ch := range e.Channels {
		msg.Changed = append(msg.Changed, ch.String())
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	msg.Seq = h.seq
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode monitor message", "error", err)
		return
	}
	h.latest[c.ID()] = data
	for cl := range h.clients {
		h.enqueueLocked(cl, data)
	}
}

func (h *Hub) enqueueLocked(cl *client, data []byte) {
	select {
	case cl.send <- data:
	default:
		h.removeLocked(cl)
		h.logger.Warn("Monitor client too slow, disconnecting", "remote", cl.conn.RemoteAddr())
	}
}

func (h *Hub) removeLocked(cl *client) {
	if _, ok := h.clients[cl]; !ok {
		return
	}
	delete(h.clients, cl)
	close(cl.send)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and sends the last known state of every
// watched controller before streaming updates.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	cl := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[cl] = struct{}{}
	for _, data := range h.latest {
		h.enqueueLocked(cl, data)
	}
	h.mu.Unlock()
	h.logger.Info("Monitor client connected", "remote", conn.RemoteAddr())

	go h.writePump(cl)
	go h.readPump(cl)
}

func (h *Hub) writePump(cl *client) {
	defer cl.conn.Close()
	for data := range cl.send {
		if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("monitor write failed", "error", err)
			h.drop(cl)
			return
		}
	}
	_ = cl.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump only watches for the client going away.
func (h *Hub) readPump(cl *client) {
	defer h.drop(cl)
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) drop(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[cl]; ok {
		h.removeLocked(cl)
		h.logger.Info("Monitor client disconnected", "remote", cl.conn.RemoteAddr())
	}
}

// Handler returns the monitor routes.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	return mux
}

// Close unsubscribes from every controller and disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, unsub := range h.unsubs {
		unsub()
		delete(h.unsubs, id)
	}
	for cl := range h.clients {
		h.removeLocked(cl)
	}
}
