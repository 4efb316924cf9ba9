// Package stream broadcasts display frames to websocket clients.
package stream

import (
	"encoding/binary"
	"image/color"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/pthm-cable/fieldfx/field"
)

// HeaderSize is the length of the frame header: width then height, both
// little-endian uint32. RGBA bytes follow, rows top to bottom (field row 0
// last when the hub flips).
const HeaderSize = 8

// Hub is a pipeline.Sink that sends every Nth display frame to all
// connected clients as a binary message.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger
	every    int
	flipY    bool

	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex
	closed  bool

	frames uint64
	pixels []color.RGBA
	buf    []byte
}

// NewHub creates a hub broadcasting every Nth presented frame (every < 1
// means every frame), flipping rows vertically when flipY is set.
func NewHub(every int, flipY bool, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger.With("component", "stream"),
		every:   max(every, 1),
		flipY:   flipY,
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// ServeHTTP upgrades the request and keeps the client registered until it
// disconnects. Incoming messages are discarded.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[conn] = &sync.Mutex{}
	h.mu.Unlock()
	h.logger.Info("client connected", "remote", r.RemoteAddr)

	defer func() {
		h.remove(conn)
		h.logger.Info("client disconnected", "remote", r.RemoteAddr)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Present implements pipeline.Sink. Clients whose write fails are dropped;
// a failed client never fails the tick.
func (h *Hub) Present(v field.View) error {
	n := h.frames
	h.frames++
	if n%uint64(h.every) != 0 || h.Clients() == 0 {
		return nil
	}

	msg := h.encode(v)

	h.mu.RLock()
	var failed []*websocket.Conn
	for conn, mu := range h.clients {
		mu.Lock()
		err := conn.WriteMessage(websocket.BinaryMessage, msg)
		mu.Unlock()
		if err != nil {
			h.logger.Warn("write failed", "error", err)
			failed = append(failed, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range failed {
		h.remove(conn)
	}
	return nil
}

func (h *Hub) encode(v field.View) []byte {
	w, ht := v.Width(), v.Height()
	size := HeaderSize + w*ht*4
	if cap(h.buf) < size {
		h.buf = make([]byte, size)
	}
	buf := h.buf[:size]

	binary.LittleEndian.PutUint32(buf[0:], uint32(w))
	binary.LittleEndian.PutUint32(buf[4:], uint32(ht))

	h.pixels = field.ToRGBA(v, h.pixels, h.flipY)
	for i, px := range h.pixels {
		j := HeaderSize + i*4
		buf[j+0] = px.R
		buf[j+1] = px.G
		buf[j+2] = px.B
		buf[j+3] = px.A
	}
	return buf
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for conn, mu := range h.clients {
		mu.Lock()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
		mu.Unlock()
		conn.Close()
		delete(h.clients, conn)
	}
}
