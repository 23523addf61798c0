package ws

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/otterable/minifitna/internal/events"
)

// StatusFrame is the wire format pushed to connected clients. One frame
// is sent per engine event, so a client can render connectivity, trend
// and reminder state without polling.
type StatusFrame struct {
	Type      string            `json:"type"`
	Severity  string            `json:"severity"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

const writeWait = 10 * time.Second

// Hub fans engine events out to WebSocket clients.
type Hub struct {
	bus      *events.Bus
	subID    int
	upgrader websocket.Upgrader

	mu     sync.Mutex
	nextID int64
	conns  map[int64]*wsConn
}

type wsConn struct {
	conn *websocket.Conn
	done chan struct{}
}

// NewHub creates a hub and subscribes it to every event type on the bus.
func NewHub(bus *events.Bus) *Hub {
	h := &Hub{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[int64]*wsConn),
	}
	h.subID = bus.Subscribe(h.onEvent)
	return h
}

func (h *Hub) onEvent(evt events.Event) {
	h.Broadcast(StatusFrame{
		Type:      string(evt.Type),
		Severity:  evt.Severity.String(),
		Message:   evt.Message,
		Metadata:  evt.Metadata,
		Timestamp: evt.Timestamp,
	})
}

// HandleConnection upgrades the request and keeps the connection open
// until the client goes away. Clients are write-only from the hub's
// perspective; inbound messages are drained and discarded.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade failed: %v", err)
		return
	}

	wc := &wsConn{
		conn: conn,
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.conns[id] = wc
	h.mu.Unlock()

	log.Printf("[WS] Client %d connected from %s", id, r.RemoteAddr)

	go h.pingLoop(wc)
	h.readLoop(wc)

	h.mu.Lock()
	if h.conns[id] == wc {
		delete(h.conns, id)
	}
	h.mu.Unlock()
	close(wc.done)

	log.Printf("[WS] Client %d disconnected", id)
}

// readLoop blocks until the connection closes. Inbound payloads carry no
// meaning for the status stream, so they only refresh the read deadline.
func (h *Hub) readLoop(wc *wsConn) {
	defer wc.conn.Close()

	wc.conn.SetReadLimit(4 * 1024)
	wc.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	wc.conn.SetPongHandler(func(string) error {
		wc.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	for {
		if _, _, err := wc.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Read error: %v", err)
			}
			return
		}
		wc.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	}
}

// pingLoop sends periodic pings to keep the connection alive.
func (h *Hub) pingLoop(wc *wsConn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-wc.done:
			return
		case <-ticker.C:
			if err := wc.conn.WriteControl(
				websocket.PingMessage, nil,
				time.Now().Add(writeWait),
			); err != nil {
				return
			}
		}
	}
}

// Broadcast sends a frame to every connected client. Connections that
// fail the write are closed and removed.
func (h *Hub) Broadcast(frame StatusFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, wc := range h.conns {
		wc.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := wc.conn.WriteJSON(frame); err != nil {
			log.Printf("[WS] Dropping client %d: %v", id, err)
			wc.conn.Close()
			delete(h.conns, id)
		}
	}
}

// ActiveConnections returns the number of connected clients.
func (h *Hub) ActiveConnections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// CloseAll unsubscribes from the bus and terminates all connections.
func (h *Hub) CloseAll() {
	h.bus.Unsubscribe(h.subID)

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, wc := range h.conns {
		wc.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(5*time.Second),
		)
		wc.conn.Close()
		delete(h.conns, id)
	}
}
