// Package broadcast implements the realtime fan-out of module state to
// connected frontend clients over websockets. Delivery is best effort:
// there is no acknowledgment, no retry, and no backlog for clients that
// connect after an event was published. Staleness is bounded by the next
// publish, and every new connection starts from a full snapshot.
package broadcast

import (
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// EventInitModuleStatus carries the point-in-time name to isActive mapping
// sent exactly once to each newly connected subscriber.
const EventInitModuleStatus = "init-module-status"

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Outbound buffer per subscriber. A subscriber that falls this far
	// behind is dropped rather than allowed to stall the fan-out.
	sendBuffer = 16
)

// Event is the wire frame pushed to subscribers.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks all connected subscribers and fans published events out to
// them. Exactly one hub exists per process; it is constructed during boot
// and handed to the components that publish through it.
type Hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// Subscribe registers an upgraded websocket connection and immediately
// queues the init-module-status snapshot as the connection's first frame.
// The connection is serviced by its own reader and writer goroutines and is
// dropped silently when either fails.
func (h *Hub) Subscribe(conn *websocket.Conn, snapshot map[string]bool) {
	s := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}

	init, err := json.Marshal(Event{Event: EventInitModuleStatus, Data: snapshot})
	if err != nil {
		log.WithError(err).Error("broadcast: failed to encode init snapshot")
		_ = conn.Close()
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.subs[s] = struct{}{}
	// Queued while holding the lock so no concurrent Publish can slot an
	// event ahead of the snapshot.
	s.send <- init
	h.mu.Unlock()

	go s.writePump(h)
	go s.readPump(h)
}

// Publish encodes the payload once and fans it out to every connected
// subscriber. A subscriber whose outbound buffer is full is disconnected;
// events delivered to a single subscriber always match publish order.
func (h *Hub) Publish(event string, payload interface{}) {
	msg, err := json.Marshal(Event{Event: event, Data: payload})
	if err != nil {
		log.WithError(err).WithField("event", event).Error("broadcast: failed to encode event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.send <- msg:
		default:
			h.dropLocked(s)
		}
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber and refuses new ones. Used during
// daemon shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		h.dropLocked(s)
	}
}

func (h *Hub) drop(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(s)
}

func (h *Hub) dropLocked(s *subscriber) {
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.send)
}

// writePump drains the outbound channel onto the wire and keeps the
// connection alive with periodic pings.
func (s *subscriber) writePump(h *Hub) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.drop(s)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(s)
				return
			}
		}
	}
}

// readPump discards anything the client sends and detects disconnects.
// Subscribers are read-only observers; there is no inbound protocol.
func (s *subscriber) readPump(h *Hub) {
	defer h.drop(s)

	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
