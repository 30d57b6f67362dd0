// Package publish implements component D: the WebSocket fan-out. A Hub
// owns the set of connected subscribers and broadcasts one PublishedFrame
// per publisher tick, using a non-blocking send with a one-frame
// per-subscriber buffer — a slow subscriber never slows down the others.
// Grounded on Traxin77-Iot-gateway's internal/websocket Hub/Client
// (register/unregister/broadcast channel triad, buffered Send channel,
// ping/pong keepalive), adapted from a generic byte-broadcast hub to one
// that broadcasts a single typed snapshot per tick instead of arbitrary
// payloads pushed ad hoc from callers.
package publish

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/adsbgo/pipeline/internal/model"
)

// sendBufferSize is the per-subscriber buffer depth. spec.md §4.4 calls
// for exactly one frame of slack: if a subscriber hasn't drained the
// previous tick's frame, the new one is dropped for that subscriber only.
const sendBufferSize = 1

// Client is one connected WebSocket subscriber.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub owns the subscriber set. It is mutated only from inside Run's
// select loop; Register/Unregister/Broadcast are message-passing
// accessors, never direct map access, per spec.md §5's ownership rule.
type Hub struct {
	log *slog.Logger

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan model.PublishedFrame

	mu          sync.RWMutex
	subscribers int
}

// NewHub creates a Hub. Call Run to start its owning task.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:        log,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan model.PublishedFrame, 1),
	}
}

// Run is the hub's owning task. It takes no context and never returns;
// its goroutine lives until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.mu.Lock()
			h.subscribers = len(h.clients)
			h.mu.Unlock()
			h.log.Info("subscriber connected", "remote", client.conn.RemoteAddr())

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.mu.Lock()
				h.subscribers = len(h.clients)
				h.mu.Unlock()
				h.log.Info("subscriber disconnected", "remote", client.conn.RemoteAddr())
			}

		case frame := <-h.broadcast:
			payload, err := json.Marshal(frame)
			if err != nil {
				h.log.Error("failed to marshal published frame", "error", err)
				continue
			}
			for client := range h.clients {
				select {
				case client.send <- payload:
				default:
					h.log.Warn("subscriber send buffer full, dropping frame", "remote", client.conn.RemoteAddr())
				}
			}
		}
	}
}

// Broadcast enqueues one frame for the hub's task to fan out. Exactly one
// broadcast happens per call; if the hub hasn't drained a prior frame
// (which should not happen under normal tick cadence) this blocks briefly
// rather than silently coalescing ticks.
func (h *Hub) Broadcast(frame model.PublishedFrame) {
	h.broadcast <- frame
}

// SubscriberCount reports the current number of registered subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.subscribers
}

// Register adds a newly-upgraded connection to the hub and starts its
// pump goroutines.
func (h *Hub) Register(conn *websocket.Conn) {
	client := &Client{hub: h, conn: conn, send: make(chan []byte, sendBufferSize)}
	h.register <- client
	go client.writePump()
	go client.readPump()
}
