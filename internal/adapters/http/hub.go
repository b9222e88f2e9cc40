package http

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"

	"github.com/studyplanner/core/internal/infrastructure/logger"
	"github.com/studyplanner/core/internal/ports"
)

// Change feed message types
const (
	MessageTypeHello              = "hello"
	MessageTypeTimetableUpdated   = "timetable.updated"
	MessageTypeCollectionReloaded = "collection.reloaded"
)

const writeTimeout = 5 * time.Second

// Message is one change feed notification. Clients refetch the named
// resource; the message never carries the document itself.
type Message struct {
	Type       string    `json:"type"`
	Version    int       `json:"version,omitempty"`
	Collection string    `json:"collection,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Hub fans change notifications out to websocket subscribers
type Hub struct {
	clients   map[*websocket.Conn]struct{}
	clientsMu sync.RWMutex

	broadcast chan Message
	origins   []string
	logger    *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ ports.TimetableNotifier = (*Hub)(nil)

// NewHub creates a hub. origins are websocket origin patterns; empty allows same-origin only.
func NewHub(origins []string, log *logger.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:   make(map[*websocket.Conn]struct{}),
		broadcast: make(chan Message, 100),
		origins:   origins,
		logger:    log.WithComponent("hub"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start runs the broadcast loop
func (h *Hub) Start() {
	h.wg.Add(1)
	go h.broadcastLoop()
}

// Stop closes every client and waits for the broadcast loop to exit
func (h *Hub) Stop() {
	h.cancel()

	h.clientsMu.Lock()
	for conn := range h.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(h.clients, conn)
	}
	h.clientsMu.Unlock()

	h.wg.Wait()
}

// TimetableUpdated queues a timetable.updated notification
func (h *Hub) TimetableUpdated(version int) {
	h.Broadcast(Message{Type: MessageTypeTimetableUpdated, Version: version})
}

// CollectionReloaded queues a notification for a collection changed on disk
func (h *Hub) CollectionReloaded(collection string) {
	h.Broadcast(Message{Type: MessageTypeCollectionReloaded, Collection: collection})
}

// Broadcast queues msg for every client. Messages are dropped when the queue is full.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warnw("Broadcast queue full, dropping message", "type", msg.Type)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Handle upgrades the request to a websocket subscription
func (h *Hub) Handle(c echo.Context) error {
	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		// Accept has already written the error response
		h.logger.Warnw("WebSocket upgrade failed", "error", err)
		return nil
	}

	h.clientsMu.Lock()
	h.clients[conn] = struct{}{}
	count := len(h.clients)
	h.clientsMu.Unlock()

	h.logger.Debugw("Client connected", "clients", count)

	h.send(conn, Message{Type: MessageTypeHello, Timestamp: time.Now().UTC()})

	go h.readLoop(conn)
	return nil
}

func (h *Hub) broadcastLoop() {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			return

		case msg := <-h.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now().UTC()
			}

			h.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(h.clients))
			for conn := range h.clients {
				clients = append(clients, conn)
			}
			h.clientsMu.RUnlock()

			for _, conn := range clients {
				h.send(conn, msg)
			}
		}
	}
}

func (h *Hub) send(conn *websocket.Conn, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Errorw("Failed to marshal message", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		h.logger.Debugw("Failed to send to client", "error", err)
		h.removeClient(conn)
	}
}

// readLoop discards client frames and detects disconnects
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.removeClient(conn)

	for {
		if _, _, err := conn.Read(h.ctx); err != nil {
			return
		}
	}
}

func (h *Hub) removeClient(conn *websocket.Conn) {
	h.clientsMu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	count := len(h.clients)
	h.clientsMu.Unlock()

	if ok {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		h.logger.Debugw("Client disconnected", "clients", count)
	}
}
