package server

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/Mappledude/jampoker/internal/gateway"
)

// Hub tracks feed connections and broadcasts committed events to the
// connections watching the event's table
type Hub struct {
	connections map[*Connection]bool
	register    chan *Connection
	unregister  chan *Connection
	done        chan struct{}
	logger      *log.Logger
	mu          sync.RWMutex
}

// NewHub creates a hub. Run must be running before connections register.
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		done:        make(chan struct{}),
		logger:      logger.WithPrefix("hub"),
	}
}

// Run handles connection lifecycle until ctx is done, then closes every
// connection. Run must only be called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn] = true
			total := len(h.connections)
			h.mu.Unlock()
			h.logger.Debug("Client connected", "table", conn.TableID(), "total", total)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn]; ok {
				delete(h.connections, conn)
				_ = conn.Close()
			}
			total := len(h.connections)
			h.mu.Unlock()
			h.logger.Debug("Client disconnected", "table", conn.TableID(), "total", total)

		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.connections {
				_ = conn.Close()
			}
			clear(h.connections)
			h.mu.Unlock()
			return
		}
	}
}

// attach registers conn and unregisters it once it closes. It returns
// false when the hub has stopped.
func (h *Hub) attach(conn *Connection) bool {
	select {
	case h.register <- conn:
	case <-h.done:
		return false
	}
	go func() {
		<-conn.Done()
		select {
		case h.unregister <- conn:
		case <-h.done:
		}
	}()
	return true
}

// Publish implements gateway.Publisher
func (h *Hub) Publish(e gateway.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for conn := range h.connections {
		if conn.TableID() != e.TableID {
			continue
		}
		if err := conn.Send(e); err != nil {
			h.logger.Warn("Failed to send event", "table", e.TableID, "kind", e.Kind, "error", err)
			continue
		}
		count++
	}

	h.logger.Debug("Broadcast event", "table", e.TableID, "kind", e.Kind, "recipients", count)
}

// Watchers returns how many connections follow tableID
func (h *Hub) Watchers(tableID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for conn := range h.connections {
		if conn.TableID() == tableID {
			n++
		}
	}
	return n
}

var _ gateway.Publisher = (*Hub)(nil)
