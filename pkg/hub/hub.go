// Package hub provides a thread-safe websocket broadcast hub
// using the channel-based fan-out pattern.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/teslashibe/glow/internal/log"
	"github.com/teslashibe/glow/pkg/metrics"
	"github.com/teslashibe/glow/pkg/protocol"
)

// MessageHandler receives every message a client sends.
type MessageHandler func(c *Client, data []byte)

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	name   string
	logger *slog.Logger

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu        sync.RWMutex
	onMessage MessageHandler
	count     int
}

// New creates a hub. Call Run to start it.
func New(name string, logger *slog.Logger) *Hub {
	return &Hub{
		name:       name,
		logger:     log.Component(logger, "hub").With("hub", name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// OnMessage sets the handler for client messages.
func (h *Hub) OnMessage(fn MessageHandler) {
	h.mu.Lock()
	h.onMessage = fn
	h.mu.Unlock()
}

func (h *Hub) messageHandler() MessageHandler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.onMessage
}

// Run is the hub's main loop. It returns when ctx is cancelled, after
// closing every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for client := range h.clients {
			client.close()
			delete(h.clients, client)
		}
		h.setCount(0)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client] = true
			h.setCount(len(h.clients))
			h.logger.Info("client connected", "client", client.ID, "total", len(h.clients))

		case client := <-h.unregister:
			if h.clients[client] {
				delete(h.clients, client)
				client.close()
			}
			h.setCount(len(h.clients))
			h.logger.Info("client disconnected", "client", client.ID, "remaining", len(h.clients))

		case data := <-h.broadcast:
			for client := range h.clients {
				if !client.Send(data) {
					// Too slow to keep up.
					client.close()
					delete(h.clients, client)
					h.logger.Warn("dropped slow client", "client", client.ID)
				}
			}
			h.setCount(len(h.clients))
		}
	}
}

func (h *Hub) registerClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.close()
	}
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
	metrics.WSClients.Set(float64(n))
}

// Broadcast sends data to every connected client. It never blocks; when the
// broadcast queue is full the message is dropped.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("broadcast queue full, dropping message")
	}
}

// BroadcastMessage encodes and broadcasts msg.
func (h *Hub) BroadcastMessage(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// BroadcastJSON encodes and broadcasts v.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}
