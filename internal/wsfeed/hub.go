// Package wsfeed streams attribute-change notifications to subscribed
// WebSocket clients: one hub holds every client and delivers each message
// only to the clients subscribed to that message's peripheral.
package wsfeed

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

// Client represents one connected WebSocket subscriber, scoped to a
// single peripheral.
type Client struct {
	conn         *websocket.Conn
	peripheralID uint64
	send         chan Message
	logger       *zap.Logger
}

// Hub manages active WebSocket connections and broadcasts messages to
// the clients subscribed to the affected peripheral.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *zap.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("wsfeed client connected", zap.Uint64("peripheral_id", c.peripheralID))
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.logger.Debug("wsfeed client disconnected", zap.Uint64("peripheral_id", c.peripheralID))
}

// Broadcast sends msg to every client subscribed to msg.PeripheralID.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if c.peripheralID != msg.PeripheralID {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("wsfeed client send buffer full, dropping message",
				zap.Uint64("peripheral_id", c.peripheralID))
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := wsjson.Write(writeCtx, c.conn, msg); err != nil {
				cancel()
				c.logger.Debug("wsfeed write error", zap.Error(err))
				return
			}
			cancel()
		}
	}
}

// readPump drains client reads to detect disconnect; kpald expects no
// client-to-server messages on this feed.
func (c *Client) readPump(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}
