package wsfeed

import (
	"context"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/kpal-project/kpal/internal/event"
)

// Handler provides the WebSocket endpoint for real-time attribute
// updates: GET /ws/peripherals/{id}.
type Handler struct {
	hub    *Hub
	bus    *event.Bus
	logger *zap.Logger
}

// NewHandler creates a WebSocket handler and subscribes to attribute
// update events published by internal/core.
func NewHandler(bus *event.Bus, logger *zap.Logger) *Handler {
	h := &Handler{
		hub:    NewHub(logger),
		bus:    bus,
		logger: logger,
	}
	h.subscribeToEvents()
	return h
}

// RegisterRoutes registers the wsfeed route on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/peripherals/{id}", h.handleAttributeStream)
}

func (h *Handler) handleAttributeStream(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid peripheral id", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Error("wsfeed accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:         conn,
		peripheralID: id,
		send:         make(chan Message, 64),
		logger:       h.logger,
	}

	h.hub.Register(client)

	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	client.readPump(ctx)

	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}

func (h *Handler) subscribeToEvents() {
	if h.bus == nil {
		return
	}

	h.bus.Subscribe(event.AttributeUpdatedTopic, func(_ context.Context, ev event.Event) {
		h.hub.Broadcast(Message{
			Type:         MessageAttributeUpdated,
			PeripheralID: ev.PeripheralID,
			Data:         AttributeUpdated{Attribute: ev.Attribute},
		})
	})

	h.logger.Info("subscribed to attribute update events for wsfeed broadcasting")
}
