// Package telemetry adapts the channel-state event model onto a WebSocket
// hub for live monitoring clients, grounded on dbehnke-dmr-nexus's
// pkg/web/websocket.go WebSocketHub: a register/unregister/broadcast event loop feeding
// per-client buffered writer goroutines.
package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/go-trunk/trunkcore/pkg/channelstate"
	"github.com/go-trunk/trunkcore/pkg/logger"
)

// Event is a WebSocket message broadcast to telemetry clients.
type Event struct {
	Channel   string                 `json:"channel"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Marshal converts an event to JSON bytes.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Client is one connected WebSocket subscriber.
type Client struct {
	ID       string
	conn     *websocket.Conn
	messages chan []byte
}

// Hub manages WebSocket client connections and broadcasts channel-state
// activity translated into Events.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	logger     *logger.Logger
	mu         sync.RWMutex
}

// NewHub creates a new telemetry hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     log,
	}
}

// Run starts the hub's event loop. It returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("telemetry client registered", logger.String("client_id", client.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.messages)
			}
			h.mu.Unlock()
			h.logger.Debug("telemetry client unregistered", logger.String("client_id", client.ID))

		case event := <-h.broadcast:
			data, err := event.Marshal()
			if err != nil {
				h.logger.Error("failed to marshal telemetry event", logger.Error(err))
				continue
			}

			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.messages <- data:
				default:
					h.logger.Warn("telemetry client buffer full, skipping", logger.String("client_id", client.ID))
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			h.logger.Info("telemetry hub shutting down")
			h.mu.Lock()
			for client := range h.clients {
				close(client.messages)
			}
			h.clients = make(map[*Client]bool)
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast sends event to all connected clients.
func (h *Hub) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("telemetry broadcast channel full, dropping event", logger.String("event_type", event.Type))
	}
}

// SubscribeChannel registers a listener on bus that translates every
// channelstate.Event it sees into a telemetry Event tagged with channel and
// broadcasts it to connected clients.
func (h *Hub) SubscribeChannel(channel string, bus *channelstate.Bus) {
	bus.Subscribe(func(event channelstate.Event) {
		h.Broadcast(translateEvent(channel, event))
	})
}

func translateEvent(channel string, event channelstate.Event) Event {
	data := map[string]interface{}{
		"state": event.State.String(),
	}

	switch event.Type {
	case channelstate.EventChangedAttribute:
		data["attribute"] = event.Changed.Attribute.String()
		data["value"] = event.Changed.Value
	case channelstate.EventSourceFrequency:
		data["frequency_hz"] = event.FrequencyHz
	case channelstate.EventCall:
		data["call_id"] = event.Call.ID
		data["call_type"] = event.Call.Type.String()
		data["from"] = event.Call.From
		data["to"] = event.Call.To
		data["details"] = event.Call.Details
		if event.Call.Channel != "" {
			data["channel_number"] = event.Call.Channel
			data["frequency_hz"] = event.Call.FrequencyHz
		}
	case channelstate.EventTrafficChannelAllocation:
		data["channel_number"] = event.Allocation.Channel
		data["frequency_hz"] = event.Allocation.FrequencyHz
		data["from"] = event.Allocation.Call.From
		data["to"] = event.Allocation.Call.To
	case channelstate.EventChangeChannelTimeout:
		if event.Timeout != nil {
			data["timeout_ms"] = event.Timeout.Timeout.Milliseconds()
		}
	case channelstate.EventMetadata:
		data["attribute"] = event.MetadataRecord.Attribute.String()
		data["value"] = event.MetadataRecord.Value
	}

	return Event{
		Channel:   channel,
		Type:      event.Type.String(),
		Timestamp: time.Now(),
		Data:      data,
	}
}

// Handler returns an HTTP handler that upgrades to a WebSocket connection
// and streams broadcast telemetry events to the client.
func (h *Hub) Handler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "websocket upgrade failed", http.StatusBadRequest)
			return
		}
		client := &Client{ID: uuid.NewString(), conn: conn, messages: make(chan []byte, 256)}
		h.register <- client

		go func() {
			defer func() {
				h.unregister <- client
				_ = client.conn.Close()
			}()
			client.conn.SetReadLimit(1024)
			for {
				if _, _, err := client.conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		go func() {
			for msg := range client.messages {
				_ = client.conn.WriteMessage(websocket.TextMessage, msg)
			}
		}()
	})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
