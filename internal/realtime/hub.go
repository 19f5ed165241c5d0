package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gitscout/gitscout-backend/internal/platform/logger"
)

// Event types carried over a progress stream. Exactly one terminal
// event (complete or error) ends a stream.
const (
	EventStep     = "step"
	EventComplete = "complete"
	EventError    = "error"
)

type Event struct {
	Channel string `json:"channel"`
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
}

// IsTerminal reports whether the event ends its stream.
func (e Event) IsTerminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

type Client struct {
	ID       uuid.UUID
	Channel  string
	Outbound chan Event
	done     chan struct{}
}

// Hub fans events out to the SSE clients subscribed to a channel.
// Outbound buffers are bounded; a slow consumer loses events rather
// than blocking the producer.
type Hub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	subscriptions map[string]map[*Client]bool
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:           log.With("component", "Hub"),
		subscriptions: make(map[string]map[*Client]bool),
	}
}

func (h *Hub) Subscribe(channel string) *Client {
	client := &Client{
		ID:       uuid.New(),
		Channel:  channel,
		Outbound: make(chan Event, 16),
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	clients, ok := h.subscriptions[channel]
	if !ok {
		clients = make(map[*Client]bool)
		h.subscriptions[channel] = clients
	}
	clients[client] = true
	h.mu.Unlock()

	h.log.Debug("sse client subscribed", "client_id", client.ID, "channel", channel)
	return client
}

func (h *Hub) Unsubscribe(client *Client) {
	h.mu.Lock()
	if clients, ok := h.subscriptions[client.Channel]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.subscriptions, client.Channel)
		}
	}
	h.mu.Unlock()

	select {
	case <-client.done:
	default:
		close(client.done)
	}
	h.log.Debug("sse client unsubscribed", "client_id", client.ID, "channel", client.Channel)
}

func (h *Hub) Broadcast(ev Event) {
	if ev.Channel == "" {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.subscriptions[ev.Channel]
	if !ok {
		return
	}
	for c := range clients {
		select {
		case c.Outbound <- ev:
		default:
			h.log.Warn("dropping sse event, outbound buffer full", "client_id", c.ID, "channel", ev.Channel)
		}
	}
}

// ServeHTTP streams the client's events until the consumer goes
// away or a terminal event has been written.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, client *Client) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()
	defer h.Unsubscribe(client)

	for {
		select {
		case <-ctx.Done():
			return
		case <-client.done:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case ev := <-client.Outbound:
			payload, err := json.Marshal(ev.Data)
			if err != nil {
				h.log.Warn("failed to marshal sse event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
			flusher.Flush()
			if ev.IsTerminal() {
				return
			}
		}
	}
}
