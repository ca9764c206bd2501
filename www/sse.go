package www

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"adslink/bridge"
	"adslink/logging"
)

// SSEEvent represents an event to broadcast to SSE clients.
type SSEEvent struct {
	Type string      `json:"type"` // "value-change", "status-change"
	Data interface{} `json:"data"`
}

// ValueUpdate represents a symbol value change event. Data is the raw
// sample, base64-encoded by the JSON marshaller.
type ValueUpdate struct {
	Target    string `json:"target"`
	Symbol    string `json:"symbol"`
	Data      []byte `json:"data"`
	Size      int    `json:"size"`
	Timestamp string `json:"timestamp"`
}

// StatusUpdate represents a target connection status change event.
type StatusUpdate struct {
	Target      string `json:"target"`
	Status      string `json:"status"`
	StatusClass string `json:"statusClass"`
	Error       string `json:"error,omitempty"`
}

// sseClient represents a connected SSE client.
type sseClient struct {
	id     string
	events chan SSEEvent
	done   chan struct{}
}

// EventHub manages SSE client connections and broadcasts events.
type EventHub struct {
	clients    map[string]*sseClient
	register   chan *sseClient
	unregister chan *sseClient
	broadcast  chan SSEEvent
	mu         sync.RWMutex
	done       chan struct{}
}

// newEventHub creates a new EventHub.
func newEventHub() *EventHub {
	hub := &EventHub{
		clients:    make(map[string]*sseClient),
		register:   make(chan *sseClient),
		unregister: make(chan *sseClient),
		broadcast:  make(chan SSEEvent, 256),
		done:       make(chan struct{}),
	}
	go hub.run()
	return hub
}

// run processes client registration and event broadcasting.
func (h *EventHub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.events)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				select {
				case client.events <- event:
				default:
					logging.DebugLog("www", "SSE client %s buffer full, dropping %s event", client.id, event.Type)
				}
			}
			h.mu.RUnlock()

		case <-h.done:
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.events)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop stops the EventHub.
func (h *EventHub) Stop() {
	close(h.done)
}

// Broadcast sends an event to all connected clients.
func (h *EventHub) Broadcast(event SSEEvent) {
	select {
	case h.broadcast <- event:
	default:
		logging.DebugLog("www", "SSE broadcast channel full, dropping %s event", event.Type)
	}
}

// BroadcastValues fans a batch of symbol changes out to SSE clients.
func (h *EventHub) BroadcastValues(changes []bridge.ValueChange) {
	for _, change := range changes {
		h.Broadcast(SSEEvent{
			Type: "value-change",
			Data: ValueUpdate{
				Target:    change.Target,
				Symbol:    change.Symbol,
				Data:      change.Data,
				Size:      len(change.Data),
				Timestamp: change.Timestamp.UTC().Format(time.RFC3339Nano),
			},
		})
	}
}

// BroadcastStatus sends the current status of all targets to SSE clients.
func (h *EventHub) BroadcastStatus(manager *bridge.Manager) {
	for _, target := range manager.ListTargets() {
		status := target.GetStatus()
		update := StatusUpdate{
			Target:      target.Config.Name,
			Status:      status.String(),
			StatusClass: statusClass(status),
		}
		if err := target.GetError(); err != nil {
			update.Error = err.Error()
		}
		h.Broadcast(SSEEvent{Type: "status-change", Data: update})
	}
}

// ClientCount returns the number of connected clients.
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func statusClass(status bridge.ConnectionStatus) string {
	switch status {
	case bridge.StatusConnected:
		return "status-connected"
	case bridge.StatusConnecting:
		return "status-connecting"
	case bridge.StatusError:
		return "status-error"
	default:
		return "status-disconnected"
	}
}

// handleSSEValues handles SSE connections for live symbol values.
func (h *Handlers) handleSSEValues(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	clientID := fmt.Sprintf("client-%d", time.Now().UnixNano())
	client := &sseClient{
		id:     clientID,
		events: make(chan SSEEvent, 64),
		done:   make(chan struct{}),
	}

	h.eventHub.register <- client

	notify := r.Context().Done()

	fmt.Fprintf(w, "event: connected\ndata: {\"id\":%q}\n\n", clientID)
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-notify:
			h.eventHub.unregister <- client
			return

		case event, ok := <-client.events:
			if !ok {
				return
			}
			data, err := json.Marshal(event.Data)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, string(data))
			flusher.Flush()

		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}
