package services

import (
	"sync"
	"time"
)

type ArtifactEventType string

const (
	ArtifactCreated ArtifactEventType = "created"
	ArtifactDeleted ArtifactEventType = "deleted"
	ArtifactCleared ArtifactEventType = "cleared"
)

// ArtifactEvent notifies subscribers that the output directory changed.
type ArtifactEvent struct {
	Type     ArtifactEventType `json:"type"`
	Filename string            `json:"filename,omitempty"`
	Platform string            `json:"platform,omitempty"`
	Count    int               `json:"count,omitempty"`
	Time     time.Time         `json:"time"`
}

// ArtifactHub fans artifact events out to SSE clients.
type ArtifactHub struct {
	clients map[string]chan ArtifactEvent
	mu      sync.RWMutex
}

func NewArtifactHub() *ArtifactHub {
	return &ArtifactHub{
		clients: make(map[string]chan ArtifactEvent),
	}
}

// Subscribe registers a new client and returns a channel for receiving events
func (h *ArtifactHub) Subscribe(clientID string) <-chan ArtifactEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan ArtifactEvent, 32)
	h.clients[clientID] = ch
	return ch
}

// Unsubscribe removes a client from the hub
func (h *ArtifactHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.clients[clientID]; ok {
		close(ch)
		delete(h.clients, clientID)
	}
}

// Publish broadcasts an event to all connected clients. Slow clients miss
// events rather than block the publisher.
func (h *ArtifactHub) Publish(event ArtifactEvent) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.clients {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *ArtifactHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
