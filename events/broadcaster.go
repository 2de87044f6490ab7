package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	clientBuffer      = 32
	heartbeatInterval = 25 * time.Second
)

// clientInfo holds the outbound queue of one connected SSE client.
type clientInfo struct {
	sseChannel chan SSEEvent
	dropped    int
}

// Broadcaster manages SSE clients and fans lifecycle events out to all of them.
// Slow clients never block a publisher: when a client's queue is full the event is
// dropped for that client only.
type Broadcaster struct {
	clients map[string]*clientInfo
	mu      sync.RWMutex
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]*clientInfo),
	}
}

// NewClient registers a new client and returns its id and receive channel.
func (b *Broadcaster) NewClient() (string, <-chan SSEEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	clientID := uuid.New().String()
	info := &clientInfo{sseChannel: make(chan SSEEvent, clientBuffer)}
	b.clients[clientID] = info
	log.Printf("SSE client registered: %s", clientID)
	return clientID, info.sseChannel
}

// Send queues event for one client.
func (b *Broadcaster) Send(clientID string, event SSEEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	info, ok := b.clients[clientID]
	if !ok {
		return fmt.Errorf("client ID %s not found", clientID)
	}
	return info.offer(clientID, event)
}

func (c *clientInfo) offer(clientID string, event SSEEvent) error {
	select {
	case c.sseChannel <- event:
		return nil
	default:
		c.dropped++
		return fmt.Errorf("failed to send SSE to client %s: channel full", clientID)
	}
}

// Publish implements Publisher by queueing ev for every connected client.
func (b *Broadcaster) Publish(_ context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", ev.Type, err)
	}
	frame := SSEEvent{ID: ev.ID, Event: string(ev.Type), Data: string(payload)}

	// Holding the write lock keeps RemoveClient from closing a channel mid-send.
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, info := range b.clients {
		if err := info.offer(id, frame); err != nil {
			log.Printf("Dropping %s for slow SSE client %s", ev.Type, id)
		}
	}
	return nil
}

// RemoveClient unregisters a client and closes its channel.
func (b *Broadcaster) RemoveClient(clientID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if info, ok := b.clients[clientID]; ok {
		close(info.sseChannel)
		delete(b.clients, clientID)
		log.Printf("SSE client %s removed (%d events dropped)", clientID, info.dropped)
	}
}

// Dropped reports how many events were discarded for a connected client because its
// queue was full.
func (b *Broadcaster) Dropped(clientID string) (int, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	info, ok := b.clients[clientID]
	if !ok {
		return 0, false
	}
	return info.dropped, true
}

// ClientCount reports how many clients are connected.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// HandleStream godoc
// @Summary Post lifecycle stream
// @Description Server-Sent Events stream of post.created, post.updated, post.deleted and post.expired events.
// @Tags Events
// @Produce text/event-stream
// @Success 200 {string} string "event stream"
// @Router /api/v1/events [get]
func (b *Broadcaster) HandleStream() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		// The server's WriteTimeout would otherwise cut the stream.
		_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

		clientID, ch := b.NewClient()
		defer b.RemoveClient(clientID)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		hello := SSEEvent{Event: "connected", Data: clientID}
		if _, err := hello.WriteTo(w); err != nil {
			return
		}
		flusher.Flush()

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case ev, open := <-ch:
				if !open {
					return
				}
				if _, err := ev.WriteTo(w); err != nil {
					return
				}
				flusher.Flush()
			case <-heartbeat.C:
				// Comment lines keep proxies from closing an idle stream.
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

var _ Publisher = (*Broadcaster)(nil)
