// Package sse fans committed notifications out to connected browsers.
package sse

import (
	"context"
	"sync"

	"campus-events/internal/models"
)

const clientBuffer = 10

// Hub tracks one channel per open stream, keyed by user.
type Hub struct {
	mu      sync.RWMutex
	clients map[string][]chan models.Notification
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string][]chan models.Notification)}
}

// Subscribe returns a channel of the user's new notifications. The channel is
// closed once ctx is done.
func (h *Hub) Subscribe(ctx context.Context, userID string) <-chan models.Notification {
	ch := make(chan models.Notification, clientBuffer)

	h.mu.Lock()
	h.clients[userID] = append(h.clients[userID], ch)
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.remove(userID, ch)
	}()
	return ch
}

// Deliver sends n to every stream of its recipient. Slow clients with a full
// buffer miss the message; the inbox still has it.
func (h *Hub) Deliver(n models.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients[n.UserID] {
		select {
		case ch <- n:
		default:
		}
	}
}

func (h *Hub) remove(userID string, ch chan models.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[userID]
	for i, c := range clients {
		if c == ch {
			h.clients[userID] = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// Clients returns the number of open streams for userID.
func (h *Hub) Clients(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
