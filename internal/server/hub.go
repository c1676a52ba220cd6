package server

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// subBuffer is the per-subscriber event buffer. A subscriber that falls
// this far behind starts losing events rather than blocking the guard.
const subBuffer = 16

// Hub fans events out to websocket subscribers. Publishing never blocks;
// slow subscribers drop events.
type Hub struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan []byte]struct{})}
}

// Publish marshals v to JSON and delivers it to every subscriber.
func (h *Hub) Publish(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("event marshal failed", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- data:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, subBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
