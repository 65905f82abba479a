package store

import (
	"maps"
	"sync"

	"github.com/wethinkt/go-histview/internal/history"
	"github.com/wethinkt/go-histview/internal/tuilog"
)

// Change tells subscribers that a chat's log changed.
type Change struct {
	ChatID string
	// HoleFills lists the holes this change filled, by hole id.
	HoleFills map[int64]history.HoleFill
}

// Hub provides in-memory fan-out of chat changes to open windows.
type Hub struct {
	mu   sync.RWMutex
	subs map[string][]*subscriber
}

type subscriber struct {
	ch     chan Change
	closed bool
}

// NewHub creates a new pub/sub instance.
func NewHub() *Hub {
	return &Hub{subs: make(map[string][]*subscriber)}
}

// Subscribe returns a channel that receives changes to chatID. Call the
// returned function to unsubscribe and close the channel.
func (h *Hub) Subscribe(chatID string) (<-chan Change, func()) {
	sub := &subscriber{ch: make(chan Change, 64)}

	h.mu.Lock()
	h.subs[chatID] = append(h.subs[chatID], sub)
	h.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()

			subs := h.subs[chatID]
			for i, s := range subs {
				if s == sub {
					h.subs[chatID] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
			if len(h.subs[chatID]) == 0 {
				delete(h.subs, chatID)
			}
			sub.closed = true
			close(sub.ch)
		})
	}
	return sub.ch, unsub
}

// Publish sends c to every subscriber of c.ChatID. Slow subscribers whose
// buffers are full miss the change.
func (h *Hub) Publish(c Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs[c.ChatID] {
		if sub.closed {
			continue
		}
		msg := Change{ChatID: c.ChatID, HoleFills: maps.Clone(c.HoleFills)}
		select {
		case sub.ch <- msg:
		default:
			tuilog.Log.Warn("dropping change for slow subscriber", "chat", c.ChatID)
		}
	}
}

// Subscribers returns the number of open subscriptions to chatID.
func (h *Hub) Subscribers(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[chatID])
}
