package server

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ClientInfo describes a connected WebSocket client.
type ClientInfo struct {
	ID           string    `json:"id"`
	Chat         string    `json:"chat"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastDelivery time.Time `json:"last_delivery,omitzero"`
	Delivered    uint64    `json:"delivered"`
}

// ClientRegistry tracks connected WebSocket clients.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*ClientInfo
}

// NewClientRegistry creates an empty registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]*ClientInfo)}
}

// Register adds a client following chat and returns its id.
func (r *ClientRegistry) Register(chat string) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.clients[id] = &ClientInfo{ID: id, Chat: chat, ConnectedAt: time.Now()}
	r.mu.Unlock()
	return id
}

// Delivered records that the client was sent delivery seq.
func (r *ClientRegistry) Delivered(id string, seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.clients[id]; ok {
		info.Delivered = seq
		info.LastDelivery = time.Now()
	}
}

// Remove drops a client.
func (r *ClientRegistry) Remove(id string) {
	r.mu.Lock()
	delete(r.clients, id)
	r.mu.Unlock()
}

// Count returns the number of connected clients.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// List returns a snapshot of all clients, oldest connection first.
func (r *ClientRegistry) List() []ClientInfo {
	r.mu.RLock()
	out := make([]ClientInfo, 0, len(r.clients))
	for _, info := range r.clients {
		out = append(out, *info)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b ClientInfo) int {
		if c := a.ConnectedAt.Compare(b.ConnectedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}
