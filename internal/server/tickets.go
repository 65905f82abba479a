package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultTicketTTL = 30 * time.Second

// TicketStore manages short-lived, single-use tickets for WebSocket auth.
// Browser clients exchange a bearer token for a ticket, then connect with
// the ticket as a query parameter.
type TicketStore struct {
	mu      sync.Mutex
	tickets map[string]ticketEntry
	ttl     time.Duration
	now     func() time.Time
}

type ticketEntry struct {
	ExpiresAt time.Time
	Chat      string
}

// NewTicketStore creates a new ticket store.
func NewTicketStore() *TicketStore {
	return &TicketStore{
		tickets: make(map[string]ticketEntry),
		ttl:     defaultTicketTTL,
		now:     time.Now,
	}
}

// Issue creates a new single-use ticket scoped to the given chat.
func (ts *TicketStore) Issue(chat string) string {
	ticket := uuid.NewString()

	ts.mu.Lock()
	ts.tickets[ticket] = ticketEntry{
		ExpiresAt: ts.now().Add(ts.ttl),
		Chat:      chat,
	}
	ts.mu.Unlock()

	return ticket
}

// Redeem validates and burns a ticket. Returns true if valid.
func (ts *TicketStore) Redeem(ticket, chat string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	entry, ok := ts.tickets[ticket]
	if !ok {
		return false
	}
	delete(ts.tickets, ticket)

	if ts.now().After(entry.ExpiresAt) {
		return false
	}
	return entry.Chat == chat
}

// Cleanup removes expired tickets.
func (ts *TicketStore) Cleanup() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := ts.now()
	for k, v := range ts.tickets {
		if now.After(v.ExpiresAt) {
			delete(ts.tickets, k)
		}
	}
}
