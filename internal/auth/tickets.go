package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// TicketTTL is how long a WebSocket ticket stays valid.
const TicketTTL = 60 * time.Second

const ticketBytes = 32

type ticketEntry struct {
	userID    string
	expiresAt time.Time
}

// TicketStore holds pending single-use WebSocket tickets.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type TicketStore struct {
	mu      sync.Mutex
	tickets map[string]ticketEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewTicketStore creates an empty store issuing tickets valid for TicketTTL.
func NewTicketStore() *TicketStore {
	return &TicketStore{
		tickets: make(map[string]ticketEntry),
		ttl:     TicketTTL,
		now:     time.Now,
	}
}

// Issue creates a ticket bound to userID.
func (s *TicketStore) Issue(userID string) (string, error) {
	b := make([]byte, ticketBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating ticket: %w", err)
	}
	ticket := hex.EncodeToString(b)

	s.mu.Lock()
	s.tickets[ticket] = ticketEntry{userID: userID, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return ticket, nil
}

// Consume validates and removes ticket, returning the user it was issued to.
func (s *TicketStore) Consume(ticket string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tickets[ticket]
	if !ok {
		return "", false
	}
	delete(s.tickets, ticket)
	if !s.now().Before(entry.expiresAt) {
		return "", false
	}
	return entry.userID, true
}

// Sweep drops expired tickets.
func (s *TicketStore) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for ticket, entry := range s.tickets {
		if !now.Before(entry.expiresAt) {
			delete(s.tickets, ticket)
		}
	}
}

// Len returns the number of pending tickets.
func (s *TicketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tickets)
}

// Run sweeps once per TTL until ctx is cancelled.
func (s *TicketStore) Run(ctx context.Context) {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
