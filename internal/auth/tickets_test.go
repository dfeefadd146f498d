package auth

import (
	"testing"
	"time"
)

func TestTicketStore_SingleUse(t *testing.T) {
	s := NewTicketStore()

	ticket, err := s.Issue("u-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if len(ticket) != ticketBytes*2 {
		t.Errorf("ticket length = %d", len(ticket))
	}

	userID, ok := s.Consume(ticket)
	if !ok || userID != "u-1" {
		t.Errorf("Consume() = %q, %v", userID, ok)
	}
	if _, ok := s.Consume(ticket); ok {
		t.Error("second Consume() should fail")
	}
	if _, ok := s.Consume("unknown"); ok {
		t.Error("Consume(unknown) should fail")
	}
}

func TestTicketStore_Expiry(t *testing.T) {
	s := NewTicketStore()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	expired, err := s.Issue("u-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := s.Issue("u-2"); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	now = now.Add(TicketTTL)
	if _, ok := s.Consume(expired); ok {
		t.Error("expired ticket accepted")
	}

	now = now.Add(-time.Second)
	s.Sweep()
	if s.Len() != 1 {
		t.Errorf("Len() after sweep = %d, want 1", s.Len())
	}

	now = now.Add(2 * time.Second)
	s.Sweep()
	if s.Len() != 0 {
		t.Errorf("Len() after expiry = %d, want 0", s.Len())
	}
}
