package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestConsumeSpendsCreditsUntilExhausted(t *testing.T) {
	store := NewMemoryStore(Policy{InitialCredits: 2})
	ctx := context.Background()
	id := int64(5)

	s, err := store.Create(ctx, &id)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if s.ID == "" || s.Credits != 2 || *s.EmployeeID != 5 {
		t.Fatalf("session = %+v", s)
	}

	for want := 1; want >= 0; want-- {
		got, err := store.Consume(ctx, s.ID)
		if err != nil {
			t.Fatalf("Consume() error = %v", err)
		}
		if got.Credits != want {
			t.Fatalf("credits = %d, want %d", got.Credits, want)
		}
	}
	if _, err := store.Consume(ctx, s.ID); !errors.Is(err, ErrNoCredits) {
		t.Fatalf("Consume() error = %v, want ErrNoCredits", err)
	}
}

func TestMaxActiveRejectsNewSessions(t *testing.T) {
	store := NewMemoryStore(Policy{InitialCredits: 1, MaxActive: 1})
	ctx := context.Background()

	first, err := store.Create(ctx, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := store.Create(ctx, nil); !errors.Is(err, ErrCapacity) {
		t.Fatalf("Create() error = %v, want ErrCapacity", err)
	}
	if err := store.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Create(ctx, nil); err != nil {
		t.Fatalf("Create() after delete error = %v", err)
	}
}

func TestExpiredSessionsAreGoneAndFreeCapacity(t *testing.T) {
	now := time.Date(2025, time.March, 15, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore(Policy{InitialCredits: 1, TTL: time.Hour, MaxActive: 1})
	store.now = func() time.Time { return now }
	ctx := context.Background()

	s, err := store.Create(ctx, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !s.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("ExpiresAt = %v", s.ExpiresAt)
	}

	now = now.Add(2 * time.Hour)
	if _, err := store.Get(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
	if _, err := store.Create(ctx, nil); err != nil {
		t.Fatalf("Create() after expiry error = %v", err)
	}
	if got := len(store.Active()); got != 1 {
		t.Fatalf("active sessions = %d", got)
	}
}

func TestGetUnknownSession(t *testing.T) {
	if _, err := NewMemoryStore(Policy{}).Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v", err)
	}
}
