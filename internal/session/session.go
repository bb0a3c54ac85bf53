// Package session tracks chat sessions and the credits each one may spend.
package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("session not found")
	ErrNoCredits = errors.New("session has no credits left")
	// ErrCapacity is returned by Create when MaxActive sessions already exist.
	ErrCapacity = errors.New("too many active sessions")
)

type Session struct {
	ID         string    `json:"id"`
	EmployeeID *int64    `json:"employeeId,omitempty"`
	Credits    int       `json:"credits"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Policy is the admission and metering policy applied to new sessions.
type Policy struct {
	InitialCredits int
	TTL            time.Duration
	// MaxActive caps concurrent unexpired sessions; 0 means unlimited.
	MaxActive int
}

type Store interface {
	Create(ctx context.Context, employeeID *int64) (Session, error)
	Get(ctx context.Context, id string) (Session, error)
	// Consume spends one credit and returns the session after the charge.
	Consume(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

func NewID() string {
	return uuid.NewString()
}

type MemoryStore struct {
	policy Policy
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]Session
}

func NewMemoryStore(policy Policy) *MemoryStore {
	return &MemoryStore{policy: policy, now: time.Now, sessions: map[string]Session{}}
}

func (m *MemoryStore) Create(_ context.Context, employeeID *int64) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	m.evictExpired(now)
	if m.policy.MaxActive > 0 && len(m.sessions) >= m.policy.MaxActive {
		return Session{}, ErrCapacity
	}

	s := Session{
		ID:         NewID(),
		EmployeeID: copyID(employeeID),
		Credits:    m.policy.InitialCredits,
		CreatedAt:  now,
	}
	if m.policy.TTL > 0 {
		s.ExpiresAt = now.Add(m.policy.TTL)
	}
	m.sessions[s.ID] = s
	return s, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookup(id)
}

func (m *MemoryStore) Consume(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookup(id)
	if err != nil {
		return Session{}, err
	}
	if s.Credits <= 0 {
		return s, ErrNoCredits
	}
	s.Credits--
	m.sessions[id] = s
	return s, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Active lists unexpired sessions ordered by creation time.
func (m *MemoryStore) Active() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictExpired(m.now().UTC())
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *MemoryStore) lookup(id string) (Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	if !s.ExpiresAt.IsZero() && !m.now().Before(s.ExpiresAt) {
		delete(m.sessions, id)
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) evictExpired(now time.Time) {
	for id, s := range m.sessions {
		if !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt) {
			delete(m.sessions, id)
		}
	}
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
