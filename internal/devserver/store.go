// Package devserver is a reference implementation of the support backend.
// It exists for local development and tests; the client treats any backend
// speaking the same contract as a black box.
package devserver

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Session is a stored conversation. History is flat and alternating:
// user query, bot reply, user query, ...
type Session struct {
	ID           string
	CreatedAt    time.Time
	LastActiveAt time.Time
	History      []string
}

// Store persists sessions.
type Store interface {
	Create(ctx context.Context) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	List(ctx context.Context) ([]Session, error)
	Append(ctx context.Context, id, userQuery, botResponse string) error
	Close() error
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*Session
}

// NewMemoryStore creates a MemoryStore. Sessions idle longer than ttl are
// treated as gone; ttl <= 0 disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create implements Store.
func (m *MemoryStore) Create(_ context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	s := &Session{ID: uuid.New().String(), CreatedAt: now, LastActiveAt: now, History: []string{}}
	m.sessions[s.ID] = s
	return cloneSession(s), nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, id)
	}
	if m.expired(s) {
		delete(m.sessions, id)
		return nil, errors.Wrap(ErrNotFound, id)
	}
	return cloneSession(s), nil
}

// List implements Store. Sessions are ordered newest first.
func (m *MemoryStore) List(_ context.Context) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if m.expired(s) {
			continue
		}
		out = append(out, *cloneSession(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Append implements Store.
func (m *MemoryStore) Append(_ context.Context, id, userQuery, botResponse string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || m.expired(s) {
		return errors.Wrap(ErrNotFound, id)
	}
	s.History = append(s.History, userQuery, botResponse)
	s.LastActiveAt = m.now().UTC()
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) expired(s *Session) bool {
	return m.ttl > 0 && m.now().Sub(s.LastActiveAt) > m.ttl
}

func cloneSession(s *Session) *Session {
	c := *s
	c.History = append([]string{}, s.History...)
	return &c
}
