package session

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type entry struct {
	mu sync.Mutex
	s  *Session
}

// Manager owns every live session. Each session has its own lock so one
// visitor's turns run strictly in sequence while other visitors proceed.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*entry
	ttl      time.Duration
	now      func() time.Time
}

// NewManager creates a manager. ttl <= 0 disables idle eviction.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create starts a session with all-zero counters.
func (m *Manager) Create(visitor string) Snapshot {
	now := m.now()
	id := ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
	s := newSession(id, visitor, now)

	m.mu.Lock()
	m.sessions[id] = &entry{s: s}
	m.mu.Unlock()
	return s.Snapshot()
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// With runs fn while holding the session's lock and refreshes LastSeen.
func (m *Manager) With(id string, fn func(*Session) error) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.s.LastSeen = m.now()
	return fn(e.s)
}

// Get returns a snapshot of the session.
func (m *Manager) Get(id string) (Snapshot, error) {
	var snap Snapshot
	err := m.With(id, func(s *Session) error {
		snap = s.Snapshot()
		return nil
	})
	return snap, err
}

// End removes the session and returns its final state.
func (m *Manager) End(id string) (Snapshot, error) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.Snapshot(), nil
}

// Sweep evicts sessions idle for longer than the ttl and returns them.
func (m *Manager) Sweep(now time.Time) []Snapshot {
	if m.ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	var stale []*entry
	for id, e := range m.sessions {
		if !e.mu.TryLock() {
			continue // busy sessions are not idle
		}
		if now.Sub(e.s.LastSeen) > m.ttl {
			stale = append(stale, e)
			delete(m.sessions, id)
		}
		e.mu.Unlock()
	}
	m.mu.Unlock()

	out := make([]Snapshot, 0, len(stale))
	for _, e := range stale {
		e.mu.Lock()
		out = append(out, e.s.Snapshot())
		e.mu.Unlock()
	}
	return out
}

// Len is the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
