// internal/store/memory.go
//
// In-memory implementation of the session Store interface.
// Live game sessions are ephemeral by nature: they hold a shuffled deck and a
// running countdown, so there is nothing worth keeping across restarts.
//
// Characteristics:
//   - Stores *game.Session objects keyed by ID in a map.
//   - Concurrency-safe via RWMutex; Update holds the write lock for the whole
//     mutation so a session is never touched by two requests at once.
//   - Sessions idle for longer than the TTL are evicted by Sweep, which hands
//     them back so a round still running can be settled and recorded.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robalobadob/huerush/internal/game"
)

// ErrNotFound is returned for unknown session IDs.
var ErrNotFound = errors.New("session not found")

// Store defines the persistence interface for game sessions.
type Store interface {
	// Save persists or replaces a session.
	Save(ctx context.Context, s *game.Session) error

	// Update runs fn on the session with exclusive access.
	// Returns ErrNotFound if the session does not exist; otherwise fn's error.
	Update(ctx context.Context, id string, fn func(*game.Session) error) error

	// Sweep evicts sessions idle since before cutoff and returns them.
	Sweep(ctx context.Context, cutoff time.Time) []*game.Session
}

type entry struct {
	sess    *game.Session
	touched time.Time
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	now      func() time.Time
}

// NewMemoryStore constructs a new in-memory Store. now stamps last access;
// nil means time.Now.
func NewMemoryStore(now func() time.Time) Store {
	if now == nil {
		now = time.Now
	}
	return &memory{sessions: make(map[string]*entry), now: now}
}

func (m *memory) Save(ctx context.Context, s *game.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = &entry{sess: s, touched: m.now()}
	return nil
}

func (m *memory) Update(ctx context.Context, id string, fn func(*game.Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	e.touched = m.now()
	return fn(e.sess)
}

func (m *memory) Sweep(ctx context.Context, cutoff time.Time) []*game.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var evicted []*game.Session
	for id, e := range m.sessions {
		if e.touched.Before(cutoff) {
			delete(m.sessions, id)
			evicted = append(evicted, e.sess)
		}
	}
	return evicted
}
