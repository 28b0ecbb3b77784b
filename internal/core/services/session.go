package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driving"
)

// Ensure SessionMemory implements the interface.
var _ driving.SessionService = (*SessionMemory)(nil)

// DefaultMaxSessions is the number of sessions kept before the least
// recently used idle one is dropped.
const DefaultMaxSessions = 1024

// SessionMemory keeps a bounded, ordered window of turns per session.
// Operations on one session are serialised; different sessions never
// contend beyond the brief map lookup.
type SessionMemory struct {
	maxTurns    int
	maxSessions int

	mu       sync.Mutex
	sessions map[string]*session
	clock    uint64
}

type session struct {
	// exchange admits one answer pipeline at a time.
	exchange chan struct{}
	// lastUsed is the store clock at the last lookup, guarded by the store mutex.
	lastUsed uint64

	mu    sync.Mutex
	turns []domain.Turn
}

// NewSessionMemory creates a store holding at most maxTurns per session
// and DefaultMaxSessions sessions.
func NewSessionMemory(maxTurns int) *SessionMemory {
	return NewBoundedSessionMemory(maxTurns, DefaultMaxSessions)
}

// NewBoundedSessionMemory creates a store holding at most maxTurns per
// session and maxSessions sessions. Sessions in the middle of an exchange
// are never dropped, so the count can briefly exceed maxSessions.
func NewBoundedSessionMemory(maxTurns, maxSessions int) *SessionMemory {
	if maxTurns <= 0 {
		maxTurns = domain.DefaultAppSettings().SessionMaxTurns
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &SessionMemory{maxTurns: maxTurns, maxSessions: maxSessions, sessions: map[string]*session{}}
}

// MaxTurns returns the window size.
func (m *SessionMemory) MaxTurns() int {
	return m.maxTurns
}

func (m *SessionMemory) get(id string, create bool) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok && create {
		if len(m.sessions) >= m.maxSessions {
			m.evictIdle()
		}
		s = &session{exchange: make(chan struct{}, 1)}
		m.sessions[id] = s
	}
	if s != nil {
		m.clock++
		s.lastUsed = m.clock
	}
	return s
}

// evictIdle drops the least recently used session that holds no exchange.
// It must be called with m.mu held.
func (m *SessionMemory) evictIdle() {
	var (
		oldestID string
		oldest   *session
	)
	for id, s := range m.sessions {
		if len(s.exchange) > 0 {
			continue
		}
		if oldest == nil || s.lastUsed < oldest.lastUsed {
			oldestID, oldest = id, s
		}
	}
	if oldest != nil {
		delete(m.sessions, oldestID)
	}
}

// Sessions returns the number of sessions held.
func (m *SessionMemory) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Begin reserves the session for one exchange. The returned release must be
// called once the exchange has been appended.
func (m *SessionMemory) Begin(ctx context.Context, id string) (func(), error) {
	s := m.get(id, true)
	select {
	case s.exchange <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-s.exchange }) }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for session %s: %w", id, ctx.Err())
	}
}

// Append adds turns in order as one atomic step, evicting the oldest turns
// beyond the window.
func (m *SessionMemory) Append(id string, turns ...domain.Turn) {
	s := m.get(id, true)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, turns...)
	if over := len(s.turns) - m.maxTurns; over > 0 {
		kept := make([]domain.Turn, m.maxTurns)
		copy(kept, s.turns[over:])
		s.turns = kept
	}
}

// Context returns the last n turns, oldest first. Unknown sessions have
// no context.
func (m *SessionMemory) Context(id string, n int) []domain.Turn {
	s := m.get(id, false)
	if s == nil || n <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	start := len(s.turns) - n
	if start < 0 {
		start = 0
	}
	return append([]domain.Turn(nil), s.turns[start:]...)
}

// Len returns the number of turns held for a session.
func (m *SessionMemory) Len(id string) int {
	s := m.get(id, false)
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// History returns every turn in the window.
func (m *SessionMemory) History(_ context.Context, id string) ([]domain.Turn, error) {
	s := m.get(id, false)
	if s == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Turn{}, s.turns...), nil
}
