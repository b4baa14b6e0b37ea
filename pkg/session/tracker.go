package session

import (
	"slices"
	"sync"
	"time"
)

// tracker holds ready sessions keyed by ID.
type tracker struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func newTracker() *tracker {
	return &tracker{sessions: make(map[string]*Session)}
}

// Add registers s.
func (t *tracker) Add(s *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[s.id] = s
}

// Remove deregisters s and reports whether it was tracked. Safe to call on
// absent sessions.
func (t *tracker) Remove(s *Session) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.sessions[s.id]; !ok || cur != s {
		return false
	}
	delete(t.sessions, s.id)
	return true
}

// Get returns the session with id.
func (t *tracker) Get(id string) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[id]
	return s, ok
}

// List returns the tracked sessions, oldest first.
func (t *tracker) List() []*Session {
	t.mu.Lock()
	out := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	t.mu.Unlock()

	slices.SortFunc(out, func(a, b *Session) int { return a.startedAt.Compare(b.startedAt) })
	return out
}

// EndIdle ends sessions that saw no inbound call for maxIdle. Returns the
// number of sessions ended.
func (t *tracker) EndIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	ended := 0
	for _, s := range t.List() {
		if s.LastActivity().Before(cutoff) {
			s.End()
			ended++
		}
	}
	return ended
}

// EndAll ends every tracked session. Returns the number of sessions ended.
func (t *tracker) EndAll() int {
	sessions := t.List()
	for _, s := range sessions {
		s.End()
	}
	return len(sessions)
}

// Len returns the number of tracked sessions.
func (t *tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}
