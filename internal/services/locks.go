package services

import "sync"

// SessionLocks serializes all mutations for one session while letting
// different sessions proceed in parallel. Entries are refcounted so the map
// doesn't grow with every session ever seen.
type SessionLocks struct {
	mu sync.Mutex
	m  map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewSessionLocks() *SessionLocks {
	return &SessionLocks{m: make(map[string]*lockEntry)}
}

// Lock acquires the per-session critical section and returns the matching
// unlock func.
func (l *SessionLocks) Lock(sessionID string) (unlock func()) {
	l.mu.Lock()
	e, ok := l.m[sessionID]
	if !ok {
		e = &lockEntry{}
		l.m[sessionID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.m, sessionID)
		}
		l.mu.Unlock()
	}
}
