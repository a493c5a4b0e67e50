package storage

import (
	"sync"
	"time"
)

// Storage is a thread-safe in-memory session store.
// It implements SessionStore.
type Storage struct {
	mu       sync.RWMutex
	sessions map[int64]Session
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		sessions: make(map[int64]Session),
	}
}

// GetSession returns the session for a user
func (s *Storage) GetSession(userID int64) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[userID]
	return session, ok
}

// SaveSession stores the session, stamping UpdatedAt if it is zero
func (s *Storage) SaveSession(session Session) error {
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.UserID] = session
	return nil
}

// DeleteSessionsBefore removes sessions last updated before cutoff
func (s *Storage) DeleteSessionsBefore(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for userID, session := range s.sessions {
		if session.UpdatedAt.Before(cutoff) {
			delete(s.sessions, userID)
			removed++
		}
	}
	return removed, nil
}

// SessionCount returns the number of stored sessions
func (s *Storage) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close is a no-op for the in-memory store
func (s *Storage) Close() error {
	return nil
}

var _ SessionStore = (*Storage)(nil)
