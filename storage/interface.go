package storage

import "time"

// Session is the conversation state kept for one chat
type Session struct {
	UserID        int64
	State         string
	PendingUserID int64 // user id remembered while waiting for a city
	UpdatedAt     time.Time
}

// SessionStore defines the interface for conversation session storage
type SessionStore interface {
	// GetSession returns the session for a user and whether it exists
	GetSession(userID int64) (Session, bool)

	// SaveSession creates or replaces the session for session.UserID
	SaveSession(session Session) error

	// DeleteSessionsBefore removes sessions last updated before cutoff
	// and returns how many were removed
	DeleteSessionsBefore(cutoff time.Time) (int, error)

	// SessionCount returns the number of stored sessions
	SessionCount() int

	// Close releases any resources held by the store
	Close() error
}
