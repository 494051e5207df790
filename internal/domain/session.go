package domain

import (
	"errors"
	"time"
)

var (
	// ErrNoSession is returned when a session token is required but not provided.
	ErrNoSession = errors.New("no session")
	// ErrSessionNotFound is returned when a token does not match an active session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrUnauthorized is returned when a request is not backed by an active session.
	ErrUnauthorized = errors.New("unauthorized")
)

// Session binds an opaque bearer token to a user until ExpiresAt.
// Only the SHA-256 hash of the token is persisted.
type Session struct {
	ID        string
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
