// Package session persists login sessions keyed by the hash of their bearer token.
package session

import (
	"context"
	"time"

	"github.com/mkrupp/practice-tracker/internal/domain"
)

// Repository defines the interface for session persistence.
type Repository interface {
	// Create stores a new session.
	Create(ctx context.Context, session domain.Session) error

	// FindActive returns the session with the given token hash together with its user.
	// Sessions that expired at or before now are reported as not found.
	FindActive(ctx context.Context, tokenHash string, now time.Time) (*domain.Session, *domain.User, bool, error)

	// DeleteByTokenHash removes the session, if any. Deleting a missing session is not an error.
	DeleteByTokenHash(ctx context.Context, tokenHash string) error

	// DeleteExpired removes the user's sessions that expired at or before now.
	DeleteExpired(ctx context.Context, userID int64, now time.Time) (int64, error)
}
