package user

import (
	"context"

	"github.com/mkrupp/practice-tracker/internal/domain"
)

// Repository defines the interface for user data persistence.
type Repository interface {
	// CreateUser adds a new user to the repository.
	// Returns ErrUserAlreadyExists if the username is already taken.
	CreateUser(ctx context.Context, username string, passwordHash []byte) (*domain.User, error)

	// GetUserByUsername retrieves a user by their username.
	// Returns the user object and true if found, or nil and false if not found.
	// Returns an error if the operation fails.
	GetUserByUsername(ctx context.Context, username string) (*domain.User, bool, error)

	// UpsertUser creates the user or replaces the password hash of an existing one.
	UpsertUser(ctx context.Context, username string, passwordHash []byte) (*domain.User, error)
}
