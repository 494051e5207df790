package domain

import (
	"errors"
	"time"
)

var (
	// ErrUserAlreadyExists is returned when trying to create a user with an existing username.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrInvalidCredentials is returned when the username/password combination is incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User represents a registered account.
type User struct {
	ID           int64     // Unique identifier
	Username     string    // Login username
	PasswordHash []byte    // bcrypt hash, never serialized
	CreatedAt    time.Time // Account creation instant
}

// UserResponse is the public representation of a user.
type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// Response returns the public view of the user.
func (u User) Response() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		CreatedAt: u.CreatedAt.UTC(),
	}
}
