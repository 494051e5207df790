package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSeedUser is returned for a seed user not in "name:password" form.
var ErrInvalidSeedUser = errors.New("invalid seed user, expected name:password")

// SeedUser is an account created or reset by Seed.
type SeedUser struct {
	Username string
	Password string
}

// DefaultSeedUsers are the demo accounts.
func DefaultSeedUsers() []SeedUser {
	return []SeedUser{
		{Username: "demo1", Password: "demo1234"},
		{Username: "demo2", Password: "demo1234"},
		{Username: "demo3", Password: "demo1234"},
	}
}

// ParseSeedUser parses "name:password".
func ParseSeedUser(s string) (SeedUser, error) {
	name, password, ok := strings.Cut(s, ":")
	if !ok || name == "" || password == "" {
		return SeedUser{}, fmt.Errorf("%w: %q", ErrInvalidSeedUser, s)
	}

	return SeedUser{Username: name, Password: password}, nil
}

// Seed upserts users; existing accounts get their password reset.
func (a *App) Seed(ctx context.Context, users []SeedUser) error {
	for _, su := range users {
		hash, err := a.Auth.HashPassword(su.Password)
		if err != nil {
			return err
		}

		u, err := a.Auth.UserRepo.UpsertUser(ctx, su.Username, hash)
		if err != nil {
			return fmt.Errorf("upsert user %q: %w", su.Username, err)
		}

		a.log.InfoContext(ctx, "user seeded", "user_id", u.ID, "username", u.Username)
	}

	return nil
}
