package context

import (
	"context"

	"github.com/mkrupp/practice-tracker/internal/domain"
)

const contextKeyUser = contextKey("user")

// UserFromContext extracts the authenticated user from the context.
// Returns the user and true if present, or nil and false if not present.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(contextKeyUser).(*domain.User)
	if user == nil {
		return nil, false
	}

	return user, ok
}

// WithUser creates a new context carrying the authenticated user.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, contextKeyUser, user)
}
