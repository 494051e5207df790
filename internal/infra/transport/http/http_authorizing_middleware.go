package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/mkrupp/practice-tracker/internal/domain"
	context_ "github.com/mkrupp/practice-tracker/internal/infra/context"
	"github.com/mkrupp/practice-tracker/internal/infra/logging"
)

// Authenticator resolves a session token into its user.
// It returns domain.ErrUnauthorized for missing, unknown or expired sessions.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// SessionToken returns the session token from the named cookie, falling back to
// an "Authorization: Bearer" header.
func SessionToken(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}

	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}

	return ""
}

// AuthorizingMiddleware rejects requests without an active session with 401 UNAUTHORIZED.
// On success the user is added to the request context.
func AuthorizingMiddleware(
	next http.Handler,
	auth Authenticator,
	cookieName string,
	log logging.Logger,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := SessionToken(r, cookieName)
		if token == "" {
			log.DebugContext(r.Context(), "no session token")
			Unauthorized(w)

			return
		}

		user, err := auth.Authenticate(r.Context(), token)
		if errors.Is(err, domain.ErrUnauthorized) {
			log.DebugContext(r.Context(), "invalid session")
			Unauthorized(w)

			return
		} else if err != nil {
			log.ErrorContext(r.Context(), "authenticate failed", "error", err)
			InternalError(w)

			return
		}

		next.ServeHTTP(w, r.WithContext(context_.WithUser(r.Context(), user)))
	})
}

// RequireUser is AuthorizingMiddleware for a single handler function.
func RequireUser(auth Authenticator, cookieName string, log logging.Logger, fn http.HandlerFunc) http.Handler {
	return AuthorizingMiddleware(fn, auth, cookieName, log)
}
