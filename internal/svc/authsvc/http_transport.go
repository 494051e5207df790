package authsvc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"unicode/utf8"

	"github.com/mkrupp/practice-tracker/internal/domain"
	context_ "github.com/mkrupp/practice-tracker/internal/infra/context"
	"github.com/mkrupp/practice-tracker/internal/infra/logging"
	http_ "github.com/mkrupp/practice-tracker/internal/infra/transport/http"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 32
	minPasswordLen = 8
	maxPasswordLen = 128
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ErrNoUser is returned when a handler runs without an authenticated user in the context.
var ErrNoUser = errors.New("no user in context")

// HTTPTransport handles HTTP requests for the authentication service.
type HTTPTransport struct {
	authSvc *AuthService
	log     logging.Logger
	mux     *http.ServeMux
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport. Routes:
//   - POST /register: create a user and start a session
//   - POST /login: start a session
//   - POST /logout: end the current session
//   - GET /me: the current user
func NewHTTPTransport(authSvc *AuthService) *HTTPTransport {
	ht := &HTTPTransport{
		authSvc: authSvc,
		log:     logging.GetLogger("svc.authsvc.http_transport"),
		mux:     http.NewServeMux(),
	}

	http_.HandleMethod(ht.mux, http.MethodPost, "/register", http.HandlerFunc(ht.HandleRegister))
	http_.HandleMethod(ht.mux, http.MethodPost, "/login", http.HandlerFunc(ht.HandleLogin))
	http_.HandleMethod(ht.mux, http.MethodPost, "/logout", http.HandlerFunc(ht.HandleLogout))
	http_.HandleMethod(ht.mux, http.MethodGet, "/me",
		http_.RequireUser(authSvc, authSvc.Config.CookieName, ht.log, ht.HandleMe))

	return ht
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.mux.ServeHTTP(w, r)
}

// CredentialsRequest is the body of /login and /register.
type CredentialsRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

// UserResponse wraps the public user view.
type UserResponse struct {
	User domain.UserResponse `json:"user"`
}

// OKResponse is the body of /logout.
type OKResponse struct {
	OK bool `json:"ok"`
}

func (req CredentialsRequest) validate(strictUsername bool) (string, string, http_.FieldErrors) {
	fe := http_.FieldErrors{}

	var username, password string

	if req.Username == nil {
		fe.Add("username", "Required")
	} else {
		username = *req.Username
		n := utf8.RuneCountInString(username)

		switch {
		case n < minUsernameLen:
			fe.Add("username", fmt.Sprintf("Must be at least %d characters", minUsernameLen))
		case n > maxUsernameLen:
			fe.Add("username", fmt.Sprintf("Must be at most %d characters", maxUsernameLen))
		}

		if strictUsername && n > 0 && !usernamePattern.MatchString(username) {
			fe.Add("username", "Only letters, digits and underscore")
		}
	}

	if req.Password == nil {
		fe.Add("password", "Required")
	} else {
		password = *req.Password
		n := utf8.RuneCountInString(password)

		switch {
		case n < minPasswordLen:
			fe.Add("password", fmt.Sprintf("Must be at least %d characters", minPasswordLen))
		case n > maxPasswordLen:
			fe.Add("password", fmt.Sprintf("Must be at most %d characters", maxPasswordLen))
		}
	}

	return username, password, fe
}

func (ht *HTTPTransport) readCredentials(w http.ResponseWriter, r *http.Request, strict bool) (string, string, bool) {
	var req CredentialsRequest

	if err := http_.ReadJSON(w, r, &req); err != nil {
		http_.ValidationError(w, "Invalid input", nil)

		return "", "", false
	}

	username, password, fe := req.validate(strict)
	if !fe.Empty() {
		http_.ValidationError(w, "Invalid input", fe)

		return "", "", false
	}

	return username, password, true
}

// HandleRegister processes user registration requests.
func (ht *HTTPTransport) HandleRegister(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleRegister(w, r)
}

func (ht *HTTPTransport) handleRegister(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "user register failed", "error", err)
		}
	}(r.Context())

	username, password, ok := ht.readCredentials(w, r, true)
	if !ok {
		return nil
	}

	issued, err := ht.authSvc.Register(r.Context(), username, password)
	if errors.Is(err, domain.ErrUserAlreadyExists) {
		http_.WriteError(w, http.StatusConflict, http_.CodeUsernameTaken, "Username already taken",
			map[string]string{"username": username})

		return nil
	} else if err != nil {
		http_.InternalError(w)

		return fmt.Errorf("register: %w", err)
	}

	ht.authSvc.Config.SetSessionCookie(w, issued.Token, issued.ExpiresAt)

	return http_.WriteJSON(w, http.StatusCreated, UserResponse{User: issued.User.Response()})
}

// HandleLogin processes login requests.
func (ht *HTTPTransport) HandleLogin(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLogin(w, r)
}

func (ht *HTTPTransport) handleLogin(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "user login failed", "error", err)
		}
	}(r.Context())

	username, password, ok := ht.readCredentials(w, r, false)
	if !ok {
		return nil
	}

	issued, err := ht.authSvc.Login(r.Context(), username, password)
	if errors.Is(err, domain.ErrInvalidCredentials) {
		http_.WriteError(w, http.StatusUnauthorized, http_.CodeInvalidCredentials, "Invalid username or password", nil)

		return nil
	} else if err != nil {
		http_.InternalError(w)

		return fmt.Errorf("login: %w", err)
	}

	ht.authSvc.Config.SetSessionCookie(w, issued.Token, issued.ExpiresAt)

	return http_.WriteJSON(w, http.StatusOK, UserResponse{User: issued.User.Response()})
}

// HandleLogout deletes the current session. The cookie is cleared in every case.
func (ht *HTTPTransport) HandleLogout(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLogout(w, r)
}

func (ht *HTTPTransport) handleLogout(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "user logout failed", "error", err)
		}
	}(r.Context())

	token := http_.SessionToken(r, ht.authSvc.Config.CookieName)

	ht.authSvc.Config.ClearSessionCookie(w)

	if err := ht.authSvc.Logout(r.Context(), token); err != nil {
		http_.InternalError(w)

		return err
	}

	return http_.WriteJSON(w, http.StatusOK, OKResponse{OK: true})
}

// HandleMe returns the authenticated user.
func (ht *HTTPTransport) HandleMe(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleMe(w, r)
}

func (ht *HTTPTransport) handleMe(w http.ResponseWriter, r *http.Request) error {
	user, ok := context_.UserFromContext(r.Context())
	if !ok {
		http_.Unauthorized(w)

		return ErrNoUser
	}

	return http_.WriteJSON(w, http.StatusOK, UserResponse{User: user.Response()})
}
