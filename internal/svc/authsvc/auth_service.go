package authsvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkrupp/practice-tracker/internal/domain"
	"github.com/mkrupp/practice-tracker/internal/infra/logging"
	"github.com/mkrupp/practice-tracker/internal/repo/session"
	"github.com/mkrupp/practice-tracker/internal/repo/user"
)

const (
	minBcryptCost = 8
	maxBcryptCost = 14

	// bcrypt ignores input beyond 72 bytes
	maxBcryptInput = 72
)

// AuthConfig contains configuration parameters for the authentication service.
type AuthConfig struct {
	// SessionTTL is the lifetime of a login session
	SessionTTL time.Duration `env:"SESSION_TTL" default:"720h"` // 30 days

	// BcryptCost is clamped to 8..14
	BcryptCost int `env:"BCRYPT_COST" default:"10"`

	// CookieName is the name of the session cookie
	CookieName string `env:"COOKIE_NAME" default:"isha_session"`
	// CookieSecure marks the cookie Secure; enable in production
	CookieSecure bool `env:"COOKIE_SECURE" default:"false"`
	// CookiePath scopes the cookie
	CookiePath string `env:"COOKIE_PATH" default:"/"`
}

// Cost returns the bcrypt cost clamped to the supported range.
func (cfg AuthConfig) Cost() int {
	return min(max(cfg.BcryptCost, minBcryptCost), maxBcryptCost)
}

// IssuedSession is a freshly created session. Token is only available here;
// the store keeps its hash.
type IssuedSession struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// AuthService provides user registration, login and session resolution.
type AuthService struct {
	Config      AuthConfig
	UserRepo    user.Repository
	SessionRepo session.Repository
	Log         logging.Logger

	now       func() time.Time
	dummyHash []byte
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo user.Repository, sessionRepo session.Repository, cfg AuthConfig) (*AuthService, error) {
	svc := &AuthService{
		Config:      cfg,
		UserRepo:    userRepo,
		SessionRepo: sessionRepo,
		Log:         logging.GetLogger("svc.authsvc.auth_service"),
		now:         time.Now,
	}

	// compared against when the user does not exist, so both paths cost one bcrypt
	dummy, err := svc.HashPassword(uuid.NewString())
	if err != nil {
		return nil, err
	}

	svc.dummyHash = dummy

	return svc, nil
}

// HashPassword hashes password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword(bcryptInput(password), s.Config.Cost())
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return hash, nil
}

func bcryptInput(password string) []byte {
	b := []byte(password)
	if len(b) > maxBcryptInput {
		b = b[:maxBcryptInput]
	}

	return b
}

// Register creates a user and logs them in.
// Returns domain.ErrUserAlreadyExists if the username is taken.
func (s *AuthService) Register(ctx context.Context, username, password string) (issued *IssuedSession, err error) {
	log := s.Log.With(logging.Group("user", "username", username))

	defer func() {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			log.InfoContext(ctx, "username taken")
		} else if err != nil {
			log.ErrorContext(ctx, "register user failed", "error", err)
		} else {
			log.DebugContext(ctx, "user registered", "user_id", issued.User.ID)
		}
	}()

	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u, err := s.UserRepo.CreateUser(ctx, username, hash)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.createSession(ctx, u)
}

// Login verifies the credentials and opens a new session. Unknown users and wrong
// passwords both yield domain.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (issued *IssuedSession, err error) {
	log := s.Log.With(logging.Group("user", "username", username))

	defer func() {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			log.InfoContext(ctx, "invalid credentials")
		} else if err != nil {
			log.ErrorContext(ctx, "login failed", "error", err)
		} else {
			log.DebugContext(ctx, "login successful", "user_id", issued.User.ID)
		}
	}()

	u, ok, err := s.UserRepo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	hash := s.dummyHash
	if ok {
		hash = u.PasswordHash
	}

	if err := bcrypt.CompareHashAndPassword(hash, bcryptInput(password)); err != nil || !ok {
		return nil, domain.ErrInvalidCredentials
	}

	if _, err := s.SessionRepo.DeleteExpired(ctx, u.ID, s.now()); err != nil {
		log.WarnContext(ctx, "prune expired sessions failed", "error", err)
	}

	return s.createSession(ctx, u)
}

func (s *AuthService) createSession(ctx context.Context, u *domain.User) (*IssuedSession, error) {
	token, err := NewSessionToken()
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}

	now := s.now()
	expiresAt := now.Add(s.Config.SessionTTL)

	if err := s.SessionRepo.Create(ctx, domain.Session{
		ID:        id.String(),
		UserID:    u.ID,
		TokenHash: HashToken(token),
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &IssuedSession{User: u, Token: token, ExpiresAt: expiresAt}, nil
}

// Logout deletes the session of token. An empty or unknown token is not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	if err := s.SessionRepo.DeleteByTokenHash(ctx, HashToken(token)); err != nil {
		s.Log.ErrorContext(ctx, "logout failed", "error", err)

		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// Authenticate resolves token into the user of an unexpired session.
// Returns domain.ErrUnauthorized when there is no such session.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, errors.Join(domain.ErrUnauthorized, domain.ErrNoSession)
	}

	now := s.now()

	sess, u, ok, err := s.SessionRepo.FindActive(ctx, HashToken(token), now)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	} else if !ok || sess.Expired(now) {
		return nil, errors.Join(domain.ErrUnauthorized, domain.ErrSessionNotFound)
	}

	return u, nil
}
