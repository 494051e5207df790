package authsvc_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/practice-tracker/internal/domain"
	"github.com/mkrupp/practice-tracker/internal/infra/logging"
	"github.com/mkrupp/practice-tracker/internal/svc/authsvc"
)

// mockUserRepository implements user.Repository for testing.
type mockUserRepository struct {
	users map[string]*domain.User
	err   error
	m     sync.Mutex
}

func (m *mockUserRepository) CreateUser(_ context.Context, username string, passwordHash []byte) (*domain.User, error) {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	if _, exists := m.users[username]; exists {
		return nil, domain.ErrUserAlreadyExists
	}

	u := &domain.User{
		ID:           int64(len(m.users) + 1),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	m.users[username] = u

	return u, nil
}

func (m *mockUserRepository) GetUserByUsername(_ context.Context, username string) (*domain.User, bool, error) {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return nil, false, m.err
	}

	u, exists := m.users[username]

	return u, exists, nil
}

func (m *mockUserRepository) byID(id int64) (*domain.User, bool) {
	m.m.Lock()
	defer m.m.Unlock()

	for _, u := range m.users {
		if u.ID == id {
			return u, true
		}
	}

	return nil, false
}

func (m *mockUserRepository) UpsertUser(ctx context.Context, username string, passwordHash []byte) (*domain.User, error) {
	m.m.Lock()
	if u, ok := m.users[username]; ok {
		u.PasswordHash = passwordHash
		m.m.Unlock()

		return u, nil
	}
	m.m.Unlock()

	return m.CreateUser(ctx, username, passwordHash)
}

// mockSessionRepository implements session.Repository for testing. FindActive
// ignores expiry so the service has to enforce it.
type mockSessionRepository struct {
	users    *mockUserRepository
	sessions map[string]domain.Session
	err      error
	m        sync.Mutex
}

func (m *mockSessionRepository) Create(_ context.Context, s domain.Session) error {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return m.err
	}

	m.sessions[s.TokenHash] = s

	return nil
}

func (m *mockSessionRepository) FindActive(
	_ context.Context,
	tokenHash string,
	_ time.Time,
) (*domain.Session, *domain.User, bool, error) {
	m.m.Lock()
	s, ok := m.sessions[tokenHash]
	err := m.err
	m.m.Unlock()

	if err != nil {
		return nil, nil, false, err
	}

	if !ok {
		return nil, nil, false, nil
	}

	u, found := m.users.byID(s.UserID)
	if !found {
		return nil, nil, false, nil
	}

	return &s, u, true, nil
}

func (m *mockSessionRepository) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return m.err
	}

	delete(m.sessions, tokenHash)

	return nil
}

func (m *mockSessionRepository) DeleteExpired(_ context.Context, userID int64, now time.Time) (int64, error) {
	m.m.Lock()
	defer m.m.Unlock()

	var n int64

	for k, s := range m.sessions {
		if s.UserID == userID && s.Expired(now) {
			delete(m.sessions, k)
			n++
		}
	}

	return n, nil
}

var ErrRepoError = errors.New("repository error")

type fixture struct {
	svc      *authsvc.AuthService
	users    *mockUserRepository
	sessions *mockSessionRepository
	now      time.Time
}

func setupTestService(t *testing.T) *fixture {
	t.Helper()

	users := &mockUserRepository{users: make(map[string]*domain.User)}
	sessions := &mockSessionRepository{users: users, sessions: make(map[string]domain.Session)}

	svc, err := authsvc.NewAuthService(users, sessions, authsvc.AuthConfig{
		SessionTTL: time.Hour,
		BcryptCost: 4, // clamped to the minimum
		CookieName: "isha_session",
		CookiePath: "/",
	})
	require.NoError(t, err)

	svc.Log = logging.NewNopLogger()

	f := &fixture{svc: svc, users: users, sessions: sessions, now: time.Date(2026, 1, 6, 12, 0, 0, 0, time.UTC)}
	svc.SetNow(func() time.Time { return f.now })

	return f
}

func TestAuthConfigCost(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 8, authsvc.AuthConfig{BcryptCost: 4}.Cost())
	assert.Equal(t, 10, authsvc.AuthConfig{BcryptCost: 10}.Cost())
	assert.Equal(t, 14, authsvc.AuthConfig{BcryptCost: 31}.Cost())
}

func TestSessionToken(t *testing.T) {
	t.Parallel()

	a, err := authsvc.NewSessionToken()
	require.NoError(t, err)
	b, err := authsvc.NewSessionToken()
	require.NoError(t, err)

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "=")

	hash := authsvc.HashToken(a)
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, authsvc.HashToken(a))
	assert.NotEqual(t, hash, authsvc.HashToken(b))
}

func TestRegister(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		username string
		repoErr  error
		wantErr  error
	}{
		{name: "successful registration", username: "alice"},
		{name: "duplicate username", username: "existing", wantErr: domain.ErrUserAlreadyExists},
		{name: "repository error", username: "bob", repoErr: ErrRepoError, wantErr: ErrRepoError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := setupTestService(t)
			_, err := f.svc.Register(context.Background(), "existing", "password123")
			require.NoError(t, err)

			f.users.err = tt.repoErr

			issued, err := f.svc.Register(context.Background(), tt.username, "password123")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.username, issued.User.Username)
			assert.NotEmpty(t, issued.Token)
			assert.Equal(t, f.now.Add(time.Hour), issued.ExpiresAt)
			assert.NotContains(t, string(issued.User.PasswordHash), "password123")

			s, ok := f.sessions.sessions[authsvc.HashToken(issued.Token)]
			require.True(t, ok, "session stored under token hash")
			assert.Equal(t, issued.User.ID, s.UserID)
		})
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		username string
		password string
		repoErr  error
		wantErr  error
	}{
		{name: "successful login", username: "alice", password: "password123"},
		{name: "wrong password", username: "alice", password: "wrongpassword", wantErr: domain.ErrInvalidCredentials},
		{name: "unknown user", username: "nobody", password: "password123", wantErr: domain.ErrInvalidCredentials},
		{name: "repository error", username: "alice", password: "password123", repoErr: ErrRepoError, wantErr: ErrRepoError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := setupTestService(t)
			_, err := f.svc.Register(context.Background(), "alice", "password123")
			require.NoError(t, err)

			f.users.err = tt.repoErr

			issued, err := f.svc.Login(context.Background(), tt.username, tt.password)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, issued)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, "alice", issued.User.Username)
		})
	}
}

func TestLoginLongPassword(t *testing.T) {
	t.Parallel()

	f := setupTestService(t)
	long := strings.Repeat("x", 100)

	_, err := f.svc.Register(context.Background(), "alice", long)
	require.NoError(t, err)

	_, err = f.svc.Login(context.Background(), "alice", long)
	require.NoError(t, err)
}

func TestLoginPrunesExpiredSessions(t *testing.T) {
	t.Parallel()

	f := setupTestService(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "alice", "password123")
	require.NoError(t, err)
	require.Len(t, f.sessions.sessions, 1)

	f.now = f.now.Add(2 * time.Hour)

	_, err = f.svc.Login(ctx, "alice", "password123")
	require.NoError(t, err)
	assert.Len(t, f.sessions.sessions, 1)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	f := setupTestService(t)
	ctx := context.Background()

	issued, err := f.svc.Register(ctx, "alice", "password123")
	require.NoError(t, err)

	u, err := f.svc.Authenticate(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, issued.User.ID, u.ID)

	_, err = f.svc.Authenticate(ctx, "")
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.svc.Authenticate(ctx, "not-a-token")
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	f.now = issued.ExpiresAt

	_, err = f.svc.Authenticate(ctx, issued.Token)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthenticateStoreFailure(t *testing.T) {
	t.Parallel()

	f := setupTestService(t)
	f.sessions.err = ErrRepoError

	_, err := f.svc.Authenticate(context.Background(), "token")
	require.ErrorIs(t, err, ErrRepoError)
	assert.NotErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogout(t *testing.T) {
	t.Parallel()

	f := setupTestService(t)
	ctx := context.Background()

	issued, err := f.svc.Register(ctx, "alice", "password123")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, issued.Token))
	require.NoError(t, f.svc.Logout(ctx, issued.Token))
	require.NoError(t, f.svc.Logout(ctx, ""))

	_, err = f.svc.Authenticate(ctx, issued.Token)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}
