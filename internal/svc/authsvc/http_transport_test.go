package authsvc_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	http_ "github.com/mkrupp/practice-tracker/internal/infra/transport/http"
	"github.com/mkrupp/practice-tracker/internal/svc/authsvc"
)

func request(h http.Handler, method, target, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}

	if cookie != nil {
		r.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, c := range rec.Result().Cookies() {
		if c.Name == "isha_session" {
			return c
		}
	}

	t.Fatal("no session cookie")

	return nil
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) http_.ErrorBody {
	t.Helper()

	var resp http_.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	return resp.Error
}

func TestHTTPSessionFlow(t *testing.T) {
	t.Parallel()

	f := setupTestService(t)
	h := authsvc.NewHTTPTransport(f.svc)

	rec := request(h, http.MethodPost, "/register", `{"username":"alice","password":"password123"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created authsvc.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "alice", created.User.Username)
	assert.NotContains(t, rec.Body.String(), "password")

	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.False(t, cookie.Secure)

	rec = request(h, http.MethodGet, "/me", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var me authsvc.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, created.User.ID, me.User.ID)

	rec = request(h, http.MethodPost, "/logout", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	assert.Equal(t, -1, sessionCookie(t, rec).MaxAge)

	rec = request(h, http.MethodGet, "/me", "", cookie)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, http_.CodeUnauthorized, errorBody(t, rec).Code)

	rec = request(h, http.MethodPost, "/login", `{"username":"alice","password":"password123"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = request(h, http.MethodGet, "/me", "", sessionCookie(t, rec))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTPLogoutWithoutSession(t *testing.T) {
	t.Parallel()

	f := setupTestService(t)

	rec := request(authsvc.NewHTTPTransport(f.svc), http.MethodPost, "/logout", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTPLogoutStoreFailure(t *testing.T) {
	t.Parallel()

	f := setupTestService(t)
	f.sessions.err = ErrRepoError

	rec := request(authsvc.NewHTTPTransport(f.svc), http.MethodPost, "/logout", "",
		&http.Cookie{Name: "isha_session", Value: "tok"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, http_.CodeInternal, errorBody(t, rec).Code)
	assert.Equal(t, -1, sessionCookie(t, rec).MaxAge)
}

func TestHTTPErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCode   http_.ErrorCode
		wantFields []string
	}{
		{
			name: "register taken", path: "/register", body: `{"username":"existing","password":"password123"}`,
			wantStatus: http.StatusConflict, wantCode: http_.CodeUsernameTaken,
		},
		{
			name: "register bad username", path: "/register", body: `{"username":"al ice","password":"password123"}`,
			wantStatus: http.StatusBadRequest, wantCode: http_.CodeValidation, wantFields: []string{"username"},
		},
		{
			name: "register short fields", path: "/register", body: `{"username":"al","password":"short"}`,
			wantStatus: http.StatusBadRequest, wantCode: http_.CodeValidation, wantFields: []string{"password", "username"},
		},
		{
			name: "register missing fields", path: "/register", body: `{}`,
			wantStatus: http.StatusBadRequest, wantCode: http_.CodeValidation, wantFields: []string{"password", "username"},
		},
		{
			name: "register malformed body", path: "/register", body: `{"username":`,
			wantStatus: http.StatusBadRequest, wantCode: http_.CodeValidation,
		},
		{
			name: "login wrong password", path: "/login", body: `{"username":"existing","password":"wrongpass"}`,
			wantStatus: http.StatusUnauthorized, wantCode: http_.CodeInvalidCredentials,
		},
		{
			name: "login unknown user", path: "/login", body: `{"username":"nobody","password":"password123"}`,
			wantStatus: http.StatusUnauthorized, wantCode: http_.CodeInvalidCredentials,
		},
		{
			name: "login long password", path: "/login",
			body:       `{"username":"existing","password":"` + strings.Repeat("p", 129) + `"}`,
			wantStatus: http.StatusBadRequest, wantCode: http_.CodeValidation, wantFields: []string{"password"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := setupTestService(t)
			h := authsvc.NewHTTPTransport(f.svc)

			rec := request(h, http.MethodPost, "/register", `{"username":"existing","password":"password123"}`, nil)
			require.Equal(t, http.StatusCreated, rec.Code)

			rec = request(h, http.MethodPost, tt.path, tt.body, nil)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			body := errorBody(t, rec)
			assert.Equal(t, tt.wantCode, body.Code)

			if tt.wantFields != nil {
				details, ok := body.Details.(map[string]any)
				require.True(t, ok)

				fields := make([]string, 0, len(details))
				for k := range details {
					fields = append(fields, k)
				}

				assert.ElementsMatch(t, tt.wantFields, fields)
			}

			assert.Empty(t, rec.Result().Cookies())
		})
	}
}
