package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/crmsnjhn/bughaw-api/internal/common"
	"github.com/crmsnjhn/bughaw-api/internal/db"
)

type fakeUserQueries struct {
	users map[string]db.User
}

func (f *fakeUserQueries) GetUserByUsername(_ context.Context, username string) (db.User, error) {
	u, ok := f.users[username]
	if !ok {
		return db.User{}, db.ErrNotFound
	}
	return u, nil
}

func newAuthService(t *testing.T, users map[string]db.User) *Service {
	t.Helper()
	svc, err := NewService(ServiceConfig{
		Queries: &fakeUserQueries{users: users},
		Secret:  "test-secret-key",
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	return svc
}

func seedUser(t *testing.T, username, password, role string, active bool) db.User {
	t.Helper()
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	require.NoError(t, err)
	id, err := db.UUIDFromString(uuid.NewString())
	require.NoError(t, err)
	return db.User{ID: id, Username: username, PasswordHash: hash, FullName: "Test User", Role: role, Active: active}
}

func TestLoginIssuesParsableToken(t *testing.T) {
	user := seedUser(t, "agent1", "pass1234", "Agent", true)
	svc := newAuthService(t, map[string]db.User{"agent1": user})

	result, err := svc.Login(context.Background(), "agent1", "pass1234")
	require.NoError(t, err)
	require.Equal(t, "agent1", result.User.Username)
	require.Equal(t, "Agent", result.User.Role)
	require.NotEmpty(t, result.AccessToken)

	subject, role, err := svc.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, result.User.ID, subject)
	require.Equal(t, "Agent", role)
}

func TestLoginFailuresAreUniform(t *testing.T) {
	user := seedUser(t, "agent1", "pass1234", "Agent", true)
	disabled := seedUser(t, "ghost", "pass1234", "Agent", false)
	svc := newAuthService(t, map[string]db.User{"agent1": user, "ghost": disabled})

	for _, tc := range []struct {
		name, username, password string
	}{
		{"wrong password", "agent1", "wrong"},
		{"unknown user", "nobody", "pass1234"},
		{"disabled user", "ghost", "pass1234"},
		{"empty password", "agent1", ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tc.username, tc.password)
			require.Error(t, err)
			var appErr *common.AppError
			require.ErrorAs(t, err, &appErr)
			require.Equal(t, "INVALID_CREDENTIALS", appErr.Code)
		})
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	user := seedUser(t, "agent1", "pass1234", "Agent", true)
	svc := newAuthService(t, map[string]db.User{"agent1": user})

	issued := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return issued })
	result, err := svc.Login(context.Background(), "agent1", "pass1234")
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return issued.Add(9 * time.Hour) })
	_, _, err = svc.ParseAccessToken(result.AccessToken)
	require.Error(t, err)
}

func TestTokenSignedWithOtherSecretRejected(t *testing.T) {
	user := seedUser(t, "agent1", "pass1234", "Agent", true)
	svc := newAuthService(t, map[string]db.User{"agent1": user})

	other, err := NewService(ServiceConfig{
		Queries: &fakeUserQueries{users: map[string]db.User{"agent1": user}},
		Secret:  "a-different-secret",
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	result, err := other.Login(context.Background(), "agent1", "pass1234")
	require.NoError(t, err)

	_, _, err = svc.ParseAccessToken(result.AccessToken)
	require.Error(t, err)
}

func TestRequireAuthAndRole(t *testing.T) {
	admin := seedUser(t, "boss", "pass1234", "Admin", true)
	agent := seedUser(t, "agent1", "pass1234", "Agent", true)
	svc := newAuthService(t, map[string]db.User{"boss": admin, "agent1": agent})
	mw := Middleware{Service: svc}

	protected := mw.RequireAuth(RequireRole("Admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	// no token
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// wrong role
	agentLogin, err := svc.Login(context.Background(), "agent1", "pass1234")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+agentLogin.AccessToken)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "FORBIDDEN"))

	// admin passes
	adminLogin, err := svc.Login(context.Background(), "boss", "pass1234")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+adminLogin.AccessToken)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}
