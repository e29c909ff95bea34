package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"marketscout/internal/apperr"
	"marketscout/internal/models"
)

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", hash)

	ok, err := CheckPassword(hash, "s3cret!")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = CheckPassword("not-a-hash", "s3cret!")
	assert.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("test-secret", 30*time.Minute)

	token, err := m.Issue("alice")
	require.NoError(t, err)

	subject, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)
}

func TestVerifyRejects(t *testing.T) {
	m := NewTokenManager("test-secret", 30*time.Minute)
	valid, err := m.Issue("alice")
	require.NoError(t, err)

	expired := NewTokenManager("test-secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Issue("alice")
	require.NoError(t, err)

	other, err := NewTokenManager("other-secret", time.Minute).Issue("alice")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.token"},
		{"expired", old},
		{"wrong secret", other},
		{"truncated", valid[:len(valid)-4]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Verify(tt.token)
			assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
		})
	}
}

func newTestAuthenticator(users UserLookup) (*Authenticator, *TokenManager) {
	tokens := NewTokenManager("test-secret", 30*time.Minute)
	onError := func(w http.ResponseWriter, r *http.Request, err error) {
		http.Error(w, err.Error(), apperr.StatusCode(apperr.KindOf(err)))
	}
	return NewAuthenticator(tokens, users, onError), tokens
}

func TestRequireUser(t *testing.T) {
	alice := &models.User{ID: 1, Username: "alice"}

	users := &mockUsers{}
	users.On("GetUserByUsername", mock.Anything, "alice").Return(alice, nil)
	users.On("GetUserByUsername", mock.Anything, "ghost").Return(nil, nil)
	users.On("GetUserByUsername", mock.Anything, "broken").Return(nil, errors.New("connection reset"))

	a, tokens := newTestAuthenticator(users)

	var seen *models.User
	handler := a.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	issue := func(name string) string {
		tok, err := tokens.Issue(name)
		require.NoError(t, err)
		return tok
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   *models.User
	}{
		{"valid token", "Bearer " + issue("alice"), http.StatusOK, alice},
		{"lowercase scheme", "bearer " + issue("alice"), http.StatusOK, alice},
		{"missing header", "", http.StatusUnauthorized, nil},
		{"basic scheme", "Basic abc", http.StatusUnauthorized, nil},
		{"unknown subject", "Bearer " + issue("ghost"), http.StatusUnauthorized, nil},
		{"store failure", "Bearer " + issue("broken"), http.StatusInternalServerError, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/watchlists", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantUser, seen)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
				assert.True(t, strings.Contains(rec.Body.String(), "Could not validate credentials"))
			}
		})
	}
}

func TestRequireUserQueryTokenOnlyForWebSocket(t *testing.T) {
	alice := &models.User{ID: 1, Username: "alice"}
	users := &mockUsers{}
	users.On("GetUserByUsername", mock.Anything, "alice").Return(alice, nil)

	a, tokens := newTestAuthenticator(users)
	token, err := tokens.Issue("alice")
	require.NoError(t, err)

	handler := a.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	plain := httptest.NewRequest(http.MethodGet, "/alerts/ws?token="+token, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, plain)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	upgrade := httptest.NewRequest(http.MethodGet, "/alerts/ws?token="+token, nil)
	upgrade.Header.Set("Connection", "Upgrade")
	upgrade.Header.Set("Upgrade", "websocket")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, upgrade)
	assert.Equal(t, http.StatusOK, rec.Code)
}
