package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"marketscout/internal/apperr"
	"marketscout/internal/logger"
	"marketscout/internal/models"
)

type contextKey struct{}

// UserLookup resolves a token subject to a stored user.
type UserLookup interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// ErrorWriter renders a failed authentication.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

type Authenticator struct {
	tokens  *TokenManager
	users   UserLookup
	onError ErrorWriter
}

func NewAuthenticator(tokens *TokenManager, users UserLookup, onError ErrorWriter) *Authenticator {
	return &Authenticator{tokens: tokens, users: users, onError: onError}
}

// CurrentUser resolves a raw bearer token to its user.
func (a *Authenticator) CurrentUser(ctx context.Context, raw string) (*models.User, error) {
	username, err := a.tokens.Verify(raw)
	if err != nil {
		return nil, err
	}

	user, err := a.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.ErrUnauthenticated
	}
	return user, nil
}

// RequireUser rejects requests without a valid bearer token and stores the user in the context.
// WebSocket upgrades may pass the token as the "token" query parameter instead.
func (a *Authenticator) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" && websocket.IsWebSocketUpgrade(r) {
			raw = r.URL.Query().Get("token")
		}

		if raw == "" {
			a.reject(w, r, apperr.ErrUnauthenticated)
			return
		}

		user, err := a.CurrentUser(r.Context(), raw)
		if err != nil {
			if apperr.KindOf(err) != apperr.KindAuthentication {
				logger.Log.Error("Failed to resolve token subject", zap.Error(err))
			}
			a.reject(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func (a *Authenticator) reject(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.KindOf(err) == apperr.KindAuthentication {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	a.onError(w, r, err)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFromContext returns the user stored by RequireUser.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(contextKey{}).(*models.User)
	return user, ok && user != nil
}
