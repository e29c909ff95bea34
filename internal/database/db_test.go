package database

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketscout/internal/apperr"
	"marketscout/internal/auth"
	"marketscout/internal/models"
)

func TestConstraintError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind apperr.Kind
		wantMsg  string
	}{
		{"duplicate email", &pq.Error{Code: pqUniqueViolation, Constraint: "users_email_key"}, apperr.KindValidation, "Email already registered"},
		{"duplicate username", &pq.Error{Code: pqUniqueViolation, Constraint: "users_username_key"}, apperr.KindValidation, "Username already taken"},
		{"duplicate watchlist pair", &pq.Error{Code: pqUniqueViolation, Constraint: "watchlists_user_product_key"}, apperr.KindValidation, "Product already in watchlist"},
		{"missing product", &pq.Error{Code: pqForeignKeyViolation, Constraint: "ads_product_id_fkey"}, apperr.KindNotFound, "Product not found"},
		{"missing user", &pq.Error{Code: pqForeignKeyViolation, Constraint: "alerts_user_id_fkey"}, apperr.KindNotFound, "User not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := constraintError(tt.err)

			var appErr *apperr.Error
			if assert.True(t, errors.As(err, &appErr)) {
				assert.Equal(t, tt.wantKind, appErr.Kind)
				assert.Equal(t, tt.wantMsg, appErr.Message)
			}
		})
	}

	plain := errors.New("connection refused")
	assert.Same(t, plain, constraintError(plain))

	other := &pq.Error{Code: "42P01"}
	assert.Equal(t, error(other), constraintError(other))
}

func TestVerifyCredentials(t *testing.T) {
	user := &models.User{ID: 7, Username: "alice", PasswordHash: "stored-hash"}

	tests := []struct {
		name      string
		user      *models.User
		match     bool
		checkErr  error
		wantHash  string
		wantError error
	}{
		{name: "match", user: user, match: true, wantHash: "stored-hash"},
		{name: "wrong password", user: user, wantHash: "stored-hash", wantError: apperr.ErrInvalidCredentials},
		{name: "unreadable hash", user: user, checkErr: errors.New("bad hash"), wantHash: "stored-hash", wantError: apperr.ErrInvalidCredentials},
		{name: "unknown user", user: nil, wantHash: dummyHash(), wantError: apperr.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var checked []string
			s := New(nil)
			s.checkPassword = func(hash, password string) (bool, error) {
				checked = append(checked, hash)
				assert.Equal(t, "hunter2", password)
				return tt.match, tt.checkErr
			}

			err := s.verifyCredentials(tt.user, "hunter2")
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
			} else {
				assert.NoError(t, err)
			}
			// Every path, including the unknown user, pays for exactly one comparison.
			assert.Equal(t, []string{tt.wantHash}, checked)
		})
	}
}

func TestDummyHashIsComparable(t *testing.T) {
	ok, err := auth.CheckPassword(dummyHash(), "hunter2")
	require.NoError(t, err)
	assert.False(t, ok)
}
