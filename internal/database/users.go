package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"marketscout/internal/apperr"
	"marketscout/internal/auth"
	"marketscout/internal/logger"
	"marketscout/internal/models"
)

const userColumns = `id, username, email, password_hash, created_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (s *Store) getUserBy(ctx context.Context, column string, value any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		logger.Log.Error("Failed to retrieve user",
			zap.String("by", column),
			zap.Error(err),
		)
		return nil, fmt.Errorf("get user by %s: %w", column, err)
	}
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.getUserBy(ctx, "id", id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUserBy(ctx, "username", username)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUserBy(ctx, "email", email)
}

// CreateUser hashes the password and inserts the user. Duplicate username or email
// surfaces as a validation error.
func (s *Store) CreateUser(ctx context.Context, in models.UserCreate) (*models.User, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns

	user, err := scanUser(s.db.QueryRowContext(ctx, query, in.Username, in.Email, hash))
	if err != nil {
		if mapped := constraintError(err); mapped != err {
			return nil, mapped
		}
		logger.Log.Error("Failed to create user", zap.String("username", in.Username), zap.Error(err))
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate returns the user whose credentials match, or ErrInvalidCredentials.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := s.verifyCredentials(user, password); err != nil {
		return nil, err
	}
	return user, nil
}

// dummyHash is compared against when the username is unknown so that a miss costs
// the same bcrypt work as a wrong password.
var dummyHash = sync.OnceValue(func() string {
	hash, err := auth.HashPassword("marketscout-unknown-user")
	if err != nil {
		panic(err)
	}
	return hash
})

func (s *Store) verifyCredentials(user *models.User, password string) error {
	if user == nil {
		_, _ = s.checkPassword(dummyHash(), password)
		return apperr.ErrInvalidCredentials
	}

	ok, err := s.checkPassword(user.PasswordHash, password)
	if err != nil {
		logger.Log.Error("Stored password hash is unreadable", zap.Int64("user_id", user.ID), zap.Error(err))
		return apperr.ErrInvalidCredentials
	}
	if !ok {
		return apperr.ErrInvalidCredentials
	}
	return nil
}
