package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"marketscout/internal/apperr"
	"marketscout/internal/auth"
	"marketscout/internal/logger"
)

const (
	connectAttempts = 5
	connectInterval = 2 * time.Second

	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// Store is the PostgreSQL-backed repository.
type Store struct {
	db            *sql.DB
	checkPassword func(hash, password string) (bool, error)
}

// New wraps an already opened pool.
func New(db *sql.DB) *Store {
	return &Store{db: db, checkPassword: auth.CheckPassword}
}

// Open connects to PostgreSQL, retrying while the server comes up.
func Open(ctx context.Context, connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := New(db)
	for attempt := 1; ; attempt++ {
		err = s.Ping(ctx)
		if err == nil {
			break
		}
		if attempt == connectAttempts {
			db.Close()
			return nil, fmt.Errorf("ping database after %d attempts: %w", attempt, err)
		}

		logger.Log.Warn("Database not reachable, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", connectInterval),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(connectInterval):
		}
	}

	logger.Log.Info("Database connection established")
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// constraintError maps integrity violations to client-facing errors. Other errors pass through.
func constraintError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code {
	case pqUniqueViolation:
		switch pqErr.Constraint {
		case "users_email_key":
			return apperr.Validation("Email already registered")
		case "users_username_key":
			return apperr.Validation("Username already taken")
		case "watchlists_user_product_key":
			return apperr.Validation("Product already in watchlist")
		}
		return apperr.Validation("Record already exists")
	case pqForeignKeyViolation:
		switch pqErr.Constraint {
		case "watchlists_user_id_fkey", "alerts_user_id_fkey":
			return apperr.NotFound("User not found")
		}
		return apperr.NotFound("Product not found")
	}
	return err
}
