package database

import (
	"context"
	"fmt"

	"marketscout/internal/logger"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		username      VARCHAR(50)  NOT NULL,
		email         VARCHAR(255) NOT NULL,
		password_hash TEXT         NOT NULL,
		created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		CONSTRAINT users_username_key UNIQUE (username),
		CONSTRAINT users_email_key UNIQUE (email)
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id          BIGSERIAL PRIMARY KEY,
		name        VARCHAR(200)  NOT NULL,
		description VARCHAR(1000) NOT NULL,
		created_at  TIMESTAMPTZ   NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS ads (
		id         BIGSERIAL PRIMARY KEY,
		product_id BIGINT        NOT NULL,
		platform   VARCHAR(20)   NOT NULL,
		ad_content VARCHAR(2000) NOT NULL,
		created_at TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
		CONSTRAINT ads_product_id_fkey FOREIGN KEY (product_id) REFERENCES products (id) ON DELETE CASCADE,
		CONSTRAINT ads_platform_check CHECK (platform IN ('TikTok', 'Facebook', 'Instagram', 'YouTube', 'Twitter'))
	)`,
	`CREATE TABLE IF NOT EXISTS trends (
		id         BIGSERIAL PRIMARY KEY,
		product_id BIGINT           NOT NULL,
		score      DOUBLE PRECISION NOT NULL,
		date       TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
		CONSTRAINT trends_product_id_fkey FOREIGN KEY (product_id) REFERENCES products (id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS watchlists (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT      NOT NULL,
		product_id BIGINT      NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT watchlists_user_id_fkey FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE,
		CONSTRAINT watchlists_product_id_fkey FOREIGN KEY (product_id) REFERENCES products (id) ON DELETE CASCADE,
		CONSTRAINT watchlists_user_product_key UNIQUE (user_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT      NOT NULL,
		message    TEXT        NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT alerts_user_id_fkey FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS ads_product_created_idx ON ads (product_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS trends_product_date_idx ON trends (product_id, date DESC)`,
	`CREATE INDEX IF NOT EXISTS trends_date_idx ON trends (date DESC)`,
	`CREATE INDEX IF NOT EXISTS alerts_user_created_idx ON alerts (user_id, created_at DESC)`,
}

// Migrate creates the tables and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}

	logger.Log.Info("Database schema is up to date")
	return nil
}
