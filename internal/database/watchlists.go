package database

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"marketscout/internal/logger"
	"marketscout/internal/models"
)

const watchlistColumns = `id, user_id, product_id, created_at`

func scanWatchlistEntry(row rowScanner) (*models.WatchlistEntry, error) {
	var w models.WatchlistEntry
	if err := row.Scan(&w.ID, &w.UserID, &w.ProductID, &w.CreatedAt); err != nil {
		return nil, err
	}
	w.CreatedAt = w.CreatedAt.UTC()
	return &w, nil
}

// ListWatchlist returns a user's entries in the order they were added.
func (s *Store) ListWatchlist(ctx context.Context, userID int64) ([]models.WatchlistEntry, error) {
	query := `
		SELECT ` + watchlistColumns + `
		FROM watchlists
		WHERE user_id = $1
		ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		logger.Log.Error("Failed to query watchlist", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	defer rows.Close()

	entries := []models.WatchlistEntry{}
	for rows.Next() {
		w, err := scanWatchlistEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan watchlist entry: %w", err)
		}
		entries = append(entries, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	return entries, nil
}

// CreateWatchlistEntry adds a product to a user's watchlist. A duplicate pair is a
// validation error and a missing product is a not-found error.
func (s *Store) CreateWatchlistEntry(ctx context.Context, userID, productID int64) (*models.WatchlistEntry, error) {
	query := `
		INSERT INTO watchlists (user_id, product_id)
		VALUES ($1, $2)
		RETURNING ` + watchlistColumns

	w, err := scanWatchlistEntry(s.db.QueryRowContext(ctx, query, userID, productID))
	if err != nil {
		if mapped := constraintError(err); mapped != err {
			return nil, mapped
		}
		logger.Log.Error("Failed to create watchlist entry",
			zap.Int64("user_id", userID),
			zap.Int64("product_id", productID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("create watchlist entry: %w", err)
	}
	return w, nil
}

// DeleteWatchlistEntry reports whether an entry was removed.
func (s *Store) DeleteWatchlistEntry(ctx context.Context, userID, productID int64) (bool, error) {
	query := `DELETE FROM watchlists WHERE user_id = $1 AND product_id = $2`

	result, err := s.db.ExecContext(ctx, query, userID, productID)
	if err != nil {
		logger.Log.Error("Failed to delete watchlist entry",
			zap.Int64("user_id", userID),
			zap.Int64("product_id", productID),
			zap.Error(err),
		)
		return false, fmt.Errorf("delete watchlist entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete watchlist entry: %w", err)
	}
	return rowsAffected > 0, nil
}

// ListWatcherIDs returns the ids of users watching a product.
func (s *Store) ListWatcherIDs(ctx context.Context, productID int64) ([]int64, error) {
	return s.queryIDs(ctx, `SELECT user_id FROM watchlists WHERE product_id = $1 ORDER BY user_id`, productID)
}

// ListWatchedProductIDs returns every product that is on at least one watchlist.
func (s *Store) ListWatchedProductIDs(ctx context.Context) ([]int64, error) {
	return s.queryIDs(ctx, `SELECT DISTINCT product_id FROM watchlists ORDER BY product_id`)
}

func (s *Store) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.Log.Error("Failed to query watchlist ids", zap.Error(err))
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
