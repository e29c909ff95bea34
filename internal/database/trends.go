package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"marketscout/internal/logger"
	"marketscout/internal/models"
)

const trendColumns = `id, product_id, score, date`

func scanTrend(row rowScanner) (*models.Trend, error) {
	var t models.Trend
	if err := row.Scan(&t.ID, &t.ProductID, &t.Score, &t.Date); err != nil {
		return nil, err
	}
	t.Date = t.Date.UTC()
	return &t, nil
}

func scanTrends(rows *sql.Rows) ([]models.Trend, error) {
	defer rows.Close()

	trends := []models.Trend{}
	for rows.Next() {
		t, err := scanTrend(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trend: %w", err)
		}
		trends = append(trends, *t)
	}
	return trends, rows.Err()
}

// ListTrendsForProduct returns a product's trend history, oldest first.
func (s *Store) ListTrendsForProduct(ctx context.Context, productID int64) ([]models.Trend, error) {
	query := `
		SELECT ` + trendColumns + `
		FROM trends
		WHERE product_id = $1
		ORDER BY date, id`

	rows, err := s.db.QueryContext(ctx, query, productID)
	if err != nil {
		logger.Log.Error("Failed to query trends", zap.Int64("product_id", productID), zap.Error(err))
		return nil, fmt.Errorf("list trends: %w", err)
	}

	trends, err := scanTrends(rows)
	if err != nil {
		return nil, fmt.Errorf("list trends: %w", err)
	}
	return trends, nil
}

// ListRecentTrendsForProduct returns at most limit trends dated strictly after since, newest first.
func (s *Store) ListRecentTrendsForProduct(ctx context.Context, productID int64, since time.Time, limit int) ([]models.Trend, error) {
	query := `
		SELECT ` + trendColumns + `
		FROM trends
		WHERE product_id = $1 AND date > $2
		ORDER BY date DESC, id DESC
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, productID, since, limit)
	if err != nil {
		logger.Log.Error("Failed to query recent trends", zap.Int64("product_id", productID), zap.Error(err))
		return nil, fmt.Errorf("list recent trends: %w", err)
	}

	trends, err := scanTrends(rows)
	if err != nil {
		return nil, fmt.Errorf("list recent trends: %w", err)
	}
	return trends, nil
}

// ListTrendsSince returns every trend dated strictly after since, best score first.
func (s *Store) ListTrendsSince(ctx context.Context, since time.Time) ([]models.Trend, error) {
	query := `
		SELECT ` + trendColumns + `
		FROM trends
		WHERE date > $1
		ORDER BY score DESC, date DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		logger.Log.Error("Failed to query trends window", zap.Time("since", since), zap.Error(err))
		return nil, fmt.Errorf("list trends since: %w", err)
	}

	trends, err := scanTrends(rows)
	if err != nil {
		return nil, fmt.Errorf("list trends since: %w", err)
	}
	return trends, nil
}

// CreateTrend records a score. A missing product surfaces as a not-found error.
func (s *Store) CreateTrend(ctx context.Context, in models.TrendCreate) (*models.Trend, error) {
	query := `
		INSERT INTO trends (product_id, score)
		VALUES ($1, $2)
		RETURNING ` + trendColumns

	t, err := scanTrend(s.db.QueryRowContext(ctx, query, in.ProductID, in.Score))
	if err != nil {
		if mapped := constraintError(err); mapped != err {
			return nil, mapped
		}
		logger.Log.Error("Failed to create trend", zap.Int64("product_id", in.ProductID), zap.Error(err))
		return nil, fmt.Errorf("create trend: %w", err)
	}
	return t, nil
}
