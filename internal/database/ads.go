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

const adColumns = `id, product_id, platform, ad_content, created_at`

func scanAd(row rowScanner) (*models.Ad, error) {
	var a models.Ad
	if err := row.Scan(&a.ID, &a.ProductID, &a.Platform, &a.Content, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}

func scanAds(rows *sql.Rows) ([]models.Ad, error) {
	defer rows.Close()

	ads := []models.Ad{}
	for rows.Next() {
		a, err := scanAd(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ad: %w", err)
		}
		ads = append(ads, *a)
	}
	return ads, rows.Err()
}

func (s *Store) ListAds(ctx context.Context, offset, limit int) ([]models.Ad, error) {
	query := `SELECT ` + adColumns + ` FROM ads ORDER BY id OFFSET $1 LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		logger.Log.Error("Failed to query ads", zap.Error(err))
		return nil, fmt.Errorf("list ads: %w", err)
	}

	ads, err := scanAds(rows)
	if err != nil {
		return nil, fmt.Errorf("list ads: %w", err)
	}
	return ads, nil
}

// ListAdsForProduct returns every ad of a product, newest first.
func (s *Store) ListAdsForProduct(ctx context.Context, productID int64) ([]models.Ad, error) {
	query := `
		SELECT ` + adColumns + `
		FROM ads
		WHERE product_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, productID)
	if err != nil {
		logger.Log.Error("Failed to query ads for product", zap.Int64("product_id", productID), zap.Error(err))
		return nil, fmt.Errorf("list ads for product: %w", err)
	}

	ads, err := scanAds(rows)
	if err != nil {
		return nil, fmt.Errorf("list ads for product: %w", err)
	}
	return ads, nil
}

// ListAdsForProductSince returns ads created strictly after since, newest first.
func (s *Store) ListAdsForProductSince(ctx context.Context, productID int64, since time.Time) ([]models.Ad, error) {
	query := `
		SELECT ` + adColumns + `
		FROM ads
		WHERE product_id = $1 AND created_at > $2
		ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, productID, since)
	if err != nil {
		logger.Log.Error("Failed to query recent ads", zap.Int64("product_id", productID), zap.Error(err))
		return nil, fmt.Errorf("list recent ads: %w", err)
	}

	ads, err := scanAds(rows)
	if err != nil {
		return nil, fmt.Errorf("list recent ads: %w", err)
	}
	return ads, nil
}

// CreateAd inserts an ad. A missing product surfaces as a not-found error.
func (s *Store) CreateAd(ctx context.Context, in models.AdCreate) (*models.Ad, error) {
	query := `
		INSERT INTO ads (product_id, platform, ad_content)
		VALUES ($1, $2, $3)
		RETURNING ` + adColumns

	a, err := scanAd(s.db.QueryRowContext(ctx, query, in.ProductID, in.Platform, in.Content))
	if err != nil {
		if mapped := constraintError(err); mapped != err {
			return nil, mapped
		}
		logger.Log.Error("Failed to create ad", zap.Int64("product_id", in.ProductID), zap.Error(err))
		return nil, fmt.Errorf("create ad: %w", err)
	}
	return a, nil
}
