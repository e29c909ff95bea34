package database

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"marketscout/internal/logger"
	"marketscout/internal/models"
)

const alertColumns = `id, user_id, message, created_at`

func scanAlert(row rowScanner) (*models.Alert, error) {
	var a models.Alert
	if err := row.Scan(&a.ID, &a.UserID, &a.Message, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}

// ListAlerts returns a user's alerts, newest first.
func (s *Store) ListAlerts(ctx context.Context, userID int64) ([]models.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		logger.Log.Error("Failed to query alerts by user ID",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}

func (s *Store) CreateAlert(ctx context.Context, userID int64, message string) (*models.Alert, error) {
	query := `
		INSERT INTO alerts (user_id, message)
		VALUES ($1, $2)
		RETURNING ` + alertColumns

	a, err := scanAlert(s.db.QueryRowContext(ctx, query, userID, message))
	if err != nil {
		if mapped := constraintError(err); mapped != err {
			return nil, mapped
		}
		logger.Log.Error("Failed to create alert in database",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("create alert: %w", err)
	}
	return a, nil
}
