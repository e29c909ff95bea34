package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"marketscout/internal/logger"
	"marketscout/internal/models"
)

const productColumns = `id, name, description, created_at`

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

// ListProducts returns a page of products in id order.
func (s *Store) ListProducts(ctx context.Context, offset, limit int) ([]models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY id OFFSET $1 LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		logger.Log.Error("Failed to query products", zap.Error(err))
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		logger.Log.Error("Failed to retrieve product", zap.Int64("product_id", id), zap.Error(err))
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *Store) CreateProduct(ctx context.Context, in models.ProductCreate) (*models.Product, error) {
	query := `
		INSERT INTO products (name, description)
		VALUES ($1, $2)
		RETURNING ` + productColumns

	p, err := scanProduct(s.db.QueryRowContext(ctx, query, in.Name, in.Description))
	if err != nil {
		logger.Log.Error("Failed to create product", zap.String("name", in.Name), zap.Error(err))
		return nil, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}
