// Package export renders a user's watchlist data as CSV.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"marketscout/internal/apperr"
	"marketscout/internal/models"
)

const dateLayout = "2006-01-02 15:04:05"

type Kind string

const (
	KindWatchlist Kind = "watchlist"
	KindTrends    Kind = "trends"
)

// Repository is the data an export reads.
type Repository interface {
	ListWatchlist(ctx context.Context, userID int64) ([]models.WatchlistEntry, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListTrendsForProduct(ctx context.Context, productID int64) ([]models.Trend, error)
}

type Exporter struct {
	repo Repository
}

func New(repo Repository) *Exporter {
	return &Exporter{repo: repo}
}

// Filename is the attachment name offered for an export of kind.
func Filename(kind Kind) string {
	return string(kind) + "_export.csv"
}

// Export renders the requested kind for userID. Unknown kinds are a validation error.
func (e *Exporter) Export(ctx context.Context, userID int64, kind Kind) ([]byte, error) {
	var rows [][]string
	var err error

	switch kind {
	case KindWatchlist:
		rows, err = e.watchlistRows(ctx, userID)
	case KindTrends:
		rows, err = e.trendRows(ctx, userID)
	default:
		return nil, apperr.Validation("Invalid data type")
	}
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", kind, err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *Exporter) watchlistRows(ctx context.Context, userID int64) ([][]string, error) {
	rows := [][]string{{"Product ID", "Product Name", "Description", "Added Date"}}

	entries, err := e.repo.ListWatchlist(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		product, err := e.repo.GetProduct(ctx, entry.ProductID)
		if err != nil {
			return nil, err
		}
		if product == nil {
			continue
		}

		rows = append(rows, []string{
			strconv.FormatInt(product.ID, 10),
			product.Name,
			product.Description,
			entry.CreatedAt.UTC().Format(dateLayout),
		})
	}
	return rows, nil
}

func (e *Exporter) trendRows(ctx context.Context, userID int64) ([][]string, error) {
	rows := [][]string{{"Product ID", "Product Name", "Trend Score", "Date"}}

	entries, err := e.repo.ListWatchlist(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		trends, err := e.repo.ListTrendsForProduct(ctx, entry.ProductID)
		if err != nil {
			return nil, err
		}
		product, err := e.repo.GetProduct(ctx, entry.ProductID)
		if err != nil {
			return nil, err
		}

		id, name := entry.ProductID, "Unknown"
		if product != nil {
			id, name = product.ID, product.Name
		}

		for _, trend := range trends {
			rows = append(rows, []string{
				strconv.FormatInt(id, 10),
				name,
				formatScore(trend.Score),
				trend.Date.UTC().Format(dateLayout),
			})
		}
	}
	return rows, nil
}

// formatScore prints the shortest form of v that keeps a fractional part, e.g. 90.0.
func formatScore(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}
