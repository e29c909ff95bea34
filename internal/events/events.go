// Package events carries trend score notifications over Kafka.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"marketscout/internal/models"
)

const TypeTrendScored = "trend.scored"

// TrendScored is the payload published whenever a trend score is recorded.
type TrendScored struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	ProductID    int64     `json:"product_id"`
	Score        float64   `json:"trend_score"`
	CalculatedAt time.Time `json:"calculated_at"`
}

func NewTrendScored(score models.TrendScore) TrendScored {
	return TrendScored{
		ID:           uuid.NewString(),
		Type:         TypeTrendScored,
		ProductID:    score.ProductID,
		Score:        score.Score,
		CalculatedAt: score.CalculatedAt.UTC(),
	}
}

// Decode parses a TrendScored payload and rejects other event types.
func Decode(value []byte) (TrendScored, error) {
	var ev TrendScored
	if err := json.Unmarshal(value, &ev); err != nil {
		return TrendScored{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type != TypeTrendScored {
		return TrendScored{}, fmt.Errorf("unexpected event type %q", ev.Type)
	}
	if ev.ProductID <= 0 {
		return TrendScored{}, fmt.Errorf("event %s has no product id", ev.ID)
	}
	return ev, nil
}
