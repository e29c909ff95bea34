package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketscout/internal/models"
)

func TestNewTrendScoredDecodes(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ev := NewTrendScored(models.TrendScore{ProductID: 3, Score: 71.5, CalculatedAt: at})

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, TypeTrendScored, ev.Type)

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, decoded.ID)
	assert.Equal(t, int64(3), decoded.ProductID)
	assert.Equal(t, 71.5, decoded.Score)
	assert.True(t, at.Equal(decoded.CalculatedAt))
}

func TestDecodeRejects(t *testing.T) {
	tests := map[string]string{
		"not json":    `{"id":`,
		"wrong type":  `{"id":"1","type":"price.updated","product_id":3}`,
		"missing id":  `{"id":"1","type":"trend.scored"}`,
		"negative id": `{"id":"1","type":"trend.scored","product_id":-2}`,
	}

	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(payload))
			assert.Error(t, err)
		})
	}
}
