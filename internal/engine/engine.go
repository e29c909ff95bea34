// Package engine scores product trendiness, derives alerts from trend history and builds
// the trending list and mock market datasets.
package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"marketscout/internal/apperr"
	"marketscout/internal/logger"
	"marketscout/internal/models"
	"marketscout/internal/tracing"
)

const (
	baseScore        = 50.0
	platformWeight   = 10.0
	platformScoreCap = 30.0
	activityWeight   = 5.0
	activityScoreCap = 20.0
	maxJitter        = 10.0

	activityWindow   = 7 * 24 * time.Hour
	alertTrendWindow = 24 * time.Hour
	viralAdWindow    = 6 * time.Hour
	trendingWindow   = 7 * 24 * time.Hour

	// AlertThreshold is the score change, in points, that raises an alert.
	AlertThreshold = 15.0

	DefaultTrendingLimit = 10
	MaxTrendingLimit     = 100
	heatMapProducts      = 10
)

var trendScoresCalculated = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "trend_scores_calculated_total",
		Help: "Total number of trend scores calculated",
	},
)

func init() {
	prometheus.MustRegister(trendScoresCalculated)
}

// Repository is the data the engine reads and writes.
type Repository interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, offset, limit int) ([]models.Product, error)
	ListAdsForProduct(ctx context.Context, productID int64) ([]models.Ad, error)
	ListAdsForProductSince(ctx context.Context, productID int64, since time.Time) ([]models.Ad, error)
	ListRecentTrendsForProduct(ctx context.Context, productID int64, since time.Time, limit int) ([]models.Trend, error)
	ListTrendsSince(ctx context.Context, since time.Time) ([]models.Trend, error)
	ListWatchlist(ctx context.Context, userID int64) ([]models.WatchlistEntry, error)
	CreateTrend(ctx context.Context, in models.TrendCreate) (*models.Trend, error)
}

// TrendPublisher announces freshly recorded scores.
type TrendPublisher interface {
	PublishTrendScored(ctx context.Context, score models.TrendScore) error
}

type Engine struct {
	repo      Repository
	now       func() time.Time
	jitter    JitterSource
	viral     ViralAdSource
	heatMap   HeatMapSource
	publisher TrendPublisher
}

type Option func(*Engine)

// WithClock overrides the time source used for every window.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithJitter(j JitterSource) Option {
	return func(e *Engine) { e.jitter = j }
}

func WithViralAdSource(s ViralAdSource) Option {
	return func(e *Engine) { e.viral = s }
}

func WithHeatMapSource(s HeatMapSource) Option {
	return func(e *Engine) { e.heatMap = s }
}

// WithPublisher sets where RecordTrendScore announces new scores.
func WithPublisher(p TrendPublisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func New(repo Repository, opts ...Option) *Engine {
	e := &Engine{
		repo: repo,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	seed := e.now().UnixNano()
	if e.jitter == nil {
		e.jitter = NewRandomJitter(seed)
	}
	if e.viral == nil {
		e.viral = NewMockViralAds(seed)
	}
	if e.heatMap == nil {
		e.heatMap = NewMockHeatMap(seed)
	}
	return e
}

// CalculateTrendScore scores a product from its ad coverage and recent activity.
// The result is always within [0, 100].
func (e *Engine) CalculateTrendScore(ctx context.Context, productID int64) (float64, error) {
	ctx, span := otel.Tracer(tracing.TracerName).Start(ctx, "engine.CalculateTrendScore")
	defer span.End()
	span.SetAttributes(attribute.Int64("product_id", productID))

	ads, err := e.repo.ListAdsForProduct(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("calculate trend score: %w", err)
	}

	platforms := make(map[models.Platform]struct{})
	recent := 0
	cutoff := e.now().Add(-activityWindow)
	for _, ad := range ads {
		platforms[ad.Platform] = struct{}{}
		if ad.CreatedAt.After(cutoff) {
			recent++
		}
	}

	platformScore := math.Min(float64(len(platforms))*platformWeight, platformScoreCap)
	activityScore := math.Min(float64(recent)*activityWeight, activityScoreCap)
	jitter := clamp(e.jitter.Jitter(), -maxJitter, maxJitter)

	trendScoresCalculated.Inc()
	return clamp(baseScore+platformScore+activityScore+jitter, 0, 100), nil
}

// RecordTrendScore scores an existing product, stores the score as a trend and
// publishes it. A missing product is a not-found error.
func (e *Engine) RecordTrendScore(ctx context.Context, productID int64) (*models.TrendScore, error) {
	product, err := e.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("record trend score: %w", err)
	}
	if product == nil {
		return nil, apperr.NotFound("Product not found")
	}

	score, err := e.CalculateTrendScore(ctx, productID)
	if err != nil {
		return nil, err
	}

	trend, err := e.repo.CreateTrend(ctx, models.TrendCreate{ProductID: productID, Score: score})
	if err != nil {
		return nil, fmt.Errorf("record trend score: %w", err)
	}

	result := &models.TrendScore{
		ProductID:    productID,
		Score:        score,
		CalculatedAt: trend.Date,
	}

	if e.publisher != nil {
		if err := e.publisher.PublishTrendScored(ctx, *result); err != nil {
			logger.Log.Warn("Failed to publish trend score",
				zap.Int64("product_id", productID),
				zap.Error(err),
			)
		}
	}
	return result, nil
}

// CheckAlerts evaluates every product on a user's watchlist, in watchlist order.
// Watchlist entries whose product no longer exists are skipped.
func (e *Engine) CheckAlerts(ctx context.Context, userID int64) ([]string, error) {
	ctx, span := otel.Tracer(tracing.TracerName).Start(ctx, "engine.CheckAlerts")
	defer span.End()
	span.SetAttributes(attribute.Int64("user_id", userID))

	entries, err := e.repo.ListWatchlist(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check alerts: %w", err)
	}

	alerts := []string{}
	for _, entry := range entries {
		product, err := e.repo.GetProduct(ctx, entry.ProductID)
		if err != nil {
			return nil, fmt.Errorf("check alerts: %w", err)
		}
		if product == nil {
			continue
		}

		messages, err := e.CheckProductAlerts(ctx, *product)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, messages...)
	}
	return alerts, nil
}

// CheckProductAlerts compares the two newest trends of the last day and looks for
// ads seen in the last six hours.
func (e *Engine) CheckProductAlerts(ctx context.Context, product models.Product) ([]string, error) {
	now := e.now()
	var alerts []string

	trends, err := e.repo.ListRecentTrendsForProduct(ctx, product.ID, now.Add(-alertTrendWindow), 2)
	if err != nil {
		return nil, fmt.Errorf("check product alerts: %w", err)
	}

	if len(trends) >= 2 {
		delta := trends[0].Score - trends[1].Score
		switch {
		case delta > AlertThreshold:
			alerts = append(alerts, fmt.Sprintf("🚀 %s trend score increased by %.1f points!", product.Name, delta))
		case delta < -AlertThreshold:
			alerts = append(alerts, fmt.Sprintf("📉 %s trend score decreased by %.1f points", product.Name, math.Abs(delta)))
		}
	}

	ads, err := e.repo.ListAdsForProductSince(ctx, product.ID, now.Add(-viralAdWindow))
	if err != nil {
		return nil, fmt.Errorf("check product alerts: %w", err)
	}

	if latest, ok := mostRecentAd(ads); ok {
		alerts = append(alerts, fmt.Sprintf("🔥 New viral ad detected for %s on %s!", product.Name, latest.Platform))
	}
	return alerts, nil
}

func mostRecentAd(ads []models.Ad) (models.Ad, bool) {
	if len(ads) == 0 {
		return models.Ad{}, false
	}

	latest := ads[0]
	for _, ad := range ads[1:] {
		if ad.CreatedAt.After(latest.CreatedAt) || (ad.CreatedAt.Equal(latest.CreatedAt) && ad.ID > latest.ID) {
			latest = ad
		}
	}
	return latest, true
}

// GetTrendingProducts returns up to limit distinct products ranked by their best score
// of the last week. A non-positive limit means the default; larger limits are capped.
func (e *Engine) GetTrendingProducts(ctx context.Context, limit int) ([]models.TrendingProduct, error) {
	ctx, span := otel.Tracer(tracing.TracerName).Start(ctx, "engine.GetTrendingProducts")
	defer span.End()

	limit = NormalizeTrendingLimit(limit)

	trends, err := e.repo.ListTrendsSince(ctx, e.now().Add(-trendingWindow))
	if err != nil {
		return nil, fmt.Errorf("get trending products: %w", err)
	}

	trending := []models.TrendingProduct{}
	seen := make(map[int64]struct{})
	for _, trend := range trends {
		if len(trending) == limit {
			break
		}
		if _, ok := seen[trend.ProductID]; ok {
			continue
		}
		seen[trend.ProductID] = struct{}{}

		product, err := e.repo.GetProduct(ctx, trend.ProductID)
		if err != nil {
			return nil, fmt.Errorf("get trending products: %w", err)
		}
		if product == nil {
			continue
		}

		trending = append(trending, models.TrendingProduct{
			Product:      *product,
			CurrentScore: trend.Score,
			LastUpdated:  trend.Date,
		})
	}
	return trending, nil
}

func NormalizeTrendingLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultTrendingLimit
	case limit > MaxTrendingLimit:
		return MaxTrendingLimit
	default:
		return limit
	}
}

// ScanForViralAds returns a synthetic batch of viral ad sightings.
func (e *Engine) ScanForViralAds(ctx context.Context) ([]models.ViralAd, error) {
	return e.viral.Scan(ctx, e.now())
}

// GenerateHeatMap returns regional popularity for the first products by id.
func (e *Engine) GenerateHeatMap(ctx context.Context) (models.HeatMap, error) {
	products, err := e.repo.ListProducts(ctx, 0, heatMapProducts)
	if err != nil {
		return nil, fmt.Errorf("generate heat map: %w", err)
	}
	return e.heatMap.Generate(ctx, products)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
