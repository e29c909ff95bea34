package engine

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"marketscout/internal/models"
)

// JitterSource supplies the random term of a trend score, in [-10, 10].
type JitterSource interface {
	Jitter() float64
}

// JitterFunc adapts a function to JitterSource.
type JitterFunc func() float64

func (f JitterFunc) Jitter() float64 { return f() }

// FixedJitter always returns the same value.
func FixedJitter(v float64) JitterSource {
	return JitterFunc(func() float64 { return v })
}

// RandomJitter draws uniform jitter from a seeded generator. Safe for concurrent use.
type RandomJitter struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomJitter(seed int64) *RandomJitter {
	return &RandomJitter{rng: rand.New(rand.NewSource(seed))}
}

func (j *RandomJitter) Jitter() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.rng.Float64()*2*maxJitter - maxJitter
}

type ViralAdSource interface {
	Scan(ctx context.Context, now time.Time) ([]models.ViralAd, error)
}

type HeatMapSource interface {
	Generate(ctx context.Context, products []models.Product) (models.HeatMap, error)
}

var (
	sampleProducts = []string{"Wireless Earbuds", "Smart Watch", "Phone Case", "Fitness Tracker", "Bluetooth Speaker"}
	sampleContent  = []string{
		"🔥 VIRAL PRODUCT ALERT! This is flying off the shelves!",
		"Everyone's talking about this! Get yours before it's sold out!",
		"This product is breaking the internet! Limited time offer!",
		"Influencers can't stop posting about this!",
		"The product everyone's searching for!",
	}

	// Regions are the heat map columns.
	Regions = []string{"North America", "Europe", "Asia", "South America", "Africa", "Oceania"}
)

// MockViralAds fabricates 3 to 8 sightings per scan from fixed sample lists.
type MockViralAds struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewMockViralAds(seed int64) *MockViralAds {
	return &MockViralAds{rng: rand.New(rand.NewSource(seed))}
}

// NewMockViralAdsFrom uses rng directly. rng must not be shared.
func NewMockViralAdsFrom(rng *rand.Rand) *MockViralAds {
	return &MockViralAds{rng: rng}
}

func (m *MockViralAds) Scan(_ context.Context, now time.Time) ([]models.ViralAd, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 3 + m.rng.Intn(6)
	ads := make([]models.ViralAd, 0, n)
	for i := 0; i < n; i++ {
		ads = append(ads, models.ViralAd{
			ProductName:     sampleProducts[m.rng.Intn(len(sampleProducts))],
			Platform:        models.Platforms[m.rng.Intn(len(models.Platforms))],
			Content:         sampleContent[m.rng.Intn(len(sampleContent))],
			EngagementScore: 70 + m.rng.Intn(31),
			DetectedAt:      now.UTC(),
		})
	}
	return ads, nil
}

// MockHeatMap assigns every product a popularity in [10, 100] per region.
type MockHeatMap struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewMockHeatMap(seed int64) *MockHeatMap {
	return &MockHeatMap{rng: rand.New(rand.NewSource(seed))}
}

func NewMockHeatMapFrom(rng *rand.Rand) *MockHeatMap {
	return &MockHeatMap{rng: rng}
}

func (m *MockHeatMap) Generate(_ context.Context, products []models.Product) (models.HeatMap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	heatMap := make(models.HeatMap, len(products))
	for _, p := range products {
		regions := make(map[string]int, len(Regions))
		for _, region := range Regions {
			regions[region] = 10 + m.rng.Intn(91)
		}
		heatMap[p.Name] = regions
	}
	return heatMap, nil
}
