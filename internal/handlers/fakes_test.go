package handlers

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"

	"marketscout/internal/apperr"
	"marketscout/internal/auth"
	"marketscout/internal/export"
	"marketscout/internal/models"
	"marketscout/internal/ratelimit"
)

var errStoreDown = errors.New("pq: connection refused")

// memStore is an in-memory Store with the same not-found and constraint semantics
// as the PostgreSQL store.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	users     []models.User
	products  []models.Product
	ads       []models.Ad
	trends    []models.Trend
	watchlist []models.WatchlistEntry
	alerts    []models.Alert
	failWith  error
}

func newMemStore() *memStore {
	return &memStore{}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) Ping(context.Context) error {
	return m.failWith
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, u := range m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateUser(_ context.Context, in models.UserCreate) (*models.User, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	u := models.User{ID: m.id(), Username: in.Username, Email: in.Email, PasswordHash: hash, CreatedAt: time.Now().UTC()}
	m.users = append(m.users, u)
	return &u, nil
}

func (m *memStore) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := m.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.ErrInvalidCredentials
	}
	if ok, _ := auth.CheckPassword(u.PasswordHash, password); !ok {
		return nil, apperr.ErrInvalidCredentials
	}
	return u, nil
}

func (m *memStore) ListProducts(_ context.Context, offset, limit int) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := []models.Product{}
	for i, p := range m.products {
		if i >= offset && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) GetProduct(_ context.Context, id int64) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, p := range m.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateProduct(_ context.Context, in models.ProductCreate) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := models.Product{ID: m.id(), Name: in.Name, Description: in.Description, CreatedAt: time.Now().UTC()}
	m.products = append(m.products, p)
	return &p, nil
}

func (m *memStore) ListAds(_ context.Context, offset, limit int) ([]models.Ad, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Ad{}
	for i, a := range m.ads {
		if i >= offset && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) CreateAd(_ context.Context, in models.AdCreate) (*models.Ad, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := models.Ad{ID: m.id(), ProductID: in.ProductID, Platform: in.Platform, Content: in.Content, CreatedAt: time.Now().UTC()}
	m.ads = append(m.ads, a)
	return &a, nil
}

func (m *memStore) ListTrendsForProduct(_ context.Context, productID int64) ([]models.Trend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Trend{}
	for _, t := range m.trends {
		if t.ProductID == productID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *memStore) CreateTrend(_ context.Context, in models.TrendCreate) (*models.Trend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := models.Trend{ID: m.id(), ProductID: in.ProductID, Score: in.Score, Date: time.Now().UTC()}
	m.trends = append(m.trends, t)
	return &t, nil
}

func (m *memStore) ListWatchlist(_ context.Context, userID int64) ([]models.WatchlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.WatchlistEntry{}
	for _, w := range m.watchlist {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memStore) CreateWatchlistEntry(_ context.Context, userID, productID int64) (*models.WatchlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.watchlist {
		if w.UserID == userID && w.ProductID == productID {
			return nil, apperr.Validation("Product already in watchlist")
		}
	}
	w := models.WatchlistEntry{ID: m.id(), UserID: userID, ProductID: productID, CreatedAt: time.Now().UTC()}
	m.watchlist = append(m.watchlist, w)
	return &w, nil
}

func (m *memStore) DeleteWatchlistEntry(_ context.Context, userID, productID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, w := range m.watchlist {
		if w.UserID == userID && w.ProductID == productID {
			m.watchlist = append(m.watchlist[:i], m.watchlist[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListAlerts(_ context.Context, userID int64) ([]models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Alert{}
	for i := len(m.alerts) - 1; i >= 0; i-- {
		if m.alerts[i].UserID == userID {
			out = append(out, m.alerts[i])
		}
	}
	return out, nil
}

func (m *memStore) CreateAlert(_ context.Context, userID int64, message string) (*models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := models.Alert{ID: m.id(), UserID: userID, Message: message, CreatedAt: time.Now().UTC()}
	m.alerts = append(m.alerts, a)
	return &a, nil
}

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) RecordTrendScore(ctx context.Context, productID int64) (*models.TrendScore, error) {
	args := m.Called(productID)
	score, _ := args.Get(0).(*models.TrendScore)
	return score, args.Error(1)
}

func (m *mockEngine) CheckAlerts(ctx context.Context, userID int64) ([]string, error) {
	args := m.Called(userID)
	alerts, _ := args.Get(0).([]string)
	return alerts, args.Error(1)
}

func (m *mockEngine) GetTrendingProducts(ctx context.Context, limit int) ([]models.TrendingProduct, error) {
	args := m.Called(limit)
	trending, _ := args.Get(0).([]models.TrendingProduct)
	return trending, args.Error(1)
}

func (m *mockEngine) ScanForViralAds(ctx context.Context) ([]models.ViralAd, error) {
	args := m.Called()
	ads, _ := args.Get(0).([]models.ViralAd)
	return ads, args.Error(1)
}

func (m *mockEngine) GenerateHeatMap(ctx context.Context) (models.HeatMap, error) {
	args := m.Called()
	heatMap, _ := args.Get(0).(models.HeatMap)
	return heatMap, args.Error(1)
}

type mockExporter struct {
	mock.Mock
}

func (m *mockExporter) Export(ctx context.Context, userID int64, kind export.Kind) ([]byte, error) {
	args := m.Called(userID, kind)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Dispatch(ctx context.Context, user models.User, messages []string) ([]models.Alert, error) {
	args := m.Called(user.ID, messages)
	alerts, _ := args.Get(0).([]models.Alert)
	return alerts, args.Error(1)
}

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Allow(ctx context.Context, key string, tier ratelimit.Tier) (ratelimit.Result, error) {
	args := m.Called(key, tier.Name)
	return args.Get(0).(ratelimit.Result), args.Error(1)
}

// memCache is a map-backed cache.Cache.
type memCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]string{}}
}

func (c *memCache) Get(_ context.Context, key, _ string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *memCache) InvalidateByPrefix(_ context.Context, prefix, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
		}
	}
}

// fakeSource feeds queued payloads to Hub.Run, then blocks until cancelled.
type fakeSource struct {
	payloads chan string
}

func (f *fakeSource) ReceiveMessage(ctx context.Context) (*redis.Message, error) {
	select {
	case p := <-f.payloads:
		return &redis.Message{Channel: "test", Payload: p}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

