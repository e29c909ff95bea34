package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"marketscout/internal/logger"
	"marketscout/internal/tracing"
)

var (
	cacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"endpoint", "instance"},
	)
	cacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"endpoint", "instance"},
	)
)

func init() {
	prometheus.MustRegister(cacheHitsTotal)
	prometheus.MustRegister(cacheMissesTotal)
}

// Key prefixes of the cached listings. Writers that change a listing invalidate its prefix.
const (
	ProductsPrefix = "products_"
	TrendingPrefix = "trending_"
)

// Cache stores serialized responses by key.
type Cache interface {
	// Get reports a miss as ("", false, nil).
	Get(ctx context.Context, key, endpoint string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	InvalidateByPrefix(ctx context.Context, prefix, endpoint string)
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}

	logger.Log.Info("Redis connection established", zap.String("addr", addr))
	return client, nil
}

// RedisCache is a Cache backed by Redis string keys.
type RedisCache struct {
	client   redis.UniversalClient
	instance string
}

func New(client redis.UniversalClient, instance string) *RedisCache {
	return &RedisCache{client: client, instance: instance}
}

func (c *RedisCache) Get(ctx context.Context, key, endpoint string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		cacheMissesTotal.WithLabelValues(endpoint, c.instance).Inc()
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	cacheHitsTotal.WithLabelValues(endpoint, c.instance).Inc()
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// InvalidateByPrefix deletes every key starting with prefix. Failures are logged, not returned.
func (c *RedisCache) InvalidateByPrefix(ctx context.Context, prefix, endpoint string) {
	ctx, span := otel.Tracer(tracing.TracerName).Start(ctx, "InvalidateByPrefix")
	defer span.End()

	keys, err := c.keysWithPrefix(ctx, prefix)
	if err != nil {
		logger.Log.Error("Failed to get cache keys for invalidation",
			zap.String("prefix", prefix),
			zap.String("endpoint", endpoint),
			zap.String("instance", c.instance),
			zap.Error(err),
		)
		return
	}

	invalidatedCount := 0
	for _, key := range keys {
		if err := c.client.Del(ctx, key).Err(); err != nil {
			logger.Log.Warn("Failed to invalidate cache key",
				zap.String("key", key),
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
			continue
		}
		invalidatedCount++
	}

	logger.Log.Debug("Cache invalidation completed",
		zap.String("prefix", prefix),
		zap.String("endpoint", endpoint),
		zap.String("instance", c.instance),
		zap.Int("invalidated_keys", invalidatedCount),
	)
}

func (c *RedisCache) keysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var cursor uint64
	var keys []string
	for {
		found, next, err := c.client.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			return nil, err
		}

		keys = append(keys, found...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// Nop never stores anything. Every Get is a miss.
type Nop struct{}

func (Nop) Get(context.Context, string, string) (string, bool, error) { return "", false, nil }
func (Nop) Set(context.Context, string, string, time.Duration) error  { return nil }
func (Nop) InvalidateByPrefix(context.Context, string, string)        {}
