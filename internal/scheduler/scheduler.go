// Package scheduler periodically rescores every watched product.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"marketscout/internal/apperr"
	"marketscout/internal/cache"
	"marketscout/internal/logger"
	"marketscout/internal/models"
)

type WatchedProducts interface {
	ListWatchedProductIDs(ctx context.Context) ([]int64, error)
}

type Rescorer interface {
	RecordTrendScore(ctx context.Context, productID int64) (*models.TrendScore, error)
}

// Invalidator drops cached responses that new scores make stale.
type Invalidator interface {
	InvalidateByPrefix(ctx context.Context, prefix, endpoint string)
}

type Option func(*Service)

// WithInvalidator clears the cached trending listing after each run that recorded scores.
func WithInvalidator(inv Invalidator) Option {
	return func(s *Service) {
		s.invalidator = inv
	}
}

// Service runs Rescore on a cron schedule with a seconds field, e.g. "0 */15 * * * *"
// or "@every 15m".
type Service struct {
	products    WatchedProducts
	rescorer    Rescorer
	invalidator Invalidator
	cron        *cron.Cron
	timeout     time.Duration
	running     sync.Mutex
}

func NewService(products WatchedProducts, rescorer Rescorer, opts ...Option) *Service {
	s := &Service{
		products: products,
		rescorer: rescorer,
		cron:     cron.New(cron.WithSeconds()),
		timeout:  5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the rescoring job and starts the scheduler.
func (s *Service) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		// Skip the tick if the previous run is still going.
		if !s.running.TryLock() {
			logger.Log.Warn("Previous rescoring run still in progress, skipping")
			return
		}
		defer s.running.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		logger.Log.Info("Starting scheduled rescoring run")
		scored, err := s.Rescore(ctx)
		if err != nil {
			logger.Log.Error("Scheduled rescoring run failed", zap.Error(err))
			return
		}
		logger.Log.Info("Scheduled rescoring run finished", zap.Int("scored", scored))
	})
	if err != nil {
		return fmt.Errorf("invalid rescore schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	logger.Log.Info("Scheduler started", zap.String("schedule", schedule))
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
	logger.Log.Info("Scheduler stopped")
}

// Rescore records a fresh score for every watched product and returns how many were
// scored. Products deleted since they were listed are skipped.
func (s *Service) Rescore(ctx context.Context) (scored int, err error) {
	ids, err := s.products.ListWatchedProductIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list watched products: %w", err)
	}

	// Scores recorded before a failure are already visible, so invalidate on any progress.
	defer func() {
		if scored > 0 && s.invalidator != nil {
			s.invalidator.InvalidateByPrefix(context.WithoutCancel(ctx), cache.TrendingPrefix, "/trending")
		}
	}()

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return scored, err
		}

		_, err := s.rescorer.RecordTrendScore(ctx, id)
		if apperr.KindOf(err) == apperr.KindNotFound {
			continue
		}
		if err != nil {
			return scored, fmt.Errorf("rescore product %d: %w", id, err)
		}
		scored++
	}
	return scored, nil
}
