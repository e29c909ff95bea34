// Package worker turns trend score events into alerts for every user watching the
// scored product.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"marketscout/internal/events"
	"marketscout/internal/logger"
	"marketscout/internal/models"
)

type Store interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	ListWatcherIDs(ctx context.Context, productID int64) ([]int64, error)
}

type AlertChecker interface {
	CheckProductAlerts(ctx context.Context, product models.Product) ([]string, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, user models.User, messages []string) ([]models.Alert, error)
}

// Processor evaluates alerts for scored products. A (user, product) pair that was
// alerted within the cooldown is skipped.
type Processor struct {
	store      Store
	checker    AlertChecker
	dispatcher Dispatcher
	cooldown   time.Duration
	now        func() time.Time

	mu            sync.Mutex
	lastAlertTime map[string]time.Time
	lastPrune     time.Time
}

func NewProcessor(store Store, checker AlertChecker, dispatcher Dispatcher, cooldown time.Duration) *Processor {
	return &Processor{
		store:         store,
		checker:       checker,
		dispatcher:    dispatcher,
		cooldown:      cooldown,
		now:           time.Now,
		lastAlertTime: make(map[string]time.Time),
	}
}

// Handle is an events.Handler.
func (p *Processor) Handle(ctx context.Context, ev events.TrendScored) error {
	logger.Log.Debug("Received trend score",
		zap.String("event_id", ev.ID),
		zap.Int64("product_id", ev.ProductID),
		zap.Float64("score", ev.Score),
	)

	product, err := p.store.GetProduct(ctx, ev.ProductID)
	if err != nil {
		return fmt.Errorf("load product %d: %w", ev.ProductID, err)
	}
	if product == nil {
		logger.Log.Info("Scored product no longer exists", zap.Int64("product_id", ev.ProductID))
		return nil
	}

	messages, err := p.checker.CheckProductAlerts(ctx, *product)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}

	watchers, err := p.store.ListWatcherIDs(ctx, product.ID)
	if err != nil {
		return fmt.Errorf("list watchers of product %d: %w", product.ID, err)
	}

	for _, userID := range watchers {
		alertKey := fmt.Sprintf("%d_%d", userID, product.ID)
		if !p.claim(alertKey) {
			logger.Log.Debug("Alert suppressed, cooldown active", zap.String("alert_key", alertKey))
			continue
		}

		user, err := p.store.GetUser(ctx, userID)
		if err != nil {
			p.release(alertKey)
			return fmt.Errorf("load user %d: %w", userID, err)
		}
		if user == nil {
			continue
		}

		if _, err := p.dispatcher.Dispatch(ctx, *user, messages); err != nil {
			p.release(alertKey)
			return fmt.Errorf("dispatch alerts to user %d: %w", userID, err)
		}
		logger.Log.Info("Alerts dispatched",
			zap.Int64("user_id", userID),
			zap.Int64("product_id", product.ID),
			zap.Int("count", len(messages)),
		)
	}
	return nil
}

// claim records an alert for key unless one was sent within the cooldown.
func (p *Processor) claim(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.pruneLocked(now)

	if last, ok := p.lastAlertTime[key]; ok && now.Sub(last) < p.cooldown {
		return false
	}
	p.lastAlertTime[key] = now
	return true
}

// pruneLocked drops expired entries, at most once per cooldown.
func (p *Processor) pruneLocked(now time.Time) {
	if now.Sub(p.lastPrune) < p.cooldown {
		return
	}
	for key, last := range p.lastAlertTime {
		if now.Sub(last) >= p.cooldown {
			delete(p.lastAlertTime, key)
		}
	}
	p.lastPrune = now
}

func (p *Processor) release(key string) {
	p.mu.Lock()
	delete(p.lastAlertTime, key)
	p.mu.Unlock()
}
