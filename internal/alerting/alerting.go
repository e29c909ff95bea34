// Package alerting persists alert messages and fans them out to live subscribers
// and external notifiers.
package alerting

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"marketscout/internal/cache"
	"marketscout/internal/logger"
	"marketscout/internal/models"
	"marketscout/internal/notifications"
)

var alertsEmittedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "alerts_emitted_total",
		Help: "Total number of alerts persisted and broadcast",
	},
	[]string{"source"},
)

func init() {
	prometheus.MustRegister(alertsEmittedTotal)
}

// Event is the pub/sub payload for one new alert.
type Event struct {
	UserID int64        `json:"user_id"`
	Alert  models.Alert `json:"alert"`
}

func DecodeEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, fmt.Errorf("decode alert event: %w", err)
	}
	return ev, nil
}

type Store interface {
	CreateAlert(ctx context.Context, userID int64, message string) (*models.Alert, error)
}

type Dispatcher struct {
	store     Store
	publisher cache.Publisher
	notifier  notifications.Notifier
	source    string
}

// NewDispatcher builds a dispatcher. publisher and notifier may be nil. source labels
// the emitted metric, e.g. "api" or "worker".
func NewDispatcher(store Store, publisher cache.Publisher, notifier notifications.Notifier, source string) *Dispatcher {
	return &Dispatcher{store: store, publisher: publisher, notifier: notifier, source: source}
}

// Dispatch stores every message as an alert for user, then broadcasts and notifies.
// Only storage failures are returned.
func (d *Dispatcher) Dispatch(ctx context.Context, user models.User, messages []string) ([]models.Alert, error) {
	alerts := make([]models.Alert, 0, len(messages))
	for _, message := range messages {
		alert, err := d.store.CreateAlert(ctx, user.ID, message)
		if err != nil {
			return alerts, fmt.Errorf("dispatch alert: %w", err)
		}
		alerts = append(alerts, *alert)
		alertsEmittedTotal.WithLabelValues(d.source).Inc()

		d.broadcast(ctx, *alert)
		d.notify(ctx, user, *alert)
	}
	return alerts, nil
}

func (d *Dispatcher) broadcast(ctx context.Context, alert models.Alert) {
	if d.publisher == nil {
		return
	}

	payload, err := json.Marshal(Event{UserID: alert.UserID, Alert: alert})
	if err != nil {
		logger.Log.Error("Failed to marshal alert", zap.Error(err))
		return
	}

	if err := d.publisher.Publish(ctx, cache.AlertsChannel, string(payload)); err != nil {
		logger.Log.Error("Failed to publish alert to Redis",
			zap.Int64("alert_id", alert.ID),
			zap.Int64("user_id", alert.UserID),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) notify(ctx context.Context, user models.User, alert models.Alert) {
	if d.notifier == nil {
		return
	}

	err := d.notifier.Notify(ctx, notifications.Notification{
		AlertID:   alert.ID,
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Message:   alert.Message,
		CreatedAt: alert.CreatedAt,
	})
	if err != nil {
		logger.Log.Warn("Failed to deliver alert notification",
			zap.Int64("alert_id", alert.ID),
			zap.Int64("user_id", user.ID),
			zap.Error(err),
		)
	}
}
