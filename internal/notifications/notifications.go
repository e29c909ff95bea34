// Package notifications delivers alerts outside the API: webhooks and email.
package notifications

import (
	"context"
	"errors"
	"time"

	"marketscout/internal/config"
)

// Notification is one alert addressed to one user.
type Notification struct {
	AlertID   int64     `json:"alert_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"-"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds the notifiers that are configured. The result may be empty.
func FromConfig(cfg config.Notifications) Multi {
	var m Multi
	if cfg.WebhookURL != "" {
		m = append(m, NewWebhook(cfg.WebhookURL))
	}
	if cfg.SMTPHost != "" {
		m = append(m, NewEmail(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom))
	}
	return m
}
