package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Webhook posts notifications as JSON to a fixed URL.
type Webhook struct {
	client *resty.Client
	url    string
}

func NewWebhook(url string) *Webhook {
	return &Webhook{
		client: resty.New().
			SetTimeout(10*time.Second).
			SetRetryCount(2).
			SetHeader("User-Agent", "MarketScout-Alerts/1.0"),
		url: url,
	}
}

func (w *Webhook) Notify(ctx context.Context, n Notification) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(n).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("failed to send webhook notification: %w", err)
	}

	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
