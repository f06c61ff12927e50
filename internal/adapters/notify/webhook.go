package notify

import (
	"context"
	"fmt"

	"github.com/okian/goalpulse/internal/domain/model"
)

// Webhook POSTs the alert as JSON to a fixed URL.
type Webhook struct {
	settings
}

// NewWebhook builds a webhook notifier for url.
func NewWebhook(url string, opts ...Option) (*Webhook, error) {
	s := applyOptions("webhook", url, opts)
	if s.endpoint == "" {
		return nil, fmt.Errorf("%w: webhook url is empty", ErrNotifierMisconfigured)
	}
	return &Webhook{settings: s}, nil
}

// Name identifies the notifier.
func (n *Webhook) Name() string { return "webhook" }

// Deliver sends one POST with the alert body.
func (n *Webhook) Deliver(ctx context.Context, a model.Alert) error {
	if err := postJSON(ctx, n.client, n.endpoint, a, nil); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}
