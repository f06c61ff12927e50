// Package notify delivers alerts to external channels.
//
// Every notifier performs a single delivery attempt per call and returns
// an error on failure; retry policy belongs to the caller.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/goalpulse/internal/domain/model"
	"github.com/okian/goalpulse/pkg/logger"
)

// Sentinel error kinds for this package.
var (
	ErrNotifierMisconfigured = errors.New("notifier misconfigured")
	ErrDeliveryStatus        = errors.New("delivery rejected")
	ErrHubClosed             = errors.New("websocket hub closed")
)

const (
	defaultHTTPTimeout = 10 * time.Second
	maxErrorBody       = 200
)

// Notifier sends one alert to one channel.
type Notifier interface {
	Name() string
	Deliver(ctx context.Context, a model.Alert) error
}

// Title renders a short headline for an alert.
func Title(a model.Alert) string {
	return fmt.Sprintf("[%s] GoalPulse", a.Tier)
}

// Message renders the human-readable alert body.
func Message(a model.Alert) string {
	msg := fmt.Sprintf("Fixture %s - Level %s - Pressure %.1f", a.EntityID, a.Tier, a.Score)
	if a.PreviousTier != nil && *a.PreviousTier != a.Tier {
		msg += fmt.Sprintf(" (was %s)", *a.PreviousTier)
	}
	return msg
}

type settings struct {
	client   *http.Client
	endpoint string
	logger   logger.Logger
}

// Option applies a configuration option to an HTTP notifier.
type Option func(*settings)

// WithHTTPClient sets the HTTP client used for delivery.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) {
		if c != nil {
			s.client = c
		}
	}
}

// WithEndpoint overrides the provider endpoint.
func WithEndpoint(u string) Option {
	return func(s *settings) {
		if u != "" {
			s.endpoint = u
		}
	}
}

// WithLogger sets the notifier logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

func applyOptions(name, endpoint string, opts []Option) settings {
	s := settings{
		client:   &http.Client{Timeout: defaultHTTPTimeout},
		endpoint: endpoint,
		logger:   logger.Get().Named("notify").Named(name),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// do sends req and treats any non-2xx response as ErrDeliveryStatus.
func do(client *http.Client, req *http.Request) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s: %s", ErrDeliveryStatus, resp.Status, bytes.TrimSpace(body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any, headers map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return do(client, req)
}
