package sources

import (
	"net/http"
	"time"

	"github.com/okian/goalpulse/pkg/logger"
)

// settings are shared by every adapter constructor.
type settings struct {
	client            *http.Client
	requestsPerMinute int
	baseURL           string
	now               func() time.Time
	logger            logger.Logger
}

// Option applies a configuration option to an adapter.
type Option func(*settings)

// WithHTTPClient sets the HTTP client used by the adapter.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) {
		if c != nil {
			s.client = c
		}
	}
}

// WithRequestsPerMinute sets the adapter rate limit.
func WithRequestsPerMinute(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.requestsPerMinute = n
		}
	}
}

// WithBaseURL overrides the feed endpoint, mostly for tests.
func WithBaseURL(u string) Option {
	return func(s *settings) {
		if u != "" {
			s.baseURL = u
		}
	}
}

// WithClock overrides the adapter clock used by page caches.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the adapter logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

func applyOptions(name, baseURL string, opts []Option) settings {
	s := settings{
		baseURL: baseURL,
		now:     time.Now,
		logger:  logger.Get().Named("sources").Named(name),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
