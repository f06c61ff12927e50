package service

import (
	"time"

	"github.com/okian/goalpulse/internal/adapters/mq/worker"
	"github.com/okian/goalpulse/internal/adapters/sources"
	"github.com/okian/goalpulse/internal/adapters/statestore"
	"github.com/okian/goalpulse/internal/domain/fusion"
	"github.com/okian/goalpulse/internal/domain/scoring"
	"github.com/okian/goalpulse/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSources sets the feeds polled each cycle.
func WithSources(srcs ...sources.Source) Option {
	return func(s *Service) {
		for _, src := range srcs {
			if src != nil {
				s.sources = append(s.sources, src)
			}
		}
	}
}

// WithNotifier sets the alert delivery target.
func WithNotifier(n worker.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithStateStore sets where alert records are persisted.
func WithStateStore(st statestore.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.state = st
		}
	}
}

// WithAliases sets the entity identity reconciliation table.
func WithAliases(a *fusion.AliasTable) Option {
	return func(s *Service) {
		if a != nil {
			s.aliases = a
		}
	}
}

// WithWindowSize sets the per-entity history capacity.
func WithWindowSize(w int) Option {
	return func(s *Service) {
		if w > 0 {
			s.windowSize = w
		}
	}
}

// WithScoring passes options to the scorer.
func WithScoring(opts ...scoring.Option) Option {
	return func(s *Service) {
		s.scoringOpts = append(s.scoringOpts, opts...)
	}
}

// WithSuppressionWindow sets the minimum gap between same-tier alerts.
func WithSuppressionWindow(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.suppressionWindow = d
		}
	}
}

// WithRecentAlerts caps the alert journal.
func WithRecentAlerts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recentAlerts = n
		}
	}
}

// WithWorkerCount sets the number of delivery workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the alert queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDeliveryTimeout bounds one notifier call.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.deliveryTimeout = d
		}
	}
}

// WithPollInterval sets the pause between cycles in Run.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithCycleTimeout bounds a whole cycle. Zero disables the bound.
func WithCycleTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.cycleTimeout = d
		}
	}
}

// WithSourceTimeout bounds a single source fetch. Zero disables the bound.
func WithSourceTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.sourceTimeout = d
		}
	}
}

// WithEntityTTL retires entities idle for longer than d. Zero disables retirement.
func WithEntityTTL(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.entityTTL = d
		}
	}
}

// WithClock overrides the clock used for fusion, retirement and alert decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides alert id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
