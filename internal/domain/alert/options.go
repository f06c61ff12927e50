package alert

import (
	"time"

	"github.com/okian/goalpulse/pkg/logger"
)

// Option applies a configuration option to the Decider.
type Option func(*Decider)

// WithSuppressionWindow sets the minimum gap between two same-tier alerts.
func WithSuppressionWindow(d time.Duration) Option {
	return func(dc *Decider) {
		if d >= 0 {
			dc.window = d
		}
	}
}

// WithClock overrides the decision clock.
func WithClock(now func() time.Time) Option {
	return func(dc *Decider) {
		if now != nil {
			dc.now = now
		}
	}
}

// WithIDGenerator overrides alert id generation.
func WithIDGenerator(gen func() string) Option {
	return func(dc *Decider) {
		if gen != nil {
			dc.newID = gen
		}
	}
}

// WithLogger sets the decider logger.
func WithLogger(l logger.Logger) Option {
	return func(dc *Decider) {
		if l != nil {
			dc.log = l
		}
	}
}
