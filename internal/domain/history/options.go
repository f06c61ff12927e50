package history

import "github.com/okian/goalpulse/pkg/logger"

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithCapacity sets the per-entity window capacity W. Values below 1 are ignored.
func WithCapacity(w int) Option {
	return func(s *Store) {
		if w >= 1 {
			s.capacity = w
		}
	}
}

// WithLogger sets the logger used for retirement messages.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}
