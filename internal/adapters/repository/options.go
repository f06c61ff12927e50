package repository

import "hash/maphash"

// Option applies a configuration option to the TreapStore.
type Option func(*TreapStore)

// WithPrioritySeed fixes the treap priority hash, making tree shapes reproducible.
func WithPrioritySeed(seed maphash.Seed) Option {
	return func(s *TreapStore) {
		s.seed = seed
	}
}
