// Package fusion merges concurrently gathered source readings into one
// fused reading per entity per cycle.
package fusion

import (
	"fmt"
	"sort"
	"time"

	"github.com/okian/goalpulse/internal/domain/model"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithClock overrides the time source used to stamp fused readings.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithAliases sets the identity table applied before partitioning.
func WithAliases(aliases *AliasTable) Option {
	return func(e *Engine) {
		if aliases != nil {
			e.aliases = aliases
		}
	}
}

// Engine fuses readings. It holds no per-entity state.
type Engine struct {
	now     func() time.Time
	aliases *AliasTable
}

// NewEngine creates a fusion engine with configuration options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		now:     time.Now,
		aliases: NewAliasTable(nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fuse merges readings for one entity, taking the maximum of every metric.
// An empty reading list yields an all-zero fused reading.
func (e *Engine) Fuse(entityID string, readings []model.Reading) (model.FusedReading, error) {
	return Fuse(entityID, readings, e.now())
}

// Group is the set of readings reported for one entity in one cycle.
type Group struct {
	EntityID string
	Readings []model.Reading
}

// Partition resolves aliases and groups readings by entity, in order of first appearance.
// Readings with an empty entity id are dropped.
func (e *Engine) Partition(readings []model.Reading) []Group {
	resolved := make([]model.Reading, 0, len(readings))
	for _, r := range readings {
		r.EntityID = e.aliases.Resolve(r.Source, r.EntityID)
		if r.EntityID == "" {
			continue
		}
		resolved = append(resolved, r)
	}
	return Partition(resolved)
}

// Fuse merges readings for entityID observed at observedAt.
func Fuse(entityID string, readings []model.Reading, observedAt time.Time) (model.FusedReading, error) {
	if entityID == "" {
		return model.FusedReading{}, ErrEmptyEntity
	}

	var merged model.Metrics
	sources := make(map[string]struct{}, len(readings))
	for i, r := range readings {
		if r.EntityID != entityID {
			return model.FusedReading{}, fmt.Errorf("%w: reading %d is %q, want %q", ErrEntityMismatch, i, r.EntityID, entityID)
		}
		merged = merged.Max(r.Metrics)
		if r.Source != "" {
			sources[r.Source] = struct{}{}
		}
	}

	names := make([]string, 0, len(sources))
	for s := range sources {
		names = append(names, s)
	}
	sort.Strings(names)

	return model.FusedReading{
		EntityID:   entityID,
		Metrics:    merged,
		ObservedAt: observedAt,
		Sources:    names,
	}, nil
}

// Partition groups readings by their reported entity id without any fuzzy matching.
func Partition(readings []model.Reading) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, r := range readings {
		i, ok := index[r.EntityID]
		if !ok {
			i = len(groups)
			index[r.EntityID] = i
			groups = append(groups, Group{EntityID: r.EntityID})
		}
		groups[i].Readings = append(groups[i].Readings, r)
	}
	return groups
}
