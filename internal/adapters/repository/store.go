// Package repository keeps the live fixture ranking ordered by pressure index.
package repository

import (
	"context"
	"time"

	"github.com/okian/goalpulse/internal/domain/model"
)

// Entry represents a ranking row.
type Entry struct {
	Rank      int
	EntityID  string
	Score     float64
	Tier      model.Tier
	UpdatedAt time.Time
}

// Store provides read/write access to the ranking state.
type Store interface {
	// Upsert sets the current index of an entity, replacing any previous value.
	Upsert(ctx context.Context, entityID string, score float64, tier model.Tier, at time.Time) error
	// Remove drops an entity. Returns ErrNotFound if it is unknown.
	Remove(ctx context.Context, entityID string) error

	// Rank returns the current rank and score for an entity.
	// Returns ErrNotFound if the entity is unknown.
	Rank(ctx context.Context, entityID string) (Entry, error)

	// TopN returns the top-N entries ordered by score desc, then id asc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of ranked entities.
	Count(ctx context.Context) int
}
