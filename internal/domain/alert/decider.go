// Package alert decides when a scored entity deserves a notification and
// owns the last-alert record of every entity.
package alert

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/goalpulse/internal/domain/model"
	"github.com/okian/goalpulse/pkg/logger"
)

const defaultSuppressionWindow = 60 * time.Second

// ShouldEmit applies the transition rule: emit when there is no prior record,
// when the tier changed, or when the suppression window has strictly elapsed.
func ShouldEmit(prior *model.AlertRecord, tier model.Tier, now time.Time, window time.Duration) bool {
	if prior == nil {
		return true
	}
	if prior.Tier != tier {
		return true
	}
	return now.Sub(prior.EmittedAt) > window
}

// Decision is the input of Decide for one entity.
type Decision struct {
	EntityID string
	Score    float64
	Tier     model.Tier
	Fused    model.FusedReading
}

// Decider is the stateful alert decision component.
type Decider struct {
	window time.Duration
	now    func() time.Time
	newID  func() string
	log    logger.Logger

	mu      sync.Mutex
	records map[string]model.AlertRecord
}

// NewDecider creates a decider with configuration options.
func NewDecider(opts ...Option) *Decider {
	d := &Decider{
		window:  defaultSuppressionWindow,
		now:     time.Now,
		newID:   uuid.NewString,
		log:     logger.Get().Named("alert"),
		records: make(map[string]model.AlertRecord),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SuppressionWindow returns the configured window.
func (d *Decider) SuppressionWindow() time.Duration { return d.window }

// Decide returns an alert when one should be emitted now, updating the
// entity record in the same critical section.
func (d *Decider) Decide(ctx context.Context, in Decision) (model.Alert, bool) {
	now := d.now()

	d.mu.Lock()
	prior, seen := d.records[in.EntityID]
	var priorPtr *model.AlertRecord
	if seen {
		priorPtr = &prior
	}
	if !ShouldEmit(priorPtr, in.Tier, now, d.window) {
		d.mu.Unlock()
		d.log.Debug(ctx, "alert suppressed",
			logger.String("entity_id", in.EntityID),
			logger.String("tier", in.Tier.String()),
			logger.Duration("since_last", now.Sub(prior.EmittedAt)),
		)
		return model.Alert{}, false
	}
	d.records[in.EntityID] = model.AlertRecord{EntityID: in.EntityID, Tier: in.Tier, EmittedAt: now}
	d.mu.Unlock()

	a := model.Alert{
		ID:        d.newID(),
		EntityID:  in.EntityID,
		Score:     in.Score,
		Tier:      in.Tier,
		Fused:     in.Fused,
		Timestamp: now,
	}
	if seen {
		prevTier := prior.Tier
		a.PreviousTier = &prevTier
	}
	return a, true
}

// Record returns the last alert record for the entity.
func (d *Decider) Record(entityID string) (model.AlertRecord, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.records[entityID]
	return r, ok
}

// Records returns a snapshot of every record, sorted by entity id.
func (d *Decider) Records() []model.AlertRecord {
	d.mu.Lock()
	out := make([]model.AlertRecord, 0, len(d.records))
	for _, r := range d.records {
		out = append(out, r)
	}
	d.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// Restore loads previously persisted records, replacing existing ones for the same entity.
func (d *Decider) Restore(records []model.AlertRecord) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, r := range records {
		if r.EntityID == "" {
			continue
		}
		d.records[r.EntityID] = r
		n++
	}
	return n
}

// Forget drops the record of a retired entity.
func (d *Decider) Forget(entityID string) {
	d.mu.Lock()
	delete(d.records, entityID)
	d.mu.Unlock()
}

// Len returns the number of entities with a record.
func (d *Decider) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.records)
}
