// Package history keeps a bounded, per-entity sliding window of fused readings.
package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/goalpulse/internal/domain/model"
	"github.com/okian/goalpulse/pkg/logger"
)

const defaultCapacity = 20

// ring is a fixed-capacity FIFO of fused readings for one entity.
type ring struct {
	mu       sync.Mutex
	buf      []model.FusedReading
	head     int // index of the oldest entry
	size     int
	seq      uint64
	lastSeen time.Time
}

func (r *ring) push(f model.FusedReading) model.FusedReading {
	r.seq++
	f.Sequence = r.seq
	capacity := len(r.buf)
	if r.size < capacity {
		r.buf[(r.head+r.size)%capacity] = f
		r.size++
	} else {
		r.buf[r.head] = f
		r.head = (r.head + 1) % capacity
	}
	r.lastSeen = f.ObservedAt
	return f
}

func (r *ring) snapshot() []model.FusedReading {
	out := make([]model.FusedReading, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Store owns every entity window. Windows are locked individually.
type Store struct {
	capacity int
	log      logger.Logger

	mu      sync.RWMutex
	windows map[string]*ring
}

// NewStore creates a history store with configuration options.
func NewStore(opts ...Option) *Store {
	s := &Store{
		capacity: defaultCapacity,
		log:      logger.Get().Named("history"),
		windows:  make(map[string]*ring),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capacity returns W.
func (s *Store) Capacity() int { return s.capacity }

func (s *Store) ring(entityID string, create bool) *ring {
	s.mu.RLock()
	r := s.windows[entityID]
	s.mu.RUnlock()
	if r != nil || !create {
		return r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r = s.windows[entityID]; r == nil {
		r = &ring{buf: make([]model.FusedReading, s.capacity)}
		s.windows[entityID] = r
	}
	return r
}

// Append adds fused to the entity window, evicting the oldest entry when full.
// The stored reading, with its assigned sequence, is returned.
func (s *Store) Append(entityID string, fused model.FusedReading) model.FusedReading {
	r := s.ring(entityID, true)
	r.mu.Lock()
	defer r.mu.Unlock()
	fused.EntityID = entityID
	return r.push(fused)
}

// Window returns a copy of the entity window, oldest to newest. Unknown entities yield nil.
func (s *Store) Window(entityID string) []model.FusedReading {
	r := s.ring(entityID, false)
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// Latest returns the newest fused reading for the entity.
func (s *Store) Latest(entityID string) (model.FusedReading, bool) {
	r := s.ring(entityID, false)
	if r == nil {
		return model.FusedReading{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size == 0 {
		return model.FusedReading{}, false
	}
	return r.buf[(r.head+r.size-1)%len(r.buf)], true
}

// Len returns the number of entries in the entity window.
func (s *Store) Len(entityID string) int {
	r := s.ring(entityID, false)
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Prune drops the entity window. It reports whether the entity was tracked.
func (s *Store) Prune(entityID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.windows[entityID]; !ok {
		return false
	}
	delete(s.windows, entityID)
	return true
}

// RetireIdle prunes every entity whose latest reading is older than ttl at now.
// A non-positive ttl disables retirement. Retired ids are returned sorted.
func (s *Store) RetireIdle(ctx context.Context, now time.Time, ttl time.Duration) []string {
	if ttl <= 0 {
		return nil
	}

	s.mu.Lock()
	var retired []string
	for id, r := range s.windows {
		r.mu.Lock()
		idle := now.Sub(r.lastSeen) > ttl
		r.mu.Unlock()
		if idle {
			delete(s.windows, id)
			retired = append(retired, id)
		}
	}
	s.mu.Unlock()

	sort.Strings(retired)
	if len(retired) > 0 {
		s.log.Info(ctx, "retired idle entities",
			logger.Int("count", len(retired)),
			logger.Duration("ttl", ttl),
		)
	}
	return retired
}

// Entities returns the tracked entity ids, sorted.
func (s *Store) Entities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.windows))
	for id := range s.windows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of tracked entities.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.windows)
}
