package repository

import (
	"context"
	"fmt"
	"hash/maphash"
	"math"
	"sync"
	"time"

	"github.com/okian/goalpulse/internal/domain/model"
	"github.com/okian/goalpulse/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: score DESC, then entityID ASC (deterministic).
// "less" means ranks earlier, so in-order traversal yields the
// leaderboard from hottest to calmest fixture. Priorities are a hash of
// the entity id, which keeps the tree balanced in expectation
// independently of the score distribution.

// scoreScale controls fixed-point scaling. Indexes live in [0,100].
const scoreScale = 1_000_000

type scoreFP int64

func toFixedPoint(x float64) scoreFP {
	return scoreFP(math.Round(x * scoreScale))
}

func toFloat(x scoreFP) float64 {
	return float64(x) / scoreScale
}

// record holds the ranked value of one entity.
type record struct {
	score     scoreFP
	tier      model.Tier
	updatedAt time.Time
}

// treap node
type node struct {
	id    string
	score scoreFP
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aScore, aID) should appear before (bScore, bID).
func less(aScore scoreFP, aID string, bScore scoreFP, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, score scoreFP, prio uint64) *node {
	if n == nil {
		return &node{id: id, score: score, prio: prio, size: 1}
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, score scoreFP) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	case less(score, id, n.score, n.id):
		n.left = deleteNode(n.left, id, score)
	default:
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// countAbove returns how many nodes have a strictly higher score.
func countAbove(n *node, score scoreFP) int {
	count := 0
	for n != nil {
		if n.score > score {
			count += 1 + nsize(n.left)
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectTopN appends up to limit nodes in rank order.
func collectTopN(n *node, limit int, out *[]*node) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// TreapStore ranks fixtures by their latest pressure index.
type TreapStore struct {
	mu   sync.RWMutex
	root *node
	byID map[string]record
	seed maphash.Seed
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(opts ...Option) *TreapStore {
	s := &TreapStore{
		byID: make(map[string]record),
		seed: maphash.MakeSeed(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TreapStore) priority(id string) uint64 {
	return maphash.String(s.seed, id)
}

// Upsert implements Store.Upsert in O(log n) expected time.
func (s *TreapStore) Upsert(_ context.Context, entityID string, score float64, tier model.Tier, at time.Time) error {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		metrics.RecordErrorByComponent("repository", "invalid_score")
		return fmt.Errorf("%w: %v", ErrInvalidScore, score)
	}
	ns := toFixedPoint(score)

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byID[entityID]; ok {
		s.root = deleteNode(s.root, entityID, old.score)
	}
	s.byID[entityID] = record{score: ns, tier: tier, updatedAt: at}
	s.root = insert(s.root, entityID, ns, s.priority(entityID))
	return nil
}

// Remove implements Store.Remove.
func (s *TreapStore) Remove(_ context.Context, entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.byID[entityID]
	if !ok {
		return ErrNotFound
	}
	s.root = deleteNode(s.root, entityID, old.score)
	delete(s.byID, entityID)
	return nil
}

// Rank returns the rank of an entity in O(log n). Equal scores share a rank.
func (s *TreapStore) Rank(_ context.Context, entityID string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[entityID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Entry{}, ErrNotFound
	}
	return Entry{
		Rank:      1 + countAbove(s.root, rec.score),
		EntityID:  entityID,
		Score:     toFloat(rec.score),
		Tier:      rec.tier,
		UpdatedAt: rec.updatedAt,
	}, nil
}

// TopN returns the top N entries ordered by score desc.
func (s *TreapStore) TopN(_ context.Context, n int) ([]Entry, error) {
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]*node, 0, min(n, len(s.byID)))
	collectTopN(s.root, n, &nodes)

	out := make([]Entry, len(nodes))
	for i, nd := range nodes {
		rec := s.byID[nd.id]
		rank := i + 1
		if i > 0 && nd.score == nodes[i-1].score {
			rank = out[i-1].Rank
		}
		out[i] = Entry{
			Rank:      rank,
			EntityID:  nd.id,
			Score:     toFloat(rec.score),
			Tier:      rec.tier,
			UpdatedAt: rec.updatedAt,
		}
	}
	return out, nil
}

// Count returns the total number of ranked fixtures.
func (s *TreapStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// CountByTier returns how many fixtures currently sit in each tier.
func (s *TreapStore) CountByTier(_ context.Context) map[model.Tier]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[model.Tier]int{model.TierLow: 0, model.TierMedium: 0, model.TierHigh: 0}
	for _, rec := range s.byID {
		out[rec.tier]++
	}
	return out
}
