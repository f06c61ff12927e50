package sources

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/okian/goalpulse/internal/domain/model"
)

const simulatorName = "simulator"

var simulatedFixtures = []string{
	"Flamengo vs Palmeiras",
	"Real Madrid vs Barcelona",
	"Manchester City vs Arsenal",
	"Boca Juniors vs River Plate",
	"Bayern Munich vs Borussia Dortmund",
	"Inter vs Milan",
	"Benfica vs Porto",
	"Ajax vs Feyenoord",
}

type simulatedMatch struct {
	id      string
	name    string
	minute  int
	metrics model.Metrics
}

// Simulator produces a deterministic random walk of live statistics for
// a fixed fixture list. The same seed yields the same sequence.
type Simulator struct {
	mu      sync.Mutex
	rng     *rand.Rand
	matches []*simulatedMatch
}

// NewSimulator builds a simulator over the first n fixtures (1..8).
func NewSimulator(n int, seed int64) *Simulator {
	if n <= 0 {
		n = 3
	}
	if n > len(simulatedFixtures) {
		n = len(simulatedFixtures)
	}
	s := &Simulator{rng: rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))}
	for i := 0; i < n; i++ {
		s.matches = append(s.matches, &simulatedMatch{
			id:   fmt.Sprintf("sim-%d", i+1),
			name: simulatedFixtures[i],
		})
	}
	return s
}

// Name identifies the source.
func (s *Simulator) Name() string { return simulatorName }

// Fixtures maps simulated entity ids to their display names.
func (s *Simulator) Fixtures() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.matches))
	for _, m := range s.matches {
		out[m.id] = m.name
	}
	return out
}

// Fetch advances every match by one step and returns its statistics.
// Finished matches restart from kick-off.
func (s *Simulator) Fetch(ctx context.Context) ([]model.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	readings := make([]model.Reading, 0, len(s.matches))
	for _, m := range s.matches {
		s.step(m)
		readings = append(readings, model.Reading{Source: simulatorName, EntityID: m.id, Metrics: m.metrics})
	}
	return readings, nil
}

func (s *Simulator) step(m *simulatedMatch) {
	m.minute += 1 + s.rng.IntN(3)
	if m.minute > 95 {
		m.minute = 1
		m.metrics = model.Metrics{}
	}

	ms := &m.metrics
	ms[model.Pressure] = clamp(ms[model.Pressure]+s.rng.Float64()*3-1.5, 0, 10)
	ms[model.DangerousAttacks] += float64(s.rng.IntN(4))
	if s.rng.Float64() < 0.25 {
		ms[model.ShotsOnTarget]++
		ms[model.ExpectedGoals] += 0.05 + s.rng.Float64()*0.3
	}
	ms[model.ExpectedGoals] = math.Round(ms[model.ExpectedGoals]*100) / 100
	ms[model.OddsDelta] = clamp(ms[model.OddsDelta]+s.rng.Float64()-0.5, 0, 10)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
