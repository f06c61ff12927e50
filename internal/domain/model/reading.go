// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// Metric identifies one of the fixed set of signals a source can report.
type Metric int

const (
	Pressure Metric = iota
	DangerousAttacks
	ShotsOnTarget
	ExpectedGoals
	OddsDelta

	metricCount
)

// AllMetrics lists every metric in index order.
var AllMetrics = [metricCount]Metric{Pressure, DangerousAttacks, ShotsOnTarget, ExpectedGoals, OddsDelta}

var metricNames = [metricCount]string{
	"pressure",
	"dangerous_attacks",
	"shots_on_target",
	"expected_goals",
	"odds_delta",
}

func (m Metric) String() string {
	if m < 0 || m >= metricCount {
		return "unknown"
	}
	return metricNames[m]
}

// ParseMetric resolves a metric by its snake_case name.
func ParseMetric(s string) (Metric, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range metricNames {
		if name == s {
			return Metric(i), true
		}
	}
	return 0, false
}

// Metrics holds one value per metric. Missing metrics are zero.
type Metrics [metricCount]float64

// Get returns the value of m, or 0 for an unknown metric.
func (ms Metrics) Get(m Metric) float64 {
	if m < 0 || m >= metricCount {
		return 0
	}
	return ms[m]
}

// Max returns the metric-wise maximum of ms and other.
func (ms Metrics) Max(other Metrics) Metrics {
	out := ms
	for i := range out {
		if other[i] > out[i] {
			out[i] = other[i]
		}
	}
	return out
}

// IsZero reports whether every metric is zero.
func (ms Metrics) IsZero() bool {
	for _, v := range ms {
		if v != 0 {
			return false
		}
	}
	return true
}

// Map returns the metrics keyed by name, used for JSON and logging.
func (ms Metrics) Map() map[string]float64 {
	out := make(map[string]float64, metricCount)
	for i, v := range ms {
		out[metricNames[i]] = v
	}
	return out
}

// MarshalJSON encodes the metrics as an object keyed by metric name.
func (ms Metrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(ms.Map())
}

// UnmarshalJSON decodes an object keyed by metric name. Unknown keys are ignored.
func (ms *Metrics) UnmarshalJSON(b []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	values := make(map[Metric]float64, len(raw))
	for name, v := range raw {
		if m, ok := ParseMetric(name); ok {
			values[m] = v
		}
	}
	*ms = MetricsFrom(values)
	return nil
}

// MetricsFrom builds Metrics from a sparse map, sanitising every value.
func MetricsFrom(values map[Metric]float64) Metrics {
	var ms Metrics
	for m, v := range values {
		if m < 0 || m >= metricCount {
			continue
		}
		ms[m] = sanitize(v)
	}
	return ms
}

// MaxMetricValue caps every metric. Live match statistics stay far below it.
const MaxMetricValue = 1e6

// sanitize maps negative, NaN and infinite values to 0 and caps the rest at MaxMetricValue.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return math.Min(v, MaxMetricValue)
}

// Reading is one source's observation for one entity. Treat as immutable.
type Reading struct {
	Source   string
	EntityID string
	Metrics  Metrics
}

// NewReading builds a Reading; unknown metrics are dropped and invalid values become 0.
func NewReading(source, entityID string, values map[Metric]float64) Reading {
	return Reading{
		Source:   source,
		EntityID: entityID,
		Metrics:  MetricsFrom(values),
	}
}

// FusedReading is the per-entity, per-cycle merge of every source's readings.
// Sequence is assigned by the history store and increases per entity.
type FusedReading struct {
	EntityID   string    `json:"entity_id"`
	Metrics    Metrics   `json:"metrics"`
	ObservedAt time.Time `json:"observed_at"`
	Sequence   uint64    `json:"sequence"`
	Sources    []string  `json:"sources,omitempty"`
}
