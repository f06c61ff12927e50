// Package scoring maps a window of fused readings to a bounded pressure index and tier.
package scoring

import (
	"math"

	"github.com/okian/goalpulse/internal/domain/model"
)

// Default scoring configuration constants.
const (
	defaultScale         = 1.4
	defaultTrendLookback = 4
	defaultLowMax        = 36
	defaultMediumMax     = 66
	maxScoreValue        = 100
)

// Weights are the coefficients of the linear raw score.
type Weights struct {
	Pressure         float64
	DangerousAttacks float64
	ShotsOnTarget    float64
	ExpectedGoals    float64
	OddsDelta        float64
	Trend            float64
}

// DefaultWeights returns the reference weight set.
func DefaultWeights() Weights {
	return Weights{
		Pressure:         2.5,
		DangerousAttacks: 2.8,
		ShotsOnTarget:    3.2,
		ExpectedGoals:    18.0,
		OddsDelta:        4.5,
		Trend:            3.0,
	}
}

func (w Weights) metric(m model.Metric) float64 {
	switch m {
	case model.Pressure:
		return w.Pressure
	case model.DangerousAttacks:
		return w.DangerousAttacks
	case model.ShotsOnTarget:
		return w.ShotsOnTarget
	case model.ExpectedGoals:
		return w.ExpectedGoals
	case model.OddsDelta:
		return w.OddsDelta
	}
	return 0
}

// Thresholds split the [0,100] index into tiers.
// value >= MediumMax is HIGH, value >= LowMax is MEDIUM, otherwise LOW.
type Thresholds struct {
	LowMax    float64
	MediumMax float64
}

// Tier classifies value.
func (t Thresholds) Tier(value float64) model.Tier {
	switch {
	case value >= t.MediumMax:
		return model.TierHigh
	case value >= t.LowMax:
		return model.TierMedium
	default:
		return model.TierLow
	}
}

// Result is the outcome of scoring one window.
type Result struct {
	Value float64       // pressure index in [0,100]
	Raw   float64       // weighted sum before scaling
	Trend float64       // acceleration term, >= 0
	Tier  model.Tier
	Means model.Metrics // per-metric arithmetic mean over the window
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithWeights replaces the weight set. Negative weights are clamped to 0.
func WithWeights(w Weights) Option {
	return func(s *Scorer) {
		s.weights = Weights{
			Pressure:         math.Max(0, w.Pressure),
			DangerousAttacks: math.Max(0, w.DangerousAttacks),
			ShotsOnTarget:    math.Max(0, w.ShotsOnTarget),
			ExpectedGoals:    math.Max(0, w.ExpectedGoals),
			OddsDelta:        math.Max(0, w.OddsDelta),
			Trend:            math.Max(0, w.Trend),
		}
	}
}

// WithScale sets the normalisation constant K.
func WithScale(k float64) Option {
	return func(s *Scorer) {
		if k > 0 {
			s.scale = k
		}
	}
}

// WithTrendLookback sets the distance of the trend baseline, counted from the latest entry.
func WithTrendLookback(n int) Option {
	return func(s *Scorer) {
		if n >= 1 {
			s.lookback = n
		}
	}
}

// WithThresholds sets the tier boundaries. Inverted or out-of-range pairs are ignored.
func WithThresholds(lowMax, mediumMax float64) Option {
	return func(s *Scorer) {
		if lowMax >= 0 && lowMax <= mediumMax && mediumMax <= maxScoreValue {
			s.thresholds = Thresholds{LowMax: lowMax, MediumMax: mediumMax}
		}
	}
}

// Scorer is stateless after construction; Score is safe for concurrent use.
type Scorer struct {
	weights    Weights
	scale      float64
	lookback   int
	thresholds Thresholds
}

// NewScorer creates a scorer with configuration options.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		weights:    DefaultWeights(),
		scale:      defaultScale,
		lookback:   defaultTrendLookback,
		thresholds: Thresholds{LowMax: defaultLowMax, MediumMax: defaultMediumMax},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Thresholds returns the configured tier boundaries.
func (s *Scorer) Thresholds() Thresholds { return s.thresholds }

// Score computes the pressure index of window, ordered oldest to newest.
// It depends on nothing but the window contents.
func (s *Scorer) Score(window []model.FusedReading) Result {
	if len(window) == 0 {
		return Result{Tier: model.TierLow}
	}

	// Running mean keeps the sum finite for extreme but finite inputs.
	var means model.Metrics
	n := float64(len(window))
	for _, f := range window {
		for i, v := range f.Metrics {
			means[i] += v / n
		}
	}

	trend := s.trend(window)

	raw := term(trend, s.weights.Trend)
	for _, m := range model.AllMetrics {
		raw += term(means.Get(m), s.weights.metric(m))
	}

	value := float64(maxScoreValue)
	if !math.IsNaN(raw) {
		value = math.Max(0, math.Min(maxScoreValue, raw*s.scale))
	}

	return Result{
		Value: value,
		Raw:   raw,
		Trend: trend,
		Tier:  s.thresholds.Tier(value),
		Means: means,
	}
}

// term is v*w, with a zero weight contributing nothing even for infinite v.
func term(v, w float64) float64 {
	if w == 0 {
		return 0
	}
	return v * w
}

// trend rewards a recent rise in pressure plus dangerous attacks.
func (s *Scorer) trend(window []model.FusedReading) float64 {
	if len(window) < s.lookback {
		return 0
	}
	attack := func(f model.FusedReading) float64 {
		return f.Metrics.Get(model.Pressure) + f.Metrics.Get(model.DangerousAttacks)
	}
	latest := window[len(window)-1]
	base := window[len(window)-s.lookback]
	d := attack(latest) - attack(base)
	if math.IsNaN(d) || d < 0 {
		return 0
	}
	return d
}

// AllZero reports whether no reading in the window carries a non-zero metric.
// Such entities have nothing to report and are skipped before scoring.
func AllZero(window []model.FusedReading) bool {
	for _, f := range window {
		if !f.Metrics.IsZero() {
			return false
		}
	}
	return true
}
