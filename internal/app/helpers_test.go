package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/okian/goalpulse/internal/domain/model"
	"github.com/okian/goalpulse/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// scriptedSource returns one scripted batch per call; the last batch repeats.
type scriptedSource struct {
	name string

	mu      sync.Mutex
	batches [][]model.Reading
	calls   int
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (s *scriptedSource) Name() string { return s.name }

func (s *scriptedSource) Fetch(ctx context.Context) ([]model.Reading, error) {
	s.mu.Lock()
	block, entered := s.block, s.entered
	s.mu.Unlock()
	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if len(s.batches) == 0 {
		return nil, nil
	}
	i := s.calls
	if i >= len(s.batches) {
		i = len(s.batches) - 1
	}
	s.calls++
	return s.batches[i], nil
}

func (s *scriptedSource) set(batches ...[]model.Reading) {
	s.mu.Lock()
	s.batches = batches
	s.calls = 0
	s.mu.Unlock()
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []model.Alert
}

func (n *recordingNotifier) Name() string { return "recording" }

func (n *recordingNotifier) Deliver(_ context.Context, a model.Alert) error {
	n.mu.Lock()
	n.alerts = append(n.alerts, a)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) delivered() []model.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.Alert(nil), n.alerts...)
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 4, 11, 19, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func fixtureReading(source, id string, p, da, sot, xg, odds float64) model.Reading {
	return model.NewReading(source, id, map[model.Metric]float64{
		model.Pressure:         p,
		model.DangerousAttacks: da,
		model.ShotsOnTarget:    sot,
		model.ExpectedGoals:    xg,
		model.OddsDelta:        odds,
	})
}
