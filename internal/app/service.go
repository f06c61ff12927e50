// Package service runs the polling cycle and exposes the read models
// required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/goalpulse/internal/adapters/mq/queue"
	"github.com/okian/goalpulse/internal/adapters/mq/worker"
	"github.com/okian/goalpulse/internal/adapters/notify"
	"github.com/okian/goalpulse/internal/adapters/repository"
	"github.com/okian/goalpulse/internal/adapters/sources"
	"github.com/okian/goalpulse/internal/adapters/statestore"
	"github.com/okian/goalpulse/internal/domain/alert"
	"github.com/okian/goalpulse/internal/domain/fusion"
	"github.com/okian/goalpulse/internal/domain/history"
	"github.com/okian/goalpulse/internal/domain/model"
	"github.com/okian/goalpulse/internal/domain/scoring"
	"github.com/okian/goalpulse/internal/domain/types"
	"github.com/okian/goalpulse/pkg/logger"
	"github.com/okian/goalpulse/pkg/metrics"
)

const (
	defaultPollInterval  = 12 * time.Second
	defaultCycleTimeout  = 30 * time.Second
	defaultSourceTimeout = 8 * time.Second
	defaultEntityTTL     = 10 * time.Minute
	defaultQueueSize     = 1024
	defaultRecentAlerts  = 200
	defaultWindowSize    = 20
	persistTimeout       = 5 * time.Second
)

// Service wires sources, the fusion-and-scoring engine and alert delivery.
type Service struct {
	mu sync.RWMutex
	// cycleMu serializes cycles; a busy cycle rejects new attempts.
	cycleMu sync.Mutex

	// Collaborators
	sources  []sources.Source
	notifier worker.Notifier
	state    statestore.Store
	aliases  *fusion.AliasTable

	// Core components
	fusion  *fusion.Engine
	history *history.Store
	scorer  *scoring.Scorer
	decider *alert.Decider
	journal *alert.Journal
	ranking *repository.TreapStore
	queue   *queue.InMemoryQueue
	pool    *worker.Pool

	// Configuration
	windowSize        int
	scoringOpts       []scoring.Option
	suppressionWindow time.Duration
	recentAlerts      int
	workerCount       int
	queueSize         int
	deliveryTimeout   time.Duration
	pollInterval      time.Duration
	cycleTimeout      time.Duration
	sourceTimeout     time.Duration
	entityTTL         time.Duration
	now               func() time.Time
	newID             func() string

	// State
	started   bool
	stopped   bool
	startedAt time.Time
	cancelRun context.CancelFunc
	runDone   chan struct{}

	cycles    atomic.Uint64
	emitted   atomic.Uint64
	dropped   atomic.Uint64
	lastCycle atomic.Pointer[types.CycleReport]

	logger logger.Logger
}

// New constructs a Service. Components are built here; Start launches delivery.
func New(opts ...Option) *Service {
	s := &Service{
		state:             statestore.Nop{},
		windowSize:        defaultWindowSize,
		suppressionWindow: 60 * time.Second,
		recentAlerts:      defaultRecentAlerts,
		workerCount:       runtime.NumCPU(),
		queueSize:         defaultQueueSize,
		deliveryTimeout:   10 * time.Second,
		pollInterval:      defaultPollInterval,
		cycleTimeout:      defaultCycleTimeout,
		sourceTimeout:     defaultSourceTimeout,
		entityTTL:         defaultEntityTTL,
		now:               time.Now,
		logger:            logger.Get().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = notify.NewLog(s.logger.Named("alerts"))
	}
	if s.aliases == nil {
		s.aliases = fusion.NewAliasTable(nil)
	}

	s.fusion = fusion.NewEngine(fusion.WithClock(s.now), fusion.WithAliases(s.aliases))
	s.history = history.NewStore(history.WithCapacity(s.windowSize))
	s.scorer = scoring.NewScorer(s.scoringOpts...)
	deciderOpts := []alert.Option{
		alert.WithSuppressionWindow(s.suppressionWindow),
		alert.WithClock(s.now),
	}
	if s.newID != nil {
		deciderOpts = append(deciderOpts, alert.WithIDGenerator(s.newID))
	}
	s.decider = alert.NewDecider(deciderOpts...)
	s.journal = alert.NewJournal(s.recentAlerts)
	s.ranking = repository.NewTreapStore()
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.notifier, worker.WithDeliveryTimeout(s.deliveryTimeout))
	return s
}

// Start restores persisted alert records and starts the delivery workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.stopped {
		return fmt.Errorf("%w: service was stopped", ErrNotStarted)
	}

	s.logger.Info(ctx, "starting goalpulse service...")

	records, err := s.state.Load(ctx)
	if err != nil {
		// A bad snapshot only costs suppression history.
		s.logger.Warn(ctx, "failed to load alert state, starting empty", logger.Error(err))
		metrics.RecordErrorByComponent("statestore", "load")
	} else if n := s.decider.Restore(records); n > 0 {
		s.logger.Info(ctx, "restored alert records", logger.Int("count", n))
	}

	s.pool.Start(context.WithoutCancel(ctx))
	s.started = true
	s.startedAt = s.now()

	names := s.sourceNames()
	s.logger.Info(ctx, "goalpulse service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queue.Cap()),
		logger.Int("windowSize", s.history.Capacity()),
		logger.Strings("sources", names),
		logger.String("notifier", s.notifier.Name()),
	)
	return nil
}

// Run polls every poll interval until ctx is cancelled or Stop is called.
// The first cycle starts immediately.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	if s.runDone != nil {
		s.mu.Unlock()
		return errors.New("service already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancelRun = cancel
	s.runDone = make(chan struct{})
	done := s.runDone
	s.mu.Unlock()

	defer close(done)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if _, err := s.RunCycle(ctx); err != nil && !errors.Is(err, ErrCycleInProgress) {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn(ctx, "cycle failed", logger.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Stop ends the polling loop, drains the delivery queue and persists state.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.stopped = true
	cancel, done := s.cancelRun, s.runDone
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping goalpulse service...")

	if cancel != nil {
		cancel()
		<-done
	}
	// Wait for an in-flight cycle started outside Run.
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.persist(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.state.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close state store: %w", err))
	}

	s.logger.Info(ctx, "goalpulse service stopped",
		logger.Uint64("delivered", s.pool.Delivered()),
		logger.Uint64("failed", s.pool.Failed()),
	)
	return errors.Join(errs...)
}

// RunCycle executes one polling cycle. Cycles never overlap: a call made
// while another cycle runs returns ErrCycleInProgress.
func (s *Service) RunCycle(ctx context.Context) (types.CycleReport, error) {
	if !s.isStarted() {
		return types.CycleReport{}, ErrNotStarted
	}
	if !s.cycleMu.TryLock() {
		metrics.RecordCycleSkipped()
		return types.CycleReport{}, ErrCycleInProgress
	}
	defer s.cycleMu.Unlock()
	if !s.isStarted() {
		return types.CycleReport{}, ErrNotStarted
	}

	if s.cycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cycleTimeout)
		defer cancel()
	}

	start := time.Now()
	report := types.CycleReport{StartedAt: s.now(), Alerts: []model.Alert{}}

	readings, fetches := sources.Gather(ctx, s.sources, s.sourceTimeout)
	report.Readings = len(readings)
	report.Sources = make([]types.SourceReport, len(fetches))
	for i, f := range fetches {
		sr := types.SourceReport{Source: f.Source, Readings: f.Readings, Latency: f.Latency}
		if f.Err != nil {
			sr.Error = f.Err.Error()
		}
		report.Sources[i] = sr
	}

	for _, g := range s.fusion.Partition(readings) {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		out, err := s.processEntity(ctx, g)
		switch {
		case err != nil:
			report.Failed++
			metrics.RecordEntityFailure()
			metrics.RecordErrorByComponent("engine", "entity")
			s.logger.Error(ctx, "entity processing failed",
				logger.String("entity_id", g.EntityID),
				logger.Error(err),
			)
			continue
		case out.skipped:
			report.Skipped++
			metrics.RecordEntitySkipped()
			continue
		}
		report.Fused++
		metrics.RecordEntityFused()
		if !out.emitted {
			metrics.RecordAlertSuppressed()
			continue
		}
		report.Alerts = append(report.Alerts, out.alert)
		if !s.dispatch(ctx, out.alert) {
			report.Dropped++
		}
	}

	report.Retired = s.retire(ctx)

	if len(report.Alerts) > 0 || len(report.Retired) > 0 {
		if err := s.persist(ctx); err != nil {
			s.logger.Warn(ctx, "failed to persist alert state", logger.Error(err))
		}
	}

	report.FinishedAt = s.now()
	s.cycles.Add(1)
	s.lastCycle.Store(&report)

	outcome := "ok"
	if report.Cancelled {
		outcome = "cancelled"
	}
	metrics.RecordCycle(outcome, float64(time.Since(start).Milliseconds()), report.FinishedAt.Unix())
	metrics.UpdateTrackedEntities(s.history.Count())
	metrics.UpdateEntitiesByTier(s.entitiesByTier(ctx))

	s.logger.Debug(ctx, "cycle finished",
		logger.Int("readings", report.Readings),
		logger.Int("fused", report.Fused),
		logger.Int("skipped", report.Skipped),
		logger.Int("failed", report.Failed),
		logger.Int("alerts", len(report.Alerts)),
		logger.Duration("duration", time.Since(start)),
	)

	if report.Cancelled {
		return report, fmt.Errorf("cycle cancelled: %w", ctx.Err())
	}
	return report, nil
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

type entityOutcome struct {
	skipped bool
	emitted bool
	alert   model.Alert
}

// processEntity fuses, records, scores and decides for one entity.
// A panic is converted into an error so other entities still run.
func (s *Service) processEntity(ctx context.Context, g fusion.Group) (out entityOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrEntityPanic, r)
		}
	}()

	fused, err := s.fusion.Fuse(g.EntityID, g.Readings)
	if err != nil {
		return out, err
	}
	fused = s.history.Append(g.EntityID, fused)

	window := s.history.Window(g.EntityID)
	if scoring.AllZero(window) {
		if err := s.ranking.Remove(ctx, g.EntityID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return out, err
		}
		out.skipped = true
		return out, nil
	}

	res := s.scorer.Score(window)
	metrics.ObservePressureIndex(res.Value)
	if err := s.ranking.Upsert(ctx, g.EntityID, res.Value, res.Tier, fused.ObservedAt); err != nil {
		return out, fmt.Errorf("rank %s: %w", g.EntityID, err)
	}

	out.alert, out.emitted = s.decider.Decide(ctx, alert.Decision{
		EntityID: g.EntityID,
		Score:    res.Value,
		Tier:     res.Tier,
		Fused:    fused,
	})
	return out, nil
}

// dispatch journals and enqueues an emitted alert. The decision stands
// even when the queue rejects it.
func (s *Service) dispatch(ctx context.Context, a model.Alert) bool {
	s.emitted.Add(1)
	s.journal.Add(a)
	metrics.RecordAlertEmitted(a.Tier.String())
	s.logger.Info(ctx, "alert emitted",
		logger.String("alert_id", a.ID),
		logger.String("entity_id", a.EntityID),
		logger.String("tier", a.Tier.String()),
		logger.Float64("score", a.Score),
	)

	if err := s.queue.Enqueue(ctx, a); err != nil {
		s.dropped.Add(1)
		metrics.RecordAlertDropped()
		s.logger.Warn(ctx, "alert dropped before delivery",
			logger.String("alert_id", a.ID),
			logger.Error(err),
		)
		return false
	}
	return true
}

// retire removes idle entities everywhere, plus restored records of
// entities that never came back.
func (s *Service) retire(ctx context.Context) []string {
	if s.entityTTL <= 0 {
		return nil
	}
	now := s.now()
	retired := s.history.RetireIdle(ctx, now, s.entityTTL)
	for _, id := range retired {
		if err := s.ranking.Remove(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn(ctx, "failed to unrank entity", logger.String("entity_id", id), logger.Error(err))
		}
		s.decider.Forget(id)
	}
	for _, r := range s.decider.Records() {
		if s.history.Len(r.EntityID) == 0 && now.Sub(r.EmittedAt) > s.entityTTL {
			s.decider.Forget(r.EntityID)
			retired = append(retired, r.EntityID)
		}
	}
	if len(retired) > 0 {
		metrics.RecordEntitiesRetired(len(retired))
	}
	return retired
}

func (s *Service) persist(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.state.Save(ctx, s.decider.Records()); err != nil {
		metrics.RecordErrorByComponent("statestore", "save")
		return fmt.Errorf("save alert state: %w", err)
	}
	return nil
}

func (s *Service) entitiesByTier(ctx context.Context) map[string]int {
	counts := s.ranking.CountByTier(ctx)
	out := make(map[string]int, 3)
	for _, t := range []model.Tier{model.TierLow, model.TierMedium, model.TierHigh} {
		out[t.String()] = counts[t]
	}
	return out
}

func (s *Service) sourceNames() []string {
	names := make([]string, len(s.sources))
	for i, src := range s.sources {
		names[i] = src.Name()
	}
	return names
}

// TopN returns the top N fixtures by pressure index.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	entries, err := s.ranking.TopN(ctx, n)
	if err != nil {
		return nil, err
	}
	out := make([]types.Entry, len(entries))
	for i, e := range entries {
		out[i] = toEntry(e)
	}
	return out, nil
}

// Fixture returns the detailed view of one tracked fixture.
func (s *Service) Fixture(ctx context.Context, entityID string) (types.Fixture, error) {
	entry, err := s.ranking.Rank(ctx, entityID)
	if errors.Is(err, repository.ErrNotFound) {
		return types.Fixture{}, fmt.Errorf("fixture %s: %w", entityID, ErrFixtureNotFound)
	}
	if err != nil {
		return types.Fixture{}, err
	}

	window := s.history.Window(entityID)
	res := s.scorer.Score(window)
	f := types.Fixture{
		Entry:  toEntry(entry),
		Trend:  res.Trend,
		Means:  res.Means,
		Window: window,
	}
	if rec, ok := s.decider.Record(entityID); ok {
		f.LastAlert = &rec
	}
	return f, nil
}

// RecentAlerts returns up to limit emitted alerts, newest first.
func (s *Service) RecentAlerts(limit int) []model.Alert {
	return s.journal.Recent(limit)
}

// LastCycle returns the report of the most recent cycle.
func (s *Service) LastCycle() (types.CycleReport, bool) {
	r := s.lastCycle.Load()
	if r == nil {
		return types.CycleReport{}, false
	}
	return *r, true
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) types.Stats {
	s.mu.RLock()
	startedAt := s.startedAt
	s.mu.RUnlock()

	stats := types.Stats{
		Cycles:          s.cycles.Load(),
		LastCycle:       s.lastCycle.Load(),
		TrackedEntities: s.history.Count(),
		AlertRecords:    s.decider.Len(),
		EntitiesByTier:  s.entitiesByTier(ctx),
		AlertsEmitted:   s.emitted.Load(),
		AlertsDropped:   s.dropped.Load(),
		QueueDepth:      s.queue.Len(),
		QueueCapacity:   s.queue.Cap(),
		Workers:         s.pool.Size(),
		Sources:         s.sourceNames(),
		Notifier:        s.notifier.Name(),
		WindowSize:      s.history.Capacity(),
	}
	if !startedAt.IsZero() {
		stats.Uptime = s.now().Sub(startedAt).Round(time.Second).String()
	}
	metrics.UpdateTrackedEntities(stats.TrackedEntities)
	return stats
}

func toEntry(e repository.Entry) types.Entry {
	return types.Entry{
		Rank:      e.Rank,
		EntityID:  e.EntityID,
		Score:     e.Score,
		Tier:      e.Tier,
		UpdatedAt: e.UpdatedAt,
	}
}
