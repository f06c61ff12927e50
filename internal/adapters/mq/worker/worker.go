// Package worker delivers queued alerts to a notifier.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/goalpulse/internal/domain/model"
	"github.com/okian/goalpulse/pkg/logger"
	"github.com/okian/goalpulse/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount     = 4
	defaultDeliveryTimeout = 10 * time.Second
	poolShutdownTimeout    = 30 * time.Second
)

// Notifier delivers one alert. Retries, if any, belong to the implementation.
type Notifier interface {
	Name() string
	Deliver(ctx context.Context, a model.Alert) error
}

// Queue defines how workers receive alerts.
type Queue interface {
	Dequeue() <-chan model.Alert
}

// Counters is shared by the workers of a pool.
type Counters struct {
	Delivered atomic.Uint64
	Failed    atomic.Uint64
}

// InMemoryWorker delivers alerts read from the queue.
type InMemoryWorker struct {
	queue    Queue
	notifier Notifier
	name     string
	timeout  time.Duration
	counters *Counters

	done   chan struct{}
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, n Notifier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		notifier: n,
		name:     "worker",
		timeout:  defaultDeliveryTimeout,
		counters: &Counters{},
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run delivers alerts until the queue is closed and drained or ctx is cancelled.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	alerts := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-alerts:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			if err := w.deliver(ctx, a); err != nil {
				w.logger.Error(ctx, "alert delivery failed",
					logger.String("alert_id", a.ID),
					logger.String("entity_id", a.EntityID),
					logger.String("tier", a.Tier.String()),
					logger.Error(err),
				)
			}
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// fanout is implemented by notifiers that record per-target delivery metrics themselves.
type fanout interface {
	Fanout() bool
}

// deliver performs a single attempt. The alert decision is never rolled back.
func (w *InMemoryWorker) deliver(ctx context.Context, a model.Alert) (err error) { //nolint:gocritic // hugeParam: Alert is passed by value for channel semantics
	name := w.notifier.Name()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier %s panicked: %v", name, r)
		}
		status := "ok"
		if err != nil {
			status = "error"
			w.counters.Failed.Add(1)
			metrics.RecordErrorByComponent("worker", "delivery_error")
		} else {
			w.counters.Delivered.Add(1)
		}
		if f, ok := w.notifier.(fanout); !ok || !f.Fanout() {
			metrics.RecordDelivery(name, status, float64(time.Since(start).Milliseconds()))
		}
	}()

	dctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.notifier.Deliver(dctx, a); err != nil {
		return fmt.Errorf("deliver via %s: %w", name, err)
	}
	return nil
}

// Pool manages multiple workers sharing one queue and one notifier.
type Pool struct {
	workers  []*InMemoryWorker
	queue    Queue
	counters *Counters
	wg       sync.WaitGroup
	logger   logger.Logger
}

// NewPool creates a new worker pool. Options are applied to every worker.
func NewPool(workerCount int, q Queue, n Notifier, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	p := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		counters: &Counters{},
		logger:   logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		workerOpts = append(workerOpts, withCounters(p.counters))
		p.workers[i] = NewInMemoryWorker(q, n, workerOpts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Delivered returns the number of successful deliveries.
func (p *Pool) Delivered() uint64 { return p.counters.Delivered.Load() }

// Failed returns the number of failed deliveries.
func (p *Pool) Failed() uint64 { return p.counters.Failed.Load() }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *InMemoryWorker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Shutdown closes the queue and waits for workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()
	select {
	case <-done:
		return nil
	case <-shutdownCtx.Done():
		p.logger.Warn(ctx, "worker pool shutdown timed out")
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
}
