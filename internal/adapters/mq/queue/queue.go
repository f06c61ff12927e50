// Package queue buffers emitted alerts between the decision step and delivery.
package queue

import (
	"context"
	"sync"

	"github.com/okian/goalpulse/internal/domain/model"
	"github.com/okian/goalpulse/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an alert without blocking. Returns ErrFull or ErrClosed on rejection.
	Enqueue(ctx context.Context, a model.Alert) error

	// Dequeue returns a channel that yields queued alerts.
	// The channel is closed once the queue is closed and drained.
	Dequeue() <-chan model.Alert

	// Len returns the current number of queued alerts.
	Len() int

	// Cap returns the queue capacity.
	Cap() int

	// Close stops accepting alerts.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	alerts   chan model.Alert
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.alerts = make(chan model.Alert, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0, q.capacity)
	return q
}

// Enqueue adds an alert to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, a model.Alert) error { //nolint:gocritic // hugeParam: Alert is passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return err
	}

	select {
	case q.alerts <- a:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.alerts), q.capacity)
		return nil
	default:
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Dequeue returns the receive side of the queue.
func (q *InMemoryQueue) Dequeue() <-chan model.Alert {
	return q.alerts
}

// Len returns the current number of queued alerts.
func (q *InMemoryQueue) Len() int {
	size := len(q.alerts)
	metrics.UpdateQueueSize(size, q.capacity)
	return size
}

// Cap returns the queue capacity.
func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close stops accepting alerts; queued alerts stay readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.alerts)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
