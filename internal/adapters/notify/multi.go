package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/goalpulse/internal/domain/model"
	"github.com/okian/goalpulse/pkg/metrics"
)

// Multi fans one alert out to several notifiers. Every notifier is
// attempted concurrently with its own deadline; failures are joined into
// the returned error.
type Multi struct {
	notifiers []Notifier
	timeout   time.Duration
}

// NewMulti skips nil notifiers.
func NewMulti(ns ...Notifier) *Multi {
	m := &Multi{}
	for _, n := range ns {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// WithTimeout bounds each wrapped notifier separately. Zero keeps only the caller's deadline.
func (m *Multi) WithTimeout(d time.Duration) *Multi {
	if d > 0 {
		m.timeout = d
	}
	return m
}

// Name lists the wrapped notifier names.
func (m *Multi) Name() string {
	names := make([]string, len(m.notifiers))
	for i, n := range m.notifiers {
		names[i] = n.Name()
	}
	return strings.Join(names, "+")
}

// Len reports the number of wrapped notifiers.
func (m *Multi) Len() int { return len(m.notifiers) }

// Fanout marks Multi as recording delivery metrics per wrapped notifier.
func (m *Multi) Fanout() bool { return true }

// Deliver sends a to every notifier. A slow notifier does not eat into
// the budget of the others.
func (m *Multi) Deliver(ctx context.Context, a model.Alert) error {
	errs := make([]error, len(m.notifiers))
	var wg sync.WaitGroup
	for i, n := range m.notifiers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.deliverOne(ctx, n, a); err != nil {
				errs[i] = fmt.Errorf("%s: %w", n.Name(), err)
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (m *Multi) deliverOne(ctx context.Context, n Notifier, a model.Alert) (err error) { //nolint:gocritic // hugeParam: Alert is passed by value
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panicked: %v", r)
		}
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.RecordDelivery(n.Name(), status, float64(time.Since(start).Milliseconds()))
	}()

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	return n.Deliver(ctx, a)
}
