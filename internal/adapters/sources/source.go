// Package sources turns third-party live feeds into normalized readings.
//
// Every adapter implements Source. Failures are isolated by Gather: a
// failing, slow or panicking source contributes zero readings for the
// cycle and never affects the others.
package sources

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/goalpulse/internal/domain/model"
	"github.com/okian/goalpulse/pkg/logger"
	"github.com/okian/goalpulse/pkg/metrics"
)

// Source fetches the current readings of one feed.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]model.Reading, error)
}

// Report describes the outcome of one fetch.
type Report struct {
	Source   string
	Readings int
	Latency  time.Duration
	Err      error
}

// Gather invokes every source concurrently, each bounded by timeout
// (0 means no per-source bound), and returns the union of readings in
// source order together with one report per source.
func Gather(ctx context.Context, srcs []Source, timeout time.Duration) ([]model.Reading, []Report) {
	log := logger.Get().Named("sources")
	results := make([][]model.Reading, len(srcs))
	reports := make([]Report, len(srcs))

	var wg sync.WaitGroup
	for i, src := range srcs {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			start := time.Now()
			readings, err := fetchOne(ctx, src, timeout)
			latency := time.Since(start)

			status := "ok"
			if err != nil {
				status = "error"
				readings = nil
				log.Warn(ctx, "source fetch failed",
					logger.String("source", src.Name()),
					logger.Duration("latency", latency),
					logger.Error(err),
				)
			}
			metrics.RecordSourceFetch(src.Name(), status, float64(latency.Milliseconds()), len(readings))

			results[i] = readings
			reports[i] = Report{Source: src.Name(), Readings: len(readings), Latency: latency, Err: err}
		}(i, src)
	}
	wg.Wait()

	var all []model.Reading
	for _, rs := range results {
		all = append(all, rs...)
	}
	return all, reports
}

func fetchOne(ctx context.Context, src Source, timeout time.Duration) ([]model.Reading, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		readings []model.Reading
		err      error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%w: %s: %v", ErrSourcePanic, src.Name(), r)}
			}
		}()
		rs, err := src.Fetch(ctx)
		done <- result{readings: rs, err: err}
	}()

	select {
	case res := <-done:
		return res.readings, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", src.Name(), ctx.Err())
	}
}
