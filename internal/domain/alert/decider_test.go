package alert_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/goalpulse/internal/domain/alert"
	"github.com/okian/goalpulse/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

var t0 = time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func decision(entity string, tier model.Tier) alert.Decision {
	return alert.Decision{EntityID: entity, Score: 50, Tier: tier}
}

func TestShouldEmit(t *testing.T) {
	convey.Convey("Given the transition rule with a 60s window", t, func() {
		window := 60 * time.Second
		prior := &model.AlertRecord{EntityID: "e", Tier: model.TierMedium, EmittedAt: t0}

		convey.So(alert.ShouldEmit(nil, model.TierLow, t0, window), convey.ShouldBeTrue)
		convey.So(alert.ShouldEmit(prior, model.TierMedium, t0.Add(time.Second), window), convey.ShouldBeFalse)
		convey.So(alert.ShouldEmit(prior, model.TierMedium, t0.Add(60*time.Second), window), convey.ShouldBeFalse)
		convey.So(alert.ShouldEmit(prior, model.TierMedium, t0.Add(61*time.Second), window), convey.ShouldBeTrue)
		convey.So(alert.ShouldEmit(prior, model.TierHigh, t0.Add(time.Second), window), convey.ShouldBeTrue)
		convey.So(alert.ShouldEmit(prior, model.TierLow, t0.Add(time.Second), window), convey.ShouldBeTrue)
	})
}

func TestDecider(t *testing.T) {
	convey.Convey("Given a decider with a controllable clock", t, func() {
		ctx := context.Background()
		clock := &fakeClock{now: t0}
		d := alert.NewDecider(
			alert.WithClock(clock.Now),
			alert.WithSuppressionWindow(60*time.Second),
		)

		convey.Convey("When an entity is decided for the first time", func() {
			a, ok := d.Decide(ctx, decision("e", model.TierLow))

			convey.Convey("Then an alert is emitted and recorded", func() {
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(a.ID, convey.ShouldNotBeBlank)
				convey.So(a.PreviousTier, convey.ShouldBeNil)
				convey.So(a.Timestamp, convey.ShouldEqual, t0)
				rec, found := d.Record("e")
				convey.So(found, convey.ShouldBeTrue)
				convey.So(rec.Tier, convey.ShouldEqual, model.TierLow)
				convey.So(rec.EmittedAt, convey.ShouldEqual, t0)
			})
		})

		convey.Convey("When a MEDIUM record exists at t0", func() {
			d.Restore([]model.AlertRecord{{EntityID: "e", Tier: model.TierMedium, EmittedAt: t0}})

			convey.Convey("Then MEDIUM at t0+1s is suppressed", func() {
				clock.Set(t0.Add(time.Second))
				_, ok := d.Decide(ctx, decision("e", model.TierMedium))
				convey.So(ok, convey.ShouldBeFalse)
				rec, _ := d.Record("e")
				convey.So(rec.EmittedAt, convey.ShouldEqual, t0)
			})

			convey.Convey("Then MEDIUM at t0+61s is emitted as a heartbeat", func() {
				clock.Set(t0.Add(61 * time.Second))
				a, ok := d.Decide(ctx, decision("e", model.TierMedium))
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(*a.PreviousTier, convey.ShouldEqual, model.TierMedium)
				rec, _ := d.Record("e")
				convey.So(rec.EmittedAt, convey.ShouldEqual, t0.Add(61*time.Second))
			})
		})

		convey.Convey("When a LOW record exists at t0 and HIGH arrives at t0+1s", func() {
			d.Restore([]model.AlertRecord{{EntityID: "e", Tier: model.TierLow, EmittedAt: t0}})
			clock.Set(t0.Add(time.Second))
			a, ok := d.Decide(ctx, decision("e", model.TierHigh))

			convey.Convey("Then escalation bypasses suppression", func() {
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(a.Tier, convey.ShouldEqual, model.TierHigh)
				convey.So(*a.PreviousTier, convey.ShouldEqual, model.TierLow)
			})

			convey.Convey("And de-escalation right after also notifies", func() {
				clock.Set(t0.Add(2 * time.Second))
				_, ok := d.Decide(ctx, decision("e", model.TierMedium))
				convey.So(ok, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When entities are decided independently", func() {
			_, okA := d.Decide(ctx, decision("a", model.TierHigh))
			_, okB := d.Decide(ctx, decision("b", model.TierHigh))
			_, okA2 := d.Decide(ctx, decision("a", model.TierHigh))

			convey.Convey("Then one entity never suppresses another", func() {
				convey.So(okA, convey.ShouldBeTrue)
				convey.So(okB, convey.ShouldBeTrue)
				convey.So(okA2, convey.ShouldBeFalse)
				convey.So(d.Len(), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When an entity is forgotten", func() {
			d.Decide(ctx, decision("a", model.TierHigh))
			d.Forget("a")
			_, ok := d.Decide(ctx, decision("a", model.TierHigh))

			convey.Convey("Then it starts over with no prior", func() {
				convey.So(ok, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When records are restored and listed", func() {
			n := d.Restore([]model.AlertRecord{
				{EntityID: "z", Tier: model.TierHigh, EmittedAt: t0},
				{EntityID: "", Tier: model.TierHigh, EmittedAt: t0},
				{EntityID: "m", Tier: model.TierLow, EmittedAt: t0},
			})

			convey.Convey("Then blank ids are skipped and output is sorted", func() {
				convey.So(n, convey.ShouldEqual, 2)
				recs := d.Records()
				convey.So(len(recs), convey.ShouldEqual, 2)
				convey.So(recs[0].EntityID, convey.ShouldEqual, "m")
				convey.So(recs[1].EntityID, convey.ShouldEqual, "z")
			})
		})
	})
}

func TestDeciderConcurrency(t *testing.T) {
	convey.Convey("Given many goroutines deciding the same entity and tier", t, func() {
		ctx := context.Background()
		var ids atomic.Int64
		d := alert.NewDecider(
			alert.WithClock(func() time.Time { return t0 }),
			alert.WithIDGenerator(func() string { return fmt.Sprint(ids.Add(1)) }),
		)

		var emitted atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 64; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, ok := d.Decide(ctx, decision("e", model.TierHigh)); ok {
					emitted.Add(1)
				}
			}()
		}
		wg.Wait()

		convey.Convey("Then exactly one alert is emitted", func() {
			convey.So(emitted.Load(), convey.ShouldEqual, 1)
			convey.So(ids.Load(), convey.ShouldEqual, 1)
		})
	})
}
