package history_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/goalpulse/internal/domain/history"
	"github.com/okian/goalpulse/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

var t0 = time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)

func fused(p float64, at time.Time) model.FusedReading {
	return model.FusedReading{
		Metrics:    model.MetricsFrom(map[model.Metric]float64{model.Pressure: p}),
		ObservedAt: at,
	}
}

func TestStoreWindow(t *testing.T) {
	convey.Convey("Given a store with capacity 5", t, func() {
		store := history.NewStore(history.WithCapacity(5))

		convey.Convey("When the entity was never seen", func() {
			convey.Convey("Then its window is empty", func() {
				convey.So(store.Window("nope"), convey.ShouldBeEmpty)
				convey.So(store.Len("nope"), convey.ShouldEqual, 0)
				_, ok := store.Latest("nope")
				convey.So(ok, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When fewer than W readings are appended", func() {
			for i := 1; i <= 3; i++ {
				store.Append("e", fused(float64(i), t0.Add(time.Duration(i)*time.Second)))
			}

			convey.Convey("Then they are kept oldest to newest", func() {
				w := store.Window("e")
				convey.So(len(w), convey.ShouldEqual, 3)
				convey.So(w[0].Metrics.Get(model.Pressure), convey.ShouldEqual, 1)
				convey.So(w[2].Metrics.Get(model.Pressure), convey.ShouldEqual, 3)
				convey.So(w[2].EntityID, convey.ShouldEqual, "e")
			})
		})

		convey.Convey("When N > W readings are appended", func() {
			for i := 1; i <= 12; i++ {
				store.Append("e", fused(float64(i), t0.Add(time.Duration(i)*time.Second)))
			}

			convey.Convey("Then exactly the last W remain, in order", func() {
				w := store.Window("e")
				convey.So(len(w), convey.ShouldEqual, 5)
				for i, f := range w {
					convey.So(f.Metrics.Get(model.Pressure), convey.ShouldEqual, float64(8+i))
					convey.So(f.Sequence, convey.ShouldEqual, uint64(8+i))
				}
				latest, ok := store.Latest("e")
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(latest.Metrics.Get(model.Pressure), convey.ShouldEqual, 12)
			})
		})

		convey.Convey("When the returned window is modified", func() {
			store.Append("e", fused(1, t0))
			w := store.Window("e")
			w[0].EntityID = "mutated"

			convey.Convey("Then the stored window is unaffected", func() {
				convey.So(store.Window("e")[0].EntityID, convey.ShouldEqual, "e")
			})
		})

		convey.Convey("When two entities are appended", func() {
			store.Append("a", fused(1, t0))
			store.Append("b", fused(2, t0))
			store.Append("b", fused(3, t0))

			convey.Convey("Then windows are never shared and sequences are per entity", func() {
				convey.So(store.Len("a"), convey.ShouldEqual, 1)
				convey.So(store.Len("b"), convey.ShouldEqual, 2)
				convey.So(store.Window("a")[0].Sequence, convey.ShouldEqual, 1)
				convey.So(store.Window("b")[1].Sequence, convey.ShouldEqual, 2)
				convey.So(store.Entities(), convey.ShouldResemble, []string{"a", "b"})
			})
		})
	})

	convey.Convey("Given an invalid capacity option", t, func() {
		store := history.NewStore(history.WithCapacity(0))

		convey.Convey("Then the default capacity is kept", func() {
			convey.So(store.Capacity(), convey.ShouldEqual, 20)
		})
	})
}

func TestStoreRetirement(t *testing.T) {
	convey.Convey("Given entities last seen at different times", t, func() {
		ctx := context.Background()
		store := history.NewStore(history.WithCapacity(3))
		store.Append("old", fused(1, t0))
		store.Append("fresh", fused(1, t0.Add(9*time.Minute)))

		convey.Convey("When idle entities are retired with a 5 minute TTL", func() {
			retired := store.RetireIdle(ctx, t0.Add(10*time.Minute), 5*time.Minute)

			convey.Convey("Then only the stale entity is removed", func() {
				convey.So(retired, convey.ShouldResemble, []string{"old"})
				convey.So(store.Entities(), convey.ShouldResemble, []string{"fresh"})
				convey.So(store.Window("old"), convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the TTL is zero", func() {
			retired := store.RetireIdle(ctx, t0.Add(time.Hour), 0)

			convey.Convey("Then nothing is retired", func() {
				convey.So(retired, convey.ShouldBeEmpty)
				convey.So(store.Count(), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When an entity is pruned explicitly", func() {
			convey.So(store.Prune("old"), convey.ShouldBeTrue)
			convey.So(store.Prune("old"), convey.ShouldBeFalse)
			convey.So(store.Count(), convey.ShouldEqual, 1)
		})

		convey.Convey("When a retired entity reports again", func() {
			store.RetireIdle(ctx, t0.Add(10*time.Minute), 5*time.Minute)
			f := store.Append("old", fused(4, t0.Add(11*time.Minute)))

			convey.Convey("Then it starts a fresh window", func() {
				convey.So(store.Len("old"), convey.ShouldEqual, 1)
				convey.So(f.Sequence, convey.ShouldEqual, 1)
			})
		})
	})
}

func TestStoreConcurrentEntities(t *testing.T) {
	convey.Convey("Given many goroutines appending to distinct entities", t, func() {
		store := history.NewStore(history.WithCapacity(4))
		var wg sync.WaitGroup
		for e := 0; e < 16; e++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					store.Append(id, fused(float64(i), t0))
				}
			}(fmt.Sprintf("e%02d", e))
		}
		wg.Wait()

		convey.Convey("Then every window is bounded and holds the last entries", func() {
			convey.So(store.Count(), convey.ShouldEqual, 16)
			for _, id := range store.Entities() {
				w := store.Window(id)
				convey.So(len(w), convey.ShouldEqual, 4)
				convey.So(w[3].Metrics.Get(model.Pressure), convey.ShouldEqual, 49)
				convey.So(w[3].Sequence, convey.ShouldEqual, 50)
			}
		})
	})
}
