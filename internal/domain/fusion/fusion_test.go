package fusion_test

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/okian/goalpulse/internal/domain/fusion"
	"github.com/okian/goalpulse/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

var t0 = time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)

func reading(source, entity string, p, da, sot, xg, odds float64) model.Reading {
	return model.NewReading(source, entity, map[model.Metric]float64{
		model.Pressure:         p,
		model.DangerousAttacks: da,
		model.ShotsOnTarget:    sot,
		model.ExpectedGoals:    xg,
		model.OddsDelta:        odds,
	})
}

func randomReading(rng *rand.Rand, entity string) model.Reading {
	return reading("src", entity, rng.Float64()*10, rng.Float64()*20, rng.Float64()*8, rng.Float64(), rng.Float64()*10)
}

func TestFuse(t *testing.T) {
	convey.Convey("Given a fusion engine with a fixed clock", t, func() {
		engine := fusion.NewEngine(fusion.WithClock(func() time.Time { return t0 }))

		convey.Convey("When a single source reports", func() {
			r := reading("sofascore", "100", 2, 5, 1, 0.1, 0)
			fused, err := engine.Fuse("100", []model.Reading{r})

			convey.Convey("Then its metrics pass through unchanged", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(fused.Metrics, convey.ShouldEqual, r.Metrics)
				convey.So(fused.EntityID, convey.ShouldEqual, "100")
				convey.So(fused.ObservedAt, convey.ShouldEqual, t0)
				convey.So(fused.Sources, convey.ShouldResemble, []string{"sofascore"})
			})
		})

		convey.Convey("When two sources disagree on dangerous attacks for entity 200", func() {
			fused, err := engine.Fuse("200", []model.Reading{
				reading("sofascore", "200", 0, 3, 0, 0, 0),
				reading("apifootball", "200", 0, 7, 0, 0, 0),
			})

			convey.Convey("Then the larger value wins, neither summed nor averaged", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(fused.Metrics.Get(model.DangerousAttacks), convey.ShouldEqual, 7)
				convey.So(fused.Sources, convey.ShouldResemble, []string{"apifootball", "sofascore"})
			})
		})

		convey.Convey("When sources each cover different metrics", func() {
			fused, err := engine.Fuse("300", []model.Reading{
				reading("sofascore", "300", 6, 12, 4, 0, 0),
				reading("odds", "300", 0, 0, 0, 0, 2),
			})

			convey.Convey("Then the fused reading carries every non-zero signal", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(fused.Metrics.Get(model.Pressure), convey.ShouldEqual, 6)
				convey.So(fused.Metrics.Get(model.OddsDelta), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When called with an empty but present entity", func() {
			fused, err := engine.Fuse("400", nil)

			convey.Convey("Then an all-zero reading is returned", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(fused.Metrics.IsZero(), convey.ShouldBeTrue)
				convey.So(fused.Sources, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When a reading belongs to another entity", func() {
			_, err := engine.Fuse("100", []model.Reading{
				reading("a", "100", 1, 1, 1, 1, 1),
				reading("b", "101", 1, 1, 1, 1, 1),
			})

			convey.Convey("Then it fails fast with ErrEntityMismatch", func() {
				convey.So(errors.Is(err, fusion.ErrEntityMismatch), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the entity id is empty", func() {
			_, err := engine.Fuse("", nil)

			convey.Convey("Then it fails with ErrEmptyEntity", func() {
				convey.So(errors.Is(err, fusion.ErrEmptyEntity), convey.ShouldBeTrue)
			})
		})
	})
}

func TestFuseProperties(t *testing.T) {
	convey.Convey("Given random readings for one entity", t, func() {
		rng := rand.New(rand.NewSource(7))

		convey.Convey("Then fusing more inputs never lowers any metric", func() {
			for i := 0; i < 200; i++ {
				r1 := randomReading(rng, "e")
				r2 := randomReading(rng, "e")

				both, err := fusion.Fuse("e", []model.Reading{r1, r2}, t0)
				convey.So(err, convey.ShouldBeNil)
				only1, _ := fusion.Fuse("e", []model.Reading{r1}, t0)
				only2, _ := fusion.Fuse("e", []model.Reading{r2}, t0)

				for _, m := range model.AllMetrics {
					convey.So(both.Metrics.Get(m), convey.ShouldBeGreaterThanOrEqualTo, only1.Metrics.Get(m))
					convey.So(both.Metrics.Get(m), convey.ShouldBeGreaterThanOrEqualTo, only2.Metrics.Get(m))
				}
			}
		})

		convey.Convey("Then input order does not matter", func() {
			rs := []model.Reading{randomReading(rng, "e"), randomReading(rng, "e"), randomReading(rng, "e")}
			a, _ := fusion.Fuse("e", rs, t0)
			b, _ := fusion.Fuse("e", []model.Reading{rs[2], rs[0], rs[1]}, t0)
			convey.So(a.Metrics, convey.ShouldEqual, b.Metrics)
		})
	})
}

func TestPartition(t *testing.T) {
	convey.Convey("Given readings for several entities", t, func() {
		readings := []model.Reading{
			reading("sofascore", "B", 1, 0, 0, 0, 0),
			reading("sofascore", "A", 2, 0, 0, 0, 0),
			reading("odds", "B", 0, 0, 0, 0, 3),
			reading("odds", "", 0, 0, 0, 0, 3),
		}

		convey.Convey("When partitioned without aliases", func() {
			groups := fusion.NewEngine().Partition(readings)

			convey.Convey("Then groups follow first appearance and drop empty ids", func() {
				convey.So(len(groups), convey.ShouldEqual, 2)
				convey.So(groups[0].EntityID, convey.ShouldEqual, "B")
				convey.So(len(groups[0].Readings), convey.ShouldEqual, 2)
				convey.So(groups[1].EntityID, convey.ShouldEqual, "A")
			})
		})

		convey.Convey("When an alias maps a source id onto another entity", func() {
			aliases := fusion.NewAliasTable(map[string]string{"odds:B": "A"})
			groups := fusion.NewEngine(fusion.WithAliases(aliases)).Partition(readings)

			convey.Convey("Then the aliased reading joins the canonical group", func() {
				convey.So(len(groups), convey.ShouldEqual, 2)
				convey.So(groups[0].EntityID, convey.ShouldEqual, "B")
				convey.So(len(groups[0].Readings), convey.ShouldEqual, 1)
				convey.So(groups[1].EntityID, convey.ShouldEqual, "A")
				convey.So(len(groups[1].Readings), convey.ShouldEqual, 2)
				convey.So(groups[1].Readings[1].EntityID, convey.ShouldEqual, "A")
			})
		})
	})
}
