package statestore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/okian/goalpulse/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPostgresQueries(t *testing.T) {
	Convey("Given the record queries", t, func() {
		at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))

		Convey("the upsert inserts every record with dollar placeholders", func() {
			q, args, err := upsertQuery("t", []model.AlertRecord{
				{EntityID: "a", Tier: model.TierMedium, EmittedAt: at},
				{EntityID: "b", Tier: model.TierHigh, EmittedAt: at},
			}).ToSql()
			So(err, ShouldBeNil)
			So(q, ShouldStartWith, "INSERT INTO t (entity_id,tier,emitted_at) VALUES ($1,$2,$3),($4,$5,$6)")
			So(q, ShouldEndWith, "ON CONFLICT (entity_id) DO UPDATE SET tier = EXCLUDED.tier, emitted_at = EXCLUDED.emitted_at")
			So(args, ShouldHaveLength, 6)
			So(args[1], ShouldEqual, "MEDIUM")
			So(args[2].(time.Time).Location(), ShouldEqual, time.UTC)
		})

		Convey("pruning keeps the listed entities", func() {
			q, args, err := pruneQuery("t", []string{"a", "b"}).ToSql()
			So(err, ShouldBeNil)
			So(q, ShouldEqual, "DELETE FROM t WHERE entity_id <> ALL($1)")
			So(args, ShouldResemble, []interface{}{[]string{"a", "b"}})
		})

		Convey("pruning binds one parameter however many entities are kept", func() {
			keep := make([]string, 70000)
			for i := range keep {
				keep[i] = fmt.Sprintf("fx-%d", i)
			}
			q, args, err := pruneQuery("t", keep).ToSql()
			So(err, ShouldBeNil)
			So(q, ShouldEqual, "DELETE FROM t WHERE entity_id <> ALL($1)")
			So(args, ShouldHaveLength, 1)
		})

		Convey("large saves are split into bounded upserts", func() {
			records := make([]model.AlertRecord, 2500)
			for i := range records {
				records[i] = model.AlertRecord{EntityID: fmt.Sprintf("fx-%d", i), Tier: model.TierHigh, EmittedAt: at}
			}
			parts := batches(records, saveBatchSize)
			So(parts, ShouldHaveLength, 3)
			So(parts[0], ShouldHaveLength, 1000)
			So(parts[2], ShouldHaveLength, 500)
			So(parts[2][499].EntityID, ShouldEqual, "fx-2499")

			_, args, err := upsertQuery("t", parts[0]).ToSql()
			So(err, ShouldBeNil)
			So(len(args), ShouldBeLessThan, 65535)
			So(batches(nil, saveBatchSize), ShouldBeEmpty)
		})

		Convey("pruning with nothing to keep clears the table", func() {
			q, args, err := pruneQuery("t", nil).ToSql()
			So(err, ShouldBeNil)
			So(q, ShouldEqual, "DELETE FROM t")
			So(args, ShouldBeEmpty)
		})

		Convey("the select reads the three columns in id order", func() {
			q, _, err := selectQuery("t").ToSql()
			So(err, ShouldBeNil)
			So(q, ShouldEqual, "SELECT entity_id, tier, emitted_at FROM t ORDER BY entity_id")
		})
	})
}

// Runs only against a real database.
func TestPostgresStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("GOALPULSE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("GOALPULSE_TEST_DATABASE_URL not set")
	}
	Convey("Given a live Postgres store", t, func() {
		ctx := context.Background()
		s, err := NewPostgresStore(ctx, dsn)
		So(err, ShouldBeNil)
		defer s.Close()

		at := time.Now().UTC().Truncate(time.Millisecond)
		So(s.Save(ctx, []model.AlertRecord{
			{EntityID: "pg-1", Tier: model.TierHigh, EmittedAt: at},
			{EntityID: "pg-2", Tier: model.TierLow, EmittedAt: at},
		}), ShouldBeNil)
		So(s.Save(ctx, []model.AlertRecord{{EntityID: "pg-2", Tier: model.TierMedium, EmittedAt: at}}), ShouldBeNil)

		recs, err := s.Load(ctx)
		So(err, ShouldBeNil)
		So(recs, ShouldHaveLength, 1)
		So(recs[0].Tier, ShouldEqual, model.TierMedium)
		So(recs[0].EmittedAt.Equal(at), ShouldBeTrue)

		So(s.Save(ctx, nil), ShouldBeNil)
	})
}
