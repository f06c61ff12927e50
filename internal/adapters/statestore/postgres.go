package statestore

import (
	"context"
	"fmt"
	"sync/atomic"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okian/goalpulse/internal/domain/model"
)

// DefaultTable holds one row per entity with an emitted alert.
const DefaultTable = "goalpulse_alert_records"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// saveBatchSize bounds the rows per upsert. Three parameters per row keeps
// each statement well under the Postgres limit of 65535.
const saveBatchSize = 1000

// PostgresStore keeps the records in a Postgres table.
type PostgresStore struct {
	pool   *pgxpool.Pool
	table  string
	closed atomic.Bool
}

// NewPostgresStore connects to dsn and creates the table when missing.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PostgresStore{pool: pool, table: DefaultTable}
	if _, err := pool.Exec(ctx, createTableSQL(s.table)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create %s: %w", s.table, err)
	}
	return s, nil
}

func createTableSQL(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + table + ` (
		entity_id  TEXT PRIMARY KEY,
		tier       TEXT NOT NULL,
		emitted_at TIMESTAMPTZ NOT NULL
	)`
}

// Load reads every record.
func (s *PostgresStore) Load(ctx context.Context) ([]model.AlertRecord, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	query, args, err := selectQuery(s.table).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	defer rows.Close()

	var out []model.AlertRecord
	for rows.Next() {
		var (
			rec  model.AlertRecord
			tier string
		)
		if err := rows.Scan(&rec.EntityID, &tier, &rec.EmittedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if rec.Tier, err = model.ParseTier(tier); err != nil {
			return nil, fmt.Errorf("%w: entity %s: %w", ErrCorruptState, rec.EntityID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// Save upserts the records and deletes rows of entities no longer present,
// in one transaction.
func (s *PostgresStore) Save(ctx context.Context, records []model.AlertRecord) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		ids := make([]string, 0, len(records))
		for _, r := range records {
			ids = append(ids, r.EntityID)
		}
		query, args, err := pruneQuery(s.table, ids).ToSql()
		if err != nil {
			return fmt.Errorf("build delete: %w", err)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("prune records: %w", err)
		}
		for _, batch := range batches(records, saveBatchSize) {
			query, args, err = upsertQuery(s.table, batch).ToSql()
			if err != nil {
				return fmt.Errorf("build upsert: %w", err)
			}
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return fmt.Errorf("upsert records: %w", err)
			}
		}
		return nil
	})
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.pool.Close()
	}
	return nil
}

func selectQuery(table string) sq.SelectBuilder {
	return psql.Select("entity_id", "tier", "emitted_at").From(table).OrderBy("entity_id")
}

func upsertQuery(table string, records []model.AlertRecord) sq.InsertBuilder {
	b := psql.Insert(table).Columns("entity_id", "tier", "emitted_at")
	for _, r := range records {
		b = b.Values(r.EntityID, r.Tier.String(), r.EmittedAt.UTC())
	}
	return b.Suffix("ON CONFLICT (entity_id) DO UPDATE SET tier = EXCLUDED.tier, emitted_at = EXCLUDED.emitted_at")
}

// pruneQuery sends the kept ids as one text[] parameter whatever their count.
func pruneQuery(table string, keep []string) sq.DeleteBuilder {
	b := psql.Delete(table)
	if len(keep) > 0 {
		b = b.Where(sq.Expr("entity_id <> ALL(?)", keep))
	}
	return b
}

func batches(records []model.AlertRecord, size int) [][]model.AlertRecord {
	var out [][]model.AlertRecord
	for len(records) > 0 {
		n := min(size, len(records))
		out = append(out, records[:n])
		records = records[n:]
	}
	return out
}
