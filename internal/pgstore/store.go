// Package pgstore persists audit rows, aggregates, progress markers and
// sanity verdicts in PostgreSQL. Every ingesting host in a fleet can share one
// database.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Quok-it/benchmarking/internal/bench"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS raw_benchmark_results (
  seq            BIGSERIAL PRIMARY KEY,
  audit_id       TEXT        NOT NULL UNIQUE,
  host           TEXT        NOT NULL,
  device_id      TEXT        NOT NULL,
  device_model   TEXT        NOT NULL,
  benchmark_type TEXT        NOT NULL,
  payload        JSONB       NOT NULL,
  captured_at    TIMESTAMPTZ NOT NULL,
  inserted_at    TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
);

ALTER TABLE raw_benchmark_results
  ADD COLUMN IF NOT EXISTS inserted_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp();

CREATE TABLE IF NOT EXISTS gpu_aggregates (
  id              BIGSERIAL PRIMARY KEY,
  host            TEXT             NOT NULL,
  device_id       TEXT             NOT NULL,
  device_model    TEXT             NOT NULL,
  benchmark_type  TEXT             NOT NULL,
  metric_name     TEXT             NOT NULL,
  value_count     BIGINT           NOT NULL,
  value_sum       DOUBLE PRECISION NOT NULL,
  value_min       DOUBLE PRECISION NOT NULL,
  value_max       DOUBLE PRECISION NOT NULL,
  last_value      DOUBLE PRECISION NOT NULL,
  last_updated_at TIMESTAMPTZ      NOT NULL,
  UNIQUE (host, device_id, device_model, benchmark_type, metric_name)
);

CREATE TABLE IF NOT EXISTS audit_progress (
  source     TEXT PRIMARY KEY,
  marker     TEXT        NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sanity_results (
  device_model TEXT        NOT NULL,
  checked_at   TIMESTAMPTZ NOT NULL,
  target       TEXT        NOT NULL,
  verdict      TEXT        NOT NULL,
  PRIMARY KEY (device_model, checked_at, target)
);
`

// Tables lists the tables EnsureSchema creates.
var Tables = []string{"raw_benchmark_results", "gpu_aggregates", "audit_progress", "sanity_results"}

// DefaultSettleWindow is how old an audit row must be before the pusher may
// read past it.
const DefaultSettleWindow = 30 * time.Second

type Store struct {
	db     *sql.DB
	settle time.Duration
}

// Open connects through the pgx database/sql driver and pings the server.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	return New(db), nil
}

// New wraps an existing *sql.DB.
func New(db *sql.DB) *Store {
	return &Store{db: db, settle: DefaultSettleWindow}
}

// SetSettleWindow changes how long FetchResultsAfter waits before handing out
// a row. It must exceed the longest audit insert.
func (s *Store) SetSettleWindow(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.settle = d
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("postgres store: apply schema: %w", err)
	}
	return nil
}

func (s *Store) TableCounts(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(Tables))
	for _, table := range Tables {
		var count int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			return nil, fmt.Errorf("postgres store: count %s: %w", table, err)
		}
		out[table] = count
	}
	return out, nil
}

func (s *Store) UpsertAggregate(ctx context.Context, key bench.AggregateKey, value float64, at time.Time) error {
	const upsertStmt = `
INSERT INTO gpu_aggregates (
  host, device_id, device_model, benchmark_type, metric_name,
  value_count, value_sum, value_min, value_max, last_value, last_updated_at
) VALUES ($1,$2,$3,$4,$5,1,$6,$6,$6,$6,$7)
ON CONFLICT (host, device_id, device_model, benchmark_type, metric_name) DO UPDATE SET
  value_count     = gpu_aggregates.value_count + 1,
  value_sum       = gpu_aggregates.value_sum + EXCLUDED.value_sum,
  value_min       = LEAST(gpu_aggregates.value_min, EXCLUDED.value_min),
  value_max       = GREATEST(gpu_aggregates.value_max, EXCLUDED.value_max),
  last_value      = EXCLUDED.last_value,
  last_updated_at = EXCLUDED.last_updated_at
`
	_, err := s.db.ExecContext(ctx, upsertStmt,
		key.Host, key.DeviceID, key.DeviceModel, string(key.Type), key.Metric,
		value, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres store: upsert aggregate %s: %w", key, err)
	}
	return nil
}

func (s *Store) ListAggregates(ctx context.Context, filter bench.AggregateFilter) ([]bench.Aggregate, error) {
	base := `
SELECT host, device_id, device_model, benchmark_type, metric_name,
  value_count, value_sum, value_min, value_max, last_value, last_updated_at
FROM gpu_aggregates
`
	var (
		where []string
		args  []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.Host != "" {
		add("host", filter.Host)
	}
	if filter.DeviceModel != "" {
		add("device_model", filter.DeviceModel)
	}
	if filter.Type != "" {
		add("benchmark_type", string(filter.Type))
	}
	if filter.Metric != "" {
		add("metric_name", filter.Metric)
	}
	if len(where) > 0 {
		base += "WHERE " + strings.Join(where, " AND ") + "\n"
	}
	base += "ORDER BY host, device_id, benchmark_type, metric_name"

	rows, err := s.db.QueryContext(ctx, base, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list aggregates: %w", err)
	}
	defer rows.Close()

	var out []bench.Aggregate
	for rows.Next() {
		var (
			agg bench.Aggregate
			typ string
		)
		if err := rows.Scan(
			&agg.Host, &agg.DeviceID, &agg.DeviceModel, &typ, &agg.Metric,
			&agg.Count, &agg.Sum, &agg.Min, &agg.Max, &agg.LastValue, &agg.LastUpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres store: scan aggregate: %w", err)
		}
		agg.Type = bench.Type(typ)
		agg.LastUpdatedAt = agg.LastUpdatedAt.UTC()
		out = append(out, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: rows error: %w", err)
	}
	return out, nil
}

func (s *Store) GetProgress(ctx context.Context, source string) (bench.Progress, error) {
	var p bench.Progress
	err := s.db.QueryRowContext(ctx,
		"SELECT source, marker, updated_at FROM audit_progress WHERE source = $1", source,
	).Scan(&p.Source, &p.Marker, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return bench.Progress{}, fmt.Errorf("postgres store: progress %s: %w", source, bench.ErrNotFound)
	}
	if err != nil {
		return bench.Progress{}, fmt.Errorf("postgres store: get progress: %w", err)
	}
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func (s *Store) SetProgress(ctx context.Context, p bench.Progress) error {
	const upsertStmt = `
INSERT INTO audit_progress (source, marker, updated_at) VALUES ($1,$2,$3)
ON CONFLICT (source) DO UPDATE SET marker = EXCLUDED.marker, updated_at = EXCLUDED.updated_at
`
	if _, err := s.db.ExecContext(ctx, upsertStmt, p.Source, p.Marker, p.UpdatedAt.UTC()); err != nil {
		return fmt.Errorf("postgres store: set progress %s: %w", p.Source, err)
	}
	return nil
}

func (s *Store) InsertSanityResult(ctx context.Context, res bench.SanityResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres store: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const insertStmt = `
INSERT INTO sanity_results (device_model, checked_at, target, verdict) VALUES ($1,$2,$3,$4)
`
	for target, verdict := range res.Verdicts {
		if _, err := tx.ExecContext(ctx, insertStmt, res.DeviceModel, res.CheckedAt.UTC(), target, string(verdict)); err != nil {
			return fmt.Errorf("postgres store: insert sanity row %s: %w", target, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres store: commit: %w", err)
	}
	return nil
}

func (s *Store) LatestSanityResult(ctx context.Context, model string) (bench.SanityResult, error) {
	const q = `
SELECT checked_at, target, verdict
FROM sanity_results
WHERE device_model = $1
  AND checked_at = (SELECT MAX(checked_at) FROM sanity_results WHERE device_model = $1)
`
	rows, err := s.db.QueryContext(ctx, q, model)
	if err != nil {
		return bench.SanityResult{}, fmt.Errorf("postgres store: latest sanity: %w", err)
	}
	defer rows.Close()

	out := bench.SanityResult{DeviceModel: model, Verdicts: map[string]bench.Verdict{}}
	for rows.Next() {
		var target, verdict string
		if err := rows.Scan(&out.CheckedAt, &target, &verdict); err != nil {
			return bench.SanityResult{}, fmt.Errorf("postgres store: scan sanity row: %w", err)
		}
		out.Verdicts[target] = bench.Verdict(verdict)
	}
	if err := rows.Err(); err != nil {
		return bench.SanityResult{}, fmt.Errorf("postgres store: rows error: %w", err)
	}
	if len(out.Verdicts) == 0 {
		return bench.SanityResult{}, fmt.Errorf("postgres store: sanity result %s: %w", model, bench.ErrNotFound)
	}
	out.CheckedAt = out.CheckedAt.UTC()
	return out, nil
}
