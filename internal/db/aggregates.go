package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Quok-it/benchmarking/internal/bench"
)

// UpsertAggregate folds value into the aggregate row for key in a single
// statement, so concurrent writers to the same row serialize on it and writers
// to other rows do not wait on each other beyond SQLite's own write lock.
func (m *Manager) UpsertAggregate(ctx context.Context, key bench.AggregateKey, value float64, at time.Time) error {
	_, err := m.writer.ExecContext(ctx, `
INSERT INTO gpu_aggregates (
  host, device_id, device_model, benchmark_type, metric_name,
  value_count, value_sum, value_min, value_max, last_value, last_updated_at
) VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?, ?, ?)
ON CONFLICT (host, device_id, device_model, benchmark_type, metric_name) DO UPDATE SET
  value_count = value_count + 1,
  value_sum = value_sum + excluded.value_sum,
  value_min = MIN(value_min, excluded.value_min),
  value_max = MAX(value_max, excluded.value_max),
  last_value = excluded.last_value,
  last_updated_at = excluded.last_updated_at
`,
		key.Host, key.DeviceID, key.DeviceModel, string(key.Type), key.Metric,
		value, value, value, value, at.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert aggregate %s: %w", key, err)
	}
	return nil
}

func (m *Manager) ListAggregates(ctx context.Context, filter bench.AggregateFilter) ([]bench.Aggregate, error) {
	var (
		where []string
		args  []any
	)
	if filter.Host != "" {
		where = append(where, "host = ?")
		args = append(args, filter.Host)
	}
	if filter.DeviceModel != "" {
		where = append(where, "device_model = ?")
		args = append(args, filter.DeviceModel)
	}
	if filter.Type != "" {
		where = append(where, "benchmark_type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Metric != "" {
		where = append(where, "metric_name = ?")
		args = append(args, filter.Metric)
	}
	query := `
SELECT host, device_id, device_model, benchmark_type, metric_name,
  value_count, value_sum, value_min, value_max, last_value, last_updated_at
FROM gpu_aggregates`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY host, device_id, benchmark_type, metric_name"

	rows, err := m.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []bench.Aggregate
	for rows.Next() {
		var (
			agg       bench.Aggregate
			typ       string
			updatedAt int64
		)
		if err := rows.Scan(
			&agg.Host, &agg.DeviceID, &agg.DeviceModel, &typ, &agg.Metric,
			&agg.Count, &agg.Sum, &agg.Min, &agg.Max, &agg.LastValue, &updatedAt,
		); err != nil {
			return nil, err
		}
		agg.Type = bench.Type(typ)
		agg.LastUpdatedAt = time.UnixMilli(updatedAt).UTC()
		out = append(out, agg)
	}
	return out, rows.Err()
}
