package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Quok-it/benchmarking/internal/bench"
)

// AppendResult inserts rec as one row. The unique audit_id constraint makes a
// second append with the same id fail instead of overwriting.
func (m *Manager) AppendResult(ctx context.Context, rec bench.RawBenchmarkResult) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = m.writer.ExecContext(ctx, `
INSERT INTO raw_benchmark_results (
  audit_id, host, device_id, device_model, benchmark_type, payload, captured_at
) VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		rec.AuditID,
		rec.Host,
		rec.DeviceID,
		rec.DeviceModel,
		string(rec.Type),
		string(payload),
		rec.CapturedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert result %s: %w", rec.AuditID, err)
	}
	return nil
}

func (m *Manager) GetResult(ctx context.Context, auditID string) (bench.RawBenchmarkResult, error) {
	var (
		rec        bench.RawBenchmarkResult
		typ        string
		payload    string
		capturedAt int64
	)
	err := m.reader.QueryRowContext(ctx, `
SELECT audit_id, host, device_id, device_model, benchmark_type, payload, captured_at
FROM raw_benchmark_results
WHERE audit_id = ?
`, auditID).Scan(&rec.AuditID, &rec.Host, &rec.DeviceID, &rec.DeviceModel, &typ, &payload, &capturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return bench.RawBenchmarkResult{}, fmt.Errorf("result %s: %w", auditID, bench.ErrNotFound)
	}
	if err != nil {
		return bench.RawBenchmarkResult{}, err
	}
	rec.Type = bench.Type(typ)
	rec.CapturedAt = time.UnixMilli(capturedAt).UTC()
	rec.Payload, err = bench.DecodePayload(rec.Type, []byte(payload))
	if err != nil {
		return bench.RawBenchmarkResult{}, err
	}
	return rec, nil
}

func (m *Manager) ResultCount(ctx context.Context) (int64, error) {
	var out int64
	if err := m.reader.QueryRowContext(ctx, "SELECT COUNT(*) FROM raw_benchmark_results").Scan(&out); err != nil {
		return 0, err
	}
	return out, nil
}

// FetchResultsAfter returns up to limit audit rows with seq > afterSeq, oldest
// first, each rendered as the JSON document a RawBenchmarkResult encodes to.
func (m *Manager) FetchResultsAfter(ctx context.Context, afterSeq int64, limit int) ([]bench.ResultRow, error) {
	rows, err := m.reader.QueryContext(ctx, `
SELECT seq, audit_id, benchmark_type,
  json_object(
    'audit_id', audit_id,
    'host', host,
    'device_id', device_id,
    'device_model', device_model,
    'benchmark_type', benchmark_type,
    'payload', json(payload),
    'captured_at', strftime('%Y-%m-%dT%H:%M:%fZ', captured_at / 1000.0, 'unixepoch')
  )
FROM raw_benchmark_results
WHERE seq > ?
ORDER BY seq ASC
LIMIT ?
`, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]bench.ResultRow, 0, limit)
	for rows.Next() {
		var (
			row  bench.ResultRow
			typ  string
			data string
		)
		if err := rows.Scan(&row.Seq, &row.AuditID, &typ, &data); err != nil {
			return nil, err
		}
		row.Type = bench.Type(typ)
		row.Data = json.RawMessage(data)
		out = append(out, row)
	}
	return out, rows.Err()
}
