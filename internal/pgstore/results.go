package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Quok-it/benchmarking/internal/bench"
)

// AppendResult inserts rec. A duplicate audit_id violates the unique
// constraint; nothing is overwritten.
func (s *Store) AppendResult(ctx context.Context, rec bench.RawBenchmarkResult) error {
	const insertStmt = `
INSERT INTO raw_benchmark_results (
  audit_id, host, device_id, device_model, benchmark_type, payload, captured_at
) VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("postgres store: encode payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, insertStmt,
		rec.AuditID,
		rec.Host,
		rec.DeviceID,
		rec.DeviceModel,
		string(rec.Type),
		string(payload),
		rec.CapturedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres store: insert result %s: %w", rec.AuditID, err)
	}
	return nil
}

const resultColumns = `seq, audit_id, host, device_id, device_model, benchmark_type, payload, captured_at`

type scanner interface {
	Scan(dest ...any) error
}

// scanResult reads resultColumns followed by any extra columns.
func scanResult(row scanner, extra ...any) (int64, bench.RawBenchmarkResult, []byte, error) {
	var (
		seq     int64
		rec     bench.RawBenchmarkResult
		typ     string
		payload []byte
	)
	dest := append([]any{&seq, &rec.AuditID, &rec.Host, &rec.DeviceID, &rec.DeviceModel, &typ, &payload, &rec.CapturedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return 0, bench.RawBenchmarkResult{}, nil, err
	}
	rec.Type = bench.Type(typ)
	rec.CapturedAt = rec.CapturedAt.UTC()
	return seq, rec, payload, nil
}

func (s *Store) GetResult(ctx context.Context, auditID string) (bench.RawBenchmarkResult, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+resultColumns+" FROM raw_benchmark_results WHERE audit_id = $1", auditID)
	_, rec, payload, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return bench.RawBenchmarkResult{}, fmt.Errorf("postgres store: result %s: %w", auditID, bench.ErrNotFound)
	}
	if err != nil {
		return bench.RawBenchmarkResult{}, fmt.Errorf("postgres store: get result: %w", err)
	}
	rec.Payload, err = bench.DecodePayload(rec.Type, payload)
	if err != nil {
		return bench.RawBenchmarkResult{}, err
	}
	return rec, nil
}

// FetchResultsAfter pages through audit rows by seq for the pusher.
//
// seq comes from a sequence, so values are handed out at insert time, not in
// commit order: with several hosts writing, seq 11 can become visible before
// seq 10. Rows younger than the settle window are therefore withheld, and the
// page stops at the first such row so the caller's cursor never moves past a
// row that may still be joined by a lower seq.
func (s *Store) FetchResultsAfter(ctx context.Context, afterSeq int64, limit int) ([]bench.ResultRow, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+resultColumns+", inserted_at <= now() - make_interval(secs => $2) AS settled"+
			" FROM raw_benchmark_results WHERE seq > $1 ORDER BY seq ASC LIMIT $3",
		afterSeq, s.settle.Seconds(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres store: fetch results: %w", err)
	}
	defer rows.Close()

	out := make([]bench.ResultRow, 0, limit)
	for rows.Next() {
		var settled bool
		seq, rec, payload, err := scanResult(rows, &settled)
		if err != nil {
			return nil, fmt.Errorf("postgres store: scan result: %w", err)
		}
		if !settled {
			break
		}
		doc := struct {
			bench.Identity
			AuditID    string          `json:"audit_id"`
			Payload    json.RawMessage `json:"payload"`
			CapturedAt string          `json:"captured_at"`
		}{
			Identity:   rec.Identity,
			AuditID:    rec.AuditID,
			Payload:    payload,
			CapturedAt: rec.CapturedAt.Format("2006-01-02T15:04:05.000Z07:00"),
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("postgres store: encode result: %w", err)
		}
		out = append(out, bench.ResultRow{Seq: seq, AuditID: rec.AuditID, Type: rec.Type, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: rows error: %w", err)
	}
	return out, nil
}
