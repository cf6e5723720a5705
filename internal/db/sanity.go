package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Quok-it/benchmarking/internal/bench"
)

// InsertSanityResult writes every verdict of res in one transaction. A second
// insert for the same model and timestamp fails on the primary key.
func (m *Manager) InsertSanityResult(ctx context.Context, res bench.SanityResult) error {
	tx, err := m.writer.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO sanity_results (device_model, checked_at, target, verdict) VALUES (?, ?, ?, ?)
`)
	if err != nil {
		return fmt.Errorf("prepare sanity insert: %w", err)
	}
	defer stmt.Close()

	checkedAt := res.CheckedAt.UnixMilli()
	for target, verdict := range res.Verdicts {
		if _, err := stmt.ExecContext(ctx, res.DeviceModel, checkedAt, target, string(verdict)); err != nil {
			return fmt.Errorf("insert sanity row %s: %w", target, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// LatestSanityResult returns the most recent verdict set for model.
func (m *Manager) LatestSanityResult(ctx context.Context, model string) (bench.SanityResult, error) {
	var checkedAt sql.NullInt64
	if err := m.reader.QueryRowContext(ctx,
		"SELECT MAX(checked_at) FROM sanity_results WHERE device_model = ?", model,
	).Scan(&checkedAt); err != nil {
		return bench.SanityResult{}, err
	}
	if !checkedAt.Valid {
		return bench.SanityResult{}, fmt.Errorf("sanity result %s: %w", model, bench.ErrNotFound)
	}

	rows, err := m.reader.QueryContext(ctx,
		"SELECT target, verdict FROM sanity_results WHERE device_model = ? AND checked_at = ?",
		model, checkedAt.Int64,
	)
	if err != nil {
		return bench.SanityResult{}, err
	}
	defer rows.Close()

	out := bench.SanityResult{
		DeviceModel: model,
		CheckedAt:   time.UnixMilli(checkedAt.Int64).UTC(),
		Verdicts:    map[string]bench.Verdict{},
	}
	for rows.Next() {
		var target, verdict string
		if err := rows.Scan(&target, &verdict); err != nil {
			return bench.SanityResult{}, err
		}
		out.Verdicts[target] = bench.Verdict(verdict)
	}
	if err := rows.Err(); err != nil {
		return bench.SanityResult{}, err
	}
	return out, nil
}
