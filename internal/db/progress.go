package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Quok-it/benchmarking/internal/bench"
)

func (m *Manager) GetProgress(ctx context.Context, source string) (bench.Progress, error) {
	var (
		p         bench.Progress
		updatedAt int64
	)
	err := m.reader.QueryRowContext(ctx,
		"SELECT source, marker, updated_at FROM audit_progress WHERE source = ?", source,
	).Scan(&p.Source, &p.Marker, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return bench.Progress{}, fmt.Errorf("progress %s: %w", source, bench.ErrNotFound)
	}
	if err != nil {
		return bench.Progress{}, err
	}
	p.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return p, nil
}

func (m *Manager) SetProgress(ctx context.Context, p bench.Progress) error {
	_, err := m.writer.ExecContext(ctx, `
INSERT INTO audit_progress (source, marker, updated_at) VALUES (?, ?, ?)
ON CONFLICT (source) DO UPDATE SET marker = excluded.marker, updated_at = excluded.updated_at
`, p.Source, p.Marker, p.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("set progress %s: %w", p.Source, err)
	}
	return nil
}
