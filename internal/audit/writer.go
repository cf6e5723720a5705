// Package audit owns appends to the immutable raw result log.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Quok-it/benchmarking/internal/bench"
)

type Store interface {
	AppendResult(ctx context.Context, rec bench.RawBenchmarkResult) error
	GetResult(ctx context.Context, auditID string) (bench.RawBenchmarkResult, error)
}

// Mirror receives a copy of every durably appended row.
type Mirror interface {
	Mirror(ctx context.Context, rec bench.RawBenchmarkResult) error
}

type Writer struct {
	logger *slog.Logger
	store  Store
	mirror Mirror
}

// NewWriter returns a Writer over store. mirror may be nil.
func NewWriter(logger *slog.Logger, store Store, mirror Mirror) *Writer {
	return &Writer{logger: logger, store: store, mirror: mirror}
}

// Append stores rec and returns its audit id. Either the whole row is stored
// or a *bench.StorageError is returned and nothing is. A mirror failure is
// logged and does not affect the result.
func (w *Writer) Append(ctx context.Context, rec bench.RawBenchmarkResult) (string, error) {
	if rec.AuditID == "" {
		return "", &bench.StorageError{Op: "append result", Err: fmt.Errorf("record has no audit id")}
	}
	if rec.Payload == nil {
		return "", &bench.StorageError{Op: "append result " + rec.AuditID, Err: fmt.Errorf("record has no payload")}
	}
	if err := w.store.AppendResult(ctx, rec); err != nil {
		return "", &bench.StorageError{Op: "append result " + rec.AuditID, Err: err}
	}
	if w.mirror != nil {
		if err := w.mirror.Mirror(ctx, rec); err != nil {
			w.logger.Warn("archive mirror failed", "audit_id", rec.AuditID, "type", rec.Type, "error", err)
		}
	}
	return rec.AuditID, nil
}

func (w *Writer) Get(ctx context.Context, auditID string) (bench.RawBenchmarkResult, error) {
	return w.store.GetResult(ctx, auditID)
}
