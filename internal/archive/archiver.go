package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/golang/snappy"

	"github.com/Quok-it/benchmarking/internal/bench"
)

// Archiver writes one object per audit row under
// raw/<type>/<host>/<audit_id>.json.sz.
type Archiver struct {
	storage ObjectStorage
}

func NewArchiver(storage ObjectStorage) *Archiver {
	return &Archiver{storage: storage}
}

func Key(rec bench.RawBenchmarkResult) string {
	return path.Join("raw", string(rec.Type), rec.Host, rec.AuditID+".json.sz")
}

func (a *Archiver) Mirror(ctx context.Context, rec bench.RawBenchmarkResult) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", rec.AuditID, err)
	}
	return a.storage.Put(ctx, Key(rec), snappy.Encode(nil, raw))
}

// Load reads back a mirrored row.
func (a *Archiver) Load(ctx context.Context, t bench.Type, host, auditID string) (bench.RawBenchmarkResult, error) {
	key := Key(bench.RawBenchmarkResult{AuditID: auditID, Identity: bench.Identity{Host: host, Type: t}})
	compressed, err := a.storage.Get(ctx, key)
	if err != nil {
		return bench.RawBenchmarkResult{}, err
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return bench.RawBenchmarkResult{}, fmt.Errorf("decompress %s: %w", key, err)
	}
	var rec bench.RawBenchmarkResult
	if err := json.Unmarshal(raw, &rec); err != nil {
		return bench.RawBenchmarkResult{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return rec, nil
}
