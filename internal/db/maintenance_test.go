package db

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/Quok-it/benchmarking/internal/bench"
)

func TestCheckpointIfWALExceeds(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "bench.db")
	dbm, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = dbm.Close() }()

	// Generate write activity so WAL file exists.
	for i := 0; i < 10; i++ {
		err := dbm.AppendResult(context.Background(), bench.RawBenchmarkResult{
			AuditID:    fmt.Sprintf("cccccccc-cccc-4ccc-8ccc-cccccccccc%02d", i),
			Identity:   bench.Identity{Host: "node-1", DeviceID: "0", DeviceModel: "NVIDIA H100", Type: bench.TypeStress},
			Payload:    bench.StressResult{Status: "OK", TestType: "stress_test"},
			CapturedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("append row: %v", err)
		}
	}

	did, err := dbm.CheckpointIfWALExceeds(context.Background(), 0)
	if err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	if !did {
		t.Fatalf("expected checkpoint to run when threshold is 0")
	}

	did, err = dbm.CheckpointIfWALExceeds(context.Background(), 1<<40)
	if err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	if did {
		t.Fatalf("expected no checkpoint under a huge threshold")
	}

	if err := dbm.IncrementalVacuum(context.Background(), 100); err != nil {
		t.Fatalf("incremental vacuum: %v", err)
	}
}

func TestStatsReportsStore(t *testing.T) {
	t.Parallel()

	dbm, err := Open(filepath.Join(t.TempDir(), "bench.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = dbm.Close() }()

	stats := dbm.Stats(context.Background())
	if stats.DBStatus != "ok" {
		t.Fatalf("db status = %q, want ok", stats.DBStatus)
	}
	if stats.DBSizeBytes <= 0 {
		t.Fatalf("db size = %d, want > 0", stats.DBSizeBytes)
	}
}
