package db

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenAppliesPragmasAndSchema(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bench.db")
	dbm, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() {
		_ = dbm.Close()
	}()

	journal, busy, autoVacuum, err := dbm.Pragmas(context.Background())
	if err != nil {
		t.Fatalf("Pragmas() error = %v", err)
	}
	if journal != "wal" {
		t.Fatalf("journal mode = %q, want wal", journal)
	}
	if busy != 10000 {
		t.Fatalf("busy_timeout = %d, want 10000", busy)
	}
	if autoVacuum != 2 {
		t.Fatalf("auto_vacuum = %d, want 2", autoVacuum)
	}

	counts, err := dbm.TableCounts(context.Background())
	if err != nil {
		t.Fatalf("TableCounts() error = %v", err)
	}
	for _, table := range Tables {
		n, ok := counts[table]
		if !ok {
			t.Fatalf("table %s missing from counts", table)
		}
		if n != 0 {
			t.Fatalf("%s rows = %d, want 0", table, n)
		}
	}
}
