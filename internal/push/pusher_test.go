package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Quok-it/benchmarking/internal/bench"
	"github.com/Quok-it/benchmarking/internal/db"
)

type mockTransport struct {
	statusCode  int
	requests    int64
	resultsSeen int64
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	body, _ := io.ReadAll(req.Body)
	var payload map[string]any
	_ = json.Unmarshal(body, &payload)
	if results, ok := payload["results"].([]any); ok {
		atomic.AddInt64(&m.resultsSeen, int64(len(results)))
	}
	atomic.AddInt64(&m.requests, 1)
	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewReader([]byte(`{}`))),
		Header:     make(http.Header),
	}, nil
}

func openDB(t *testing.T) *db.Manager {
	t.Helper()
	dbm, err := db.Open(filepath.Join(t.TempDir(), "bench.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = dbm.Close() })
	return dbm
}

func seedResults(t *testing.T, dbm *db.Manager, from, count int) {
	t.Helper()
	for i := from; i < from+count; i++ {
		err := dbm.AppendResult(context.Background(), bench.RawBenchmarkResult{
			AuditID: fmt.Sprintf("00000000-0000-4000-8000-%012d", i),
			Identity: bench.Identity{
				Host:        "node-1",
				DeviceID:    "0",
				DeviceModel: "A100",
				Type:        bench.TypeStress,
			},
			Payload:    bench.StressResult{Status: "OK", TestType: "stress_test"},
			CapturedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("seed insert: %v", err)
		}
	}
}

func TestPushOnceSuccessAdvancesCursor(t *testing.T) {
	t.Parallel()

	dbm := openDB(t)
	seedResults(t, dbm, 0, 3)

	transport := &mockTransport{statusCode: http.StatusOK}
	client := &http.Client{Transport: transport, Timeout: 2 * time.Second}

	p := New(dbm, "http://push.local/v1/results", 5*1024*1024)
	p.SetTestOptions(client, 2, 1*time.Millisecond)

	res, err := p.PushOnce(context.Background())
	if err != nil {
		t.Fatalf("push once failed: %v", err)
	}
	if res.ResultsSent != 3 || atomic.LoadInt64(&transport.resultsSeen) != 3 {
		t.Fatalf("results sent = %d (seen %d), want 3", res.ResultsSent, transport.resultsSeen)
	}

	cursor, err := p.Cursor(context.Background())
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	if cursor != 3 {
		t.Fatalf("cursor = %d, want 3", cursor)
	}

	seedResults(t, dbm, 3, 2)
	res, err = p.PushOnce(context.Background())
	if err != nil {
		t.Fatalf("second push failed: %v", err)
	}
	if res.ResultsSent != 2 {
		t.Fatalf("second push sent %d, want only the 2 new rows", res.ResultsSent)
	}
}

func TestPushOnceFailureKeepsCursor(t *testing.T) {
	t.Parallel()

	dbm := openDB(t)
	seedResults(t, dbm, 0, 1)

	transport := &mockTransport{statusCode: http.StatusInternalServerError}
	client := &http.Client{Transport: transport, Timeout: 1 * time.Second}

	p := New(dbm, "http://push.local/v1/results", 5*1024*1024)
	p.SetTestOptions(client, 2, 1*time.Millisecond)

	if _, err := p.PushOnce(context.Background()); err == nil {
		t.Fatalf("expected push failure")
	}
	if got := atomic.LoadInt64(&transport.requests); got != 2 {
		t.Fatalf("requests = %d, want 2 attempts", got)
	}

	cursor, err := p.Cursor(context.Background())
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	if cursor != 0 {
		t.Fatalf("cursor = %d after failed push, want 0", cursor)
	}
}

func TestPushSplitsPayloadByMaxBytes(t *testing.T) {
	t.Parallel()

	dbm := openDB(t)
	seedResults(t, dbm, 0, 8)

	transport := &mockTransport{statusCode: http.StatusOK}
	client := &http.Client{Transport: transport, Timeout: 2 * time.Second}

	p := New(dbm, "http://push.local/v1/results", 600)
	p.SetTestOptions(client, 2, 1*time.Millisecond)

	res, err := p.PushOnce(context.Background())
	if err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if res.BatchesSent < 2 || atomic.LoadInt64(&transport.requests) < 2 {
		t.Fatalf("expected split batches, got %d requests", atomic.LoadInt64(&transport.requests))
	}
	if res.ResultsSent != 8 {
		t.Fatalf("results sent = %d, want 8", res.ResultsSent)
	}
}

func TestPushWithoutEndpointFails(t *testing.T) {
	t.Parallel()

	p := New(openDB(t), "", 1024)
	if _, err := p.PushOnce(context.Background()); err == nil {
		t.Fatalf("expected error without endpoint")
	}
}
