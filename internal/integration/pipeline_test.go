package integration

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Quok-it/benchmarking/internal/aggregate"
	"github.com/Quok-it/benchmarking/internal/audit"
	"github.com/Quok-it/benchmarking/internal/bench"
	"github.com/Quok-it/benchmarking/internal/db"
	"github.com/Quok-it/benchmarking/internal/ingest"
	"github.com/Quok-it/benchmarking/internal/metrics"
	"github.com/Quok-it/benchmarking/internal/push"
	"github.com/Quok-it/benchmarking/internal/sanity"
	"github.com/Quok-it/benchmarking/internal/server"
)

const streamText = `STREAM version $Revision: 5.10 $
Device name: NVIDIA H100 80GB HBM3
Function    Best Rate MB/s  Avg time     Min time     Max time
Copy:         1800000.0     0.000300     0.000290     0.000320
Scale:        1790000.0     0.000301     0.000291     0.000321
Add:          1850000.0     0.000420     0.000410     0.000430
Triad:        1860000.0     0.000421     0.000411     0.000431
`

type chanEnqueuer chan ingest.Observation

func (c chanEnqueuer) Enqueue(obs ingest.Observation) bool {
	return ingest.TryEnqueue(c, obs)
}

type idleRuntime struct{}

func (idleRuntime) Snapshot() server.RuntimeSnapshot { return server.RuntimeSnapshot{} }

func listen(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("network listener unavailable in sandbox: %v", err)
	}
	srv := httptest.NewUnstartedServer(handler)
	srv.Listener = ln
	srv.Start()
	t.Cleanup(srv.Close)
	return srv
}

// Submissions over HTTP end up as audit rows and aggregates, and the pusher
// forwards each audit row exactly once.
func TestSubmitAggregateAndPush(t *testing.T) {
	t.Parallel()

	dbm, err := db.Open(filepath.Join(t.TempDir(), "gpubench.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = dbm.Close() }()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	m := metrics.New()
	engine := aggregate.NewEngine(dbm)
	proc := ingest.NewProcessor(logger, ingest.NewBuilder(), audit.NewWriter(logger, dbm, nil), engine, m, 0)

	queue := make(chan ingest.Observation, ingest.QueueCapacity)
	workerDone := make(chan error, 1)
	go func() {
		workerDone <- ingest.NewWorker(logger, proc, "node-7", nil).Run(queue)
	}()

	queries := server.Queries{Results: dbm, Aggregates: engine, Sanity: sanity.NewRecorder(dbm, m)}
	api := server.NewAPI(logger, chanEnqueuer(queue), queries, m, 1<<20)
	health := server.NewHealthHandler(dbm, "sqlite", time.Now(), "test", idleRuntime{}, true)
	srv := listen(t, server.New("", health, m.Handler(), api).Handler)

	for i := 0; i < 3; i++ {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/results/stream", strings.NewReader(streamText))
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		req.Header.Set(server.HeaderDeviceID, "0")
		req.Header.Set(server.HeaderDeviceModel, "NVIDIA H100 80GB HBM3")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("submit %d status = %d, want %d", i, resp.StatusCode, http.StatusAccepted)
		}
	}

	close(queue)
	select {
	case err := <-workerDone:
		if err != nil {
			t.Fatalf("worker: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not drain")
	}

	resp, err := http.Get(srv.URL + "/v1/aggregates?type=stream&metric=triad_bandwidth_mbps")
	if err != nil {
		t.Fatalf("list aggregates: %v", err)
	}
	var body struct {
		Aggregates []struct {
			Host   string  `json:"host"`
			Count  int64   `json:"count"`
			Mean   float64 `json:"mean"`
			Metric string  `json:"metric_name"`
		} `json:"aggregates"`
	}
	err = json.NewDecoder(resp.Body).Decode(&body)
	_ = resp.Body.Close()
	if err != nil {
		t.Fatalf("decode aggregates: %v", err)
	}
	if len(body.Aggregates) != 1 {
		t.Fatalf("aggregates = %d, want 1", len(body.Aggregates))
	}
	agg := body.Aggregates[0]
	if agg.Host != "node-7" || agg.Count != 3 || agg.Mean != 1860000.0 {
		t.Fatalf("aggregate = %+v, want host node-7 count 3 mean 1860000", agg)
	}

	var received atomic.Int64
	sink := listen(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Results []struct {
				Type    bench.Type      `json:"type"`
				AuditID string          `json:"audit_id"`
				Data    json.RawMessage `json:"data"`
			} `json:"results"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, res := range payload.Results {
			if res.Type != bench.TypeStream || res.AuditID == "" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			received.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))

	pusher := push.New(dbm, sink.URL, 5*1024*1024)
	pusher.SetTestOptions(&http.Client{Timeout: 2 * time.Second}, 2, time.Millisecond)
	for i := 0; i < 2; i++ {
		if _, err := pusher.PushOnce(context.Background()); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	if got := received.Load(); got != 3 {
		t.Fatalf("sink received %d results, want 3", got)
	}

	count, err := dbm.ResultCount(context.Background())
	if err != nil {
		t.Fatalf("result count: %v", err)
	}
	if count != 3 {
		t.Fatalf("result count = %d, want 3", count)
	}
}
