package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Quok-it/benchmarking/internal/bench"
	"github.com/Quok-it/benchmarking/internal/config"
	"github.com/Quok-it/benchmarking/internal/ingest"
	"github.com/Quok-it/benchmarking/internal/push"
)

const hplText = `T/V                N    NB     P     Q               Time                 Gflops
--------------------------------------------------------------------------------
WC00C2R4       92160   288     1     1              62.04              8.413e+03
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Store:                config.StoreSQLite,
		DBPath:               filepath.Join(dir, "gpubench.db"),
		Port:                 "0",
		HostnameOverride:     "node-1",
		NvidiaSMIPath:        filepath.Join(dir, "no-nvidia-smi"),
		MLPerfCacheDir:       filepath.Join(dir, "cache"),
		StressPath:           filepath.Join(dir, "gpu_burn.txt"),
		HPLPath:              filepath.Join(dir, "hpl_results.txt"),
		HPCGPath:             filepath.Join(dir, "hpcg_results.txt"),
		StreamPath:           filepath.Join(dir, "stream_results.txt"),
		DLSuitePath:          filepath.Join(dir, "ai_benchmark.txt"),
		Tolerance:            50,
		MaxTextBytes:         1 << 20,
		PushMaxPayloadBytes:  1 << 20,
		WALRestartThresholdB: 1 << 20,
	}
}

func newTestRuntime(t *testing.T, cfg *config.Config) *Runtime {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	r := New(cfg, logger, "test")
	comp, err := Build(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = comp.Close(context.Background()) })
	r.comp = comp
	r.ingestCh = make(chan ingest.Observation, 1)
	return r
}

func TestRunPassUpdatesSnapshot(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	r := newTestRuntime(t, cfg)

	_, err := r.RunPass(context.Background(), "test")
	require.Error(t, err)
	snap := r.Snapshot()
	assert.Equal(t, "no_files", snap.LastPassStatus)
	require.NotNil(t, snap.LastPassTime)

	require.NoError(t, os.WriteFile(cfg.HPLPath, []byte(hplText), 0o644))
	report, err := r.RunPass(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, 0, report.Failed())
	assert.Equal(t, "ok", r.Snapshot().LastPassStatus)

	aggs, err := r.comp.Store.ListAggregates(context.Background(), bench.AggregateFilter{Type: bench.TypeHPL})
	require.NoError(t, err)
	require.Len(t, aggs, 1)
	assert.Equal(t, "node-1", aggs[0].Host)
	assert.Equal(t, bench.UnknownModel, aggs[0].DeviceModel)
	assert.InDelta(t, 8413.0, aggs[0].LastValue, 1e-9)
}

func TestEnqueueCountsDrops(t *testing.T) {
	t.Parallel()

	r := newTestRuntime(t, testConfig(t))
	obs := ingest.Observation{Type: bench.TypeHPL, Text: hplText}

	assert.True(t, r.Enqueue(obs))
	assert.False(t, r.Enqueue(obs))

	snap := r.Snapshot()
	assert.Equal(t, int64(1), snap.SubmissionsReceived)
	assert.Equal(t, int64(1), snap.SubmissionsDropped)
	assert.Equal(t, int64(1), snap.QueueDepth)
}

func TestRunPushForwardsResults(t *testing.T) {
	t.Parallel()

	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var env struct {
			Results []json.RawMessage `json:"results"`
		}
		if err := json.NewDecoder(req.Body).Decode(&env); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		received.Add(int32(len(env.Results)))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.PushEndpoint = srv.URL
	r := newTestRuntime(t, cfg)
	r.pusher = newTestPusher(r, srv.URL)

	require.NoError(t, os.WriteFile(cfg.HPLPath, []byte(hplText), 0o644))
	_, err := r.RunPass(context.Background(), "test")
	require.NoError(t, err)

	require.NoError(t, r.runPush(context.Background(), "test"))
	assert.Equal(t, int32(1), received.Load())
	assert.Equal(t, "ok", r.Snapshot().LastPushStatus)

	// Nothing new: the cursor already covers the stored row.
	require.NoError(t, r.runPush(context.Background(), "test"))
	assert.Equal(t, int32(1), received.Load())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	r := New(cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)), "test")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(200 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func newTestPusher(r *Runtime, endpoint string) *push.Pusher {
	p := push.New(r.comp.Store, endpoint, r.cfg.PushMaxPayloadBytes)
	p.SetTestOptions(&http.Client{Timeout: 2 * time.Second}, 1, time.Millisecond)
	return p
}
