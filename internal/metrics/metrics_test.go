package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Quok-it/benchmarking/internal/bench"
)

func TestCountersRecord(t *testing.T) {
	t.Parallel()

	m := New()
	m.PassStarted("interval")
	m.FamilyOutcome(bench.TypeHPL, "ok")
	m.RecordAppended(bench.TypeHPL)
	m.RecordAppended(bench.TypeHPL)
	m.AggregateUpdated(bench.TypeHPL, false)
	m.SanityVerdicts(map[string]bench.Verdict{"a": bench.VerdictPassed, "b": bench.VerdictFailed, "c": bench.VerdictPassed})
	m.ResultsPushed(3)
	m.SetQueueDepth(7)

	if got := testutil.ToFloat64(m.recordsAppended.WithLabelValues("hpl")); got != 2 {
		t.Fatalf("records appended = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.aggregateUpdates.WithLabelValues("hpl", "error")); got != 1 {
		t.Fatalf("aggregate errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.sanityVerdicts.WithLabelValues("passed")); got != 2 {
		t.Fatalf("passed verdicts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.resultsPushed); got != 3 {
		t.Fatalf("results pushed = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.queueDepth); got != 7 {
		t.Fatalf("queue depth = %v, want 7", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.PassStarted("manual")
	m.RecordAppended(bench.TypeStress)
	m.SetQueueDepth(1)
	if err := m.Register(prometheus.NewCounter(prometheus.CounterOpts{Name: "x"})); err != nil {
		t.Fatalf("Register() on nil = %v", err)
	}
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandlerExposesNamespace(t *testing.T) {
	t.Parallel()

	m := New()
	m.PassStarted("watch")
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `gpubench_passes_total{trigger="watch"} 1`) {
		t.Fatalf("metrics output missing pass counter:\n%s", body)
	}
}

type fakeSizer struct{}

func (fakeSizer) DBSizeBytes() int64  { return 4096 }
func (fakeSizer) WALSizeBytes() int64 { return 1024 }

func TestResourceCollectorReportsStoreSizes(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(NewResourceCollector(t.TempDir(), fakeSizer{}))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	values := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			values[f.GetName()] = metric.GetGauge().GetValue()
		}
	}
	if values["gpubench_store_db_bytes"] != 4096 {
		t.Fatalf("db size = %v, want 4096", values["gpubench_store_db_bytes"])
	}
	if values["gpubench_store_wal_bytes"] != 1024 {
		t.Fatalf("wal size = %v, want 1024", values["gpubench_store_wal_bytes"])
	}
	if values["gpubench_cgroup_cpu_cores"] < 1 {
		t.Fatalf("cpu cores = %v, want >= 1", values["gpubench_cgroup_cpu_cores"])
	}
}

func TestCurrentRSSBytes(t *testing.T) {
	t.Parallel()
	if runtime.GOOS != "linux" {
		t.Skip("rss sampling is linux-only")
	}
	rss, err := CurrentRSSBytes()
	if err != nil {
		t.Fatalf("CurrentRSSBytes() error: %v", err)
	}
	if rss <= 0 {
		t.Fatalf("rss bytes should be > 0")
	}
}
