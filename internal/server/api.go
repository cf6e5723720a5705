package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Quok-it/benchmarking/internal/bench"
	"github.com/Quok-it/benchmarking/internal/ingest"
	"github.com/Quok-it/benchmarking/internal/metrics"
)

const (
	HeaderHost        = "X-Host"
	HeaderDeviceID    = "X-Device-Id"
	HeaderDeviceModel = "X-Device-Model"
	HeaderLabel       = "X-Label"
)

type Enqueuer interface {
	Enqueue(obs ingest.Observation) bool
}

type ResultReader interface {
	GetResult(ctx context.Context, auditID string) (bench.RawBenchmarkResult, error)
}

// AggregateLister is satisfied by *aggregate.Engine.
type AggregateLister interface {
	List(ctx context.Context, filter bench.AggregateFilter) ([]bench.Aggregate, error)
}

// SanityReader is satisfied by *sanity.Recorder.
type SanityReader interface {
	Latest(ctx context.Context, model string) (bench.SanityResult, error)
}

// Queries groups the read paths behind the GET endpoints.
type Queries struct {
	Results    ResultReader
	Aggregates AggregateLister
	Sanity     SanityReader
}

// API serves result submission and read-only queries over the stores.
type API struct {
	logger       *slog.Logger
	enqueuer     Enqueuer
	queries      Queries
	metrics      *metrics.Metrics
	maxBodyBytes int64
}

func NewAPI(logger *slog.Logger, enqueuer Enqueuer, queries Queries, m *metrics.Metrics, maxBodyBytes int64) *API {
	return &API{
		logger:       logger,
		enqueuer:     enqueuer,
		queries:      queries,
		metrics:      m,
		maxBodyBytes: maxBodyBytes,
	}
}

type aggregateView struct {
	bench.Aggregate
	Mean float64 `json:"mean"`
}

// PostResult queues raw tool output for the ingest worker. Identity comes
// from headers; without X-Device-Id the worker discovers local devices.
func (a *API) PostResult(w http.ResponseWriter, r *http.Request) {
	t, err := bench.ParseType(r.PathValue("type"))
	if err != nil {
		a.metrics.Submission("rejected")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxBodyBytes))
	if err != nil {
		a.metrics.Submission("rejected")
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		a.metrics.Submission("rejected")
		http.Error(w, "empty body", http.StatusBadRequest)
		return
	}

	obs := ingest.Observation{
		Type:       t,
		Label:      r.Header.Get(HeaderLabel),
		Source:     "http:" + r.RemoteAddr,
		Text:       string(body),
		Host:       r.Header.Get(HeaderHost),
		ReceivedAt: time.Now(),
	}
	if t == bench.TypeMLPerf && obs.Label == "" {
		a.metrics.Submission("rejected")
		http.Error(w, HeaderLabel+" (model name) is required for mlperf", http.StatusBadRequest)
		return
	}
	if id := r.Header.Get(HeaderDeviceID); id != "" {
		model := r.Header.Get(HeaderDeviceModel)
		if model == "" {
			model = bench.UnknownModel
		}
		obs.Devices = []bench.Device{{ID: id, Model: model}}
	}

	if !a.enqueuer.Enqueue(obs) {
		a.metrics.Submission("dropped")
		http.Error(w, "ingest queue full", http.StatusServiceUnavailable)
		return
	}
	a.metrics.Submission("queued")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "benchmark_type": string(t)})
}

func (a *API) GetResult(w http.ResponseWriter, r *http.Request) {
	rec, err := a.queries.Results.GetResult(r.Context(), r.PathValue("auditID"))
	if err != nil {
		a.writeQueryError(w, "get result", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListAggregates accepts host, model, type and metric query filters.
func (a *API) ListAggregates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := bench.AggregateFilter{
		Host:        q.Get("host"),
		DeviceModel: q.Get("model"),
		Metric:      q.Get("metric"),
	}
	if raw := q.Get("type"); raw != "" {
		t, err := bench.ParseType(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter.Type = t
	}

	aggs, err := a.queries.Aggregates.List(r.Context(), filter)
	if err != nil {
		a.writeQueryError(w, "list aggregates", err)
		return
	}
	out := make([]aggregateView, 0, len(aggs))
	for _, agg := range aggs {
		out = append(out, aggregateView{Aggregate: agg, Mean: agg.Mean()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"aggregates": out})
}

func (a *API) LatestSanity(w http.ResponseWriter, r *http.Request) {
	res, err := a.queries.Sanity.Latest(r.Context(), r.PathValue("model"))
	if err != nil {
		a.writeQueryError(w, "latest sanity result", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) writeQueryError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, bench.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	a.logger.Error(op+" failed", "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
