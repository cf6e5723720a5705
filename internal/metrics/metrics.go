package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Quok-it/benchmarking/internal/bench"
)

const namespace = "gpubench"

// Metrics holds the service's Prometheus instruments on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	passes           *prometheus.CounterVec
	familyOutcomes   *prometheus.CounterVec
	recordsAppended  *prometheus.CounterVec
	aggregateUpdates *prometheus.CounterVec
	sanityVerdicts   *prometheus.CounterVec
	resultsPushed    prometheus.Counter
	queueDepth       prometheus.Gauge
	submissions      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "Ingestion passes by trigger.",
		}, []string{"trigger"}),
		familyOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "family_outcomes_total",
			Help:      "Benchmark family processing outcomes within a pass.",
		}, []string{"benchmark_type", "outcome"}),
		recordsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_appended_total",
			Help:      "Raw benchmark results appended to the audit store.",
		}, []string{"benchmark_type"}),
		aggregateUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregate_updates_total",
			Help:      "Aggregate metric updates by outcome.",
		}, []string{"benchmark_type", "outcome"}),
		sanityVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sanity_verdicts_total",
			Help:      "Sanity check verdicts by value.",
		}, []string{"verdict"}),
		resultsPushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_pushed_total",
			Help:      "Audit rows forwarded to the push endpoint.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_queue_depth",
			Help:      "Submissions waiting for the ingest worker.",
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "HTTP result submissions by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		m.passes,
		m.familyOutcomes,
		m.recordsAppended,
		m.aggregateUpdates,
		m.sanityVerdicts,
		m.resultsPushed,
		m.queueDepth,
		m.submissions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Register adds extra collectors, such as a ResourceCollector.
func (m *Metrics) Register(cs ...prometheus.Collector) error {
	if m == nil {
		return nil
	}
	for _, c := range cs {
		if err := m.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) PassStarted(trigger string) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(trigger).Inc()
}

func (m *Metrics) FamilyOutcome(t bench.Type, outcome string) {
	if m == nil {
		return
	}
	m.familyOutcomes.WithLabelValues(string(t), outcome).Inc()
}

func (m *Metrics) RecordAppended(t bench.Type) {
	if m == nil {
		return
	}
	m.recordsAppended.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) AggregateUpdated(t bench.Type, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.aggregateUpdates.WithLabelValues(string(t), outcome).Inc()
}

func (m *Metrics) SanityVerdicts(verdicts map[string]bench.Verdict) {
	if m == nil {
		return
	}
	for _, v := range verdicts {
		m.sanityVerdicts.WithLabelValues(string(v)).Inc()
	}
}

func (m *Metrics) ResultsPushed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.resultsPushed.Add(float64(n))
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) Submission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}
