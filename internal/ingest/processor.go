package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Quok-it/benchmarking/internal/bench"
	"github.com/Quok-it/benchmarking/internal/extract"
	"github.com/Quok-it/benchmarking/internal/metrics"
)

const DefaultExcerptBytes = 2048

type Appender interface {
	Append(ctx context.Context, rec bench.RawBenchmarkResult) (string, error)
}

type Aggregator interface {
	UpdateAll(ctx context.Context, id bench.Identity, values map[string]float64) error
}

// Outcome summarizes one processed observation.
type Outcome struct {
	Type     bench.Type
	Payload  bench.Payload
	AuditIDs []string
	Failed   int
}

// Processor runs extract, fan-out, audit append and aggregate update for a
// single observation. File passes and the HTTP worker share it.
type Processor struct {
	logger       *slog.Logger
	builder      *Builder
	audit        Appender
	aggregates   Aggregator
	metrics      *metrics.Metrics
	excerptBytes int
}

func NewProcessor(logger *slog.Logger, builder *Builder, audit Appender, aggregates Aggregator, m *metrics.Metrics, excerptBytes int) *Processor {
	if excerptBytes <= 0 {
		excerptBytes = DefaultExcerptBytes
	}
	return &Processor{
		logger:       logger,
		builder:      builder,
		audit:        audit,
		aggregates:   aggregates,
		metrics:      m,
		excerptBytes: excerptBytes,
	}
}

// Process stores one record per device. A device whose append fails gets no
// aggregate update; other devices still proceed. The returned error joins
// every per-device failure.
func (p *Processor) Process(ctx context.Context, host string, devices []bench.Device, obs Observation) (Outcome, error) {
	if obs.Host != "" {
		host = obs.Host
	}
	if len(obs.Devices) > 0 {
		devices = obs.Devices
	}
	out := Outcome{Type: obs.Type}

	payload, err := extract.Extract(obs.Type, obs.Label, obs.Text)
	if err != nil {
		p.logger.Warn("extract failed",
			"type", obs.Type,
			"source", obs.Source,
			"error", err,
			"excerpt", TruncateBytes(obs.Text, p.excerptBytes),
		)
		return out, fmt.Errorf("extract %s: %w", obs.Type, err)
	}
	out.Payload = payload

	var errs []error
	for _, in := range p.builder.FanOut(host, devices, payload) {
		rec, err := p.builder.Build(in.Identity, in.Payload)
		if err != nil {
			out.Failed++
			errs = append(errs, err)
			continue
		}
		auditID, err := p.audit.Append(ctx, rec)
		if err != nil {
			out.Failed++
			errs = append(errs, err)
			p.logger.Error("append result failed", "type", rec.Type, "host", rec.Host, "device_id", rec.DeviceID, "error", err)
			continue
		}
		p.metrics.RecordAppended(rec.Type)
		out.AuditIDs = append(out.AuditIDs, auditID)

		values := rec.Payload.Metrics()
		if len(values) == 0 {
			continue
		}
		if err := p.aggregates.UpdateAll(ctx, rec.Identity, values); err != nil {
			p.metrics.AggregateUpdated(rec.Type, false)
			errs = append(errs, fmt.Errorf("aggregate %s/%s: %w", rec.Host, rec.DeviceID, err))
			p.logger.Error("aggregate update failed", "type", rec.Type, "host", rec.Host, "device_id", rec.DeviceID, "audit_id", auditID, "error", err)
			continue
		}
		p.metrics.AggregateUpdated(rec.Type, true)
	}

	p.logger.Debug("observation processed",
		"type", obs.Type,
		"source", obs.Source,
		"records", len(out.AuditIDs),
		"failed", out.Failed,
	)
	return out, errors.Join(errs...)
}
