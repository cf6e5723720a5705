// Package pipeline runs ingestion passes over the result files benchmark
// tools leave on a host.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Quok-it/benchmarking/internal/bench"
	"github.com/Quok-it/benchmarking/internal/discovery"
	"github.com/Quok-it/benchmarking/internal/ingest"
	"github.com/Quok-it/benchmarking/internal/metrics"
	"github.com/Quok-it/benchmarking/internal/sanity"
)

var ErrNoResultFiles = errors.New("no benchmark result files found")

type Status string

const (
	StatusStored    Status = "stored"
	StatusUnchanged Status = "unchanged"
	StatusMissing   Status = "missing"
	StatusFailed    Status = "failed"
)

// Sources locates result files. Empty paths are not checked.
type Sources struct {
	MLPerfCacheDir string
	MLPerfModels   []string
	StressPath     string
	HPLPath        string
	HPCGPath       string
	StreamPath     string
	DLSuitePath    string
}

type ProgressStore interface {
	GetProgress(ctx context.Context, source string) (bench.Progress, error)
	SetProgress(ctx context.Context, p bench.Progress) error
}

// SanityStep compares freshly ingested DL-suite timings for every local GPU
// model and records the verdicts.
type SanityStep struct {
	Comparator sanity.Comparator
	Reference  sanity.Reference
	Recorder   *sanity.Recorder
}

type FamilyReport struct {
	Type    bench.Type
	Label   string
	Path    string
	Status  Status
	Records int
	Err     error
}

type Report struct {
	Host     string
	Families []FamilyReport
	Sanity   []sanity.Result
}

// Failed counts families that did not complete.
func (r Report) Failed() int {
	n := 0
	for _, f := range r.Families {
		if f.Status == StatusFailed {
			n++
		}
	}
	return n
}

type Pipeline struct {
	logger    *slog.Logger
	sources   Sources
	host      string
	inventory ingest.Inventory
	processor *ingest.Processor
	progress  ProgressStore
	sanity    *SanityStep
	metrics   *metrics.Metrics
	now       func() time.Time
}

// New returns a Pipeline. progress and step may be nil: without progress
// every pass re-ingests every file, without step no sanity check runs.
func New(logger *slog.Logger, sources Sources, host string, inventory ingest.Inventory, processor *ingest.Processor, progress ProgressStore, step *SanityStep, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		logger:    logger,
		sources:   sources,
		host:      host,
		inventory: inventory,
		processor: processor,
		progress:  progress,
		sanity:    step,
		metrics:   m,
		now:       time.Now,
	}
}

type job struct {
	typ   bench.Type
	label string
	path  string
	info  os.FileInfo
}

func (j job) source() string {
	if j.label != "" {
		return "file:" + string(j.typ) + ":" + j.label
	}
	return "file:" + string(j.typ)
}

func (j job) marker() string {
	return fmt.Sprintf("%s|%d|%d", j.path, j.info.ModTime().UnixNano(), j.info.Size())
}

// Run performs one pass. Each family is processed independently; a family
// failure is reported, never returned. ErrNoResultFiles is returned when no
// configured source has a file.
func (p *Pipeline) Run(ctx context.Context, trigger string) (Report, error) {
	p.metrics.PassStarted(trigger)
	report := Report{Host: p.host}

	jobs, missing := p.discover()
	report.Families = append(report.Families, missing...)
	if len(jobs) == 0 {
		p.logger.Info("no result files found", "trigger", trigger)
		return report, ErrNoResultFiles
	}

	devices := p.inventory.ListDevices(ctx)
	for _, j := range jobs {
		fr, payload := p.runJob(ctx, devices, j)
		report.Families = append(report.Families, fr)
		p.metrics.FamilyOutcome(j.typ, string(fr.Status))

		if dl, ok := payload.(bench.DLSuiteResult); ok && p.sanity != nil {
			report.Sanity = append(report.Sanity, p.checkSanity(ctx, devices, dl)...)
		}
	}

	p.logger.Info("pass completed",
		"trigger", trigger,
		"host", p.host,
		"families", len(report.Families),
		"failed", report.Failed(),
	)
	return report, nil
}

func (p *Pipeline) discover() ([]job, []FamilyReport) {
	var (
		jobs    []job
		missing []FamilyReport
	)
	addFile := func(t bench.Type, path string) {
		if path == "" {
			return
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			missing = append(missing, FamilyReport{Type: t, Path: path, Status: StatusMissing})
			return
		}
		jobs = append(jobs, job{typ: t, path: path, info: info})
	}

	if p.sources.MLPerfCacheDir != "" && len(p.sources.MLPerfModels) > 0 {
		jobs, missing = p.discoverMLPerf(jobs, missing)
	}
	addFile(bench.TypeStress, p.sources.StressPath)
	addFile(bench.TypeHPL, p.sources.HPLPath)
	addFile(bench.TypeHPCG, p.sources.HPCGPath)
	addFile(bench.TypeStream, p.sources.StreamPath)
	addFile(bench.TypeDLSuite, p.sources.DLSuitePath)
	return jobs, missing
}

func (p *Pipeline) discoverMLPerf(jobs []job, missing []FamilyReport) ([]job, []FamilyReport) {
	root, err := MLPerfResultsRoot(p.sources.MLPerfCacheDir)
	if err != nil {
		status := StatusFailed
		if errors.Is(err, errNoMLPerfResults) {
			status = StatusMissing
		} else {
			p.logger.Error("mlperf discovery failed", "error", err)
		}
		return jobs, append(missing, FamilyReport{Type: bench.TypeMLPerf, Path: p.sources.MLPerfCacheDir, Status: status, Err: err})
	}
	for _, model := range p.sources.MLPerfModels {
		path, err := LatestMLPerfSummary(root, model)
		if err != nil {
			missing = append(missing, FamilyReport{Type: bench.TypeMLPerf, Label: model, Path: root, Status: StatusMissing, Err: err})
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			missing = append(missing, FamilyReport{Type: bench.TypeMLPerf, Label: model, Path: path, Status: StatusMissing, Err: err})
			continue
		}
		jobs = append(jobs, job{typ: bench.TypeMLPerf, label: model, path: path, info: info})
	}
	return jobs, missing
}

func (p *Pipeline) runJob(ctx context.Context, devices []bench.Device, j job) (FamilyReport, bench.Payload) {
	fr := FamilyReport{Type: j.typ, Label: j.label, Path: j.path}
	logger := p.logger.With("type", j.typ, "path", j.path)

	marker := j.marker()
	if p.progress != nil {
		prev, err := p.progress.GetProgress(ctx, j.source())
		switch {
		case err == nil && prev.Marker == marker:
			fr.Status = StatusUnchanged
			return fr, nil
		case err != nil && !errors.Is(err, bench.ErrNotFound):
			logger.Warn("read progress failed", "error", err)
		}
	}

	text, err := os.ReadFile(j.path)
	if err != nil {
		fr.Status, fr.Err = StatusFailed, fmt.Errorf("read %s: %w", j.path, err)
		logger.Error("read result file failed", "error", err)
		return fr, nil
	}

	out, err := p.processor.Process(ctx, p.host, devices, ingest.Observation{
		Type:       j.typ,
		Label:      j.label,
		Source:     j.path,
		Text:       string(text),
		ReceivedAt: p.now(),
	})
	fr.Records = len(out.AuditIDs)
	fr.Status = StatusStored
	if err != nil {
		fr.Status, fr.Err = StatusFailed, err
		logger.Error("family processing failed", "stored", fr.Records, "error", err)
		if fr.Records == 0 {
			return fr, nil
		}
		// Some records were stored; mark the file so they are not appended
		// again on the next pass.
	}

	if p.progress != nil {
		if perr := p.progress.SetProgress(ctx, bench.Progress{Source: j.source(), Marker: marker, UpdatedAt: p.now().UTC()}); perr != nil {
			logger.Warn("write progress failed", "error", perr)
		}
	}
	return fr, out.Payload
}

func (p *Pipeline) checkSanity(ctx context.Context, devices []bench.Device, dl bench.DLSuiteResult) []sanity.Result {
	names := make([]string, 0, len(devices))
	for _, d := range devices {
		names = append(names, d.Model)
	}
	models := discovery.ReferenceModels(names)

	observed := dl.Observed()
	var results []sanity.Result
	for _, model := range models {
		res := p.sanity.Comparator.Compare(model, observed, p.sanity.Reference)
		results = append(results, res)
		if p.sanity.Recorder == nil {
			continue
		}
		if _, _, err := p.sanity.Recorder.Record(ctx, res); err != nil {
			p.logger.Error("record sanity result failed", "model", model, "error", err)
			continue
		}
		p.logger.Info("sanity check recorded", "model", model, "targets", len(res.Verdicts), "failures", res.Failures())
	}
	return results
}
