package sanity

import (
	"context"
	"time"

	"github.com/Quok-it/benchmarking/internal/bench"
	"github.com/Quok-it/benchmarking/internal/metrics"
)

type Store interface {
	InsertSanityResult(ctx context.Context, res bench.SanityResult) error
	LatestSanityResult(ctx context.Context, model string) (bench.SanityResult, error)
}

// Recorder persists comparator results. Every call inserts a new verdict set.
type Recorder struct {
	store   Store
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewRecorder(store Store, m *metrics.Metrics) *Recorder {
	return &Recorder{store: store, metrics: m, now: time.Now}
}

// Record stores res and reports whether anything was written. A result with
// no verdicts is not stored.
func (r *Recorder) Record(ctx context.Context, res Result) (bench.SanityResult, bool, error) {
	if len(res.Verdicts) == 0 {
		return bench.SanityResult{}, false, nil
	}
	row := bench.SanityResult{
		DeviceModel: res.DeviceModel,
		CheckedAt:   r.now().UTC().Truncate(time.Millisecond),
		Verdicts:    res.Verdicts,
	}
	if err := r.store.InsertSanityResult(ctx, row); err != nil {
		return bench.SanityResult{}, false, &bench.StorageError{Op: "insert sanity result " + res.DeviceModel, Err: err}
	}
	r.metrics.SanityVerdicts(res.Verdicts)
	return row, true, nil
}

func (r *Recorder) Latest(ctx context.Context, model string) (bench.SanityResult, error) {
	return r.store.LatestSanityResult(ctx, model)
}
