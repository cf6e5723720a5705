// Package aggregate maintains running per-device metric statistics.
package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/Quok-it/benchmarking/internal/bench"
)

// Store applies one observation to the row for key atomically. The engine is
// the only writer of aggregate rows.
type Store interface {
	UpsertAggregate(ctx context.Context, key bench.AggregateKey, value float64, at time.Time) error
	ListAggregates(ctx context.Context, filter bench.AggregateFilter) ([]bench.Aggregate, error)
}

type Engine struct {
	store Store
	now   func() time.Time
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// Update folds value into the aggregate for (id, metric). Values that are not
// finite numbers are rejected with *bench.InvalidMetricError before the store
// is touched.
func (e *Engine) Update(ctx context.Context, id bench.Identity, metric string, value any) error {
	v, ok := toFloat(value)
	if !ok {
		return &bench.InvalidMetricError{Metric: metric, Value: value}
	}
	key := bench.AggregateKey{Identity: id, Metric: metric}
	if err := e.store.UpsertAggregate(ctx, key, v, e.now().UTC()); err != nil {
		return &bench.StorageError{Op: "upsert aggregate " + key.String(), Err: err}
	}
	return nil
}

// UpdateAll applies every metric in metrics, in name order. A failing metric
// does not stop the others; the failures are joined.
func (e *Engine) UpdateAll(ctx context.Context, id bench.Identity, metrics map[string]float64) error {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if err := e.Update(ctx, id, name, metrics[name]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) List(ctx context.Context, filter bench.AggregateFilter) ([]bench.Aggregate, error) {
	aggs, err := e.store.ListAggregates(ctx, filter)
	if err != nil {
		return nil, &bench.StorageError{Op: "list aggregates", Err: err}
	}
	return aggs, nil
}

func toFloat(value any) (float64, bool) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
