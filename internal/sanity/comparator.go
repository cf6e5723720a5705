// Package sanity checks a device's observed deep-learning timings against a
// reference dataset for its model.
package sanity

import (
	"log/slog"
	"math"
	"sort"

	"github.com/Quok-it/benchmarking/internal/bench"
)

const DefaultTolerance = 50.0

type Comparator struct {
	// Tolerance is the absolute allowed difference in milliseconds, inclusive.
	// It is used as given: zero demands an exact match. Use NewComparator for
	// DefaultTolerance.
	Tolerance float64
	Logger    *slog.Logger
}

// NewComparator returns a Comparator using DefaultTolerance.
func NewComparator(logger *slog.Logger) Comparator {
	return Comparator{Tolerance: DefaultTolerance, Logger: logger}
}

type Result struct {
	DeviceModel string
	Verdicts    map[string]bench.Verdict
	// Excluded lists observed targets the reference does not know.
	Excluded []string
}

// Failures counts failed and missing-data verdicts.
func (r Result) Failures() int {
	n := 0
	for _, v := range r.Verdicts {
		if v != bench.VerdictPassed {
			n++
		}
	}
	return n
}

func (r Result) Passed() bool {
	return r.Failures() == 0
}

// Compare scores every observed target. It has no side effects beyond logging.
func (c Comparator) Compare(model string, observed map[string]bench.ObservedTiming, ref Reference) Result {
	tol := c.Tolerance
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	targets := make([]string, 0, len(observed))
	for name := range observed {
		targets = append(targets, name)
	}
	sort.Strings(targets)

	res := Result{DeviceModel: model, Verdicts: map[string]bench.Verdict{}}
	for _, target := range targets {
		refTarget, ok := ref[target]
		if !ok {
			logger.Info("target not in reference dataset", "target", target)
			res.Excluded = append(res.Excluded, target)
			continue
		}
		obs := observed[target]
		refInf, hasInf := refTarget.Inference[model]
		refTrain, hasTrain := refTarget.Training[model]
		switch {
		case !hasInf:
			logger.Warn("model not in reference dataset", "target", target, "model", model)
			res.Verdicts[target] = bench.VerdictMissingData
		case refInf == nil || !hasTrain || refTrain == nil:
			logger.Warn("reference values missing", "target", target, "model", model)
			res.Verdicts[target] = bench.VerdictMissingData
		case obs.Inference == nil || obs.Training == nil:
			logger.Warn("observed values missing", "target", target, "model", model)
			res.Verdicts[target] = bench.VerdictMissingData
		case within(*obs.Inference, *refInf, tol) && within(*obs.Training, *refTrain, tol):
			res.Verdicts[target] = bench.VerdictPassed
		default:
			logger.Info("sanity check failed", "target", target, "model", model,
				"inference_ms", *obs.Inference, "reference_inference_ms", *refInf,
				"training_ms", *obs.Training, "reference_training_ms", *refTrain)
			res.Verdicts[target] = bench.VerdictFailed
		}
	}
	return res
}

func within(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
