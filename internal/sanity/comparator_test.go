package sanity

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/Quok-it/benchmarking/internal/bench"
)

const model = "GeForce RTX 4090"

func ptr(v float64) *float64 { return &v }

func quiet() Comparator {
	return NewComparator(slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func refFor(inf, train *float64) Reference {
	return Reference{
		"ResNet-V2-50": {
			Inference: Timings{model: inf},
			Training:  Timings{model: train},
		},
	}
}

func observe(inf, train *float64) map[string]bench.ObservedTiming {
	return map[string]bench.ObservedTiming{"ResNet-V2-50": {Inference: inf, Training: train}}
}

func TestCompareToleranceBoundary(t *testing.T) {
	t.Parallel()

	ref := refFor(ptr(100), ptr(200))
	cases := []struct {
		name    string
		inf, tr float64
		want    bench.Verdict
	}{
		{"close", 149, 200, bench.VerdictPassed},
		{"exactly tolerance", 150, 250, bench.VerdictPassed},
		{"below reference", 50, 150, bench.VerdictPassed},
		{"inference out", 151, 200, bench.VerdictFailed},
		{"training out", 100, 251, bench.VerdictFailed},
	}
	for _, tc := range cases {
		res := quiet().Compare(model, observe(ptr(tc.inf), ptr(tc.tr)), ref)
		assert.Equal(t, tc.want, res.Verdicts["ResNet-V2-50"], tc.name)
	}
}

func TestCompareMissingData(t *testing.T) {
	t.Parallel()

	res := quiet().Compare("GeForce RTX 3060", observe(ptr(100), ptr(200)), refFor(ptr(100), ptr(200)))
	assert.Equal(t, bench.VerdictMissingData, res.Verdicts["ResNet-V2-50"])
	assert.Equal(t, 1, res.Failures())

	res = quiet().Compare(model, observe(ptr(100), ptr(200)), refFor(ptr(100), nil))
	assert.Equal(t, bench.VerdictMissingData, res.Verdicts["ResNet-V2-50"])

	res = quiet().Compare(model, observe(ptr(100), nil), refFor(ptr(100), ptr(200)))
	assert.Equal(t, bench.VerdictMissingData, res.Verdicts["ResNet-V2-50"])
	assert.False(t, res.Passed())
}

func TestCompareExcludesUnknownTargets(t *testing.T) {
	t.Parallel()

	observed := observe(ptr(100), ptr(200))
	observed["VGG-16"] = bench.ObservedTiming{Inference: ptr(1), Training: ptr(2)}

	res := quiet().Compare(model, observed, refFor(ptr(100), ptr(200)))
	assert.Equal(t, []string{"VGG-16"}, res.Excluded)
	assert.Len(t, res.Verdicts, 1)
	assert.True(t, res.Passed())
}

func TestCompareCustomTolerance(t *testing.T) {
	t.Parallel()

	c := quiet()
	c.Tolerance = 5
	res := c.Compare(model, observe(ptr(106), ptr(200)), refFor(ptr(100), ptr(200)))
	assert.Equal(t, bench.VerdictFailed, res.Verdicts["ResNet-V2-50"])
}

func TestCompareZeroToleranceRequiresExactMatch(t *testing.T) {
	t.Parallel()

	c := quiet()
	c.Tolerance = 0
	ref := refFor(ptr(4.1), ptr(20.5))

	res := c.Compare(model, observe(ptr(14.1), ptr(20.5)), ref)
	assert.Equal(t, bench.VerdictFailed, res.Verdicts["ResNet-V2-50"])

	res = c.Compare(model, observe(ptr(4.1), ptr(20.5)), ref)
	assert.Equal(t, bench.VerdictPassed, res.Verdicts["ResNet-V2-50"])
}

func TestNewComparatorUsesDefaultTolerance(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultTolerance, NewComparator(nil).Tolerance)
}

func TestProperty_VerdictMatchesDistance(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("passed iff both differences are within tolerance", prop.ForAll(
		func(ref, dInf, dTrain float64) bool {
			obsInf, obsTrain := ref+dInf, ref+dTrain
			res := quiet().Compare(model, observe(&obsInf, &obsTrain), refFor(&ref, &ref))
			want := bench.VerdictFailed
			if math.Abs(obsInf-ref) <= DefaultTolerance && math.Abs(obsTrain-ref) <= DefaultTolerance {
				want = bench.VerdictPassed
			}
			return res.Verdicts["ResNet-V2-50"] == want
		},
		gen.Float64Range(0, 5000),
		gen.Float64Range(-120, 120),
		gen.Float64Range(-120, 120),
	))

	properties.TestingRun(t)
}
