package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Quok-it/benchmarking/internal/bench"
)

func TestExtractDispatchesByType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		typ  bench.Type
		text string
	}{
		{bench.TypeMLPerf, mlperfSummary},
		{bench.TypeStress, "GPU 0: OK\n"},
		{bench.TypeHPL, hplOutput},
		{bench.TypeHPCG, hpcgOutput},
		{bench.TypeStream, streamOutput},
		{bench.TypeDLSuite, dlOutput},
	}
	for _, tc := range cases {
		got, err := Extract(tc.typ, "bert-99", tc.text)
		require.NoError(t, err, "type %s", tc.typ)
		assert.Equal(t, tc.typ, got.BenchmarkType())
	}
}

func TestExtractUnknownType(t *testing.T) {
	t.Parallel()

	_, err := Extract(bench.Type("linpack"), "", "")
	require.Error(t, err)
}
