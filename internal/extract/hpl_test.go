package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hplOutput = `================================================================================
T/V                N    NB     P     Q               Time                 Gflops
--------------------------------------------------------------------------------
WC0            92160   288     1     1              62.04              8.413e+03
HPL_pdgesv() start time Mon Jan  6 10:00:00 2025

HPL_pdgesv() end time   Mon Jan  6 10:01:02 2025

--------------------------------------------------------------------------------
||Ax-b||_oo/(eps*(||A||_oo*||x||_oo+||b||_oo)*N)=   2.58387535e-03 ...... PASSED
||Ax-b||_oo  . . . . . . . . . . . . . . . . . =        1.3258e-09
||A||_oo . . . . . . . . . . . . . . . . . . . =        23045.81
||A||_1  . . . . . . . . . . . . . . . . . . . =        23012.17
||x||_oo . . . . . . . . . . . . . . . . . . . =            9.87
||x||_1  . . . . . . . . . . . . . . . . . . . =         1211.04
||b||_oo . . . . . . . . . . . . . . . . . . . =          0.4999
================================================================================
`

func TestHPLExtractsPerformanceAndAccuracy(t *testing.T) {
	t.Parallel()

	got, err := HPL(hplOutput)
	require.NoError(t, err)
	require.NotNil(t, got.Performance)
	assert.Equal(t, 92160, got.Performance.N)
	assert.Equal(t, 288, got.Performance.NB)
	assert.Equal(t, 1, got.Performance.P)
	assert.Equal(t, 1, got.Performance.Q)
	assert.Equal(t, 62.04, got.Performance.TimeSec)
	assert.Equal(t, 8413.0, got.Performance.GFLOPS)

	require.NotNil(t, got.Accuracy)
	assert.Equal(t, 2.58387535e-03, got.Accuracy.ResidualRatio)
	assert.Equal(t, 23045.81, got.Accuracy.ANorm)
	assert.Equal(t, 9.87, got.Accuracy.XNorm)
	assert.Equal(t, 0.4999, got.Accuracy.BNorm)
	assert.True(t, got.Accuracy.Passed)

	assert.Equal(t, map[string]float64{"gflops": 8413.0}, got.Metrics())
}

func TestHPLMissingSectionsAreNil(t *testing.T) {
	t.Parallel()

	got, err := HPL("WR11C2R4   1000   128   2   2   0.50   1.2e+00\n")
	require.NoError(t, err)
	require.NotNil(t, got.Performance)
	assert.Equal(t, 1000, got.Performance.N)
	assert.Nil(t, got.Accuracy)

	empty, err := HPL("nothing useful here")
	require.NoError(t, err)
	assert.Nil(t, empty.Performance)
	assert.Nil(t, empty.Accuracy)
	assert.Empty(t, empty.Metrics())
}

func TestHPLMalformedTime(t *testing.T) {
	t.Parallel()

	_, err := HPL("WC0   1000   128   2   2   1.2.3   1.2e+00\n")
	require.Error(t, err)
}

func TestHPLResultRowVariants(t *testing.T) {
	t.Parallel()

	const row = "   1000   128   2   2   0.50   1.2e+00\n"
	for _, code := range []string{"WC0", "WC00C2R4", "WR11C2R4", "WR03L2L2"} {
		got, err := HPL("T/V  N  NB  P  Q  Time  Gflops\n" + code + row)
		require.NoError(t, err, code)
		require.NotNil(t, got.Performance, code)
		assert.Equal(t, 1000, got.Performance.N, code)
	}
	for _, text := range []string{"WRONG" + row, "WC" + row, "  xWC0" + row} {
		got, err := HPL(text)
		require.NoError(t, err, text)
		assert.Nil(t, got.Performance, text)
	}
}
