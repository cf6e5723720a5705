package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const streamOutput = ` STREAM Benchmark implementation in CUDA
 Array size (double)=134217728 (1024.0 MB)
 using 1024 threads per block, 131072 blocks
Device 0: "NVIDIA GeForce RTX 4090"  128 SMs(8.9)
  Memory:   10501MHz x 384-bit = 1008.1 GB/s PEAK ECC is OFF
-------------------------------------------------------------
Function      Rate (MB/s)   Avg time     Min time     Max time
Triad:        931102.5      0.003462     0.003459     0.003467
Copy:         915331.1      0.002347     0.002345     0.002351
Scale:        917184.9      0.002343     0.002341     0.002346
`

func TestStreamExtractsDeviceAndKernels(t *testing.T) {
	t.Parallel()

	got, err := Stream(streamOutput)
	require.NoError(t, err)
	assert.Equal(t, "NVIDIA GeForce RTX 4090", got.DeviceName)
	require.NotNil(t, got.BusWidthBits)
	assert.Equal(t, 384, *got.BusWidthBits)
	require.NotNil(t, got.PeakBandwidthGBps)
	assert.Equal(t, 1008.1, *got.PeakBandwidthGBps)
	require.NotNil(t, got.ArraySizeMB)
	assert.Equal(t, 1024.0, *got.ArraySizeMB)

	require.Len(t, got.Kernels, 3)
	assert.NotContains(t, got.Kernels, "Add")
	triad := got.Kernels["Triad"]
	assert.Equal(t, 931102.5, triad.RateMBps)
	assert.Equal(t, 0.003462, triad.AvgTimeSec)
	assert.Equal(t, 0.003459, triad.MinTimeSec)
	assert.Equal(t, 0.003467, triad.MaxTimeSec)

	assert.Equal(t, map[string]float64{
		"triad_bandwidth_mbps": 931102.5,
		"copy_bandwidth_mbps":  915331.1,
		"scale_bandwidth_mbps": 917184.9,
	}, got.Metrics())
}

func TestStreamWithoutBanner(t *testing.T) {
	t.Parallel()

	got, err := Stream("Add:  100.0  1.0  1.0  1.0\n")
	require.NoError(t, err)
	assert.Empty(t, got.DeviceName)
	assert.Nil(t, got.BusWidthBits)
	assert.Nil(t, got.ArraySizeMB)
	assert.Contains(t, got.Kernels, "Add")
}
