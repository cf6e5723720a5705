package extract

import (
	"regexp"

	"github.com/Quok-it/benchmarking/internal/bench"
)

var (
	streamDeviceRE = regexp.MustCompile(`(?s)Device 0: "([^"]+)"\s+\d+\s+SMs.*?Memory:\s+(\d+)MHz x (\d+)-bit\s+=\s+([\d.]+)\s+GB/s`)
	streamArrayRE  = regexp.MustCompile(`Array size \(double\)=.*\(([\d.]+)\s+MB\)`)
	streamKernelRE = regexp.MustCompile(`(?m)^\s*(Copy|Scale|Add|Triad):\s+([\d.]+)\s+([\d.]+)\s+([\d.]+)\s+([\d.]+)`)
)

// Stream extracts the device banner, array size and kernel table of a CUDA
// STREAM run. Kernel rows may appear in any order.
func Stream(text string) (bench.StreamResult, error) {
	out := bench.StreamResult{Kernels: map[string]bench.StreamKernel{}}
	p := fieldParser{t: bench.TypeStream}

	if m := streamDeviceRE.FindStringSubmatch(text); m != nil {
		out.DeviceName = m[1]
		width := p.toInt("bus_width_bits", m[3])
		peak := p.toFloat("peak_bandwidth_gbps", m[4])
		out.BusWidthBits = &width
		out.PeakBandwidthGBps = &peak
	}
	if m := streamArrayRE.FindStringSubmatch(text); m != nil {
		size := p.toFloat("array_size_mb", m[1])
		out.ArraySizeMB = &size
	}
	for _, m := range streamKernelRE.FindAllStringSubmatch(text, -1) {
		out.Kernels[m[1]] = bench.StreamKernel{
			RateMBps:   p.toFloat(m[1]+".rate_MBps", m[2]),
			AvgTimeSec: p.toFloat(m[1]+".avg_time_sec", m[3]),
			MinTimeSec: p.toFloat(m[1]+".min_time_sec", m[4]),
			MaxTimeSec: p.toFloat(m[1]+".max_time_sec", m[5]),
		}
	}
	if p.err != nil {
		return bench.StreamResult{}, p.err
	}
	return out, nil
}
