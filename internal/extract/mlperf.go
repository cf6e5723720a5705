package extract

import (
	"bufio"
	"strings"

	"github.com/Quok-it/benchmarking/internal/bench"
)

const (
	mlperfSamplesKey = "Samples per second"
	mlperfLatencyKey = "Mean latency (ns)"
)

// MLPerf reads the two required lines of an mlperf_log_summary.txt. A repeated
// line overwrites the earlier value.
func MLPerf(model, text string) (bench.MLPerfResult, error) {
	var (
		samples, latencyNS       float64
		haveSamples, haveLatency bool
	)
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.Contains(line, mlperfSamplesKey):
			v, err := parseFloat(bench.TypeMLPerf, "samples_per_second", valueAfterColon(line))
			if err != nil {
				return bench.MLPerfResult{}, err
			}
			samples, haveSamples = v, true
		case strings.Contains(line, mlperfLatencyKey):
			v, err := parseFloat(bench.TypeMLPerf, "mean_latency_ns", valueAfterColon(line))
			if err != nil {
				return bench.MLPerfResult{}, err
			}
			latencyNS, haveLatency = v, true
		}
	}
	if err := sc.Err(); err != nil {
		return bench.MLPerfResult{}, err
	}
	if !haveSamples {
		return bench.MLPerfResult{}, &bench.MissingFieldError{Type: bench.TypeMLPerf, Field: mlperfSamplesKey}
	}
	if !haveLatency {
		return bench.MLPerfResult{}, &bench.MissingFieldError{Type: bench.TypeMLPerf, Field: mlperfLatencyKey}
	}
	return bench.MLPerfResult{
		Model:              model,
		SamplesPerSecond:   samples,
		MeanLatencySeconds: latencyNS / 1e9,
		MeanLatencyNS:      latencyNS,
	}, nil
}

func valueAfterColon(line string) string {
	_, after, found := strings.Cut(line, ":")
	if !found {
		return ""
	}
	return strings.TrimSpace(after)
}
