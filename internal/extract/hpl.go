package extract

import (
	"regexp"

	"github.com/Quok-it/benchmarking/internal/bench"
)

var (
	// Result rows start at column 0 with the variant code: the short "WC0" of
	// the NVIDIA build or a full netlib code such as "WC00C2R4" or "WR11L2L2".
	// A digit must follow W[RC], so words like "WRONG" never match.
	hplPerformanceRE = regexp.MustCompile(`(?m)^W[RC]\d[0-9A-Z]*\s+(\d+)\s+(\d+)\s+(\d+)\s+(\d+)\s+([\d.]+)\s+([\d.eE+-]+)`)
	hplAccuracyRE    = regexp.MustCompile(`(?s)\|\|Ax-b\|\|_oo.*?=\s+([\deE.+-]+).*?PASSED.*?\|\|A\|\|_oo.*?=\s+([\deE.+-]+).*?\|\|x\|\|_oo.*?=\s+([\deE.+-]+).*?\|\|b\|\|_oo.*?=\s+([\deE.+-]+)`)
)

// HPL extracts the first result row and the residual block. Either section is
// nil when the output does not contain it.
func HPL(text string) (bench.HPLResult, error) {
	var out bench.HPLResult
	p := fieldParser{t: bench.TypeHPL}

	if m := hplPerformanceRE.FindStringSubmatch(text); m != nil {
		perf := bench.HPLPerformance{
			N:       p.toInt("N", m[1]),
			NB:      p.toInt("NB", m[2]),
			P:       p.toInt("P", m[3]),
			Q:       p.toInt("Q", m[4]),
			TimeSec: p.toFloat("time_sec", m[5]),
			GFLOPS:  p.toFloat("gflops", m[6]),
		}
		if p.err != nil {
			return bench.HPLResult{}, p.err
		}
		out.Performance = &perf
	}

	if m := hplAccuracyRE.FindStringSubmatch(text); m != nil {
		acc := bench.HPLAccuracy{
			ResidualRatio: p.toFloat("residual_ratio", m[1]),
			ANorm:         p.toFloat("A_norm", m[2]),
			XNorm:         p.toFloat("x_norm", m[3]),
			BNorm:         p.toFloat("b_norm", m[4]),
			Passed:        true,
		}
		if p.err != nil {
			return bench.HPLResult{}, p.err
		}
		out.Accuracy = &acc
	}
	return out, nil
}
