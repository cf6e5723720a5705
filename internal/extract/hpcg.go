package extract

import (
	"regexp"

	"github.com/Quok-it/benchmarking/internal/bench"
)

var (
	hpcgGridRE       = regexp.MustCompile(`Process Grid: (\d+)x(\d+)x(\d+)`)
	hpcgDomainRE     = regexp.MustCompile(`Local Domain: (\d+)x(\d+)x(\d+)`)
	hpcgIterationsRE = regexp.MustCompile(`(?s)Iteration Count Information::Total number of reference iterations=(\d+).*?Total number of optimized iterations=(\d+)`)
	hpcgMemoryRE     = regexp.MustCompile(`Total memory used for data \(Gbytes\)=(\d+\.\d+)`)
	hpcgGflopsRE     = regexp.MustCompile(`(?s)GFLOP/s Summary::Raw Total=(\d+\.\d+).*?Total with convergence overhead=(\d+\.\d+).*?overhead=.*?=\s*(\d+\.\d+)`)
	hpcgValidRE      = regexp.MustCompile(`Final Summary::HPCG result is VALID.*?GFLOP/s rating of=(\d+\.\d+)`)
)

// HPCG extracts each section on its own. Unlike the optional sections, a
// missing VALID marker is reported as Valid=false.
func HPCG(text string) (bench.HPCGResult, error) {
	var out bench.HPCGResult
	p := fieldParser{t: bench.TypeHPCG}

	triple := func(field string, m []string) *bench.Triple {
		t := bench.Triple{p.toInt(field, m[1]), p.toInt(field, m[2]), p.toInt(field, m[3])}
		return &t
	}
	float := func(field, raw string) *float64 {
		v := p.toFloat(field, raw)
		return &v
	}
	integer := func(field, raw string) *int {
		v := p.toInt(field, raw)
		return &v
	}

	if m := hpcgGridRE.FindStringSubmatch(text); m != nil {
		out.ProcessGrid = triple("process_grid", m)
	}
	if m := hpcgDomainRE.FindStringSubmatch(text); m != nil {
		out.LocalDomain = triple("local_domain", m)
	}
	if m := hpcgIterationsRE.FindStringSubmatch(text); m != nil {
		out.ReferenceIterations = integer("reference_iterations", m[1])
		out.OptimizedIterations = integer("optimized_iterations", m[2])
	}
	if m := hpcgMemoryRE.FindStringSubmatch(text); m != nil {
		out.MemoryUsedGB = float("memory_used_GB", m[1])
	}
	if m := hpcgGflopsRE.FindStringSubmatch(text); m != nil {
		out.GflopsRawTotal = float("gflops_raw_total", m[1])
		out.GflopsWithConvergence = float("gflops_with_convergence", m[2])
		out.GflopsFinal = float("gflops_final", m[3])
	}
	if m := hpcgValidRE.FindStringSubmatch(text); m != nil {
		out.Valid = true
		out.Rating = float("hpcg_rating", m[1])
	}
	if p.err != nil {
		return bench.HPCGResult{}, p.err
	}
	return out, nil
}
