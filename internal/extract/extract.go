// Package extract turns the text output of benchmark tools into typed
// payloads. Extractors are pure: they see only the text they are given.
package extract

import (
	"fmt"
	"strconv"

	"github.com/Quok-it/benchmarking/internal/bench"
)

// Extract dispatches text to the extractor for t. label names the workload
// where the format does not carry it (the MLPerf model).
func Extract(t bench.Type, label, text string) (bench.Payload, error) {
	switch t {
	case bench.TypeMLPerf:
		return MLPerf(label, text)
	case bench.TypeStress:
		return Stress(text), nil
	case bench.TypeHPL:
		return HPL(text)
	case bench.TypeHPCG:
		return HPCG(text)
	case bench.TypeStream:
		return Stream(text)
	case bench.TypeDLSuite:
		return DLSuite(text)
	default:
		return nil, fmt.Errorf("extract: unknown benchmark type %q", t)
	}
}

func parseFloat(t bench.Type, field, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &bench.MalformedValueError{Type: t, Field: field, Value: raw, Err: err}
	}
	return v, nil
}

func parseInt(t bench.Type, field, raw string) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &bench.MalformedValueError{Type: t, Field: field, Value: raw, Err: err}
	}
	return v, nil
}

// fieldParser accumulates the first parse failure so a block of fields can be
// converted without an error check per line.
type fieldParser struct {
	t   bench.Type
	err error
}

func (p *fieldParser) toFloat(field, raw string) float64 {
	if p.err != nil {
		return 0
	}
	v, err := parseFloat(p.t, field, raw)
	p.err = err
	return v
}

func (p *fieldParser) toInt(field, raw string) int {
	if p.err != nil {
		return 0
	}
	v, err := parseInt(p.t, field, raw)
	p.err = err
	return v
}
