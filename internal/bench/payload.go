package bench

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// Payload is the tagged union stored opaquely in an audit row. Each benchmark
// family has its own variant; BenchmarkType is the tag.
type Payload interface {
	BenchmarkType() Type
	// Metrics returns the numeric values folded into GPU aggregates.
	Metrics() map[string]float64
}

type MLPerfResult struct {
	Model              string  `json:"model"`
	SamplesPerSecond   float64 `json:"samples_per_second"`
	MeanLatencySeconds float64 `json:"mean_latency_seconds"`
	MeanLatencyNS      float64 `json:"mean_latency_ns"`
}

func (MLPerfResult) BenchmarkType() Type { return TypeMLPerf }

func (r MLPerfResult) Metrics() map[string]float64 {
	return map[string]float64{
		"samples_per_second":   r.SamplesPerSecond,
		"mean_latency_seconds": r.MeanLatencySeconds,
	}
}

// StressReport is the whole-file output of the stress extractor: device
// index to normalized status. It is split into one StressResult per device
// before it is stored.
type StressReport map[string]string

func (StressReport) BenchmarkType() Type { return TypeStress }

func (StressReport) Metrics() map[string]float64 { return nil }

type StressResult struct {
	Status   string `json:"status"`
	TestType string `json:"test_type"`
}

func (StressResult) BenchmarkType() Type { return TypeStress }

func (r StressResult) Metrics() map[string]float64 {
	score := 0.0
	if r.Status == "OK" {
		score = 1.0
	}
	return map[string]float64{"reliability_score": score}
}

type HPLPerformance struct {
	N       int     `json:"N"`
	NB      int     `json:"NB"`
	P       int     `json:"P"`
	Q       int     `json:"Q"`
	TimeSec float64 `json:"time_sec"`
	GFLOPS  float64 `json:"gflops"`
}

type HPLAccuracy struct {
	ResidualRatio float64 `json:"residual_ratio"`
	ANorm         float64 `json:"A_norm"`
	XNorm         float64 `json:"x_norm"`
	BNorm         float64 `json:"b_norm"`
	Passed        bool    `json:"passed"`
}

// HPLResult leaves a section nil when the tool did not report it.
type HPLResult struct {
	Performance *HPLPerformance `json:"performance"`
	Accuracy    *HPLAccuracy    `json:"accuracy"`
}

func (HPLResult) BenchmarkType() Type { return TypeHPL }

func (r HPLResult) Metrics() map[string]float64 {
	out := map[string]float64{}
	if r.Performance != nil {
		out["gflops"] = r.Performance.GFLOPS
	}
	return out
}

type Triple [3]int

type HPCGResult struct {
	ProcessGrid           *Triple  `json:"process_grid,omitempty"`
	LocalDomain           *Triple  `json:"local_domain,omitempty"`
	ReferenceIterations   *int     `json:"reference_iterations,omitempty"`
	OptimizedIterations   *int     `json:"optimized_iterations,omitempty"`
	MemoryUsedGB          *float64 `json:"memory_used_GB,omitempty"`
	GflopsRawTotal        *float64 `json:"gflops_raw_total,omitempty"`
	GflopsWithConvergence *float64 `json:"gflops_with_convergence,omitempty"`
	GflopsFinal           *float64 `json:"gflops_final,omitempty"`
	Valid                 bool     `json:"hpcg_valid"`
	Rating                *float64 `json:"hpcg_rating,omitempty"`
}

func (HPCGResult) BenchmarkType() Type { return TypeHPCG }

func (r HPCGResult) Metrics() map[string]float64 {
	out := map[string]float64{}
	if r.Rating != nil {
		out["hpcg_rating"] = *r.Rating
	}
	return out
}

type StreamKernel struct {
	RateMBps   float64 `json:"rate_MBps"`
	AvgTimeSec float64 `json:"avg_time_sec"`
	MinTimeSec float64 `json:"min_time_sec"`
	MaxTimeSec float64 `json:"max_time_sec"`
}

// StreamKernels are the kernel rows STREAM reports.
var StreamKernels = []string{"Copy", "Scale", "Add", "Triad"}

type StreamResult struct {
	DeviceName        string                  `json:"device_name,omitempty"`
	BusWidthBits      *int                    `json:"bus_width_bits"`
	PeakBandwidthGBps *float64                `json:"peak_bandwidth_gbps"`
	ArraySizeMB       *float64                `json:"array_size_mb"`
	Kernels           map[string]StreamKernel `json:"tests"`
}

func (StreamResult) BenchmarkType() Type { return TypeStream }

func (r StreamResult) Metrics() map[string]float64 {
	out := make(map[string]float64, len(r.Kernels))
	for name, k := range r.Kernels {
		out[strings.ToLower(name)+"_bandwidth_mbps"] = k.RateMBps
	}
	return out
}

type DLTiming struct {
	Test   string   `json:"test,omitempty"`
	Params string   `json:"params,omitempty"`
	MeanMS float64  `json:"mean_ms"`
	StdMS  *float64 `json:"std_ms,omitempty"`
}

type DLModelResult struct {
	Index     int        `json:"index"`
	Inference []DLTiming `json:"inference,omitempty"`
	Training  []DLTiming `json:"training,omitempty"`
}

// InferenceTime is the mean of the model's first inference test.
func (m DLModelResult) InferenceTime() (float64, bool) {
	if len(m.Inference) == 0 {
		return 0, false
	}
	return m.Inference[0].MeanMS, true
}

// TrainingTime is the mean of the model's first training test.
func (m DLModelResult) TrainingTime() (float64, bool) {
	if len(m.Training) == 0 {
		return 0, false
	}
	return m.Training[0].MeanMS, true
}

type DLSuiteResult struct {
	Models         map[string]DLModelResult `json:"models"`
	InferenceScore *float64                 `json:"inference_score,omitempty"`
	TrainingScore  *float64                 `json:"training_score,omitempty"`
	AIScore        *float64                 `json:"ai_score,omitempty"`
}

func (DLSuiteResult) BenchmarkType() Type { return TypeDLSuite }

func (r DLSuiteResult) Metrics() map[string]float64 {
	out := map[string]float64{}
	for name, m := range r.Models {
		slug := MetricSlug(name)
		if v, ok := m.InferenceTime(); ok {
			out[slug+"_inference_ms"] = v
		}
		if v, ok := m.TrainingTime(); ok {
			out[slug+"_training_ms"] = v
		}
	}
	if r.InferenceScore != nil {
		out["inference_score"] = *r.InferenceScore
	}
	if r.TrainingScore != nil {
		out["training_score"] = *r.TrainingScore
	}
	if r.AIScore != nil {
		out["ai_score"] = *r.AIScore
	}
	return out
}

// ObservedTiming is one target's measured timings as seen by the sanity check.
type ObservedTiming struct {
	Inference *float64 `json:"Inference time"`
	Training  *float64 `json:"Training time"`
}

func (r DLSuiteResult) Observed() map[string]ObservedTiming {
	out := make(map[string]ObservedTiming, len(r.Models))
	for name, m := range r.Models {
		var obs ObservedTiming
		if v, ok := m.InferenceTime(); ok {
			obs.Inference = &v
		}
		if v, ok := m.TrainingTime(); ok {
			obs.Training = &v
		}
		out[name] = obs
	}
	return out
}

// MetricSlug lowercases name and collapses every run of non-alphanumerics
// into one underscore: "SRCNN 9-5-5" becomes "srcnn_9_5_5".
func MetricSlug(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// DecodePayload restores the concrete payload variant for t.
func DecodePayload(t Type, data []byte) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch t {
	case TypeMLPerf:
		var v MLPerfResult
		err = json.Unmarshal(data, &v)
		p = v
	case TypeStress:
		var v StressResult
		err = json.Unmarshal(data, &v)
		p = v
	case TypeHPL:
		var v HPLResult
		err = json.Unmarshal(data, &v)
		p = v
	case TypeHPCG:
		var v HPCGResult
		err = json.Unmarshal(data, &v)
		p = v
	case TypeStream:
		var v StreamResult
		err = json.Unmarshal(data, &v)
		p = v
	case TypeDLSuite:
		var v DLSuiteResult
		err = json.Unmarshal(data, &v)
		p = v
	default:
		return nil, fmt.Errorf("decode payload: unknown benchmark type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return p, nil
}

func (r *RawBenchmarkResult) UnmarshalJSON(data []byte) error {
	type plain RawBenchmarkResult
	var aux struct {
		plain
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = RawBenchmarkResult(aux.plain)
	if len(aux.Payload) == 0 || string(aux.Payload) == "null" {
		r.Payload = nil
		return nil
	}
	p, err := DecodePayload(r.Type, aux.Payload)
	if err != nil {
		return err
	}
	r.Payload = p
	return nil
}
