package sanity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Quok-it/benchmarking/internal/bench"
)

// Timings maps a GPU model to a reference time in milliseconds. A nil value
// means the dataset lists the model without a measurement.
type Timings map[string]*float64

type ReferenceTarget struct {
	Inference Timings `yaml:"Inference time" json:"Inference time"`
	Training  Timings `yaml:"Training time" json:"Training time"`
}

// Reference is the published per-target, per-model dataset observed timings
// are checked against.
type Reference map[string]ReferenceTarget

// decode reads JSON documents with encoding/json, since tab-indented JSON is
// not valid YAML, and everything else as YAML.
func decode(data []byte, v any) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return json.Unmarshal(trimmed, v)
	}
	return yaml.Unmarshal(data, v)
}

// ParseReference accepts YAML or JSON.
func ParseReference(data []byte) (Reference, error) {
	var ref Reference
	if err := decode(data, &ref); err != nil {
		return nil, fmt.Errorf("parse reference dataset: %w", err)
	}
	if ref == nil {
		ref = Reference{}
	}
	return ref, nil
}

func LoadReference(path string) (Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference dataset: %w", err)
	}
	return ParseReference(data)
}

type observedTarget struct {
	Inference *float64 `yaml:"Inference time" json:"Inference time"`
	Training  *float64 `yaml:"Training time" json:"Training time"`
}

type observedDoc struct {
	DL map[string]observedTarget `yaml:"DL" json:"DL"`
}

// ParseObserved reads a results document shaped {"DL": {target: {"Inference
// time": v, "Training time": v}}}. Targets with no timings are kept with nil
// values so they score as missing data.
func ParseObserved(data []byte) (map[string]bench.ObservedTiming, error) {
	var doc observedDoc
	if err := decode(data, &doc); err != nil {
		return nil, fmt.Errorf("parse observed results: %w", err)
	}
	if doc.DL == nil {
		return nil, fmt.Errorf("parse observed results: no DL section")
	}
	out := make(map[string]bench.ObservedTiming, len(doc.DL))
	for name, t := range doc.DL {
		out[name] = bench.ObservedTiming{Inference: t.Inference, Training: t.Training}
	}
	return out, nil
}

func LoadObserved(path string) (map[string]bench.ObservedTiming, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read observed results: %w", err)
	}
	return ParseObserved(data)
}
