package bench

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Type string

const (
	TypeMLPerf  Type = "mlperf"
	TypeStress  Type = "stress"
	TypeHPL     Type = "hpl"
	TypeHPCG    Type = "hpcg"
	TypeStream  Type = "stream"
	TypeDLSuite Type = "dl-suite"
)

// Types lists every benchmark family in the order a pass processes them.
var Types = []Type{TypeMLPerf, TypeStress, TypeHPL, TypeHPCG, TypeStream, TypeDLSuite}

func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// ParseType accepts the canonical names plus the aliases the benchmark tools
// were historically stored under ("gpu_burn", "dl_suite", "ai-benchmark").
func ParseType(s string) (Type, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	switch normalized {
	case "gpu_burn", "gpu-burn":
		return TypeStress, nil
	case "dl_suite", "dlsuite", "ai-benchmark", "ai_benchmark":
		return TypeDLSuite, nil
	}
	t := Type(normalized)
	if !t.Valid() {
		return "", fmt.Errorf("unknown benchmark type %q", s)
	}
	return t, nil
}

// Device is one accelerator as reported by discovery.
type Device struct {
	ID    string `json:"gpu_id"`
	Model string `json:"gpu_model"`
	UUID  string `json:"gpu_uuid,omitempty"`
}

const UnknownModel = "Unknown GPU"

// Identity names the unit a record or aggregate belongs to.
type Identity struct {
	Host        string `json:"host"`
	DeviceID    string `json:"device_id"`
	DeviceModel string `json:"device_model"`
	Type        Type   `json:"benchmark_type"`
}

func (id Identity) Validate() error {
	var missing []string
	if id.Host == "" {
		missing = append(missing, "host")
	}
	if id.DeviceID == "" {
		missing = append(missing, "device_id")
	}
	if id.DeviceModel == "" {
		missing = append(missing, "device_model")
	}
	if len(missing) > 0 {
		return fmt.Errorf("identity missing %s", strings.Join(missing, ", "))
	}
	if !id.Type.Valid() {
		return fmt.Errorf("identity has unknown benchmark type %q", id.Type)
	}
	return nil
}

// RawBenchmarkResult is one immutable audit row.
type RawBenchmarkResult struct {
	AuditID    string    `json:"audit_id"`
	Identity              // host, device, type
	Payload    Payload   `json:"payload"`
	CapturedAt time.Time `json:"captured_at"`
}

// ResultRow is an audit row in its JSON wire form together with its insertion
// sequence, which the pusher uses as a cursor.
type ResultRow struct {
	Seq     int64
	AuditID string
	Type    Type
	Data    json.RawMessage
}

// AggregateKey is the upsert key of a GPU aggregate row.
type AggregateKey struct {
	Identity
	Metric string `json:"metric_name"`
}

func (k AggregateKey) String() string {
	return k.Host + "/" + k.DeviceID + "/" + k.DeviceModel + "/" + string(k.Type) + "/" + k.Metric
}

// Aggregate holds running statistics for one metric of one device.
type Aggregate struct {
	AggregateKey
	Count         int64     `json:"count"`
	Sum           float64   `json:"sum"`
	Min           float64   `json:"min"`
	Max           float64   `json:"max"`
	LastValue     float64   `json:"last_value"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

func NewAggregate(key AggregateKey, value float64, at time.Time) Aggregate {
	return Aggregate{
		AggregateKey:  key,
		Count:         1,
		Sum:           value,
		Min:           value,
		Max:           value,
		LastValue:     value,
		LastUpdatedAt: at,
	}
}

// Apply folds one observation into a and returns the result.
func (a Aggregate) Apply(value float64, at time.Time) Aggregate {
	if a.Count == 0 {
		return NewAggregate(a.AggregateKey, value, at)
	}
	a.Count++
	a.Sum += value
	if value < a.Min {
		a.Min = value
	}
	if value > a.Max {
		a.Max = value
	}
	a.LastValue = value
	a.LastUpdatedAt = at
	return a
}

func (a Aggregate) Mean() float64 {
	if a.Count == 0 {
		return 0
	}
	return a.Sum / float64(a.Count)
}

// AggregateFilter narrows aggregate listings. Empty fields match everything.
type AggregateFilter struct {
	Host        string
	DeviceModel string
	Type        Type
	Metric      string
}

// Progress marks how far ingestion has progressed for one source.
type Progress struct {
	Source    string    `json:"source"`
	Marker    string    `json:"marker"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Verdict string

const (
	VerdictPassed      Verdict = "passed"
	VerdictFailed      Verdict = "failed"
	VerdictMissingData Verdict = "missing-data"
)

// SanityResult is one insert-only verdict set.
type SanityResult struct {
	DeviceModel string             `json:"device_model"`
	CheckedAt   time.Time          `json:"checked_at"`
	Verdicts    map[string]Verdict `json:"verdicts"`
}

var ErrNotFound = errors.New("not found")
