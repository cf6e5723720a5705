package ingest

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Quok-it/benchmarking/internal/bench"
)

const stressTestType = "stress_test"

// Input is one record-to-be: the identity it is filed under and its payload.
type Input struct {
	Identity bench.Identity
	Payload  bench.Payload
}

type Builder struct {
	now   func() time.Time
	newID func() string
}

func NewBuilder() *Builder {
	return &Builder{now: time.Now, newID: uuid.NewString}
}

// Build stamps a fresh audit id and capture time onto payload. The identity's
// type defaults to the payload's and must agree with it when set.
func (b *Builder) Build(id bench.Identity, payload bench.Payload) (bench.RawBenchmarkResult, error) {
	if payload == nil {
		return bench.RawBenchmarkResult{}, errors.New("build record: nil payload")
	}
	if _, ok := payload.(bench.StressReport); ok {
		return bench.RawBenchmarkResult{}, errors.New("build record: stress report must be split per device")
	}
	if id.Type == "" {
		id.Type = payload.BenchmarkType()
	}
	if id.Type != payload.BenchmarkType() {
		return bench.RawBenchmarkResult{}, fmt.Errorf("build record: identity type %q does not match %s payload", id.Type, payload.BenchmarkType())
	}
	if err := id.Validate(); err != nil {
		return bench.RawBenchmarkResult{}, fmt.Errorf("build record: %w", err)
	}
	return bench.RawBenchmarkResult{
		AuditID:    b.newID(),
		Identity:   id,
		Payload:    payload,
		CapturedAt: b.now().UTC().Truncate(time.Millisecond),
	}, nil
}

// FanOut turns one extracted payload into per-device inputs. Stress reports
// are split by reported index and matched against devices by id; indices no
// device claims are filed under bench.UnknownModel. Every other family is
// copied to each device.
func (b *Builder) FanOut(host string, devices []bench.Device, payload bench.Payload) []Input {
	if len(devices) == 0 {
		devices = []bench.Device{{ID: "0", Model: bench.UnknownModel}}
	}

	report, ok := payload.(bench.StressReport)
	if !ok {
		out := make([]Input, 0, len(devices))
		for _, d := range devices {
			out = append(out, Input{
				Identity: bench.Identity{Host: host, DeviceID: d.ID, DeviceModel: d.Model, Type: payload.BenchmarkType()},
				Payload:  payload,
			})
		}
		return out
	}

	byID := make(map[string]bench.Device, len(devices))
	for _, d := range devices {
		byID[d.ID] = d
	}
	indices := make([]string, 0, len(report))
	for idx := range report {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool {
		a, errA := strconv.Atoi(indices[i])
		c, errC := strconv.Atoi(indices[j])
		if errA != nil || errC != nil {
			return indices[i] < indices[j]
		}
		return a < c
	})

	out := make([]Input, 0, len(indices))
	for _, idx := range indices {
		model := bench.UnknownModel
		if d, ok := byID[idx]; ok && d.Model != "" {
			model = d.Model
		}
		out = append(out, Input{
			Identity: bench.Identity{Host: host, DeviceID: idx, DeviceModel: model, Type: bench.TypeStress},
			Payload:  bench.StressResult{Status: report[idx], TestType: stressTestType},
		})
	}
	return out
}
