package bench

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTypeAcceptsAliases(t *testing.T) {
	t.Parallel()

	cases := map[string]Type{
		"mlperf":       TypeMLPerf,
		" HPL ":        TypeHPL,
		"gpu_burn":     TypeStress,
		"ai-benchmark": TypeDLSuite,
		"dl-suite":     TypeDLSuite,
	}
	for in, want := range cases {
		got, err := ParseType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseType("linpack")
	assert.Error(t, err)
}

func TestIdentityValidate(t *testing.T) {
	t.Parallel()

	ok := Identity{Host: "node-1", DeviceID: "0", DeviceModel: "NVIDIA H100", Type: TypeHPL}
	assert.NoError(t, ok.Validate())

	missing := ok
	missing.DeviceModel = ""
	assert.ErrorContains(t, missing.Validate(), "device_model")

	badType := ok
	badType.Type = "linpack"
	assert.Error(t, badType.Validate())
}

func TestAggregateApply(t *testing.T) {
	t.Parallel()

	key := AggregateKey{Identity: Identity{Host: "h", DeviceID: "0", DeviceModel: "m", Type: TypeStream}, Metric: "copy_bandwidth_mbps"}
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	var agg Aggregate
	agg.AggregateKey = key
	agg = agg.Apply(5, t0)
	agg = agg.Apply(2, t0.Add(time.Minute))
	agg = agg.Apply(9, t0.Add(2*time.Minute))
	agg = agg.Apply(4, t0.Add(3*time.Minute))

	assert.Equal(t, int64(4), agg.Count)
	assert.Equal(t, 20.0, agg.Sum)
	assert.Equal(t, 2.0, agg.Min)
	assert.Equal(t, 9.0, agg.Max)
	assert.Equal(t, 4.0, agg.LastValue)
	assert.Equal(t, 5.0, agg.Mean())
	assert.Equal(t, t0.Add(3*time.Minute), agg.LastUpdatedAt)
}

func TestRawBenchmarkResultDecodesConcretePayload(t *testing.T) {
	t.Parallel()

	rating := 355.0
	rec := RawBenchmarkResult{
		AuditID:    "a-1",
		Identity:   Identity{Host: "h", DeviceID: "0", DeviceModel: "m", Type: TypeHPCG},
		Payload:    HPCGResult{Valid: true, Rating: &rating},
		CapturedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	raw, err := json.Marshal(rec)
	require.NoError(t, err)

	var got RawBenchmarkResult
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "h", got.Host)
	assert.Equal(t, TypeHPCG, got.Type)
	payload, ok := got.Payload.(HPCGResult)
	require.True(t, ok, "payload type = %T", got.Payload)
	assert.True(t, payload.Valid)
	require.NotNil(t, payload.Rating)
	assert.Equal(t, 355.0, *payload.Rating)
}

func TestDecodePayloadUnknownType(t *testing.T) {
	t.Parallel()

	_, err := DecodePayload("linpack", []byte(`{}`))
	assert.Error(t, err)
}

func TestStressResultReliabilityScore(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, StressResult{Status: "OK"}.Metrics()["reliability_score"])
	assert.Equal(t, 0.0, StressResult{Status: "FAIL"}.Metrics()["reliability_score"])
}

func TestMetricSlug(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "srcnn_9_5_5", MetricSlug("SRCNN 9-5-5"))
	assert.Equal(t, "vgg_19_super_res", MetricSlug("VGG-19 Super-Res"))
	assert.Equal(t, "resnet_v2_50", MetricSlug("ResNet-V2-50"))
}
