package ingest

import (
	"time"

	"github.com/Quok-it/benchmarking/internal/bench"
)

const (
	QueueCapacity = 64
	// ProcessTimeout bounds the store work for one queued observation.
	ProcessTimeout = 30 * time.Second
)

// Observation is one raw benchmark output waiting to be processed.
// Host and Devices override discovery when set.
type Observation struct {
	Type       bench.Type
	Label      string
	Source     string
	Text       string
	Host       string
	Devices    []bench.Device
	ReceivedAt time.Time
}

func TryEnqueue(ch chan Observation, obs Observation) bool {
	select {
	case ch <- obs:
		return true
	default:
		return false
	}
}
