package ingest

import (
	"context"
	"log/slog"

	"github.com/Quok-it/benchmarking/internal/bench"
)

type Inventory interface {
	ListDevices(ctx context.Context) []bench.Device
}

// Worker drains queued observations through a Processor.
type Worker struct {
	logger    *slog.Logger
	processor *Processor
	host      string
	inventory Inventory
}

func NewWorker(logger *slog.Logger, processor *Processor, host string, inventory Inventory) *Worker {
	return &Worker{
		logger:    logger,
		processor: processor,
		host:      host,
		inventory: inventory,
	}
}

// Run returns once observations is closed and drained. Processing failures
// are logged; they never stop the worker.
func (w *Worker) Run(observations <-chan Observation) error {
	for obs := range observations {
		ctx, cancel := context.WithTimeout(context.Background(), ProcessTimeout)
		var devices []bench.Device
		if len(obs.Devices) == 0 && w.inventory != nil {
			devices = w.inventory.ListDevices(ctx)
		}
		outcome, err := w.processor.Process(ctx, w.host, devices, obs)
		cancel()
		if err != nil {
			w.logger.Warn("queued observation failed",
				"type", obs.Type,
				"source", obs.Source,
				"stored", len(outcome.AuditIDs),
				"error", err,
			)
		}
	}
	return nil
}
