package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Quok-it/benchmarking/internal/config"
	"github.com/Quok-it/benchmarking/internal/ingest"
	"github.com/Quok-it/benchmarking/internal/pipeline"
	"github.com/Quok-it/benchmarking/internal/push"
	"github.com/Quok-it/benchmarking/internal/server"
)

const passTimeout = 10 * time.Minute

type Runtime struct {
	cfg        *config.Config
	logger     *slog.Logger
	version    string
	startedAt  time.Time
	comp       *Components
	httpServer *http.Server
	ingestCh   chan ingest.Observation
	workerDone chan error
	bgCancel   context.CancelFunc
	bgWG       sync.WaitGroup
	pusher     *push.Pusher
	passMu     sync.Mutex

	submissionsReceived atomic.Int64
	submissionsDropped  atomic.Int64
	lastPassTime        atomic.Int64
	lastPassStatus      atomic.Value
	lastPushTime        atomic.Int64
	lastPushStatus      atomic.Value
}

func New(cfg *config.Config, logger *slog.Logger, version string) *Runtime {
	r := &Runtime{
		cfg:       cfg,
		logger:    logger,
		version:   version,
		startedAt: time.Now(),
	}
	r.lastPushStatus.Store("disabled")
	r.lastPassStatus.Store("pending")
	return r
}

func (r *Runtime) Run(ctx context.Context) error {
	comp, err := Build(ctx, r.cfg, r.logger)
	if err != nil {
		return err
	}
	r.comp = comp

	if dbm := comp.SQLite; dbm != nil {
		journalMode, busyTimeout, autoVacuum, err := dbm.Pragmas(ctx)
		if err != nil {
			_ = comp.Close(ctx)
			return fmt.Errorf("query sqlite pragmas: %w", err)
		}
		r.logger.Info("SQLite opened",
			"path", r.cfg.DBPath,
			"journal_mode", journalMode,
			"busy_timeout", busyTimeout,
			"auto_vacuum", autoVacuum,
		)
	} else {
		r.logger.Info("PostgreSQL connected", "dsn", r.cfg.RedactedDSN())
	}

	healthHandler := server.NewHealthHandler(comp.Store, r.cfg.Store, r.startedAt, r.version, r, r.cfg.PushEndpoint == "")
	r.ingestCh = make(chan ingest.Observation, ingest.QueueCapacity)
	r.workerDone = make(chan error, 1)

	worker := ingest.NewWorker(r.logger, comp.Processor, comp.Host, comp.Inventory)
	go func() {
		r.workerDone <- worker.Run(r.ingestCh)
	}()

	if r.cfg.PushEndpoint != "" {
		r.pusher = push.New(comp.Store, r.cfg.PushEndpoint, r.cfg.PushMaxPayloadBytes)
		r.lastPushStatus.Store("ready")
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	r.bgCancel = bgCancel
	r.startBackgroundLoops(bgCtx)

	queries := server.Queries{Results: comp.Store, Aggregates: comp.Engine, Sanity: comp.Recorder}
	api := server.NewAPI(r.logger, r, queries, comp.Metrics, int64(r.cfg.MaxTextBytes))
	r.httpServer = server.New(":"+r.cfg.Port, healthHandler, comp.Metrics.Handler(), api)

	serverErr := make(chan error, 1)
	go func() {
		r.logger.Info("Listening", "addr", ":"+r.cfg.Port, "host", comp.Host)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		joined := r.shutdown(context.Background())
		if err != nil {
			return errors.Join(fmt.Errorf("http server failed: %w", err), joined)
		}
		return joined
	case <-ctx.Done():
		r.logger.Info("SIGTERM received, shutting down...")
		return r.shutdown(context.Background())
	}
}

func (r *Runtime) Snapshot() server.RuntimeSnapshot {
	return server.RuntimeSnapshot{
		QueueDepth:          int64(len(r.ingestCh)),
		SubmissionsReceived: r.submissionsReceived.Load(),
		SubmissionsDropped:  r.submissionsDropped.Load(),
		LastPassTime:        loadTime(&r.lastPassTime),
		LastPassStatus:      loadString(&r.lastPassStatus),
		LastPushTime:        loadTime(&r.lastPushTime),
		LastPushStatus:      loadString(&r.lastPushStatus),
	}
}

func loadTime(v *atomic.Int64) *int64 {
	if ts := v.Load(); ts > 0 {
		return &ts
	}
	return nil
}

func loadString(v *atomic.Value) string {
	s, _ := v.Load().(string)
	return s
}

func (r *Runtime) shutdown(ctx context.Context) error {
	var joined error
	r.logger.Info("Draining ingest channel", "remaining", len(r.ingestCh))

	if r.httpServer != nil {
		httpCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := r.httpServer.Shutdown(httpCtx); err != nil {
			joined = errors.Join(joined, fmt.Errorf("http shutdown: %w", err))
		}
	}

	if r.bgCancel != nil {
		r.bgCancel()
		done := make(chan struct{})
		go func() {
			r.bgWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			joined = errors.Join(joined, errors.New("background loop shutdown timeout"))
		}
	}

	if r.ingestCh != nil {
		close(r.ingestCh)
	}
	if r.workerDone != nil {
		select {
		case err := <-r.workerDone:
			if err != nil {
				joined = errors.Join(joined, fmt.Errorf("worker shutdown: %w", err))
			}
		case <-time.After(ingest.ProcessTimeout):
			joined = errors.Join(joined, errors.New("worker drain timeout"))
		}
	}

	if r.pusher != nil {
		pushCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := r.runPush(pushCtx, "shutdown")
		cancel()
		if err != nil {
			joined = errors.Join(joined, fmt.Errorf("final push: %w", err))
		}
	}

	if r.comp != nil {
		closeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := r.comp.Close(closeCtx); err != nil {
			r.logger.Warn("store close failed", "error", err)
			joined = errors.Join(joined, err)
		}
	}

	r.logger.Info("Shutdown complete",
		"submissions", r.submissionsReceived.Load(),
		"uptime", time.Since(r.startedAt).String(),
	)
	return joined
}

// Enqueue hands an HTTP submission to the ingest worker without blocking.
func (r *Runtime) Enqueue(obs ingest.Observation) bool {
	if r.ingestCh == nil {
		r.submissionsDropped.Add(1)
		return false
	}
	if ingest.TryEnqueue(r.ingestCh, obs) {
		r.submissionsReceived.Add(1)
		r.comp.Metrics.SetQueueDepth(len(r.ingestCh))
		return true
	}
	r.submissionsDropped.Add(1)
	return false
}

// RunPass runs one file pass. Passes never overlap.
func (r *Runtime) RunPass(ctx context.Context, trigger string) (pipeline.Report, error) {
	r.passMu.Lock()
	defer r.passMu.Unlock()

	report, err := r.comp.Pipeline.Run(ctx, trigger)
	switch {
	case errors.Is(err, pipeline.ErrNoResultFiles):
		r.lastPassStatus.Store("no_files")
	case err != nil:
		r.lastPassStatus.Store("error")
		r.logger.Warn("pass failed", "trigger", trigger, "error", err)
	case report.Failed() > 0:
		r.lastPassStatus.Store("partial")
	default:
		r.lastPassStatus.Store("ok")
	}
	r.lastPassTime.Store(time.Now().UnixMilli())
	return report, err
}

func (r *Runtime) startBackgroundLoops(ctx context.Context) {
	if r.cfg.IngestInterval > 0 {
		r.bgWG.Add(1)
		go func() {
			defer r.bgWG.Done()
			passCtx, cancel := context.WithTimeout(ctx, passTimeout)
			_, _ = r.RunPass(passCtx, "startup")
			cancel()
		}()
	}
	r.every(ctx, r.cfg.IngestInterval, func() {
		passCtx, cancel := context.WithTimeout(ctx, passTimeout)
		_, _ = r.RunPass(passCtx, "interval")
		cancel()
	})

	if r.cfg.WatchDir != "" {
		r.bgWG.Add(1)
		go func() {
			defer r.bgWG.Done()
			w := NewWatcher(r.logger, r.cfg.WatchDir, defaultDebounce, func(ctx context.Context) {
				passCtx, cancel := context.WithTimeout(ctx, passTimeout)
				_, _ = r.RunPass(passCtx, "watch")
				cancel()
			})
			if err := w.Run(ctx); err != nil {
				r.logger.Warn("result watcher stopped", "dir", r.cfg.WatchDir, "error", err)
			}
		}()
	}

	if r.pusher != nil {
		r.every(ctx, r.cfg.PushInterval, func() {
			pushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			_ = r.runPush(pushCtx, "scheduled")
			cancel()
		})
	}

	if dbm := r.comp.SQLite; dbm != nil {
		r.every(ctx, r.cfg.WALCheckpointInterval, func() {
			cpCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			_, err := dbm.CheckpointIfWALExceeds(cpCtx, r.cfg.WALRestartThresholdB)
			if err == nil {
				err = dbm.IncrementalVacuum(cpCtx, 0)
			}
			cancel()
			if err != nil {
				r.logger.Warn("wal checkpoint loop failed", "error", err)
			}
		})
	}

	r.every(ctx, 5*time.Second, func() {
		r.comp.Metrics.SetQueueDepth(len(r.ingestCh))
	})
}

// every runs fn on a ticker until ctx is done. Non-positive intervals disable
// the loop.
func (r *Runtime) every(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	r.bgWG.Add(1)
	go func() {
		defer r.bgWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

func (r *Runtime) runPush(ctx context.Context, reason string) error {
	if r.pusher == nil {
		return nil
	}
	res, err := r.pusher.PushOnce(ctx)
	r.comp.Metrics.ResultsPushed(res.ResultsSent)
	if err != nil {
		r.lastPushStatus.Store("error")
		r.logger.Warn("push failed", "reason", reason, "error", err)
		return err
	}
	r.lastPushStatus.Store("ok")
	r.lastPushTime.Store(time.Now().UnixMilli())
	r.logger.Info("push completed", "reason", reason, "batches", res.BatchesSent, "results", res.ResultsSent)
	return nil
}
