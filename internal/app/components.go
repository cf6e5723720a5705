package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Quok-it/benchmarking/internal/aggregate"
	"github.com/Quok-it/benchmarking/internal/archive"
	"github.com/Quok-it/benchmarking/internal/audit"
	"github.com/Quok-it/benchmarking/internal/bench"
	"github.com/Quok-it/benchmarking/internal/config"
	"github.com/Quok-it/benchmarking/internal/db"
	"github.com/Quok-it/benchmarking/internal/discovery"
	"github.com/Quok-it/benchmarking/internal/ingest"
	"github.com/Quok-it/benchmarking/internal/metrics"
	"github.com/Quok-it/benchmarking/internal/pgstore"
	"github.com/Quok-it/benchmarking/internal/pipeline"
	"github.com/Quok-it/benchmarking/internal/sanity"
)

// Store is everything the service needs from a backend. *db.Manager and
// *pgstore.Store both satisfy it.
type Store interface {
	AppendResult(ctx context.Context, rec bench.RawBenchmarkResult) error
	GetResult(ctx context.Context, auditID string) (bench.RawBenchmarkResult, error)
	FetchResultsAfter(ctx context.Context, afterSeq int64, limit int) ([]bench.ResultRow, error)
	UpsertAggregate(ctx context.Context, key bench.AggregateKey, value float64, at time.Time) error
	ListAggregates(ctx context.Context, filter bench.AggregateFilter) ([]bench.Aggregate, error)
	GetProgress(ctx context.Context, source string) (bench.Progress, error)
	SetProgress(ctx context.Context, p bench.Progress) error
	InsertSanityResult(ctx context.Context, res bench.SanityResult) error
	LatestSanityResult(ctx context.Context, model string) (bench.SanityResult, error)
	Ping(ctx context.Context) error
	TableCounts(ctx context.Context) (map[string]int64, error)
	Close() error
}

var (
	_ Store = (*db.Manager)(nil)
	_ Store = (*pgstore.Store)(nil)
)

// OpenStore opens the configured backend and makes sure its schema exists.
// The *db.Manager is non-nil only for SQLite.
func OpenStore(ctx context.Context, cfg *config.Config) (Store, *db.Manager, error) {
	switch cfg.Store {
	case config.StorePostgres:
		pg, err := pgstore.Open(ctx, cfg.DSN())
		if err != nil {
			return nil, nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
		pg.SetSettleWindow(cfg.PushSettleWindow)
		return pg, nil, nil
	default:
		dbm, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		return dbm, dbm, nil
	}
}

// Components is the object graph shared by one-shot commands and the
// long-running service.
type Components struct {
	Store     Store
	SQLite    *db.Manager
	Metrics   *metrics.Metrics
	Audit     *audit.Writer
	Engine    *aggregate.Engine
	Processor *ingest.Processor
	Inventory *discovery.NvidiaSMI
	Host      string
	Pipeline  *pipeline.Pipeline
	Recorder  *sanity.Recorder
	Sanity    *pipeline.SanityStep
}

func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	store, dbm, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c := &Components{Store: store, SQLite: dbm, Metrics: metrics.New()}

	dataDir := ""
	if dbm != nil {
		dataDir = filepath.Dir(dbm.Path())
	} else if cfg.ArchiveDir != "" {
		dataDir = cfg.ArchiveDir
	}
	if dataDir != "" {
		var sizer metrics.FileSizer
		if dbm != nil {
			sizer = dbm
		}
		if err := c.Metrics.Register(metrics.NewResourceCollector(dataDir, sizer)); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("register resource collector: %w", err)
		}
	}

	mirror, err := openMirror(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	c.Audit = audit.NewWriter(logger, store, mirror)
	c.Engine = aggregate.NewEngine(store)
	c.Processor = ingest.NewProcessor(logger, ingest.NewBuilder(), c.Audit, c.Engine, c.Metrics, ingest.DefaultExcerptBytes)
	c.Inventory = discovery.NewNvidiaSMI(logger, cfg.NvidiaSMIPath)

	c.Host, err = discovery.Hostname(cfg.HostnameOverride)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	c.Recorder = sanity.NewRecorder(store, c.Metrics)
	if cfg.ReferencePath != "" {
		ref, err := sanity.LoadReference(cfg.ReferencePath)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		c.Sanity = &pipeline.SanityStep{
			Comparator: sanity.Comparator{Tolerance: cfg.Tolerance, Logger: logger},
			Reference:  ref,
			Recorder:   c.Recorder,
		}
	}

	c.Pipeline = pipeline.New(logger, pipeline.Sources{
		MLPerfCacheDir: cfg.MLPerfCacheDir,
		MLPerfModels:   cfg.MLPerfModels,
		StressPath:     cfg.StressPath,
		HPLPath:        cfg.HPLPath,
		HPCGPath:       cfg.HPCGPath,
		StreamPath:     cfg.StreamPath,
		DLSuitePath:    cfg.DLSuitePath,
	}, c.Host, c.Inventory, c.Processor, store, c.Sanity, c.Metrics)
	return c, nil
}

// openMirror returns nil when no archive is configured. S3 wins over a local
// directory when both are set.
func openMirror(ctx context.Context, cfg *config.Config) (audit.Mirror, error) {
	switch {
	case cfg.S3Bucket != "":
		s3, err := archive.NewS3Storage(ctx, cfg.S3Bucket, archive.S3Config{
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			UsePathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("open s3 archive: %w", err)
		}
		return archive.NewArchiver(s3), nil
	case cfg.ArchiveDir != "":
		local, err := archive.NewLocalStorage(cfg.ArchiveDir)
		if err != nil {
			return nil, fmt.Errorf("open local archive: %w", err)
		}
		return archive.NewArchiver(local), nil
	}
	return nil, nil
}

func (c *Components) Close(ctx context.Context) error {
	var joined error
	if c.SQLite != nil {
		if err := c.SQLite.Checkpoint(ctx); err != nil {
			joined = errors.Join(joined, fmt.Errorf("wal checkpoint: %w", err))
		}
	}
	if err := c.Store.Close(); err != nil {
		joined = errors.Join(joined, fmt.Errorf("store close: %w", err))
	}
	return joined
}
