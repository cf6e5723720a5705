package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type Config struct {
	Store       string `env:"GPUBENCH_STORE,default=sqlite"`
	DBPath      string `env:"GPUBENCH_DB_PATH,default=/data/gpubench.db"`
	PostgresDSN string `env:"GPUBENCH_POSTGRES_DSN"`
	// Split connection settings, used when PostgresDSN is empty.
	DBHost     string `env:"DB_HOST"`
	DBPort     string `env:"DB_PORT,default=5432"`
	DBName     string `env:"DB_NAME"`
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`

	LogLevel         string `env:"GPUBENCH_LOG_LEVEL,default=info"`
	Port             string `env:"GPUBENCH_PORT,default=9090"`
	HostnameOverride string `env:"GPUBENCH_HOSTNAME_OVERRIDE"`
	NvidiaSMIPath    string `env:"GPUBENCH_NVIDIA_SMI,default=nvidia-smi"`

	MLPerfCacheDir string   `env:"GPUBENCH_MLPERF_CACHE_DIR,default=~/MLC/repos/local/cache"`
	MLPerfModels   []string `env:"GPUBENCH_MLPERF_MODELS,default=bert-99"`
	StressPath     string   `env:"GPUBENCH_STRESS_PATH,default=gpu_burn.txt"`
	HPLPath        string   `env:"GPUBENCH_HPL_PATH,default=hpl_results.txt"`
	HPCGPath       string   `env:"GPUBENCH_HPCG_PATH,default=hpcg_results.txt"`
	StreamPath     string   `env:"GPUBENCH_STREAM_PATH,default=stream_results.txt"`
	DLSuitePath    string   `env:"GPUBENCH_DLSUITE_PATH,default=ai_benchmark.txt"`

	ReferencePath string  `env:"GPUBENCH_REFERENCE_PATH"`
	ObservedPath  string  `env:"GPUBENCH_OBSERVED_PATH,default=gpu_benchmark_results.json"`
	Tolerance     float64 `env:"GPUBENCH_TOLERANCE,default=50"`

	IngestInterval time.Duration `env:"GPUBENCH_INGEST_INTERVAL,default=5m"`
	WatchDir       string        `env:"GPUBENCH_WATCH_DIR"`

	ArchiveDir  string `env:"GPUBENCH_ARCHIVE_DIR"`
	S3Bucket    string `env:"GPUBENCH_S3_BUCKET"`
	S3Region    string `env:"GPUBENCH_S3_REGION"`
	S3Endpoint  string `env:"GPUBENCH_S3_ENDPOINT"`
	S3PathStyle bool   `env:"GPUBENCH_S3_PATH_STYLE,default=false"`

	PushEndpoint        string        `env:"GPUBENCH_PUSH_ENDPOINT"`
	PushInterval        time.Duration `env:"GPUBENCH_PUSH_INTERVAL,default=5m"`
	PushMaxPayloadBytes int           `env:"GPUBENCH_PUSH_MAX_PAYLOAD_BYTES,default=5242880"`
	PushSettleWindow    time.Duration `env:"GPUBENCH_PUSH_SETTLE_WINDOW,default=30s"`

	MaxTextBytes          int           `env:"GPUBENCH_MAX_TEXT_BYTES,default=1048576"`
	WALCheckpointInterval time.Duration `env:"GPUBENCH_WAL_CHECKPOINT_INTERVAL,default=10m"`
	WALRestartThresholdB  int64         `env:"GPUBENCH_WAL_RESTART_THRESHOLD_BYTES,default=52428800"`
}

// Load reads envFiles (missing files are skipped) and then the process
// environment. Variables already set in the environment win over the files.
func Load(ctx context.Context, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store {
	case StoreSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("GPUBENCH_DB_PATH is required for the sqlite store")
		}
	case StorePostgres:
		if c.PostgresDSN == "" && (c.DBHost == "" || c.DBName == "" || c.DBUser == "") {
			return fmt.Errorf("postgres store needs GPUBENCH_POSTGRES_DSN or DB_HOST, DB_NAME and DB_USER")
		}
	default:
		return fmt.Errorf("unknown GPUBENCH_STORE %q (want sqlite or postgres)", c.Store)
	}
	if c.PushSettleWindow < 0 {
		return fmt.Errorf("GPUBENCH_PUSH_SETTLE_WINDOW must not be negative")
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("GPUBENCH_TOLERANCE must not be negative")
	}
	if c.MaxTextBytes <= 0 {
		return fmt.Errorf("GPUBENCH_MAX_TEXT_BYTES must be positive")
	}
	return nil
}

// DSN returns PostgresDSN, or a URL composed from the DB_* settings.
func (c *Config) DSN() string {
	if c.PostgresDSN != "" {
		return c.PostgresDSN
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   net.JoinHostPort(c.DBHost, c.DBPort),
		Path:   "/" + c.DBName,
	}
	if c.DBPassword == "" {
		u.User = url.User(c.DBUser)
	}
	return u.String()
}

// RedactedDSN is DSN with the password masked, for logs.
func (c *Config) RedactedDSN() string {
	u, err := url.Parse(c.DSN())
	if err != nil {
		return "<unparseable dsn>"
	}
	return u.Redacted()
}

func WriteHelp(w io.Writer, version string) {
	fmt.Fprintf(w, "gpubench %s\n\n", version)
	fmt.Fprintln(w, "Environment variables (also read from .env):")
	fmt.Fprintln(w, "  GPUBENCH_STORE=sqlite                      sqlite | postgres")
	fmt.Fprintln(w, "  GPUBENCH_DB_PATH=/data/gpubench.db")
	fmt.Fprintln(w, "  GPUBENCH_POSTGRES_DSN=")
	fmt.Fprintln(w, "  DB_HOST= DB_PORT=5432 DB_NAME= DB_USER= DB_PASSWORD=")
	fmt.Fprintln(w, "  GPUBENCH_LOG_LEVEL=info")
	fmt.Fprintln(w, "  GPUBENCH_PORT=9090")
	fmt.Fprintln(w, "  GPUBENCH_HOSTNAME_OVERRIDE=")
	fmt.Fprintln(w, "  GPUBENCH_NVIDIA_SMI=nvidia-smi")
	fmt.Fprintln(w, "  GPUBENCH_MLPERF_CACHE_DIR=~/MLC/repos/local/cache")
	fmt.Fprintln(w, "  GPUBENCH_MLPERF_MODELS=bert-99")
	fmt.Fprintln(w, "  GPUBENCH_STRESS_PATH=gpu_burn.txt")
	fmt.Fprintln(w, "  GPUBENCH_HPL_PATH=hpl_results.txt")
	fmt.Fprintln(w, "  GPUBENCH_HPCG_PATH=hpcg_results.txt")
	fmt.Fprintln(w, "  GPUBENCH_STREAM_PATH=stream_results.txt")
	fmt.Fprintln(w, "  GPUBENCH_DLSUITE_PATH=ai_benchmark.txt")
	fmt.Fprintln(w, "  GPUBENCH_REFERENCE_PATH=")
	fmt.Fprintln(w, "  GPUBENCH_OBSERVED_PATH=gpu_benchmark_results.json")
	fmt.Fprintln(w, "  GPUBENCH_TOLERANCE=50")
	fmt.Fprintln(w, "  GPUBENCH_INGEST_INTERVAL=5m")
	fmt.Fprintln(w, "  GPUBENCH_WATCH_DIR=")
	fmt.Fprintln(w, "  GPUBENCH_ARCHIVE_DIR=")
	fmt.Fprintln(w, "  GPUBENCH_S3_BUCKET= GPUBENCH_S3_REGION= GPUBENCH_S3_ENDPOINT= GPUBENCH_S3_PATH_STYLE=false")
	fmt.Fprintln(w, "  GPUBENCH_PUSH_ENDPOINT=")
	fmt.Fprintln(w, "  GPUBENCH_PUSH_INTERVAL=5m")
	fmt.Fprintln(w, "  GPUBENCH_PUSH_MAX_PAYLOAD_BYTES=5242880")
	fmt.Fprintln(w, "  GPUBENCH_PUSH_SETTLE_WINDOW=30s            postgres only")
	fmt.Fprintln(w, "  GPUBENCH_MAX_TEXT_BYTES=1048576")
	fmt.Fprintln(w, "  GPUBENCH_WAL_CHECKPOINT_INTERVAL=10m")
	fmt.Fprintln(w, "  GPUBENCH_WAL_RESTART_THRESHOLD_BYTES=52428800")
}
