package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Quok-it/benchmarking/internal/config"
	"github.com/Quok-it/benchmarking/internal/logging"
)

var version = "dev"

// exitError carries a non-zero exit code without printing an error line.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

type globals struct {
	envFile  string
	logLevel string
}

func (g *globals) setup(ctx context.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(ctx, g.envFile)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.LogLevel
	if g.logLevel != "" {
		level = g.logLevel
	}
	logger, err := logging.Setup(os.Stderr, level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "gpubench",
		Short:         "Collects GPU benchmark results into an audit log and running aggregates",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "dotenv file read before the environment")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "overrides GPUBENCH_LOG_LEVEL")

	root.AddCommand(
		newIngestCmd(g),
		newSanityCmd(g),
		newServeCmd(g),
		newInitDBCmd(g),
		newCheckDBCmd(g),
		newVersionCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	var exit exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	fmt.Fprintln(os.Stderr, "gpubench:", err)
	os.Exit(1)
}
