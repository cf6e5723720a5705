package main

import (
	"github.com/spf13/cobra"

	"github.com/Quok-it/benchmarking/internal/app"
)

func newServeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP service with periodic passes, file watching and push",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := g.setup(ctx)
			if err != nil {
				return err
			}
			logger.Info("gpubench starting", "version", version, "store", cfg.Store, "port", cfg.Port)
			return app.New(cfg, logger, version).Run(ctx)
		},
	}
}
