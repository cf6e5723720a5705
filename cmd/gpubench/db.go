package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Quok-it/benchmarking/internal/app"
	"github.com/Quok-it/benchmarking/internal/config"
)

func newInitDBCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Creates the schema and prints row counts per table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, _, err := g.setup(ctx)
			if err != nil {
				return err
			}
			store, _, err := app.OpenStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			counts, err := store.TableCounts(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", cfg.Store)
			printCounts(cmd.OutOrStdout(), counts)
			return nil
		},
	}
}

func newCheckDBCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "check-db",
		Short: "Prints the store settings and checks connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, _, err := g.setup(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "store: %s\n", cfg.Store)
			if cfg.Store == config.StorePostgres {
				fmt.Fprintf(out, "dsn:   %s\n", cfg.RedactedDSN())
			} else {
				fmt.Fprintf(out, "path:  %s\n", cfg.DBPath)
			}

			store, _, err := app.OpenStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer store.Close()
			if err := store.Ping(ctx); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
			fmt.Fprintln(out, "connection ok")
			return nil
		},
	}
}

func printCounts(w io.Writer, counts map[string]int64) {
	tables := make([]string, 0, len(counts))
	for table := range counts {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		fmt.Fprintf(w, "  %-20s %d\n", table, counts[table])
	}
}
