package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Quok-it/benchmarking/internal/app"
	"github.com/Quok-it/benchmarking/internal/pipeline"
)

func newIngestCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Runs one ingestion pass over the configured result files",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := g.setup(ctx)
			if err != nil {
				return err
			}
			comp, err := app.Build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			report, runErr := comp.Pipeline.Run(ctx, "cli")
			closeErr := comp.Close(ctx)

			if errors.Is(runErr, pipeline.ErrNoResultFiles) {
				fmt.Fprintln(cmd.OutOrStdout(), "No benchmark result files found.")
				return exitError{code: 1}
			}
			if runErr != nil {
				return errors.Join(runErr, closeErr)
			}
			printReport(cmd.OutOrStdout(), report)
			if closeErr != nil {
				return closeErr
			}
			if report.Failed() > 0 {
				return exitError{code: 2}
			}
			return nil
		},
	}
}

func printReport(w io.Writer, report pipeline.Report) {
	fmt.Fprintf(w, "host %s\n", report.Host)
	for _, f := range report.Families {
		name := string(f.Type)
		if f.Label != "" {
			name += ":" + f.Label
		}
		fmt.Fprintf(w, "  %-22s %-9s records=%d", name, f.Status, f.Records)
		if f.Err != nil {
			fmt.Fprintf(w, " error=%q", f.Err.Error())
		}
		fmt.Fprintln(w)
	}
	for _, res := range report.Sanity {
		printSanity(w, res)
	}
}
