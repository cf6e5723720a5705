package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Quok-it/benchmarking/internal/app"
	"github.com/Quok-it/benchmarking/internal/discovery"
	"github.com/Quok-it/benchmarking/internal/sanity"
)

func newSanityCmd(g *globals) *cobra.Command {
	var (
		models        []string
		referencePath string
		observedPath  string
		tolerance     float64
	)
	cmd := &cobra.Command{
		Use:   "sanity",
		Short: "Compares observed DL timings against the reference dataset and records the verdicts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := g.setup(ctx)
			if err != nil {
				return err
			}
			if referencePath == "" {
				referencePath = cfg.ReferencePath
			}
			if referencePath == "" {
				return fmt.Errorf("no reference dataset: set GPUBENCH_REFERENCE_PATH or --reference")
			}
			if observedPath == "" {
				observedPath = cfg.ObservedPath
			}
			if !cmd.Flags().Changed("tolerance") {
				tolerance = cfg.Tolerance
			}

			ref, err := sanity.LoadReference(referencePath)
			if err != nil {
				return err
			}
			observed, err := sanity.LoadObserved(observedPath)
			if err != nil {
				return err
			}
			if len(models) == 0 {
				models, err = discovery.NewNvidiaSMI(logger, cfg.NvidiaSMIPath).ListModels(ctx)
				if err != nil {
					return err
				}
			}
			models = discovery.ReferenceModels(models)
			if len(models) == 0 {
				return fmt.Errorf("no GPU models found")
			}

			store, _, err := app.OpenStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			recorder := sanity.NewRecorder(store, nil)
			comparator := sanity.NewComparator(logger)
			comparator.Tolerance = tolerance

			failures := 0
			for _, model := range models {
				res := comparator.Compare(model, observed, ref)
				if _, _, err := recorder.Record(ctx, res); err != nil {
					return err
				}
				printSanity(cmd.OutOrStdout(), res)
				failures += res.Failures()
			}
			if failures > 0 {
				return exitError{code: 2}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&models, "model", nil, "GPU model to check (default: models reported by nvidia-smi -L)")
	cmd.Flags().StringVar(&referencePath, "reference", "", "reference dataset (YAML or JSON)")
	cmd.Flags().StringVar(&observedPath, "observed", "", "observed timings JSON")
	cmd.Flags().Float64Var(&tolerance, "tolerance", sanity.DefaultTolerance, "allowed absolute difference in ms")
	return cmd
}

func printSanity(w io.Writer, res sanity.Result) {
	fmt.Fprintf(w, "sanity %s: %d failures\n", res.DeviceModel, res.Failures())
	targets := make([]string, 0, len(res.Verdicts))
	for target := range res.Verdicts {
		targets = append(targets, target)
	}
	sort.Strings(targets)
	for _, target := range targets {
		fmt.Fprintf(w, "  %-28s %s\n", target, res.Verdicts[target])
	}
}
