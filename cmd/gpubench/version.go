package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Quok-it/benchmarking/internal/config"
)

func newVersionCmd() *cobra.Command {
	var env bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Prints the version",
		Run: func(cmd *cobra.Command, args []string) {
			if env {
				config.WriteHelp(cmd.OutOrStdout(), version)
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
	cmd.Flags().BoolVar(&env, "env", false, "also list the environment variables")
	return cmd
}
