package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "strata",
		Short: "Equivalent-linear site response with stochastic input motions",
		Long: `strata computes the strain-compatible response of a layered soil
column to an input motion described by its Fourier amplitude spectrum.

Motions come from a single-corner point-source model or from a user
spectrum; peaks are estimated with random vibration theory.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Run configuration file (YAML)")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newSpectrumCmd(),
		newRunsCmd(),
	)
	return rootCmd
}
