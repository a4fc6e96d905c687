// Package cmd implements the periodic CLI command tree.
// This file defines the root command and registers all global persistent flags.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/periodic/internal/app"
	"github.com/derickschaefer/periodic/internal/config"
)

// globalFlags holds the parsed values of all persistent (global) flags.
// Commands read from this struct via the deps they receive.
var globalFlags struct {
	DB      string
	Format  string
	Out     string
	Workers int
	Quiet   bool
	Verbose bool
	Debug   bool
}

// rootCmd is the base command. Running `periodic` with no subcommand
// prints help.
var rootCmd = &cobra.Command{
	Use:   "periodic",
	Short: "periodic — calendar periods and time-series integrity checks",
	Long: `periodic works with calendar periods (P1D, P1M, P1Y+9MT9H, PT15M[+05:30])
and checks that time series honour them.

A resolution is the grid every timestamp must sit on; a periodicity is the
grid on which at most one timestamp may fall. Frames are read as JSONL or
CSV from stdin, validated, aggregated by period, and optionally kept in a
local bbolt store.

Quick start:
  periodic period parse P1Y+9MT9H                          # inspect a period
  periodic period count P1D P1M                            # days per month
  periodic validate --resolution P1D < flow.jsonl          # check a series
  periodic validate --resolution P1D --emit < flow.jsonl \
    | periodic transform aggregate --window P1M --fn mean  # monthly means`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// buildDeps resolves config and constructs the dependency container.
// Called at the start of each command's RunE.
func buildDeps() (*app.Deps, error) {
	cfg, err := config.Load(globalFlags.DB)
	if err != nil {
		return nil, err
	}

	// Apply CLI flag overrides
	cfg.Quiet = globalFlags.Quiet
	cfg.Verbose = globalFlags.Verbose
	cfg.Debug = globalFlags.Debug

	if globalFlags.Format != "" {
		cfg.Format = globalFlags.Format
	}
	if globalFlags.Workers > 0 {
		cfg.Workers = globalFlags.Workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return app.New(cfg), nil
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&globalFlags.DB, "db", "",
		"path to the local database (overrides env PERIODIC_DB_PATH and config)")
	pf.StringVar(&globalFlags.Format, "format", "",
		"output format: table|json|jsonl|csv|tsv|md (default: table)")
	pf.StringVar(&globalFlags.Out, "out", "",
		"write output to file instead of stdout")
	pf.IntVar(&globalFlags.Workers, "workers", 0,
		"validator worker goroutines (default: GOMAXPROCS)")
	pf.BoolVar(&globalFlags.Quiet, "quiet", false,
		"suppress all non-error output")
	pf.BoolVar(&globalFlags.Verbose, "verbose", false,
		"show timing stats after output and log at info level")
	pf.BoolVar(&globalFlags.Debug, "debug", false,
		"log at debug level")
}
