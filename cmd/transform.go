package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/periodic/internal/model"
	"github.com/derickschaefer/periodic/internal/transform"
	"github.com/derickschaefer/periodic/internal/util"
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Transform a validated frame (reads JSONL from stdin)",
	Long: `Transform operators read a frame from stdin and write to stdout.
Input rows must be sorted by time; 'periodic validate --emit' produces
such a frame.

Pipeline example:
  periodic validate --resolution P1D --emit < flow.jsonl | periodic transform aggregate --window P1M
  periodic store get FLOW --format jsonl | periodic transform pad --periodicity P1D | periodic analyze gaps`,
}

// ─── aggregate ────────────────────────────────────────────────────────────────

var (
	aggIn          inputFlags
	aggWindow      periodFlag
	aggPeriodicity periodFlag
	aggColumn      string
	aggFunc        string
	aggAnchor      string
	aggMissing     string
	aggFrame       bool
)

var transformAggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Aggregate a column into calendar-period buckets",
	Long: `Aggregate buckets the rows of one column by --window and reduces each
bucket's non-null values with --fn.

When --periodicity (the input's own grid) is given each bucket also reports
how many values it should hold, which --missing uses to mark buckets invalid:

  none          every bucket is valid (default)
  percent:80    at least 80% of the expected values present
  missing:3     at most 3 values absent
  available:20  at least 20 values present

With --frame the result is written as a frame labelled by bucket start (or
end under --anchor end), with invalid buckets null.`,
	Example: `  periodic transform aggregate --window P1M --fn mean < daily.jsonl
  periodic transform aggregate --window P1Y+9MT9H --periodicity PT1H --missing percent:90 < hourly.jsonl
  periodic transform aggregate --window P1D --column stage --fn max --frame < q.jsonl | periodic analyze summary`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		started := time.Now()
		if !aggWindow.set() {
			return fmt.Errorf("--window is required")
		}
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		window, err := aggWindow.resolve(deps)
		if err != nil {
			return fmt.Errorf("--window: %w", err)
		}
		per, err := aggPeriodicity.resolve(deps)
		if err != nil {
			return fmt.Errorf("--periodicity: %w", err)
		}
		anchor, err := anchorOrDefault(aggAnchor, deps)
		if err != nil {
			return err
		}
		missing, err := transform.ParseMissingCriteria(aggMissing)
		if err != nil {
			return err
		}

		f, err := aggIn.read(cmd.InOrStdin())
		if err != nil {
			return err
		}
		column, err := pickColumn(f, aggColumn)
		if err != nil {
			return err
		}

		res, err := transform.Aggregate(f, column, window, transform.AggFunc(aggFunc), transform.AggregateOptions{
			Periodicity: per,
			Anchor:      anchor,
			Missing:     missing,
		})
		if err != nil {
			return err
		}

		var result *model.Result
		if aggFrame {
			out := res.Frame(f.TimeName)
			result = newResult(model.KindFrame, "transform aggregate", out, out.Len(), started)
		} else {
			result = newResult(model.KindAggregate, "transform aggregate", res, len(res.Buckets), started)
		}
		result.TimeFormat = window.FormatTime
		if invalid := countInvalid(res.Buckets); invalid > 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%d of %d buckets fail missing-data criteria %s", invalid, len(res.Buckets), missing))
		}
		return emit(cmd, deps, result)
	},
}

func countInvalid(buckets []transform.Bucket) int {
	n := 0
	for _, b := range buckets {
		if !b.Valid {
			n++
		}
	}
	return n
}

// ─── pad ──────────────────────────────────────────────────────────────────────

var (
	padIn          inputFlags
	padPeriodicity periodFlag
	padAnchor      string
)

var transformPadCmd = &cobra.Command{
	Use:   "pad",
	Short: "Insert null rows for every missing periodicity interval",
	Example: `  periodic transform pad --periodicity P1D < daily.jsonl
  periodic transform pad --periodicity PT1H --anchor end < hourly.jsonl | periodic analyze gaps`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		started := time.Now()
		if !padPeriodicity.set() {
			return fmt.Errorf("--periodicity is required")
		}
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		per, err := padPeriodicity.resolve(deps)
		if err != nil {
			return fmt.Errorf("--periodicity: %w", err)
		}
		anchor, err := anchorOrDefault(padAnchor, deps)
		if err != nil {
			return err
		}
		f, err := padIn.read(cmd.InOrStdin())
		if err != nil {
			return err
		}
		out, err := transform.Pad(f, per, anchor)
		if err != nil {
			return err
		}
		result := newResult(model.KindFrame, "transform pad", out, out.Len(), started)
		if added := out.Len() - f.Len(); added > 0 {
			deps.Logger.Info("rows padded", "added", added)
		}
		return emit(cmd, deps, result)
	},
}

// ─── filter ───────────────────────────────────────────────────────────────────

var (
	filterIn     inputFlags
	filterAfter  string
	filterBefore string
	filterDrop   bool
)

var transformFilterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Filter rows by time range or drop all-null rows",
	Example: `  periodic transform filter --after 2020-01-01 < flow.jsonl
  periodic transform filter --after 2023-10-01T09:00 --before 2024-10-01T09:00 --drop-missing < q.jsonl`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		started := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		f, err := filterIn.read(cmd.InOrStdin())
		if err != nil {
			return err
		}
		opts := transform.FilterOptions{DropMissing: filterDrop}
		if filterAfter != "" {
			if opts.After, err = util.ParseTime(filterAfter, nil); err != nil {
				return fmt.Errorf("--after: %w", err)
			}
		}
		if filterBefore != "" {
			if opts.Before, err = util.ParseTime(filterBefore, nil); err != nil {
				return fmt.Errorf("--before: %w", err)
			}
		}
		out := transform.Filter(f, opts)
		return emit(cmd, deps, newResult(model.KindFrame, "transform filter", out, out.Len(), started))
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(transformCmd)
	transformCmd.AddCommand(transformAggregateCmd)
	transformCmd.AddCommand(transformPadCmd)
	transformCmd.AddCommand(transformFilterCmd)

	aggIn.register(transformAggregateCmd.Flags())
	af := transformAggregateCmd.Flags()
	af.Var(&aggWindow, "window", "bucket period, e.g. P1M or @water-year (required)")
	af.Var(&aggPeriodicity, "periodicity", "the input's periodicity; enables expected counts")
	af.StringVar(&aggColumn, "column", "", "column to aggregate (default: the only column)")
	af.StringVar(&aggFunc, "fn", string(transform.AggMean), "mean|sum|min|max|count|first|last")
	af.StringVar(&aggAnchor, "anchor", "", "point|start|end (default: config time_anchor)")
	af.StringVar(&aggMissing, "missing", "none", "missing-data criteria: none|percent:X|missing:N|available:N")
	af.BoolVar(&aggFrame, "frame", false, "write the result as a frame for further piping")

	padIn.register(transformPadCmd.Flags())
	transformPadCmd.Flags().Var(&padPeriodicity, "periodicity", "grid to pad to (required)")
	transformPadCmd.Flags().StringVar(&padAnchor, "anchor", "", "point|start|end (default: config time_anchor)")

	filterIn.register(transformFilterCmd.Flags())
	ff := transformFilterCmd.Flags()
	ff.StringVar(&filterAfter, "after", "", "keep rows after this time")
	ff.StringVar(&filterBefore, "before", "", "keep rows before this time")
	ff.BoolVar(&filterDrop, "drop-missing", false, "drop rows whose values are all null")
}
