package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/periodic/internal/analyze"
	"github.com/derickschaefer/periodic/internal/model"
	"github.com/derickschaefer/periodic/internal/transform"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a frame (reads JSONL from stdin)",
	Long: `Analyze operators read a frame from stdin and print results.

Examples:
  periodic store get FLOW --format jsonl | periodic analyze summary
  periodic validate --resolution P1D --emit < flow.jsonl | periodic analyze gaps --periodicity P1D
  periodic transform aggregate --window P1M --frame < flow.jsonl | periodic analyze trend`,
}

// ─── analyze summary ─────────────────────────────────────────────────────────

var summaryIn inputFlags

var analyzeSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Descriptive statistics for every column: count, mean, std, min, max, median",
	Example: `  periodic store get FLOW --format jsonl | periodic analyze summary
  periodic analyze summary --file stage.csv --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		started := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		f, err := summaryIn.read(cmd.InOrStdin())
		if err != nil {
			return err
		}
		s := analyze.Summarize(f)
		return emit(cmd, deps, newResult(model.KindSummary, "analyze summary", s, len(s), started))
	},
}

// ─── analyze gaps ─────────────────────────────────────────────────────────────

var (
	gapsIn          inputFlags
	gapsColumns     []string
	gapsPeriodicity periodFlag
	gapsAnchor      string
)

var analyzeGapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "List runs of consecutive missing values",
	Long: `Gaps lists runs of consecutive null values per column.

Rows absent from the input are only seen when --periodicity is given: the
frame is then padded with null rows for every empty periodicity interval
before the runs are counted.`,
	Example: `  periodic analyze gaps < flow.jsonl
  periodic analyze gaps --periodicity P1D --column flow < flow.jsonl`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		started := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		f, err := gapsIn.read(cmd.InOrStdin())
		if err != nil {
			return err
		}

		var result *model.Result
		if gapsPeriodicity.set() {
			per, err := gapsPeriodicity.resolve(deps)
			if err != nil {
				return fmt.Errorf("--periodicity: %w", err)
			}
			anchor, err := anchorOrDefault(gapsAnchor, deps)
			if err != nil {
				return err
			}
			if f, err = transform.Pad(f, per, anchor); err != nil {
				return err
			}
			gaps, err := analyze.Gaps(f, gapsColumns...)
			if err != nil {
				return err
			}
			result = newResult(model.KindGaps, "analyze gaps", gaps, len(gaps), started)
			result.TimeFormat = per.FormatTime
		} else {
			gaps, err := analyze.Gaps(f, gapsColumns...)
			if err != nil {
				return err
			}
			result = newResult(model.KindGaps, "analyze gaps", gaps, len(gaps), started)
		}
		return emit(cmd, deps, result)
	},
}

// ─── analyze trend ────────────────────────────────────────────────────────────

var (
	trendIn     inputFlags
	trendColumn string
	trendMethod string
)

var analyzeTrendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Fit a linear trend: slope, intercept, R², direction",
	Example: `  periodic store get FLOW --format jsonl | periodic analyze trend
  periodic analyze trend --file annual.jsonl --column peak --method theil-sen`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		started := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		f, err := trendIn.read(cmd.InOrStdin())
		if err != nil {
			return err
		}
		column, err := pickColumn(f, trendColumn)
		if err != nil {
			return err
		}
		tr, err := analyze.Trend(f, column, analyze.TrendMethod(trendMethod))
		if err != nil {
			return err
		}
		return emit(cmd, deps, newResult(model.KindTrend, "analyze trend", tr, 1, started))
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.AddCommand(analyzeSummaryCmd)
	analyzeCmd.AddCommand(analyzeGapsCmd)
	analyzeCmd.AddCommand(analyzeTrendCmd)

	summaryIn.register(analyzeSummaryCmd.Flags())

	gapsIn.register(analyzeGapsCmd.Flags())
	gf := analyzeGapsCmd.Flags()
	gf.StringSliceVar(&gapsColumns, "column", nil, "columns to scan (repeatable; default: all)")
	gf.Var(&gapsPeriodicity, "periodicity", "pad to this grid first so absent rows count as missing")
	gf.StringVar(&gapsAnchor, "anchor", "", "point|start|end (default: config time_anchor)")

	trendIn.register(analyzeTrendCmd.Flags())
	analyzeTrendCmd.Flags().StringVar(&trendColumn, "column", "", "column to fit (default: the only column)")
	analyzeTrendCmd.Flags().StringVar(&trendMethod, "method", "linear",
		"regression method: linear|theil-sen")
}
