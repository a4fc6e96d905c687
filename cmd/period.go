package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/periodic/internal/model"
	"github.com/derickschaefer/periodic/internal/period"
	"github.com/derickschaefer/periodic/internal/util"
)

var periodCmd = &cobra.Command{
	Use:   "period",
	Short: "Parse, inspect and relate calendar periods",
	Long: `Commands for working with calendar periods.

A period is an ISO-8601 duration with an optional offset and timezone:

  P1D            calendar day
  PT15M          quarter hour
  P1M            calendar month
  P3M+1M         quarters starting February, May, August, November
  P1Y+9MT9H      water year: 1 October 09:00 to 1 October 09:00
  P1D[+05:30]    days in a fixed UTC offset
  2024-01-01T06:00/P1D
                 days aligned to the given origin

Any period argument may be written @name to use a period saved with
'periodic period save'.`,
}

// ─── period parse ─────────────────────────────────────────────────────────────

var periodParseCmd = &cobra.Command{
	Use:   "parse <period...>",
	Short: "Parse periods and show their canonical form and properties",
	Example: `  periodic period parse P1D
  periodic period parse P1Y+9MT9H PT0.5S "P1D[+05:30]"
  periodic period parse @water-year --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		started := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		infos := make([]model.PeriodInfo, 0, len(args))
		var errs util.MultiError
		for _, a := range args {
			p, err := resolvePeriod(deps, a)
			if err != nil {
				errs.Add(err)
				continue
			}
			infos = append(infos, periodInfo(a, p))
		}
		if err := errs.Err(); err != nil {
			return err
		}
		return emit(cmd, deps, newResult(model.KindPeriodInfo, "period parse", infos, len(infos), started))
	},
}

// periodInfo describes p for display.
func periodInfo(input string, p period.Period) model.PeriodInfo {
	months, micros := p.OffsetDescriptor()
	lo, hi := p.OrdinalRange()
	info := model.PeriodInfo{
		Input:         input,
		Canonical:     p.String(),
		Repr:          p.Repr(),
		Step:          p.Step().String(),
		Multiplier:    p.Multiplier(),
		MonthOffset:   months,
		MicroOffset:   micros,
		Timezone:      p.Timezone(),
		EpochAgnostic: p.IsEpochAgnostic(),
		Precision:     p.Precision().String(),
		FirstOrdinal:  lo,
		LastOrdinal:   hi,
	}
	if d, ok := p.AsFixedDuration(); ok {
		info.FixedDuration = d.String()
	}
	return info
}

// ─── period ordinal ───────────────────────────────────────────────────────────

var periodOrdinalTZ string

var periodOrdinalCmd = &cobra.Command{
	Use:   "ordinal <period> <time...>",
	Short: "Map instants to the ordinal of the interval containing them",
	Example: `  periodic period ordinal P1M 2024-02-15
  periodic period ordinal P1Y+9MT9H 2023-10-01T08:59 2023-10-01T09:00
  periodic period ordinal PT1H 2024-01-01T12:30 --tz +05:30`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		started := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		p, err := resolvePeriod(deps, args[0])
		if err != nil {
			return err
		}
		zone := periodOrdinalTZ
		if zone == "" {
			zone = p.Timezone()
		}
		loc, err := period.Location(zone)
		if err != nil {
			return fmt.Errorf("--tz: %w", err)
		}

		rows := make([]model.OrdinalRow, 0, len(args)-1)
		var errs util.MultiError
		for _, a := range args[1:] {
			t, err := util.ParseTime(a, loc)
			if err != nil {
				errs.Add(err)
				continue
			}
			rows = append(rows, ordinalRow(a, p, p.Ordinal(t), p.IsAligned(t)))
		}
		if err := errs.Err(); err != nil {
			return err
		}
		return emit(cmd, deps, newResult(model.KindOrdinals, "period ordinal", rows, len(rows), started))
	},
}

func ordinalRow(input string, p period.Period, n int64, aligned bool) model.OrdinalRow {
	return model.OrdinalRow{
		Input:   input,
		Ordinal: n,
		Start:   p.FormatTime(p.DateTime(n)),
		End:     p.FormatTime(p.DateTime(n + 1)),
		Aligned: aligned,
	}
}

// ─── period datetime ──────────────────────────────────────────────────────────

var periodDatetimeCmd = &cobra.Command{
	Use:   "datetime <period> <ordinal...>",
	Short: "Show the interval each ordinal denotes",
	Example: `  periodic period datetime P1M 24288
  periodic period datetime P1D -- -1 0 1`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		started := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		p, err := resolvePeriod(deps, args[0])
		if err != nil {
			return err
		}
		lo, hi := p.OrdinalRange()

		rows := make([]model.OrdinalRow, 0, len(args)-1)
		var errs util.MultiError
		for _, a := range args[1:] {
			n, err := strconv.ParseInt(a, 10, 64)
			if err != nil {
				errs.Add(fmt.Errorf("invalid ordinal %q", a))
				continue
			}
			if n < lo || n > hi {
				errs.Add(fmt.Errorf("ordinal %d is outside %d..%d (years 1 to 9999)", n, lo, hi))
				continue
			}
			rows = append(rows, ordinalRow(a, p, n, true))
		}
		if err := errs.Err(); err != nil {
			return err
		}
		return emit(cmd, deps, newResult(model.KindOrdinals, "period datetime", rows, len(rows), started))
	},
}

// ─── period count ─────────────────────────────────────────────────────────────

var periodCountCmd = &cobra.Command{
	Use:   "count <inner> <outer>",
	Short: "How many inner intervals fit in each outer interval",
	Example: `  periodic period count PT1H P1D      # 24
  periodic period count P1D P1M       # variable
  periodic period count P1M P1Y+9M    # 12
  periodic period count P7D P1M       # incompatible`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		started := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		inner, err := resolvePeriod(deps, args[0])
		if err != nil {
			return err
		}
		outer, err := resolvePeriod(deps, args[1])
		if err != nil {
			return err
		}
		info := countInfo(inner, outer)
		return emit(cmd, deps, newResult(model.KindCount, "period count", info, 1, started))
	},
}

func countInfo(inner, outer period.Period) *model.CountInfo {
	n := inner.Count(outer)
	info := &model.CountInfo{
		Inner:     inner.Repr(),
		Outer:     outer.Repr(),
		Count:     n,
		Subperiod: inner.IsSubperiodOf(outer),
	}
	switch {
	case n == period.CountVariable:
		info.Relation = "variable"
	case n == 0:
		info.Relation = "incompatible"
	default:
		info.Relation = "fixed"
	}
	return info
}

// ─── period save / list / delete ──────────────────────────────────────────────

var periodSaveCmd = &cobra.Command{
	Use:   "save <name> <period>",
	Short: "Save a period under a name for use as @name",
	Example: `  periodic period save water-year P1Y+9MT9H
  periodic period save ist-day "P1D[+05:30]"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := period.Parse(args[1])
		if err != nil {
			return err
		}
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		if err := deps.Store.PutPeriod(args[0], p); err != nil {
			return err
		}
		notef(cmd, "✓ Saved @%s = %s", args[0], p.Repr())
		return nil
	},
}

var periodListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved periods",
	RunE: func(cmd *cobra.Command, args []string) error {
		started := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		named, err := deps.Store.ListPeriods()
		if err != nil {
			return fmt.Errorf("reading store: %w", err)
		}
		if len(named) == 0 {
			notef(cmd, "No saved periods.\n  Use: periodic period save <name> <period>")
			return nil
		}
		tbl := &model.Table{Header: []string{"NAME", "PERIOD", "SAVED AT"}}
		for _, np := range named {
			tbl.Rows = append(tbl.Rows, []string{"@" + np.Name, np.Period.Repr(), np.SavedAt.Format(time.RFC3339)})
		}
		return emit(cmd, deps, newResult(model.KindTable, "period list", tbl, len(named), started))
	},
}

var periodDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved period",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		if err := deps.Store.DeletePeriod(args[0]); err != nil {
			return err
		}
		notef(cmd, "✓ Deleted @%s", args[0])
		return nil
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(periodCmd)
	periodCmd.AddCommand(periodParseCmd)
	periodCmd.AddCommand(periodOrdinalCmd)
	periodCmd.AddCommand(periodDatetimeCmd)
	periodCmd.AddCommand(periodCountCmd)
	periodCmd.AddCommand(periodSaveCmd)
	periodCmd.AddCommand(periodListCmd)
	periodCmd.AddCommand(periodDeleteCmd)

	periodOrdinalCmd.Flags().StringVar(&periodOrdinalTZ, "tz", "",
		"zone for times without an offset (default: the period's timezone, else UTC)")
}
