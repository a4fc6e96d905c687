package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/periodic/internal/model"
	"github.com/derickschaefer/periodic/internal/render"
	"github.com/derickschaefer/periodic/internal/store"
	"github.com/derickschaefer/periodic/internal/validate"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Keep validated frames in the local database",
	Long: `Commands for the local bbolt database.

Frames enter the store only through 'periodic store import', which validates
them first; the resolution, periodicity and anchor they passed with are kept
alongside. It is an intentional data store, not a transparent cache: data
persists until you explicitly delete or clear it.`,
}

// ─── store import ─────────────────────────────────────────────────────────────

var (
	importIn    inputFlags
	importFlags validationFlags
	importTitle string
)

var storeImportCmd = &cobra.Command{
	Use:   "import <ID>",
	Short: "Validate a frame and store it under an ID",
	Example: `  periodic store import FLOW --resolution P1D < flow.jsonl
  periodic store import STAGE --resolution PT15M --periodicity PT15M --anchor end --file stage.csv
  periodic store import WY --resolution @water-year --title "Annual peak flow" < peaks.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := strings.TrimSpace(args[0])
		started := time.Now()

		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		f, err := importIn.read(cmd.InOrStdin())
		if err != nil {
			return err
		}
		val, err := importFlags.run(cmd, deps, f)
		if err != nil {
			return err
		}
		out, report := val.frame, val.report
		if !report.Valid {
			res := newResult(model.KindValidation, "store import", report, report.InputRows, started)
			if err := emitTo(cmd, cmd.ErrOrStderr(), deps, res); err != nil {
				return err
			}
			return fmt.Errorf("%w: %s not stored", errValidationFailed, id)
		}

		v := val.validator
		meta := model.SeriesMeta{
			ID:          id,
			Title:       importTitle,
			Resolution:  v.Resolution(),
			Periodicity: v.Periodicity(),
			TimeAnchor:  v.TimeAnchor().String(),
		}
		if err := deps.Store.PutSeries(meta, out); err != nil {
			return fmt.Errorf("storing %s: %w", id, err)
		}
		notef(cmd, "✓ Stored %s: %d rows at %s / %s", id, out.Len(), report.Resolution, report.Periodicity)
		if report.Removed > 0 {
			notef(cmd, "  %d input rows removed (duplicates or misaligned)", report.Removed)
		}
		return nil
	},
}

// ─── store list ───────────────────────────────────────────────────────────────

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List series in the local database",
	Example: `  periodic store list
  periodic store list --format csv`,
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

		metas, err := deps.Store.ListSeriesMeta()
		if err != nil {
			return fmt.Errorf("reading store: %w", err)
		}
		if len(metas) == 0 {
			notef(cmd, "No series in local database.\n  Use: periodic store import <ID> --resolution <period> < frame.jsonl")
			return nil
		}
		return emit(cmd, deps, newResult(model.KindSeriesMeta, "store list", metas, len(metas), started))
	},
}

// ─── store get ────────────────────────────────────────────────────────────────

var (
	storeGetMeta   bool
	storeGetVerify bool
	storeGetNative bool
)

var storeGetCmd = &cobra.Command{
	Use:   "get <ID>",
	Short: "Read a stored frame or its metadata",
	Example: `  periodic store get FLOW
  periodic store get FLOW --format jsonl | periodic analyze summary
  periodic store get WY --meta
  periodic store get STAGE --verify --precision`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := strings.TrimSpace(args[0])
		started := time.Now()

		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		meta, found, err := deps.Store.GetSeriesMeta(id)
		if err != nil {
			return fmt.Errorf("reading store: %w", err)
		}
		if !found {
			return fmt.Errorf("no stored series %s\n\n  Use: periodic store list", id)
		}
		if storeGetMeta {
			return emit(cmd, deps, newResult(model.KindSeriesMeta, "store get "+id, &meta, 1, started))
		}

		f, found, err := deps.Store.GetFrame(id)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("frame data missing for %s", id)
		}

		if storeGetVerify {
			anchor, err := validate.ParseTimeAnchor(meta.TimeAnchor)
			if err != nil {
				return err
			}
			v, err := deps.NewValidator(meta.Resolution, meta.Periodicity, validate.WithTimeAnchor(anchor))
			if err != nil {
				return err
			}
			checked, err := v.Validate(cmd.Context(), f)
			if err != nil {
				return fmt.Errorf("stored frame %s no longer validates: %w", id, err)
			}
			if err := validate.CheckMutation(f, checked); err != nil {
				return fmt.Errorf("stored frame %s: %w", id, err)
			}
			deps.Logger.Info("stored frame verified", "id", id, "rows", f.Len())
		}

		result := newResult(model.KindFrame, "store get "+id, f, f.Len(), started)
		if storeGetNative {
			result.TimeFormat = meta.Resolution.FormatTime
		}
		return emit(cmd, deps, result)
	},
}

// ─── store delete ─────────────────────────────────────────────────────────────

var storeDeleteCmd = &cobra.Command{
	Use:   "delete <ID...>",
	Short: "Delete stored series",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		for _, id := range args {
			if err := deps.Store.DeleteSeries(id); err != nil {
				return err
			}
			notef(cmd, "✓ Deleted %s", id)
		}
		return nil
	},
}

// ─── store stats ──────────────────────────────────────────────────────────────

var storeStatsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show row counts and sizes for each bucket",
	Example: `  periodic store stats`,
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

		stats, err := deps.Store.Stats()
		if err != nil {
			return fmt.Errorf("reading store stats: %w", err)
		}
		tbl := &model.Table{Header: []string{"BUCKET", "ROWS", "SIZE"}}
		for _, s := range stats {
			tbl.Rows = append(tbl.Rows, []string{s.Name, strconv.Itoa(s.Count), humanBytes(s.Bytes)})
		}
		if resolveFormat(deps.Config.Format) == render.FormatTable {
			notef(cmd, "Database: %s\n", deps.Store.Path())
		}
		return emit(cmd, deps, newResult(model.KindTable, "store stats", tbl, len(stats), started))
	},
}

// ─── store clear ──────────────────────────────────────────────────────────────

var (
	storeClearAll    bool
	storeClearBucket string
)

var storeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete entries from the local store",
	Long: `Delete entries from one or all buckets.

Note: bbolt does not shrink the database file automatically after clearing.
Free pages are reused internally on the next write. To reclaim disk space,
run 'periodic store compact' after clearing.`,
	Example: `  periodic store clear --all
  periodic store clear --bucket periods`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !storeClearAll && storeClearBucket == "" {
			return fmt.Errorf("specify --all or --bucket <name>\n\nBuckets: %s", strings.Join(store.AllBuckets, ", "))
		}
		if storeClearBucket != "" && !isBucket(storeClearBucket) {
			return fmt.Errorf("unknown bucket %q\n\nBuckets: %s", storeClearBucket, strings.Join(store.AllBuckets, ", "))
		}

		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		if storeClearAll {
			if err := deps.Store.ClearAll(); err != nil {
				return fmt.Errorf("clearing all buckets: %w", err)
			}
			notef(cmd, "✓ Cleared all buckets")
			notef(cmd, "  Run 'periodic store compact' to reclaim disk space.")
			return nil
		}

		if err := deps.Store.ClearBucket(storeClearBucket); err != nil {
			return fmt.Errorf("clearing bucket %q: %w", storeClearBucket, err)
		}
		notef(cmd, "✓ Cleared bucket %q", storeClearBucket)
		notef(cmd, "  Run 'periodic store compact' to reclaim disk space.")
		return nil
	},
}

func isBucket(name string) bool {
	for _, b := range store.AllBuckets {
		if b == name {
			return true
		}
	}
	return false
}

// ─── store compact ────────────────────────────────────────────────────────────

var storeCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Rewrite the database file to reclaim freed disk space",
	Long: `Compact rewrites the entire bbolt database to a new file, recovering space
freed by prior 'store delete' and 'store clear' operations.

All live data is copied to a temporary file first, then the original is
replaced. The database remains fully usable after compaction completes.`,
	Example: `  periodic store compact`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		notef(cmd, "Compacting %s ...", deps.Store.Path())
		before, after, err := deps.Store.Compact()
		if err != nil {
			return fmt.Errorf("compaction failed: %w", err)
		}

		notef(cmd, "✓ Compaction complete")
		notef(cmd, "  Before: %s", humanBytes(before))
		notef(cmd, "  After:  %s", humanBytes(after))
		if saved := before - after; saved > 0 {
			notef(cmd, "  Saved:  %s", humanBytes(saved))
		} else {
			notef(cmd, "  No space reclaimed (database was already compact).")
		}
		return nil
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeImportCmd)
	storeCmd.AddCommand(storeListCmd)
	storeCmd.AddCommand(storeGetCmd)
	storeCmd.AddCommand(storeDeleteCmd)
	storeCmd.AddCommand(storeStatsCmd)
	storeCmd.AddCommand(storeClearCmd)
	storeCmd.AddCommand(storeCompactCmd)

	importIn.register(storeImportCmd.Flags())
	importFlags.register(storeImportCmd.Flags())
	storeImportCmd.Flags().StringVar(&importTitle, "title", "", "human-readable title")

	gf := storeGetCmd.Flags()
	gf.BoolVar(&storeGetMeta, "meta", false, "show metadata instead of the frame")
	gf.BoolVar(&storeGetVerify, "verify", false, "re-validate the frame against its stored periods")
	gf.BoolVar(&storeGetNative, "precision", false, "print timestamps at the resolution's precision")

	storeClearCmd.Flags().BoolVar(&storeClearAll, "all", false, "clear all buckets")
	storeClearCmd.Flags().StringVar(&storeClearBucket, "bucket", "",
		"clear a specific bucket: "+strings.Join(store.AllBuckets, "|"))
}
