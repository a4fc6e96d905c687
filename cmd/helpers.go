package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/derickschaefer/periodic/internal/app"
	"github.com/derickschaefer/periodic/internal/model"
	"github.com/derickschaefer/periodic/internal/period"
	"github.com/derickschaefer/periodic/internal/pipeline"
	"github.com/derickschaefer/periodic/internal/render"
	"github.com/derickschaefer/periodic/internal/validate"
)

// resolveFormat returns the effective format string, falling back to "table".
func resolveFormat(cfgFormat string) string {
	if globalFlags.Format != "" {
		return globalFlags.Format
	}
	if cfgFormat != "" {
		return cfgFormat
	}
	return render.FormatTable
}

// outputWriter returns the --out file when set, else def. The returned
// closer must always be called.
func outputWriter(def io.Writer) (io.Writer, func() error, error) {
	if globalFlags.Out == "" {
		return def, func() error { return nil }, nil
	}
	f, err := os.Create(globalFlags.Out)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}

// emit renders result to stdout (or --out) and writes the footer to stderr
// so piped output stays clean.
func emit(cmd *cobra.Command, deps *app.Deps, result *model.Result) error {
	return emitTo(cmd, cmd.OutOrStdout(), deps, result)
}

// emitTo is emit with def in place of stdout.
func emitTo(cmd *cobra.Command, def io.Writer, deps *app.Deps, result *model.Result) error {
	w, closeFn, err := outputWriter(def)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := render.Render(w, result, resolveFormat(deps.Config.Format)); err != nil {
		return err
	}
	if !deps.Config.Quiet {
		render.PrintFooter(cmd.ErrOrStderr(), result, deps.Config.Verbose)
	}
	return nil
}

// notef prints a confirmation line unless --quiet is set.
func notef(cmd *cobra.Command, format string, args ...any) {
	if globalFlags.Quiet {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
}

// newResult wraps data in a Result envelope.
func newResult(kind, command string, data any, items int, started time.Time) *model.Result {
	return &model.Result{
		Kind:        kind,
		GeneratedAt: time.Now(),
		Command:     command,
		Data:        data,
		Stats: model.ResultStats{
			Items:      items,
			DurationMs: time.Since(started).Milliseconds(),
		},
	}
}

// ─── Period flags ─────────────────────────────────────────────────────────────

// periodFlag is a pflag.Value holding a period. A value starting with "@"
// names a period saved in the store; it is looked up by resolve.
type periodFlag struct {
	text string
	p    period.Period
}

var _ pflag.Value = (*periodFlag)(nil)

func (f *periodFlag) String() string {
	if f.text != "" {
		return f.text
	}
	if f.p.IsZero() {
		return ""
	}
	return f.p.Repr()
}

func (f *periodFlag) Set(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*f = periodFlag{}
		return nil
	}
	if strings.HasPrefix(s, "@") {
		if len(s) == 1 {
			return fmt.Errorf("empty period name")
		}
		f.text, f.p = s, period.Period{}
		return nil
	}
	p, err := period.Parse(s)
	if err != nil {
		return err
	}
	f.text, f.p = s, p
	return nil
}

func (f *periodFlag) Type() string { return "period" }

// set reports whether the flag was given.
func (f *periodFlag) set() bool { return f.text != "" }

// resolve returns the period, looking named periods up in the store.
func (f *periodFlag) resolve(deps *app.Deps) (period.Period, error) {
	if !strings.HasPrefix(f.text, "@") {
		return f.p, nil
	}
	return resolvePeriod(deps, f.text)
}

// resolvePeriod parses text, or loads it from the store when it has the
// form "@name".
func resolvePeriod(deps *app.Deps, text string) (period.Period, error) {
	name, named := strings.CutPrefix(strings.TrimSpace(text), "@")
	if !named {
		return period.Parse(text)
	}
	if err := deps.RequireStore(); err != nil {
		return period.Period{}, err
	}
	p, err := deps.Store.GetPeriod(name)
	if err != nil {
		return period.Period{}, fmt.Errorf("period %q: %w\n\n  Save it with: periodic period save %s <period>", name, err, name)
	}
	return p, nil
}

// ─── Anchor flag ──────────────────────────────────────────────────────────────

// anchorOrDefault parses flag, falling back to the configured anchor.
func anchorOrDefault(flag string, deps *app.Deps) (validate.TimeAnchor, error) {
	if flag == "" {
		flag = deps.Config.TimeAnchor
	}
	return validate.ParseTimeAnchor(flag)
}

// ─── Frame input ──────────────────────────────────────────────────────────────

// inputFlags are shared by every command that reads a frame.
type inputFlags struct {
	File    string
	Format  string
	TimeCol string
	TZ      string
}

func (in *inputFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&in.File, "file", "", "read the frame from a file instead of stdin")
	fs.StringVar(&in.Format, "input-format", "", "input format: jsonl|csv|tsv (default: by file extension, else jsonl)")
	fs.StringVar(&in.TimeCol, "time-col", "", "name of the time column (default: time, or the first CSV column)")
	fs.StringVar(&in.TZ, "tz", "", "zone for timestamps without an offset: Z, ±HH:MM or an IANA name (default: UTC)")
}

// read loads the frame from --file or stdin.
func (in *inputFlags) read(stdin io.Reader) (*model.Frame, error) {
	loc, err := period.Location(in.TZ)
	if err != nil {
		return nil, fmt.Errorf("--tz: %w", err)
	}
	opts := pipeline.ReadOptions{Format: in.Format, TimeCol: in.TimeCol, Location: loc}

	r := stdin
	if in.File != "" {
		f, err := os.Open(in.File)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f

		ext := filepath.Ext(in.File)
		opts.Name = strings.TrimSuffix(filepath.Base(in.File), ext)
		if opts.Format == "" {
			opts.Format = formatFromExt(ext)
		}
	} else if pipeline.IsTTY() && stdin == os.Stdin {
		return nil, fmt.Errorf("no input: pipe a frame on stdin or use --file")
	}
	return pipeline.ReadFrame(r, opts)
}

func formatFromExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".csv":
		return pipeline.FormatCSV
	case ".tsv", ".tab":
		return pipeline.FormatTSV
	}
	return pipeline.FormatJSONL
}

// pickColumn returns name, or the only column of f when name is empty.
func pickColumn(f *model.Frame, name string) (string, error) {
	if name != "" {
		return name, nil
	}
	if len(f.Columns) == 1 {
		return f.Columns[0], nil
	}
	return "", fmt.Errorf("frame has %d columns (%s): choose one with --column",
		len(f.Columns), strings.Join(f.Columns, ", "))
}

// ─── Formatting ───────────────────────────────────────────────────────────────

func humanBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
