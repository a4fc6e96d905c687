package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/derickschaefer/periodic/internal/app"
	"github.com/derickschaefer/periodic/internal/model"
	"github.com/derickschaefer/periodic/internal/render"
	"github.com/derickschaefer/periodic/internal/validate"
)

// errValidationFailed is returned after a failing report has been printed.
var errValidationFailed = errors.New("validation failed")

// validationFlags are shared by validate and store import.
type validationFlags struct {
	resolution     periodFlag
	periodicity    periodFlag
	anchor         string
	duplicates     string
	dropMisaligned bool
}

func (vf *validationFlags) register(fs *pflag.FlagSet) {
	fs.Var(&vf.resolution, "resolution", "grid every timestamp must sit on, e.g. P1D or @name (default: PT0.000001S)")
	fs.Var(&vf.periodicity, "periodicity", "grid allowing at most one timestamp per interval (default: the resolution)")
	fs.StringVar(&vf.anchor, "anchor", "", "what timestamps denote: point|start|end (default: config time_anchor)")
	fs.StringVar(&vf.duplicates, "on-duplicates", "", "duplicate timestamps: error|drop|keep_first|keep_last|merge (default: config on_duplicates)")
	fs.BoolVar(&vf.dropMisaligned, "drop-misaligned", false, "remove rows off the resolution grid instead of failing")
}

// validator builds the validator the flags describe on top of the config.
func (vf *validationFlags) validator(deps *app.Deps) (*validate.Validator, error) {
	res, err := vf.resolution.resolve(deps)
	if err != nil {
		return nil, fmt.Errorf("--resolution: %w", err)
	}
	per, err := vf.periodicity.resolve(deps)
	if err != nil {
		return nil, fmt.Errorf("--periodicity: %w", err)
	}
	var opts []validate.Option
	if vf.anchor != "" {
		a, err := validate.ParseTimeAnchor(vf.anchor)
		if err != nil {
			return nil, err
		}
		opts = append(opts, validate.WithTimeAnchor(a))
	}
	if vf.duplicates != "" {
		d, err := validate.ParseDuplicateStrategy(vf.duplicates)
		if err != nil {
			return nil, err
		}
		opts = append(opts, validate.WithDuplicates(d))
	}
	return deps.NewValidator(res, per, opts...)
}

// validation is the outcome of one validationFlags.run.
type validation struct {
	validator *validate.Validator
	frame     *model.Frame // nil unless the report is valid
	report    *model.ValidationReport
}

// run validates f. Domain failures are described in the report; only
// configuration and I/O problems are returned as errors.
func (vf *validationFlags) run(cmd *cobra.Command, deps *app.Deps, f *model.Frame) (*validation, error) {
	v, err := vf.validator(deps)
	if err != nil {
		return nil, err
	}
	report := &model.ValidationReport{
		Resolution:   v.Resolution().Repr(),
		Periodicity:  v.Periodicity().Repr(),
		TimeAnchor:   v.TimeAnchor().String(),
		OnDuplicates: v.Duplicates().String(),
		InputRows:    f.Len(),
	}
	ctx := cmd.Context()

	in := f
	if vf.dropMisaligned {
		var dropped []time.Time
		if in, dropped, err = v.RemoveMisaligned(ctx, f); err != nil {
			return nil, err
		}
		if len(dropped) > 0 {
			deps.Logger.Info("misaligned rows removed", "count", len(dropped))
		}
	}

	out, err := v.Validate(ctx, in)
	switch {
	case err == nil:
		report.Valid = true
		report.OutputRows = out.Len()
		report.Removed = report.InputRows - report.OutputRows
		return &validation{validator: v, frame: out, report: report}, nil
	case isValidationFailure(err):
		report.Problems = problems(err)
		return &validation{validator: v, report: report}, nil
	default:
		return nil, err
	}
}

func isValidationFailure(err error) bool {
	return errors.Is(err, validate.ErrResolution) ||
		errors.Is(err, validate.ErrPeriodicity) ||
		errors.Is(err, validate.ErrDuplicateTimestamp)
}

// problems splits a joined validation error into one message per check.
func problems(err error) []string {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range j.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

// ─── validate ─────────────────────────────────────────────────────────────────

var (
	validateIn    inputFlags
	validateFlags validationFlags
	validateEmit  bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a frame against a resolution and periodicity",
	Long: `Validate reads a frame (JSONL by default) and checks that

  - every timestamp sits on the resolution grid, and
  - no two timestamps fall in the same periodicity interval.

Duplicate timestamps are resolved first according to --on-duplicates.
Rows are sorted by time. With --emit the cleaned frame is written instead
of the report, ready to pipe into 'periodic transform' or 'periodic analyze'.
The command exits non-zero when validation fails.`,
	Example: `  periodic validate --resolution P1D < flow.jsonl
  periodic validate --resolution PT1H --periodicity P1D --anchor end --file stage.csv
  periodic validate --resolution @water-year --on-duplicates keep_last --emit < wy.jsonl`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		started := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		f, err := validateIn.read(cmd.InOrStdin())
		if err != nil {
			return err
		}
		val, err := validateFlags.run(cmd, deps, f)
		if err != nil {
			return err
		}
		out, report := val.frame, val.report

		if validateEmit && report.Valid {
			res := newResult(model.KindFrame, "validate", out, out.Len(), started)
			if report.Removed > 0 {
				res.Warnings = append(res.Warnings, fmt.Sprintf("%d rows removed", report.Removed))
			}
			if globalFlags.Format == "" {
				return emitFrameJSONL(cmd, deps, res)
			}
			return emit(cmd, deps, res)
		}

		res := newResult(model.KindValidation, "validate", report, report.InputRows, started)
		w := cmd.OutOrStdout()
		if validateEmit {
			// No frame follows, so keep stdout clean for the pipe.
			w = cmd.ErrOrStderr()
		}
		if err := emitTo(cmd, w, deps, res); err != nil {
			return err
		}
		if !report.Valid {
			return fmt.Errorf("%w: %d problem(s)", errValidationFailed, len(report.Problems))
		}
		return nil
	},
}

// emitFrameJSONL writes a frame in the pipe format regardless of the
// configured default.
func emitFrameJSONL(cmd *cobra.Command, deps *app.Deps, res *model.Result) error {
	saved := deps.Config.Format
	deps.Config.Format = render.FormatJSONL
	defer func() { deps.Config.Format = saved }()
	return emit(cmd, deps, res)
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateIn.register(validateCmd.Flags())
	validateFlags.register(validateCmd.Flags())
	validateCmd.Flags().BoolVar(&validateEmit, "emit", false,
		"write the validated frame (JSONL unless --format is given) instead of the report")
}
