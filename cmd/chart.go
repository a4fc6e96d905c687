package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/periodic/internal/chart"
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Render a frame column as an ASCII chart (reads JSONL from stdin)",
	Long: `Chart commands read a frame from stdin and render one column to the terminal.

Pipeline examples:
  periodic transform aggregate --window P1Y+9M --fn max --frame < flow.jsonl | periodic chart bar --label P1Y
  periodic store get FLOW --format jsonl | periodic chart plot --label P1D`,
}

// chartFlags are shared by both chart commands.
type chartFlags struct {
	in     inputFlags
	column string
	label  periodFlag
	width  int
}

func (c *chartFlags) register(cmd *cobra.Command) {
	c.in.register(cmd.Flags())
	cmd.Flags().StringVar(&c.column, "column", "", "column to chart (default: the only column)")
	cmd.Flags().Var(&c.label, "label", "format time labels at this period's precision, e.g. P1M (default: date)")
	cmd.Flags().IntVar(&c.width, "width", 0, "total width in characters (default: $COLUMNS, fallback 80)")
}

// series reads the frame and returns the chosen column with its label format.
func (c *chartFlags) series(cmd *cobra.Command) (chart.Series, chart.LabelFunc, error) {
	deps, err := buildDeps()
	if err != nil {
		return chart.Series{}, nil, err
	}
	defer deps.Close()

	var label chart.LabelFunc
	if c.label.set() {
		p, err := c.label.resolve(deps)
		if err != nil {
			return chart.Series{}, nil, fmt.Errorf("--label: %w", err)
		}
		label = p.FormatTime
	}

	f, err := c.in.read(cmd.InOrStdin())
	if err != nil {
		return chart.Series{}, nil, err
	}
	column, err := pickColumn(f, c.column)
	if err != nil {
		return chart.Series{}, nil, err
	}
	s, err := chart.FromFrame(f, column)
	if err != nil {
		return chart.Series{}, nil, err
	}
	if f.Name != "" {
		s.Name = f.Name + " " + column
	}
	return s, label, nil
}

// ─── chart bar ───────────────────────────────────────────────────────────────

var (
	barFlags   chartFlags
	barMaxBars int
)

var chartBarCmd = &cobra.Command{
	Use:   "bar",
	Short: "Horizontal bar chart, one bar per row",
	Long: `Renders one labelled bar per non-null row.

Best suited to short series. Aggregate long ones first:

  periodic transform aggregate --window P1Y --fn mean --frame < daily.jsonl \
    | periodic chart bar --label P1Y

Negative values extend left from a zero baseline. Null rows are skipped.`,
	Example: `  periodic chart bar --file annual_peaks.csv --label P1Y
  periodic store get WY --format jsonl | periodic chart bar --max-bars 10`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, label, err := barFlags.series(cmd)
		if err != nil {
			return err
		}
		return chart.Bar(cmd.OutOrStdout(), s, chart.BarOptions{
			Width:   barFlags.width,
			MaxBars: barMaxBars,
			Label:   label,
		})
	},
}

// ─── chart plot ──────────────────────────────────────────────────────────────

var (
	plotFlags  chartFlags
	plotHeight int
	plotTitle  string
)

var chartPlotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Multi-line ASCII chart with labelled axes",
	Long: `Renders a curve with Y-axis ticks and start, middle and end time labels.

Null values appear as gaps in the curve, not zeros.`,
	Example: `  periodic store get FLOW --format jsonl | periodic chart plot --label P1D
  periodic transform pad --periodicity PT15M < stage.jsonl | periodic chart plot --height 16 --title "Stage"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, label, err := plotFlags.series(cmd)
		if err != nil {
			return err
		}
		return chart.Plot(cmd.OutOrStdout(), s, chart.PlotOptions{
			Width:  plotFlags.width,
			Height: plotHeight,
			Title:  plotTitle,
			Label:  label,
		})
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(chartCmd)
	chartCmd.AddCommand(chartBarCmd)
	chartCmd.AddCommand(chartPlotCmd)

	barFlags.register(chartBarCmd)
	chartBarCmd.Flags().IntVar(&barMaxBars, "max-bars", 0,
		"render only the last N bars (0 = no limit)")

	plotFlags.register(chartPlotCmd)
	chartPlotCmd.Flags().IntVar(&plotHeight, "height", 12, "chart height in rows")
	chartPlotCmd.Flags().StringVar(&plotTitle, "title", "", "chart title (default: column name)")
}
