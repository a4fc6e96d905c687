// Package render converts Result values into human-readable or machine-parseable
// output. Each format is a separate function; the top-level Render dispatcher
// selects based on the format string.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/derickschaefer/periodic/internal/analyze"
	"github.com/derickschaefer/periodic/internal/model"
	"github.com/derickschaefer/periodic/internal/pipeline"
	"github.com/derickschaefer/periodic/internal/transform"
	"github.com/derickschaefer/periodic/internal/util"
	"github.com/olekukonko/tablewriter"
)

// Format constants matching --format flag values.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
	FormatMD    = "md"
)

// Render writes result to w in the specified format.
func Render(w io.Writer, result *model.Result, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatJSONL:
		return renderJSONL(w, result)
	case FormatCSV:
		return renderDelimited(w, result, ',')
	case FormatTSV:
		return renderDelimited(w, result, '\t')
	case FormatMD:
		return renderMarkdown(w, result)
	default:
		return renderTable(w, result)
	}
}

// RenderTo writes to stdout by default; if path is non-empty, writes to file.
func RenderTo(path string, result *model.Result, format string) error {
	if path == "" {
		return Render(os.Stdout, result, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	return Render(f, result, format)
}

// ─── JSON ─────────────────────────────────────────────────────────────────────

func renderJSON(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// ─── JSONL ────────────────────────────────────────────────────────────────────

// renderJSONL writes one record per line: frame rows as flat objects,
// slice payloads element by element, anything else as a single line.
func renderJSONL(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	switch d := result.Data.(type) {
	case *model.Frame:
		return pipeline.WriteJSONL(w, d, result.TimeFormat)
	case *transform.AggregateResult:
		return encodeEach(enc, d.Buckets)
	case []model.SeriesMeta:
		return encodeEach(enc, d)
	case []model.PeriodInfo:
		return encodeEach(enc, d)
	case []model.OrdinalRow:
		return encodeEach(enc, d)
	case []analyze.Gap:
		return encodeEach(enc, d)
	case []analyze.Summary:
		return encodeEach(enc, d)
	default:
		return enc.Encode(result.Data)
	}
}

func encodeEach[T any](enc *json.Encoder, items []T) error {
	for _, it := range items {
		if err := enc.Encode(it); err != nil {
			return err
		}
	}
	return nil
}

// ─── Tabulation ───────────────────────────────────────────────────────────────

// grid is the header and string cells every text format is drawn from.
type grid struct {
	header []string
	rows   [][]string
	// right lists the columns holding numbers.
	right map[int]bool
}

func fieldGrid(pairs [][2]string) *grid {
	g := &grid{header: []string{"FIELD", "VALUE"}}
	for _, p := range pairs {
		g.rows = append(g.rows, []string{p[0], p[1]})
	}
	return g
}

func numeric(cols ...int) map[int]bool {
	m := make(map[int]bool, len(cols))
	for _, c := range cols {
		m[c] = true
	}
	return m
}

// tabulate lays result out as a grid. It returns nil for payloads that
// have no tabular form.
func tabulate(result *model.Result) *grid {
	timeFmt := result.TimeFormat
	if timeFmt == nil {
		timeFmt = util.FormatTime
	}

	switch d := result.Data.(type) {
	case *model.Frame:
		return frameGrid(d, timeFmt)

	case *model.SeriesMeta:
		return fieldGrid([][2]string{
			{"ID", d.ID},
			{"Title", d.Title},
			{"Resolution", d.Resolution.Repr()},
			{"Periodicity", d.Periodicity.Repr()},
			{"Time Anchor", d.TimeAnchor},
			{"Time Column", d.TimeName},
			{"Columns", strings.Join(d.Columns, ", ")},
			{"Rows", strconv.Itoa(d.Rows)},
			{"First", formatInstant(d.First, timeFmt)},
			{"Last", formatInstant(d.Last, timeFmt)},
			{"Stored At", formatInstant(d.StoredAt, rfc3339)},
		})

	case []model.SeriesMeta:
		g := &grid{
			header: []string{"ID", "TITLE", "PERIODICITY", "ANCHOR", "ROWS", "FIRST", "LAST"},
			right:  numeric(4),
		}
		for _, m := range d {
			g.rows = append(g.rows, []string{
				m.ID,
				truncate(m.Title, 40),
				m.Periodicity.Repr(),
				m.TimeAnchor,
				strconv.Itoa(m.Rows),
				formatInstant(m.First, timeFmt),
				formatInstant(m.Last, timeFmt),
			})
		}
		return g

	case []model.PeriodInfo:
		if len(d) == 1 {
			p := d[0]
			return fieldGrid([][2]string{
				{"Input", p.Input},
				{"Canonical", p.Canonical},
				{"Repr", p.Repr},
				{"Step", p.Step},
				{"Multiplier", strconv.FormatInt(p.Multiplier, 10)},
				{"Month Offset", strconv.FormatInt(p.MonthOffset, 10)},
				{"Microsecond Offset", strconv.FormatInt(p.MicroOffset, 10)},
				{"Timezone", p.Timezone},
				{"Epoch Agnostic", strconv.FormatBool(p.EpochAgnostic)},
				{"Precision", p.Precision},
				{"Fixed Duration", p.FixedDuration},
				{"Ordinal Range", fmt.Sprintf("%d .. %d", p.FirstOrdinal, p.LastOrdinal)},
			})
		}
		g := &grid{header: []string{"INPUT", "REPR", "STEP", "MULTIPLIER", "AGNOSTIC", "PRECISION"}, right: numeric(3)}
		for _, p := range d {
			g.rows = append(g.rows, []string{
				p.Input, p.Repr, p.Step,
				strconv.FormatInt(p.Multiplier, 10),
				strconv.FormatBool(p.EpochAgnostic),
				p.Precision,
			})
		}
		return g

	case []model.OrdinalRow:
		g := &grid{header: []string{"INPUT", "ORDINAL", "START", "END", "ALIGNED"}, right: numeric(1)}
		for _, o := range d {
			g.rows = append(g.rows, []string{
				o.Input, strconv.FormatInt(o.Ordinal, 10), o.Start, o.End, strconv.FormatBool(o.Aligned),
			})
		}
		return g

	case *model.CountInfo:
		return fieldGrid([][2]string{
			{"Inner", d.Inner},
			{"Outer", d.Outer},
			{"Count", strconv.FormatInt(d.Count, 10)},
			{"Relation", d.Relation},
			{"Subperiod", strconv.FormatBool(d.Subperiod)},
		})

	case *model.ValidationReport:
		status := "ok"
		if !d.Valid {
			status = "FAILED"
		}
		pairs := [][2]string{
			{"Status", status},
			{"Resolution", d.Resolution},
			{"Periodicity", d.Periodicity},
			{"Time Anchor", d.TimeAnchor},
			{"On Duplicates", d.OnDuplicates},
			{"Input Rows", strconv.Itoa(d.InputRows)},
			{"Output Rows", strconv.Itoa(d.OutputRows)},
			{"Removed", strconv.Itoa(d.Removed)},
		}
		for _, p := range d.Problems {
			pairs = append(pairs, [2]string{"Problem", p})
		}
		return fieldGrid(pairs)

	case *transform.AggregateResult:
		g := &grid{
			header: []string{"START", "END", strings.ToUpper(d.Column + "_" + string(d.Func)), "AVAILABLE", "EXPECTED", "VALID"},
			right:  numeric(2, 3, 4),
		}
		for _, b := range d.Buckets {
			expected := ""
			if b.Expected > 0 {
				expected = strconv.Itoa(b.Expected)
			}
			g.rows = append(g.rows, []string{
				timeFmt(b.Start), timeFmt(b.End), formatValue(b.Value),
				strconv.Itoa(b.Available), expected, strconv.FormatBool(b.Valid),
			})
		}
		return g

	case []analyze.Gap:
		g := &grid{header: []string{"COLUMN", "START", "END", "LENGTH"}, right: numeric(3)}
		for _, gp := range d {
			g.rows = append(g.rows, []string{gp.Column, timeFmt(gp.Start), timeFmt(gp.End), strconv.Itoa(gp.Length)})
		}
		return g

	case []analyze.Summary:
		g := &grid{
			header: []string{"COLUMN", "COUNT", "MISSING", "MEAN", "STD", "MIN", "MEDIAN", "MAX", "CHANGE"},
			right:  numeric(1, 2, 3, 4, 5, 6, 7, 8),
		}
		for _, s := range d {
			g.rows = append(g.rows, []string{
				s.Column, strconv.Itoa(s.Count), strconv.Itoa(s.Missing),
				formatValue(s.Mean), formatValue(s.Std), formatValue(s.Min),
				formatValue(s.Median), formatValue(s.Max), formatValue(s.Change),
			})
		}
		return g

	case analyze.TrendResult:
		return fieldGrid([][2]string{
			{"Column", d.Column},
			{"Method", string(d.Method)},
			{"Direction", d.Direction},
			{"Slope / day", formatValue(d.Slope)},
			{"Slope / year", formatValue(d.SlopePerYear)},
			{"Intercept", formatValue(d.Intercept)},
			{"R²", formatValue(d.R2)},
		})

	case *model.Table:
		return &grid{header: d.Header, rows: d.Rows}
	}
	return nil
}

func frameGrid(f *model.Frame, timeFmt func(time.Time) string) *grid {
	name := f.TimeName
	if name == "" {
		name = pipeline.DefaultTimeColumn
	}
	g := &grid{header: append([]string{strings.ToUpper(name)}, f.Columns...), right: map[int]bool{}}
	for i := range f.Columns {
		g.right[i+1] = true
	}
	for _, r := range f.Rows {
		row := make([]string, 0, len(r.Values)+1)
		row = append(row, timeFmt(r.Time))
		for _, v := range r.Values {
			row = append(row, formatValue(v))
		}
		g.rows = append(g.rows, row)
	}
	return g
}

// ─── Table ────────────────────────────────────────────────────────────────────

func renderTable(w io.Writer, result *model.Result) error {
	g := tabulate(result)
	if g == nil {
		// Fallback: JSON
		return renderJSON(w, result)
	}

	tw := tablewriter.NewWriter(w)
	tw.SetHeader(g.header)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	if len(g.right) > 0 {
		align := make([]int, len(g.header))
		for i := range align {
			align[i] = tablewriter.ALIGN_LEFT
			if g.right[i] {
				align[i] = tablewriter.ALIGN_RIGHT
			}
		}
		tw.SetColumnAlignment(align)
	}
	tw.SetAutoWrapText(false)
	tw.AppendBulk(g.rows)
	tw.Render()
	return nil
}

// ─── CSV / TSV ────────────────────────────────────────────────────────────────

func renderDelimited(w io.Writer, result *model.Result, sep rune) error {
	// Frames keep machine-readable nulls: an empty cell, not ".".
	if f, ok := result.Data.(*model.Frame); ok {
		return pipeline.WriteCSV(w, f, sep, result.TimeFormat)
	}

	cw := csv.NewWriter(w)
	cw.Comma = sep

	if g := tabulate(result); g != nil {
		header := make([]string, len(g.header))
		for i, h := range g.header {
			header[i] = strings.ToLower(strings.ReplaceAll(h, " ", "_"))
		}
		_ = cw.Write(header)
		_ = cw.WriteAll(g.rows)
	} else {
		// Fallback: serialize as JSON on a single line
		b, _ := json.Marshal(result.Data)
		_ = cw.Write([]string{string(b)})
	}

	cw.Flush()
	return cw.Error()
}

// ─── Markdown ─────────────────────────────────────────────────────────────────

func renderMarkdown(w io.Writer, result *model.Result) error {
	g := tabulate(result)
	if g == nil {
		return renderJSON(w, result)
	}
	sep := make([]string, len(g.header))
	for i := range sep {
		sep[i] = "---"
		if g.right[i] {
			sep[i] = "---:"
		}
	}
	writeMDRow(w, g.header)
	writeMDRow(w, sep)
	for _, r := range g.rows {
		writeMDRow(w, r)
	}
	return nil
}

func writeMDRow(w io.Writer, cells []string) {
	esc := make([]string, len(cells))
	for i, c := range cells {
		esc[i] = mdEscape(c)
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(esc, " | "))
}

// ─── Warnings / Stats Footer ─────────────────────────────────────────────────

// PrintFooter writes warnings and stats to w when verbose mode is on.
func PrintFooter(w io.Writer, result *model.Result, verbose bool) {
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "⚠  %s\n", warn)
	}
	if verbose {
		fmt.Fprintf(w, "\n[%s • %s • %d items • %dms]\n",
			result.GeneratedAt.Format(time.RFC3339),
			result.Command,
			result.Stats.Items,
			result.Stats.DurationMs,
		)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// formatValue formats a value for display.
// Always shows at least one decimal place (e.g. 4.0, not 4).
// Trims unnecessary trailing zeros beyond the first (e.g. 3.400000 → 3.4).
// Missing values (NaN) render as ".".
func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "."
	}
	if math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	// Trim trailing zeros but keep at least one digit after the decimal point.
	s := strings.TrimRight(fmt.Sprintf("%.6f", v), "0")
	if strings.HasSuffix(s, ".") {
		s += "0" // "4." → "4.0"
	}
	return s
}

// formatInstant renders t, leaving unset times blank.
func formatInstant(t time.Time, format func(time.Time) string) string {
	if t.IsZero() {
		return ""
	}
	return format(t)
}

func rfc3339(t time.Time) string { return t.Format(time.RFC3339) }

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
