// Package chart renders one frame column as an ASCII terminal chart.
//
//   - Bar: one horizontal bar per row, for short or aggregated series
//   - Plot: a multi-line curve with labelled axes, for long series
//
// Null values are gaps, never zeros. Time labels come from a caller-supplied
// function, normally the FormatTime of the period the series is sampled on.
package chart

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/derickschaefer/periodic/internal/model"
)

// Series is a single column taken out of a frame.
type Series struct {
	Name   string
	Times  []time.Time
	Values []float64 // NaN is null
}

// FromFrame extracts column from f. The series name is the column name.
func FromFrame(f *model.Frame, column string) (Series, error) {
	col, ok := f.Column(column)
	if !ok {
		return Series{}, fmt.Errorf("chart: column %q not found (have %s)", column, strings.Join(f.Columns, ", "))
	}
	s := Series{
		Name:   column,
		Times:  make([]time.Time, len(f.Rows)),
		Values: make([]float64, len(f.Rows)),
	}
	for i, r := range f.Rows {
		s.Times[i] = r.Time
		s.Values[i] = r.Values[col]
	}
	return s, nil
}

// Len returns the number of points, null or not.
func (s Series) Len() int { return len(s.Values) }

// nonNull returns the indexes of the non-null points.
func (s Series) nonNull() []int {
	var idx []int
	for i, v := range s.Values {
		if !math.IsNaN(v) {
			idx = append(idx, i)
		}
	}
	return idx
}

// LabelFunc formats a timestamp for an axis or bar label.
type LabelFunc func(time.Time) string

func defaultLabel(t time.Time) string { return t.Format("2006-01-02") }

// ─── Bar ─────────────────────────────────────────────────────────────────────

// BarOptions controls horizontal bar chart rendering.
type BarOptions struct {
	// Width is the total character width. 0 reads $COLUMNS, falling back to 80.
	Width int
	// MaxBars keeps only the last MaxBars non-null points. 0 is no limit.
	MaxBars int
	Label   LabelFunc
}

// denseBars is the point count above which Bar suggests aggregating first.
const denseBars = 60

// Bar renders one bar per non-null point of s:
//
//	flow  2020 – 2023
//	2020  3.5  ████████████
//	2021  5.4  ████████████████████
//	2022  3.7  █████████████
func Bar(w io.Writer, s Series, opts BarOptions) error {
	totalWidth := opts.Width
	if totalWidth <= 0 {
		totalWidth = termWidth()
	}
	label := opts.Label
	if label == nil {
		label = defaultLabel
	}

	idx := s.nonNull()
	if len(idx) == 0 {
		return fmt.Errorf("chart bar: %s has no non-null values", s.Name)
	}
	if opts.MaxBars > 0 && len(idx) > opts.MaxBars {
		idx = idx[len(idx)-opts.MaxBars:]
	}
	if len(idx) > denseBars {
		fmt.Fprintf(w, "⚠  %d bars; consider: periodic transform aggregate --window <period> --frame\n\n", len(idx))
	}

	minVal, maxVal := s.Values[idx[0]], s.Values[idx[0]]
	labelWidth, valWidth := 0, 0
	for _, i := range idx {
		v := s.Values[i]
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
		labelWidth = max(labelWidth, len(label(s.Times[i])))
		valWidth = max(valWidth, len(formatFloat(v)))
	}

	barAreaWidth := max(totalWidth-labelWidth-valWidth-4, 4)
	valRange := maxVal - minVal
	if valRange == 0 {
		valRange = 1
	}

	// With negative values bars grow both ways from a zero column.
	hasNeg := minVal < 0
	zeroPos := 0
	if hasNeg {
		zeroPos = int(math.Round((-minVal / valRange) * float64(barAreaWidth-1)))
	}

	fmt.Fprintf(w, "%s  %s – %s\n", s.Name, label(s.Times[idx[0]]), label(s.Times[idx[len(idx)-1]]))
	for _, i := range idx {
		v := s.Values[i]
		var bar string
		if hasNeg {
			bar = biBar(v, valRange, barAreaWidth, zeroPos)
		} else {
			n := int(math.Round((v - minVal) / valRange * float64(barAreaWidth)))
			bar = strings.Repeat("█", min(max(n, 1), barAreaWidth))
		}
		fmt.Fprintf(w, "%-*s  %*s  %s\n", labelWidth, label(s.Times[i]), valWidth, formatFloat(v), bar)
	}
	return nil
}

// biBar draws v left or right of the zero column.
func biBar(v, valRange float64, width, zeroPos int) string {
	buf := []rune(strings.Repeat(" ", width))
	if zeroPos >= 0 && zeroPos < width {
		buf[zeroPos] = '│'
	}
	n := int(math.Round(math.Abs(v) / valRange * float64(width-1)))
	if v >= 0 {
		for i := zeroPos + 1; i <= zeroPos+n && i < width; i++ {
			buf[i] = '█'
		}
	} else {
		for i := max(zeroPos-n, 0); i < zeroPos; i++ {
			buf[i] = '█'
		}
	}
	return string(buf)
}

// ─── Plot ─────────────────────────────────────────────────────────────────────

// PlotOptions controls multi-line plot rendering.
type PlotOptions struct {
	// Width includes the Y-axis labels. 0 reads $COLUMNS, falling back to 80.
	Width int
	// Height is the number of rows in the body. 0 means 12.
	Height int
	// Title defaults to the series name.
	Title string
	Label LabelFunc
}

// Plot renders s as a curve. Each character column averages the points
// that fall into it; columns with only nulls are left blank.
func Plot(w io.Writer, s Series, opts PlotOptions) error {
	width := opts.Width
	if width <= 0 {
		width = termWidth()
	}
	height := opts.Height
	if height <= 0 {
		height = 12
	}
	title := opts.Title
	if title == "" {
		title = s.Name
	}
	label := opts.Label
	if label == nil {
		label = defaultLabel
	}

	idx := s.nonNull()
	if len(idx) < 2 {
		return fmt.Errorf("chart plot: need at least 2 non-null values (got %d)", len(idx))
	}
	minVal, maxVal := s.Values[idx[0]], s.Values[idx[0]]
	for _, i := range idx[1:] {
		minVal = math.Min(minVal, s.Values[i])
		maxVal = math.Max(maxVal, s.Values[i])
	}

	ticks := yTicks(minVal, maxVal, height)
	yLabelWidth := 0
	for _, t := range ticks {
		yLabelWidth = max(yLabelWidth, len(formatFloat(t)))
	}
	plotWidth := max(width-yLabelWidth-2, 10)

	grid := buildGrid(sampleCols(s.Values, plotWidth), minVal, maxVal, height)

	fmt.Fprintf(w, "%s  (%s to %s)\n", title, label(s.Times[0]), label(s.Times[s.Len()-1]))
	for row := 0; row < height; row++ {
		tick := ""
		for _, t := range ticks {
			if math.Abs(rowForValue(t, minVal, maxVal, height)-float64(row)) < 0.5 {
				tick = formatFloat(t)
				break
			}
		}
		axis := " "
		switch {
		case tick != "" && math.Abs(minVal) < 1e-9 && row == height-1:
			axis = "┼"
		case tick != "":
			axis = "┤"
		}
		fmt.Fprintf(w, "%*s%s%s\n", yLabelWidth, tick, axis, string(grid[row]))
	}
	fmt.Fprintf(w, "%s└%s\n", strings.Repeat(" ", yLabelWidth), strings.Repeat("─", plotWidth))
	fmt.Fprintf(w, "%s %s\n", strings.Repeat(" ", yLabelWidth), xAxisLabels(s, label, plotWidth))
	return nil
}

// ─── Grid building ────────────────────────────────────────────────────────────

// sampleCols reduces values to n columns, each the mean of its bucket.
func sampleCols(values []float64, n int) []float64 {
	total := len(values)
	cols := make([]float64, n)
	for col := range cols {
		lo := col * total / n
		hi := min((col+1)*total/n-1, total-1)
		sum, count := 0.0, 0
		for i := lo; i <= hi; i++ {
			if !math.IsNaN(values[i]) {
				sum += values[i]
				count++
			}
		}
		if count == 0 {
			cols[col] = math.NaN()
		} else {
			cols[col] = sum / float64(count)
		}
	}
	return cols
}

// rowForValue maps v to a fractional row, 0 being the top (maxVal).
func rowForValue(v, minVal, maxVal float64, height int) float64 {
	if maxVal == minVal {
		return float64(height) / 2
	}
	return (maxVal - v) / (maxVal - minVal) * float64(height-1)
}

// buildGrid draws cols into a height×len(cols) rune grid, joining
// neighbouring points with box-drawing characters.
func buildGrid(cols []float64, minVal, maxVal float64, height int) [][]rune {
	grid := make([][]rune, height)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", len(cols)))
	}

	const gap, edge = -1, -2
	rowOf := make([]int, len(cols))
	for col, v := range cols {
		if math.IsNaN(v) {
			rowOf[col] = gap
			continue
		}
		rowOf[col] = min(max(int(math.Round(rowForValue(v, minVal, maxVal, height))), 0), height-1)
	}

	for col, r := range rowOf {
		if r < 0 {
			continue
		}
		prev, next := edge, edge
		if col > 0 {
			prev = rowOf[col-1]
		}
		if col < len(cols)-1 {
			next = rowOf[col+1]
		}

		switch {
		case prev == edge && next == edge:
			grid[r][col] = '·'
		case (prev < 0 || prev == r) && (next < 0 || next == r):
			grid[r][col] = '─'
		case prev >= 0 && next >= 0 && (prev < r) == (next < r) && prev != r && next != r:
			// peak or trough
			grid[r][col] = '─'
		case (prev < 0 || prev < r) && next > r:
			grid[r][col] = '╭'
		case (prev < 0 || prev > r) && next >= 0 && next < r:
			grid[r][col] = '╰'
		case prev >= 0 && prev < r && (next < 0 || next > r):
			grid[r][col] = '╮'
		case prev > r && (next < 0 || next < r):
			grid[r][col] = '╯'
		default:
			grid[r][col] = '│'
		}

		if prev >= 0 && prev != r {
			lo, hi := min(r, prev), max(r, prev)
			for fill := lo + 1; fill < hi; fill++ {
				if grid[fill][col] == ' ' {
					grid[fill][col] = '│'
				}
			}
		}
	}
	return grid
}

// ─── Axis helpers ─────────────────────────────────────────────────────────────

func yTicks(minVal, maxVal float64, height int) []float64 {
	if maxVal == minVal {
		return []float64{minVal}
	}
	n := 4
	if height <= 6 {
		n = 3
	}
	ticks := make([]float64, n)
	for i := range ticks {
		ticks[i] = minVal + float64(i)*(maxVal-minVal)/float64(n-1)
	}
	return ticks
}

// xAxisLabels places the first, middle and last time labels under the plot.
func xAxisLabels(s Series, label LabelFunc, plotWidth int) string {
	if s.Len() == 0 {
		return ""
	}
	first := label(s.Times[0])
	mid := label(s.Times[s.Len()/2])
	last := label(s.Times[s.Len()-1])

	buf := []rune(strings.Repeat(" ", plotWidth))
	writeAt := func(pos int, text string) {
		for i, ch := range []rune(text) {
			if pos+i >= 0 && pos+i < len(buf) {
				buf[pos+i] = ch
			}
		}
	}
	writeAt(0, first)
	writeAt(plotWidth/2-len(mid)/2, mid)
	writeAt(plotWidth-len(last), last)
	return string(buf)
}

// ─── Utilities ────────────────────────────────────────────────────────────────

// formatFloat formats an axis or bar value compactly, keeping at least one
// decimal place.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "."
	}
	abs := math.Abs(v)
	switch {
	case abs == 0:
		return "0"
	case abs >= 1e6:
		return strconv.FormatFloat(v/1e6, 'f', 1, 64) + "M"
	case abs >= 1e3:
		return strconv.FormatFloat(v/1e3, 'f', 1, 64) + "K"
	}
	prec := 4
	switch {
	case abs >= 100:
		prec = 1
	case abs >= 1:
		prec = 2
	}
	s := strings.TrimRight(strconv.FormatFloat(v, 'f', prec, 64), "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}

// termWidth returns $COLUMNS, defaulting to 80.
func termWidth() int {
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if n, err := strconv.Atoi(cols); err == nil && n > 20 {
			return n
		}
	}
	return 80
}
