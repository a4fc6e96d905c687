// Package analyze computes statistical summaries, gap reports and trend
// analysis over frames. All functions are pure; no I/O.
package analyze

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/derickschaefer/periodic/internal/model"
)

// ─── Summary ──────────────────────────────────────────────────────────────────

// Summary holds descriptive statistics for one frame column.
type Summary struct {
	Column     string  `json:"column"`
	Count      int     `json:"count"`       // total rows
	Missing    int     `json:"missing"`     // NaN count
	MissingPct float64 `json:"missing_pct"` // percent missing
	Mean       float64 `json:"mean"`
	Std        float64 `json:"std"`
	Min        float64 `json:"min"`
	P25        float64 `json:"p25"`
	Median     float64 `json:"median"`
	P75        float64 `json:"p75"`
	Max        float64 `json:"max"`
	Skew       float64 `json:"skew"`
	First      float64 `json:"first"`      // first non-NaN value
	Last       float64 `json:"last"`       // last non-NaN value
	Change     float64 `json:"change"`     // Last - First
	ChangePct  float64 `json:"change_pct"` // (Last-First)/First * 100
}

// MarshalJSON writes undefined statistics as null.
func (s Summary) MarshalJSON() ([]byte, error) {
	type nullable struct {
		Column     string   `json:"column"`
		Count      int      `json:"count"`
		Missing    int      `json:"missing"`
		MissingPct *float64 `json:"missing_pct"`
		Mean       *float64 `json:"mean"`
		Std        *float64 `json:"std"`
		Min        *float64 `json:"min"`
		P25        *float64 `json:"p25"`
		Median     *float64 `json:"median"`
		P75        *float64 `json:"p75"`
		Max        *float64 `json:"max"`
		Skew       *float64 `json:"skew"`
		First      *float64 `json:"first"`
		Last       *float64 `json:"last"`
		Change     *float64 `json:"change"`
		ChangePct  *float64 `json:"change_pct"`
	}
	n := model.Nullable
	return json.Marshal(nullable{
		Column: s.Column, Count: s.Count, Missing: s.Missing,
		MissingPct: n(s.MissingPct), Mean: n(s.Mean), Std: n(s.Std),
		Min: n(s.Min), P25: n(s.P25), Median: n(s.Median), P75: n(s.P75),
		Max: n(s.Max), Skew: n(s.Skew), First: n(s.First), Last: n(s.Last),
		Change: n(s.Change), ChangePct: n(s.ChangePct),
	})
}

// Summarize computes descriptive statistics for every column of f, in
// column order.
func Summarize(f *model.Frame) []Summary {
	out := make([]Summary, len(f.Columns))
	for i, c := range f.Columns {
		out[i] = SummarizeValues(c, columnValues(f, i))
	}
	return out
}

func columnValues(f *model.Frame, col int) []float64 {
	vals := make([]float64, len(f.Rows))
	for i, r := range f.Rows {
		vals[i] = r.Values[col]
	}
	return vals
}

// SummarizeValues computes descriptive statistics over values in row order.
// NaN values are excluded from all numeric computations but counted.
func SummarizeValues(column string, values []float64) Summary {
	s := Summary{Column: column, Count: len(values)}
	if len(values) == 0 {
		return s
	}

	var vals []float64
	for _, v := range values {
		if math.IsNaN(v) {
			s.Missing++
		} else {
			vals = append(vals, v)
		}
	}
	s.MissingPct = float64(s.Missing) / float64(s.Count) * 100
	if len(vals) == 0 {
		s.Mean = math.NaN()
		s.Std = math.NaN()
		s.Min = math.NaN()
		s.Max = math.NaN()
		s.Median = math.NaN()
		s.P25 = math.NaN()
		s.P75 = math.NaN()
		s.Skew = math.NaN()
		s.First = math.NaN()
		s.Last = math.NaN()
		s.Change = math.NaN()
		s.ChangePct = math.NaN()
		return s
	}

	// Sort for percentile computation
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Mean = sumF(vals) / float64(len(vals))
	s.Std = stddevF(vals, s.Mean)
	s.Median = percentile(sorted, 50)
	s.P25 = percentile(sorted, 25)
	s.P75 = percentile(sorted, 75)
	s.Skew = skewness(vals, s.Mean, s.Std)

	s.First = vals[0]
	s.Last = vals[len(vals)-1]
	s.Change = s.Last - s.First
	if s.First != 0 {
		s.ChangePct = s.Change / math.Abs(s.First) * 100
	} else {
		s.ChangePct = math.NaN()
	}
	return s
}

// ─── Gaps ─────────────────────────────────────────────────────────────────────

// Gap is a run of consecutive null values in one column.
type Gap struct {
	Column string    `json:"column"`
	Start  time.Time `json:"start"` // time of the first null row
	End    time.Time `json:"end"`   // time of the last null row
	Length int       `json:"length"`
}

// Gaps lists runs of consecutive nulls in the named columns, or in every
// column when none are named. Rows absent from the frame are not seen;
// pad the frame to its periodicity first to report them.
func Gaps(f *model.Frame, columns ...string) ([]Gap, error) {
	idx := make([]int, 0, len(f.Columns))
	if len(columns) == 0 {
		for i := range f.Columns {
			idx = append(idx, i)
		}
	}
	for _, c := range columns {
		i, ok := f.Column(c)
		if !ok {
			return nil, fmt.Errorf("gaps: column %q not found (have %s)", c, strings.Join(f.Columns, ", "))
		}
		idx = append(idx, i)
	}

	var out []Gap
	for _, col := range idx {
		var cur *Gap
		for _, r := range f.Rows {
			if !math.IsNaN(r.Values[col]) {
				if cur != nil {
					out = append(out, *cur)
					cur = nil
				}
				continue
			}
			if cur == nil {
				cur = &Gap{Column: f.Columns[col], Start: r.Time}
			}
			cur.End = r.Time
			cur.Length++
		}
		if cur != nil {
			out = append(out, *cur)
		}
	}
	return out, nil
}

// ─── Trend ────────────────────────────────────────────────────────────────────

// TrendMethod selects the regression algorithm.
type TrendMethod string

const (
	TrendLinear   TrendMethod = "linear"
	TrendTheilSen TrendMethod = "theil-sen"
)

// TrendResult holds the output of a trend analysis.
type TrendResult struct {
	Column       string      `json:"column"`
	Method       TrendMethod `json:"method"`
	Slope        float64     `json:"slope"` // units per day
	Intercept    float64     `json:"intercept"`
	R2           float64     `json:"r2"`
	Direction    string      `json:"direction"`      // "up", "down", "flat"
	SlopePerYear float64     `json:"slope_per_year"` // slope * 365.25
}

// Trend fits a linear trend to one column of f.
// X values are days since the first non-null row.
// NaN values are excluded.
func Trend(f *model.Frame, column string, method TrendMethod) (TrendResult, error) {
	tr := TrendResult{Column: column, Method: method}
	col, ok := f.Column(column)
	if !ok {
		return tr, fmt.Errorf("trend: column %q not found (have %s)", column, strings.Join(f.Columns, ", "))
	}

	// Build (x, y) pairs
	var pts []point
	var t0 time.Time
	for _, r := range f.Rows {
		v := r.Values[col]
		if math.IsNaN(v) {
			continue
		}
		if len(pts) == 0 {
			t0 = r.Time
		}
		x := r.Time.Sub(t0).Hours() / 24 // days from first value
		pts = append(pts, point{x, v})
	}
	if len(pts) < 2 {
		return tr, fmt.Errorf("trend: need at least 2 non-NaN values, got %d", len(pts))
	}

	switch method {
	case TrendTheilSen:
		tr.Slope = theilSenSlope(pts)
		// Use OLS intercept with Theil-Sen slope
		xMean := meanPts(pts, func(p point) float64 { return p.x })
		yMean := meanPts(pts, func(p point) float64 { return p.y })
		tr.Intercept = yMean - tr.Slope*xMean
	default: // linear OLS
		tr.Slope, tr.Intercept = olsRegress(pts)
	}

	tr.R2 = r2(pts, tr.Slope, tr.Intercept)
	tr.SlopePerYear = tr.Slope * 365.25

	switch {
	case tr.SlopePerYear > 0.01:
		tr.Direction = "up"
	case tr.SlopePerYear < -0.01:
		tr.Direction = "down"
	default:
		tr.Direction = "flat"
	}
	return tr, nil
}

// ─── Math helpers ─────────────────────────────────────────────────────────────

func sumF(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}

func stddevF(vals []float64, m float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	var sq float64
	for _, v := range vals {
		d := v - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(vals)-1))
}

func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	idx := p / 100 * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func skewness(vals []float64, mean, std float64) float64 {
	n := float64(len(vals))
	if n < 3 || std == 0 {
		return 0
	}
	var s float64
	for _, v := range vals {
		d := (v - mean) / std
		s += d * d * d
	}
	return s * n / ((n - 1) * (n - 2))
}

type point struct{ x, y float64 }

func olsRegress(pts []point) (slope, intercept float64) {
	n := float64(len(pts))
	var xSum, ySum, xySum, x2Sum float64
	for _, p := range pts {
		xSum += p.x
		ySum += p.y
		xySum += p.x * p.y
		x2Sum += p.x * p.x
	}
	denom := n*x2Sum - xSum*xSum
	if denom == 0 {
		return 0, ySum / n
	}
	slope = (n*xySum - xSum*ySum) / denom
	intercept = (ySum - slope*xSum) / n
	return
}

func theilSenSlope(pts []point) float64 {
	var slopes []float64
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			dx := pts[j].x - pts[i].x
			if dx == 0 {
				continue
			}
			slopes = append(slopes, (pts[j].y-pts[i].y)/dx)
		}
	}
	if len(slopes) == 0 {
		return 0
	}
	sort.Float64s(slopes)
	return percentile(slopes, 50)
}

func r2(pts []point, slope, intercept float64) float64 {
	var yMean float64
	for _, p := range pts {
		yMean += p.y
	}
	yMean /= float64(len(pts))

	var ssTot, ssRes float64
	for _, p := range pts {
		pred := slope*p.x + intercept
		ssTot += (p.y - yMean) * (p.y - yMean)
		ssRes += (p.y - pred) * (p.y - pred)
	}
	if ssTot == 0 {
		return 1
	}
	return 1 - ssRes/ssTot
}

func meanPts(pts []point, f func(point) float64) float64 {
	var s float64
	for _, p := range pts {
		s += f(p)
	}
	return s / float64(len(pts))
}
