// Package transform implements stateless operators over validated frames.
// Each operator is a pure function; no side effects, no I/O. Inputs are
// expected to be sorted by time, which validate.Validator guarantees.
package transform

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/derickschaefer/periodic/internal/model"
	"github.com/derickschaefer/periodic/internal/period"
	"github.com/derickschaefer/periodic/internal/validate"
)

// ─── Aggregate ────────────────────────────────────────────────────────────────

// AggFunc is the aggregation applied to the non-null values of a bucket.
type AggFunc string

const (
	AggMean  AggFunc = "mean"
	AggSum   AggFunc = "sum"
	AggMin   AggFunc = "min"
	AggMax   AggFunc = "max"
	AggCount AggFunc = "count"
	AggFirst AggFunc = "first"
	AggLast  AggFunc = "last"
)

// AggregateOptions controls Aggregate.
type AggregateOptions struct {
	// Periodicity is the grid of the input frame. It supplies the expected
	// number of values per bucket; zero means unknown.
	Periodicity period.Period
	Anchor      validate.TimeAnchor
	Missing     MissingCriteria
}

// Bucket is one aggregated window interval.
type Bucket struct {
	Ordinal   int64     `json:"ordinal"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Value     float64   `json:"-"`
	Available int       `json:"available"`
	Expected  int       `json:"expected"`
	Valid     bool      `json:"valid"`
}

// MarshalJSON writes an empty bucket's value as null.
func (b Bucket) MarshalJSON() ([]byte, error) {
	type plain Bucket
	return json.Marshal(struct {
		plain
		Value *float64 `json:"value"`
	}{plain(b), model.Nullable(b.Value)})
}

// AggregateResult holds the buckets of one Aggregate call.
type AggregateResult struct {
	Column  string              `json:"column"`
	Window  period.Period       `json:"window"`
	Func    AggFunc             `json:"func"`
	Anchor  validate.TimeAnchor `json:"anchor"`
	Buckets []Bucket            `json:"buckets"`
}

// Aggregate buckets column of f by window and applies fn to each bucket's
// non-null values. Only buckets holding at least one row are returned.
//
// With the End anchor a row at t belongs to the bucket containing t-1µs.
// When opts.Periodicity is set it must be a subperiod of window; the
// expected count is then the constant Count, or for variable windows the
// number of periodicity intervals between the bucket's boundaries.
func Aggregate(f *model.Frame, column string, window period.Period, fn AggFunc, opts AggregateOptions) (*AggregateResult, error) {
	if window.IsZero() {
		return nil, fmt.Errorf("aggregate: window period is required")
	}
	col, ok := f.Column(column)
	if !ok {
		return nil, fmt.Errorf("aggregate: column %q not found (have %s)", column, strings.Join(f.Columns, ", "))
	}
	reduce, err := reducer(fn)
	if err != nil {
		return nil, err
	}

	var fixed int64
	if !opts.Periodicity.IsZero() {
		fixed = opts.Periodicity.Count(window)
		if fixed == 0 {
			return nil, fmt.Errorf("aggregate: periodicity %s is not a subperiod of window %s",
				opts.Periodicity.Repr(), window.Repr())
		}
	} else if opts.Missing.needsExpected() {
		return nil, fmt.Errorf("aggregate: missing criteria %s needs the input periodicity", opts.Missing)
	}

	res := &AggregateResult{Column: column, Window: window, Func: fn, Anchor: opts.Anchor}
	var (
		vals []float64
		cur  Bucket
		open bool
	)
	flush := func() {
		if !open {
			return
		}
		cur.Available = len(vals)
		cur.Value = reduce(vals)
		switch {
		case fixed > 0:
			cur.Expected = int(fixed)
		case fixed == period.CountVariable:
			cur.Expected = int(opts.Periodicity.Ordinal(cur.End) - opts.Periodicity.Ordinal(cur.Start))
		}
		cur.Valid = opts.Missing.Valid(cur.Available, cur.Expected)
		res.Buckets = append(res.Buckets, cur)
		vals = vals[:0]
	}

	for _, r := range f.Rows {
		t := r.Time
		if opts.Anchor == validate.End {
			t = t.Add(-time.Microsecond)
		}
		ord := window.Ordinal(t)
		if !open || ord != cur.Ordinal {
			if open && ord < cur.Ordinal {
				return nil, fmt.Errorf("aggregate: rows are not sorted by time at %s", r.Time.Format(time.RFC3339Nano))
			}
			flush()
			cur = Bucket{Ordinal: ord, Start: window.DateTime(ord), End: window.DateTime(ord + 1)}
			open = true
		}
		if v := r.Values[col]; !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	flush()
	return res, nil
}

// Frame returns the result as a one-column frame. Buckets are labelled by
// their start, or their end under the End anchor. Invalid buckets are null.
func (a *AggregateResult) Frame(timeName string) *model.Frame {
	f := &model.Frame{
		TimeName: timeName,
		Columns:  []string{a.Column + "_" + string(a.Func)},
		Rows:     make([]model.Row, len(a.Buckets)),
	}
	for i, b := range a.Buckets {
		t := b.Start
		if a.Anchor == validate.End {
			t = b.End
		}
		v := b.Value
		if !b.Valid {
			v = math.NaN()
		}
		f.Rows[i] = model.Row{Time: t, Values: []float64{v}}
	}
	return f
}

func reducer(fn AggFunc) (func([]float64) float64, error) {
	nanIfEmpty := func(g func([]float64) float64) func([]float64) float64 {
		return func(v []float64) float64 {
			if len(v) == 0 {
				return math.NaN()
			}
			return g(v)
		}
	}
	switch fn {
	case AggMean:
		return mean, nil
	case AggSum:
		return nanIfEmpty(sum), nil
	case AggMin:
		return nanIfEmpty(func(v []float64) float64 { mn, _ := minmax(v); return mn }), nil
	case AggMax:
		return nanIfEmpty(func(v []float64) float64 { _, mx := minmax(v); return mx }), nil
	case AggCount:
		return func(v []float64) float64 { return float64(len(v)) }, nil
	case AggFirst:
		return nanIfEmpty(func(v []float64) float64 { return v[0] }), nil
	case AggLast:
		return nanIfEmpty(func(v []float64) float64 { return v[len(v)-1] }), nil
	}
	return nil, fmt.Errorf("aggregate: unknown function %q (use mean, sum, min, max, count, first, last)", fn)
}

// ─── Missing Criteria ─────────────────────────────────────────────────────────

// MissingKind selects how a bucket's completeness is judged.
type MissingKind string

const (
	MissingNone      MissingKind = "none"
	MissingPercent   MissingKind = "percent"
	MissingMax       MissingKind = "missing"
	MissingAvailable MissingKind = "available"
)

// MissingCriteria marks aggregated buckets valid or invalid. The zero value
// accepts every bucket.
type MissingCriteria struct {
	Kind      MissingKind
	Threshold float64
}

// Percent requires at least pct percent of the expected values.
func Percent(pct float64) MissingCriteria { return MissingCriteria{MissingPercent, pct} }

// Missing allows at most n missing values.
func Missing(n int) MissingCriteria { return MissingCriteria{MissingMax, float64(n)} }

// Available requires at least n values.
func Available(n int) MissingCriteria { return MissingCriteria{MissingAvailable, float64(n)} }

// ParseMissingCriteria reads "none", "percent:80", "missing:3" or
// "available:20".
func ParseMissingCriteria(s string) (MissingCriteria, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == string(MissingNone) {
		return MissingCriteria{}, nil
	}
	kind, arg, ok := strings.Cut(s, ":")
	if !ok {
		return MissingCriteria{}, fmt.Errorf("invalid missing criteria %q: expected kind:value", s)
	}
	v, err := strconv.ParseFloat(arg, 64)
	if err != nil || v < 0 {
		return MissingCriteria{}, fmt.Errorf("invalid missing criteria %q: value must be a non-negative number", s)
	}
	switch MissingKind(kind) {
	case MissingPercent:
		if v > 100 {
			return MissingCriteria{}, fmt.Errorf("invalid missing criteria %q: percent must be <= 100", s)
		}
		return Percent(v), nil
	case MissingMax:
		return Missing(int(v)), nil
	case MissingAvailable:
		return Available(int(v)), nil
	}
	return MissingCriteria{}, fmt.Errorf("invalid missing criteria %q: kind must be percent, missing or available", s)
}

func (m MissingCriteria) String() string {
	if m.Kind == "" || m.Kind == MissingNone {
		return string(MissingNone)
	}
	return string(m.Kind) + ":" + strconv.FormatFloat(m.Threshold, 'f', -1, 64)
}

func (m MissingCriteria) needsExpected() bool {
	return m.Kind == MissingPercent || m.Kind == MissingMax
}

// Valid reports whether a bucket with the given counts passes.
func (m MissingCriteria) Valid(available, expected int) bool {
	switch m.Kind {
	case MissingPercent:
		if expected <= 0 {
			return false
		}
		return float64(available)*100 >= m.Threshold*float64(expected)
	case MissingMax:
		return float64(expected-available) <= m.Threshold
	case MissingAvailable:
		return float64(available) >= m.Threshold
	}
	return true
}

// ─── Pad ──────────────────────────────────────────────────────────────────────

// MaxPadRows bounds how many rows Pad may insert.
const MaxPadRows = 10_000_000

// Pad inserts an all-null row for every periodicity interval between the
// first and last rows that holds no row. Inserted rows are stamped with the
// interval start, or its end under the End anchor.
func Pad(f *model.Frame, periodicity period.Period, anchor validate.TimeAnchor) (*model.Frame, error) {
	if periodicity.IsZero() {
		return nil, fmt.Errorf("pad: periodicity is required")
	}
	if f.Len() == 0 {
		return f.WithRows(nil), nil
	}
	ordOf := func(t time.Time) int64 {
		if anchor == validate.End {
			t = t.Add(-time.Microsecond)
		}
		return periodicity.Ordinal(t)
	}
	stamp := func(n int64) time.Time {
		if anchor == validate.End {
			return periodicity.DateTime(n + 1)
		}
		return periodicity.DateTime(n)
	}

	first, last := ordOf(f.Rows[0].Time), ordOf(f.Rows[f.Len()-1].Time)
	if last < first {
		return nil, fmt.Errorf("pad: rows are not sorted by time")
	}
	missing := (last - first + 1) - int64(f.Len())
	if missing > MaxPadRows {
		return nil, fmt.Errorf("pad: would insert about %d rows (limit %d)", missing, MaxPadRows)
	}

	out := make([]model.Row, 0, f.Len()+int(max(missing, 0)))
	next := first
	for _, r := range f.Rows {
		ord := ordOf(r.Time)
		if ord < next-1 {
			return nil, fmt.Errorf("pad: rows are not sorted by time at %s", r.Time.Format(time.RFC3339Nano))
		}
		for ; next < ord; next++ {
			out = append(out, nullRow(stamp(next), len(f.Columns)))
		}
		out = append(out, model.Row{Time: r.Time, Values: append([]float64(nil), r.Values...)})
		next = max(next, ord+1)
	}
	return f.WithRows(out), nil
}

func nullRow(t time.Time, n int) model.Row {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = math.NaN()
	}
	return model.Row{Time: t, Values: vals}
}

// ─── Filter ───────────────────────────────────────────────────────────────────

// FilterOptions describes a time-range filter predicate.
type FilterOptions struct {
	After       time.Time // keep rows with time > After (zero = no lower bound)
	Before      time.Time // keep rows with time < Before (zero = no upper bound)
	DropMissing bool      // drop rows whose values are all null
}

// Filter returns the rows of f matching all non-zero criteria in opts.
func Filter(f *model.Frame, opts FilterOptions) *model.Frame {
	out := make([]model.Row, 0, f.Len())
	for _, r := range f.Rows {
		if !opts.After.IsZero() && !r.Time.After(opts.After) {
			continue
		}
		if !opts.Before.IsZero() && !r.Time.Before(opts.Before) {
			continue
		}
		if opts.DropMissing && allNull(r.Values) {
			continue
		}
		out = append(out, r)
	}
	return f.WithRows(out)
}

func allNull(vals []float64) bool {
	for _, v := range vals {
		if !math.IsNaN(v) {
			return false
		}
	}
	return true
}

// ─── Math helpers ─────────────────────────────────────────────────────────────

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	return sum(vals) / float64(len(vals))
}

func sum(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}

func minmax(vals []float64) (float64, float64) {
	mn, mx := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < mn {
			mn = v
		}
		if v > mx {
			mx = v
		}
	}
	return mn, mx
}
