package transform_test

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/derickschaefer/periodic/internal/model"
	"github.com/derickschaefer/periodic/internal/period"
	"github.com/derickschaefer/periodic/internal/transform"
	"github.com/derickschaefer/periodic/internal/validate"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

var nan = math.NaN()

func isNaN(v float64) bool { return math.IsNaN(v) }

func date(y, m, d int) time.Time { return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC) }

// daily builds a one-column frame with one row per day starting at start.
func daily(start time.Time, values ...float64) *model.Frame {
	f := &model.Frame{TimeName: "time", Columns: []string{"flow"}}
	for i, v := range values {
		f.Rows = append(f.Rows, model.Row{Time: start.AddDate(0, 0, i), Values: []float64{v}})
	}
	return f
}

func p(s string) period.Period { return period.MustParse(s) }

// ─── Aggregate ────────────────────────────────────────────────────────────────

func TestAggregateMonthlyMean(t *testing.T) {
	// 31 days of January plus 2 days of February.
	vals := make([]float64, 33)
	for i := range vals {
		vals[i] = float64(i + 1)
	}
	res, err := transform.Aggregate(daily(date(2023, 1, 1), vals...), "flow", p("P1M"), transform.AggMean,
		transform.AggregateOptions{Periodicity: p("P1D")})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(res.Buckets) != 2 {
		t.Fatalf("buckets = %d, want 2", len(res.Buckets))
	}
	jan, feb := res.Buckets[0], res.Buckets[1]
	if jan.Value != 16 || jan.Available != 31 || jan.Expected != 31 {
		t.Errorf("jan = %+v", jan)
	}
	if feb.Value != 32.5 || feb.Available != 2 || feb.Expected != 28 {
		t.Errorf("feb = %+v", feb)
	}
	if !jan.Start.Equal(date(2023, 1, 1)) || !jan.End.Equal(date(2023, 2, 1)) {
		t.Errorf("jan bounds = %v..%v", jan.Start, jan.End)
	}
}

func TestAggregateConstantExpected(t *testing.T) {
	f := &model.Frame{TimeName: "time", Columns: []string{"v"}}
	for h := 0; h < 30; h++ {
		f.Rows = append(f.Rows, model.Row{Time: date(2024, 1, 1).Add(time.Duration(h) * time.Hour), Values: []float64{1}})
	}
	res, err := transform.Aggregate(f, "v", p("P1D"), transform.AggSum,
		transform.AggregateOptions{Periodicity: p("PT1H"), Missing: transform.Percent(50)})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if res.Buckets[0].Expected != 24 || res.Buckets[0].Value != 24 || !res.Buckets[0].Valid {
		t.Errorf("day 1 = %+v", res.Buckets[0])
	}
	if res.Buckets[1].Available != 6 || res.Buckets[1].Valid {
		t.Errorf("day 2 = %+v, want invalid (6/24 < 50%%)", res.Buckets[1])
	}
}

func TestAggregateWaterYear(t *testing.T) {
	wy := p("P1Y+9MT9H")
	f := &model.Frame{TimeName: "time", Columns: []string{"v"}, Rows: []model.Row{
		{Time: time.Date(2023, 10, 1, 8, 0, 0, 0, time.UTC), Values: []float64{1}},
		{Time: time.Date(2023, 10, 1, 9, 0, 0, 0, time.UTC), Values: []float64{2}},
		{Time: time.Date(2024, 9, 30, 23, 0, 0, 0, time.UTC), Values: []float64{3}},
	}}
	res, err := transform.Aggregate(f, "v", wy, transform.AggCount, transform.AggregateOptions{})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(res.Buckets) != 2 {
		t.Fatalf("buckets = %+v", res.Buckets)
	}
	if !res.Buckets[1].Start.Equal(time.Date(2023, 10, 1, 9, 0, 0, 0, time.UTC)) || res.Buckets[1].Value != 2 {
		t.Errorf("second bucket = %+v", res.Buckets[1])
	}
}

func TestAggregateEndAnchor(t *testing.T) {
	// End-stamped daily values: midnight 1 Feb closes 31 Jan.
	f := daily(date(2023, 2, 1), 10, 20)
	res, err := transform.Aggregate(f, "flow", p("P1M"), transform.AggSum,
		transform.AggregateOptions{Anchor: validate.End})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(res.Buckets) != 2 || res.Buckets[0].Value != 10 || res.Buckets[1].Value != 20 {
		t.Fatalf("buckets = %+v", res.Buckets)
	}
	out := res.Frame("time")
	if !out.Rows[0].Time.Equal(date(2023, 2, 1)) {
		t.Errorf("end-anchored label = %v, want 2023-02-01", out.Rows[0].Time)
	}
	if out.Columns[0] != "flow_sum" {
		t.Errorf("column = %q", out.Columns[0])
	}
}

func TestAggregateFuncs(t *testing.T) {
	f := daily(date(2024, 1, 1), 3, nan, 1, 5)
	cases := map[transform.AggFunc]float64{
		transform.AggMean:  3,
		transform.AggSum:   9,
		transform.AggMin:   1,
		transform.AggMax:   5,
		transform.AggCount: 3,
		transform.AggFirst: 3,
		transform.AggLast:  5,
	}
	for fn, want := range cases {
		res, err := transform.Aggregate(f, "flow", p("P1M"), fn, transform.AggregateOptions{})
		if err != nil {
			t.Fatalf("%s: %v", fn, err)
		}
		if got := res.Buckets[0].Value; got != want {
			t.Errorf("%s = %g, want %g", fn, got, want)
		}
	}
}

func TestAggregateAllNullBucket(t *testing.T) {
	f := daily(date(2024, 1, 1), nan, nan)
	res, err := transform.Aggregate(f, "flow", p("P1M"), transform.AggMax, transform.AggregateOptions{})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if !isNaN(res.Buckets[0].Value) || res.Buckets[0].Available != 0 {
		t.Errorf("bucket = %+v", res.Buckets[0])
	}
}

func TestAggregateErrors(t *testing.T) {
	f := daily(date(2024, 1, 1), 1, 2)
	cases := []struct {
		name   string
		column string
		window period.Period
		fn     transform.AggFunc
		opts   transform.AggregateOptions
		want   string
	}{
		{"no window", "flow", period.Period{}, transform.AggMean, transform.AggregateOptions{}, "window"},
		{"unknown column", "nope", p("P1M"), transform.AggMean, transform.AggregateOptions{}, "not found"},
		{"unknown func", "flow", p("P1M"), "median", transform.AggregateOptions{}, "unknown function"},
		{"not subperiod", "flow", p("P1D"), transform.AggMean, transform.AggregateOptions{Periodicity: p("P1M")}, "subperiod"},
		{"percent without periodicity", "flow", p("P1M"), transform.AggMean, transform.AggregateOptions{Missing: transform.Percent(80)}, "periodicity"},
	}
	for _, c := range cases {
		_, err := transform.Aggregate(f, c.column, c.window, c.fn, c.opts)
		if err == nil || !strings.Contains(err.Error(), c.want) {
			t.Errorf("%s: err = %v, want containing %q", c.name, err, c.want)
		}
	}
}

func TestAggregateUnsorted(t *testing.T) {
	f := daily(date(2024, 1, 1), 1, 2)
	f.Rows[0], f.Rows[1] = f.Rows[1], f.Rows[0]
	f.Rows[0].Time = date(2024, 2, 1)
	if _, err := transform.Aggregate(f, "flow", p("P1M"), transform.AggMean, transform.AggregateOptions{}); err == nil {
		t.Error("expected error for unsorted rows")
	}
}

// ─── Missing Criteria ─────────────────────────────────────────────────────────

func TestMissingCriteriaValid(t *testing.T) {
	cases := []struct {
		c         transform.MissingCriteria
		avail     int
		expected  int
		wantValid bool
	}{
		{transform.MissingCriteria{}, 0, 10, true},
		{transform.Percent(80), 8, 10, true},
		{transform.Percent(80), 7, 10, false},
		{transform.Percent(0), 0, 0, false},
		{transform.Missing(2), 8, 10, true},
		{transform.Missing(2), 7, 10, false},
		{transform.Available(5), 5, 0, true},
		{transform.Available(5), 4, 100, false},
	}
	for _, c := range cases {
		if got := c.c.Valid(c.avail, c.expected); got != c.wantValid {
			t.Errorf("%s.Valid(%d, %d) = %v", c.c, c.avail, c.expected, got)
		}
	}
}

func TestParseMissingCriteria(t *testing.T) {
	good := map[string]transform.MissingCriteria{
		"":             {},
		"none":         {},
		"percent:80":   transform.Percent(80),
		"Missing:3":    transform.Missing(3),
		"available:20": transform.Available(20),
	}
	for in, want := range good {
		got, err := transform.ParseMissingCriteria(in)
		if err != nil {
			t.Errorf("ParseMissingCriteria(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseMissingCriteria(%q) = %+v, want %+v", in, got, want)
		}
	}
	for _, in := range []string{"percent", "percent:x", "percent:120", "missing:-1", "mode:3"} {
		if _, err := transform.ParseMissingCriteria(in); err == nil {
			t.Errorf("ParseMissingCriteria(%q): expected error", in)
		}
	}
	if s := transform.Percent(80).String(); s != "percent:80" {
		t.Errorf("String = %q", s)
	}
}

// ─── Pad ──────────────────────────────────────────────────────────────────────

func TestPadFillsGaps(t *testing.T) {
	f := &model.Frame{TimeName: "time", Columns: []string{"a", "b"}, Rows: []model.Row{
		{Time: date(2024, 1, 1), Values: []float64{1, 2}},
		{Time: date(2024, 1, 4), Values: []float64{3, 4}},
	}}
	out, err := transform.Pad(f, p("P1D"), validate.Point)
	if err != nil {
		t.Fatalf("Pad: %v", err)
	}
	want := []time.Time{date(2024, 1, 1), date(2024, 1, 2), date(2024, 1, 3), date(2024, 1, 4)}
	if diff := cmp.Diff(want, out.Times()); diff != "" {
		t.Errorf("times (-want +got):\n%s", diff)
	}
	if !isNaN(out.Rows[1].Values[0]) || !isNaN(out.Rows[2].Values[1]) {
		t.Errorf("padded rows not null: %+v", out.Rows[1:3])
	}
	if f.Len() != 2 {
		t.Error("input mutated")
	}
}

func TestPadMonthly(t *testing.T) {
	f := &model.Frame{TimeName: "time", Columns: []string{"v"}, Rows: []model.Row{
		{Time: date(2024, 1, 1), Values: []float64{1}},
		{Time: date(2024, 4, 1), Values: []float64{4}},
	}}
	out, err := transform.Pad(f, p("P1M"), validate.Start)
	if err != nil {
		t.Fatalf("Pad: %v", err)
	}
	if out.Len() != 4 || !out.Rows[2].Time.Equal(date(2024, 3, 1)) {
		t.Errorf("times = %v", out.Times())
	}
}

func TestPadEndAnchorStampsIntervalEnd(t *testing.T) {
	f := &model.Frame{TimeName: "time", Columns: []string{"v"}, Rows: []model.Row{
		{Time: date(2024, 1, 2), Values: []float64{1}},
		{Time: date(2024, 1, 4), Values: []float64{3}},
	}}
	out, err := transform.Pad(f, p("P1D"), validate.End)
	if err != nil {
		t.Fatalf("Pad: %v", err)
	}
	if out.Len() != 3 || !out.Rows[1].Time.Equal(date(2024, 1, 3)) {
		t.Errorf("times = %v", out.Times())
	}
}

func TestPadSubPeriodicityRows(t *testing.T) {
	// Hourly data checked against a daily periodicity: rows keep their own
	// timestamps and empty days get a midnight row.
	f := &model.Frame{TimeName: "time", Columns: []string{"v"}, Rows: []model.Row{
		{Time: date(2024, 1, 1).Add(9 * time.Hour), Values: []float64{1}},
		{Time: date(2024, 1, 3).Add(6 * time.Hour), Values: []float64{3}},
	}}
	out, err := transform.Pad(f, p("P1D"), validate.Point)
	if err != nil {
		t.Fatalf("Pad: %v", err)
	}
	want := []time.Time{date(2024, 1, 1).Add(9 * time.Hour), date(2024, 1, 2), date(2024, 1, 3).Add(6 * time.Hour)}
	if diff := cmp.Diff(want, out.Times()); diff != "" {
		t.Errorf("times (-want +got):\n%s", diff)
	}
}

func TestPadEmptyAndErrors(t *testing.T) {
	empty := &model.Frame{TimeName: "time", Columns: []string{"v"}}
	out, err := transform.Pad(empty, p("P1D"), validate.Point)
	if err != nil || out.Len() != 0 {
		t.Errorf("empty: len=%d err=%v", out.Len(), err)
	}
	if _, err := transform.Pad(daily(date(2024, 1, 1), 1), period.Period{}, validate.Point); err == nil {
		t.Error("expected error for zero periodicity")
	}
	huge := daily(date(2000, 1, 1), 1)
	huge.Rows = append(huge.Rows, model.Row{Time: date(2100, 1, 1), Values: []float64{2}})
	if _, err := transform.Pad(huge, p("PT1S"), validate.Point); err == nil {
		t.Error("expected error when padding exceeds the row limit")
	}
}

// ─── Filter ───────────────────────────────────────────────────────────────────

func TestFilter(t *testing.T) {
	f := daily(date(2024, 1, 1), 1, nan, 3, 4, 5)
	out := transform.Filter(f, transform.FilterOptions{After: date(2024, 1, 1), Before: date(2024, 1, 5), DropMissing: true})
	want := []time.Time{date(2024, 1, 3), date(2024, 1, 4)}
	if diff := cmp.Diff(want, out.Times()); diff != "" {
		t.Errorf("times (-want +got):\n%s", diff)
	}
	if all := transform.Filter(f, transform.FilterOptions{}); all.Len() != 5 {
		t.Errorf("empty filter kept %d rows", all.Len())
	}
}
