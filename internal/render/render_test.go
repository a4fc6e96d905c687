package render_test

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/derickschaefer/periodic/internal/analyze"
	"github.com/derickschaefer/periodic/internal/model"
	"github.com/derickschaefer/periodic/internal/period"
	"github.com/derickschaefer/periodic/internal/render"
	"github.com/derickschaefer/periodic/internal/transform"
	"github.com/google/go-cmp/cmp"
)

func frameResult() *model.Result {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	return &model.Result{
		Kind:    model.KindFrame,
		Command: "validate",
		Data: &model.Frame{
			TimeName: "time",
			Columns:  []string{"flow", "stage"},
			Rows: []model.Row{
				{Time: day(1), Values: []float64{1.5, 4}},
				{Time: day(2), Values: []float64{math.NaN(), 3.25}},
			},
		},
		TimeFormat: period.MustParse("P1D").Formatter(" "),
	}
}

func render1(t *testing.T, r *model.Result, format string) string {
	t.Helper()
	var buf bytes.Buffer
	if err := render.Render(&buf, r, format); err != nil {
		t.Fatalf("Render(%s): %v", format, err)
	}
	return buf.String()
}

// ─── Frames ───────────────────────────────────────────────────────────────────

func TestRenderFrameCSV(t *testing.T) {
	got := render1(t, frameResult(), render.FormatCSV)
	want := "time,flow,stage\n2024-01-01,1.5,4\n2024-01-02,,3.25\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderFrameJSONL(t *testing.T) {
	got := render1(t, frameResult(), render.FormatJSONL)
	lines := strings.Split(strings.TrimSpace(got), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), got)
	}
	if lines[1] != `{"time":"2024-01-02","flow":null,"stage":3.25}` {
		t.Errorf("line 2 = %s", lines[1])
	}
}

func TestRenderFrameTable(t *testing.T) {
	got := render1(t, frameResult(), render.FormatTable)
	for _, want := range []string{"TIME", "FLOW", "2024-01-02", "3.25", "4.0", "."} {
		if !strings.Contains(got, want) {
			t.Errorf("table missing %q:\n%s", want, got)
		}
	}
}

func TestRenderFrameJSONNulls(t *testing.T) {
	got := render1(t, frameResult(), render.FormatJSON)
	var env struct {
		Kind string `json:"kind"`
		Data struct {
			Rows []struct {
				Values []*float64 `json:"values"`
			} `json:"rows"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(got), &env); err != nil {
		t.Fatalf("json: %v\n%s", err, got)
	}
	if env.Kind != model.KindFrame {
		t.Errorf("kind = %q", env.Kind)
	}
	if env.Data.Rows[1].Values[0] != nil {
		t.Errorf("NaN should encode as null")
	}
}

// ─── Markdown ─────────────────────────────────────────────────────────────────

func TestRenderMarkdown(t *testing.T) {
	r := &model.Result{
		Kind: model.KindGaps,
		Data: []analyze.Gap{{
			Column: "a|b",
			Start:  time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
			End:    time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
			Length: 2,
		}},
	}
	got := render1(t, r, render.FormatMD)
	want := "| COLUMN | START | END | LENGTH |\n" +
		"| --- | --- | --- | ---: |\n" +
		"| a\\|b | 2024-01-03T00:00:00Z | 2024-01-04T00:00:00Z | 2 |\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("markdown mismatch (-want +got):\n%s", diff)
	}
}

// ─── Other Kinds ──────────────────────────────────────────────────────────────

func TestRenderSummaryJSONWithNaN(t *testing.T) {
	s := analyze.SummarizeValues("x", []float64{math.NaN()})
	r := &model.Result{Kind: model.KindSummary, Data: []analyze.Summary{s}}
	got := render1(t, r, render.FormatJSONL)
	if !strings.Contains(got, `"mean":null`) {
		t.Errorf("all-null summary should encode mean as null: %s", got)
	}
}

func TestRenderAggregate(t *testing.T) {
	res := &transform.AggregateResult{
		Column: "flow",
		Window: period.MustParse("P1M"),
		Func:   transform.AggMean,
		Buckets: []transform.Bucket{{
			Start:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			End:       time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			Value:     math.NaN(),
			Available: 0,
			Expected:  31,
		}},
	}
	r := &model.Result{Kind: model.KindAggregate, Data: res}

	csvOut := render1(t, r, render.FormatCSV)
	if !strings.HasPrefix(csvOut, "start,end,flow_mean,available,expected,valid\n") {
		t.Errorf("csv header:\n%s", csvOut)
	}

	var b map[string]any
	line := strings.TrimSpace(render1(t, r, render.FormatJSONL))
	if err := json.Unmarshal([]byte(line), &b); err != nil {
		t.Fatalf("jsonl: %v", err)
	}
	if v, ok := b["value"]; !ok || v != nil {
		t.Errorf("value = %v, want null", v)
	}
	if b["expected"] != float64(31) {
		t.Errorf("expected = %v", b["expected"])
	}
}

func TestRenderValidationReport(t *testing.T) {
	r := &model.Result{
		Kind: model.KindValidation,
		Data: &model.ValidationReport{
			Resolution:  "P1D",
			Periodicity: "P1D",
			Valid:       false,
			Problems:    []string{"2 timestamps not aligned"},
		},
	}
	got := render1(t, r, render.FormatTable)
	for _, want := range []string{"FAILED", "2 timestamps not aligned"} {
		if !strings.Contains(got, want) {
			t.Errorf("table missing %q:\n%s", want, got)
		}
	}
}

func TestRenderTableKind(t *testing.T) {
	r := &model.Result{
		Kind: model.KindTable,
		Data: &model.Table{Header: []string{"Bucket Name", "Keys"}, Rows: [][]string{{"frames", "3"}}},
	}
	got := render1(t, r, render.FormatTSV)
	if got != "bucket_name\tkeys\nframes\t3\n" {
		t.Errorf("tsv = %q", got)
	}
}

func TestRenderUnknownFallsBackToJSON(t *testing.T) {
	r := &model.Result{Kind: "other", Data: map[string]int{"n": 1}}
	got := render1(t, r, render.FormatTable)
	if !strings.Contains(got, `"n": 1`) {
		t.Errorf("fallback should be JSON:\n%s", got)
	}
}

// ─── Footer ───────────────────────────────────────────────────────────────────

func TestPrintFooter(t *testing.T) {
	r := &model.Result{
		Command:     "validate",
		GeneratedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Warnings:    []string{"period is not epoch-agnostic"},
		Stats:       model.ResultStats{Items: 3, DurationMs: 7},
	}
	var quiet, verbose bytes.Buffer
	render.PrintFooter(&quiet, r, false)
	render.PrintFooter(&verbose, r, true)
	if !strings.Contains(quiet.String(), "epoch-agnostic") {
		t.Errorf("warnings always print: %q", quiet.String())
	}
	if strings.Contains(quiet.String(), "items") {
		t.Errorf("stats only print when verbose: %q", quiet.String())
	}
	if !strings.Contains(verbose.String(), "3 items • 7ms") {
		t.Errorf("verbose footer: %q", verbose.String())
	}
}
