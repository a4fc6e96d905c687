package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/derickschaefer/periodic/internal/model"
)

func TestOutputWriterDefault(t *testing.T) {
	globalFlags.Out = ""
	w, closeFn, err := outputWriter(os.Stdout)
	if err != nil {
		t.Fatalf("outputWriter default: %v", err)
	}
	if w != os.Stdout {
		t.Fatalf("expected stdout writer passthrough")
	}
	if err := closeFn(); err != nil {
		t.Fatalf("default closer should be nil error, got: %v", err)
	}
}

func TestOutputWriterFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "out.txt")
	globalFlags.Out = p
	t.Cleanup(func() { globalFlags.Out = "" })

	w, closeFn, err := outputWriter(os.Stdout)
	if err != nil {
		t.Fatalf("outputWriter file: %v", err)
	}
	if w == os.Stdout {
		t.Fatalf("expected file writer, got stdout")
	}
	if err := closeFn(); err != nil {
		t.Fatalf("closing output writer: %v", err)
	}
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("expected output file to exist: %v", err)
	}
}

// ─── periodFlag ───────────────────────────────────────────────────────────────

func TestPeriodFlagParsesLiteral(t *testing.T) {
	var f periodFlag
	if err := f.Set(" P1M "); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !f.set() {
		t.Fatal("expected flag to report set")
	}
	if got := f.String(); got != "P1M" {
		t.Errorf("String() = %q, want P1M", got)
	}
	p, err := f.resolve(nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if p.Repr() != "P1M" {
		t.Errorf("resolved %s, want P1M", p.Repr())
	}
}

func TestPeriodFlagRejectsGarbage(t *testing.T) {
	var f periodFlag
	if err := f.Set("monthly"); err == nil {
		t.Fatal("expected parse error")
	}
	if f.set() {
		t.Error("failed Set must leave the flag unset")
	}
}

func TestPeriodFlagNamedDefersLookup(t *testing.T) {
	var f periodFlag
	if err := f.Set("@water-year"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := f.String(); got != "@water-year" {
		t.Errorf("String() = %q", got)
	}
	if err := f.Set("@"); err == nil {
		t.Error("expected error for an empty name")
	}
}

func TestPeriodFlagEmptyResets(t *testing.T) {
	var f periodFlag
	_ = f.Set("PT15M")
	if err := f.Set(""); err != nil {
		t.Fatalf("Set(\"\"): %v", err)
	}
	if f.set() || f.String() != "" {
		t.Errorf("expected reset flag, got %q", f.String())
	}
}

// ─── Input helpers ────────────────────────────────────────────────────────────

func TestFormatFromExt(t *testing.T) {
	cases := map[string]string{
		".csv":   "csv",
		".CSV":   "csv",
		".tsv":   "tsv",
		".tab":   "tsv",
		".jsonl": "jsonl",
		"":       "jsonl",
	}
	for ext, want := range cases {
		if got := formatFromExt(ext); got != want {
			t.Errorf("formatFromExt(%q) = %q, want %q", ext, got, want)
		}
	}
}

func TestPickColumn(t *testing.T) {
	single := &model.Frame{Columns: []string{"flow"}}
	if got, err := pickColumn(single, ""); err != nil || got != "flow" {
		t.Errorf("single column: got %q, %v", got, err)
	}
	if got, err := pickColumn(single, "stage"); err != nil || got != "stage" {
		t.Errorf("explicit name: got %q, %v", got, err)
	}

	multi := &model.Frame{Columns: []string{"flow", "stage"}}
	_, err := pickColumn(multi, "")
	if err == nil {
		t.Fatal("expected error for ambiguous column")
	}
	if !strings.Contains(err.Error(), "flow, stage") {
		t.Errorf("error should list the columns: %v", err)
	}
}

func TestHumanBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{3 << 20, "3.0 MB"},
	}
	for _, c := range cases {
		if got := humanBytes(c.in); got != c.want {
			t.Errorf("humanBytes(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}
