// Package model defines the canonical data types used throughout periodic:
// the in-memory time-series frame, the metadata stored alongside it, and the
// result envelope that every command returns.
package model

import (
	"encoding/json"
	"math"
	"time"

	"github.com/derickschaefer/periodic/internal/period"
)

// ─── Frames ───────────────────────────────────────────────────────────────────

// Row is one observation: a timestamp and one value per frame column.
// A NaN value is a null.
type Row struct {
	Time   time.Time
	Values []float64
}

type rowJSON struct {
	Time   time.Time  `json:"time"`
	Values []*float64 `json:"values"`
}

// MarshalJSON encodes NaN values as null, which encoding/json cannot do
// for a bare float64.
func (r Row) MarshalJSON() ([]byte, error) {
	out := rowJSON{Time: r.Time, Values: make([]*float64, len(r.Values))}
	for i, v := range r.Values {
		out.Values[i] = Nullable(v)
	}
	return json.Marshal(out)
}

// Nullable returns nil for NaN and infinities, otherwise a pointer to v.
func Nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// UnmarshalJSON decodes null values to NaN.
func (r *Row) UnmarshalJSON(b []byte) error {
	var in rowJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	r.Time = in.Time
	r.Values = make([]float64, len(in.Values))
	for i, v := range in.Values {
		if v == nil {
			r.Values[i] = math.NaN()
		} else {
			r.Values[i] = *v
		}
	}
	return nil
}

// IsNull reports whether column i of r is null.
func (r Row) IsNull(i int) bool { return math.IsNaN(r.Values[i]) }

// Frame is a table with one time column and any number of numeric columns.
// Rows are not required to be sorted or unique until a validator has run.
type Frame struct {
	Name     string   `json:"name,omitempty"`
	TimeName string   `json:"time_name"`
	Columns  []string `json:"columns"`
	Rows     []Row    `json:"rows"`
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.Rows) }

// Column returns the index of the named column.
func (f *Frame) Column(name string) (int, bool) {
	for i, c := range f.Columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// Times returns the time column in row order.
func (f *Frame) Times() []time.Time {
	out := make([]time.Time, len(f.Rows))
	for i, r := range f.Rows {
		out[i] = r.Time
	}
	return out
}

// Clone returns a deep copy of f.
func (f *Frame) Clone() *Frame {
	out := &Frame{
		Name:     f.Name,
		TimeName: f.TimeName,
		Columns:  append([]string(nil), f.Columns...),
		Rows:     make([]Row, len(f.Rows)),
	}
	for i, r := range f.Rows {
		out.Rows[i] = Row{Time: r.Time, Values: append([]float64(nil), r.Values...)}
	}
	return out
}

// WithRows returns a frame sharing f's schema with the given rows.
func (f *Frame) WithRows(rows []Row) *Frame {
	return &Frame{Name: f.Name, TimeName: f.TimeName, Columns: f.Columns, Rows: rows}
}

// ─── Series Metadata ──────────────────────────────────────────────────────────

// SeriesMeta describes a stored frame. Resolution and Periodicity are
// persisted as period text and replaced wholesale when the frame is
// re-validated at another granularity.
type SeriesMeta struct {
	ID          string        `json:"id"`
	Title       string        `json:"title,omitempty"`
	Resolution  period.Period `json:"resolution"`
	Periodicity period.Period `json:"periodicity"`
	TimeAnchor  string        `json:"time_anchor"`
	TimeName    string        `json:"time_name"`
	Columns     []string      `json:"columns"`
	Rows        int           `json:"rows"`
	First       time.Time     `json:"first,omitempty"`
	Last        time.Time     `json:"last,omitempty"`
	StoredAt    time.Time     `json:"stored_at,omitempty"`
}

// ─── Period Reports ───────────────────────────────────────────────────────────

// PeriodInfo describes one parsed period.
type PeriodInfo struct {
	Input         string `json:"input"`
	Canonical     string `json:"canonical"`
	Repr          string `json:"repr"`
	Step          string `json:"step"`
	Multiplier    int64  `json:"multiplier"`
	MonthOffset   int64  `json:"month_offset"`
	MicroOffset   int64  `json:"microsecond_offset"`
	Timezone      string `json:"timezone,omitempty"`
	EpochAgnostic bool   `json:"epoch_agnostic"`
	Precision     string `json:"precision"`
	FixedDuration string `json:"fixed_duration,omitempty"`
	FirstOrdinal  int64  `json:"first_ordinal"`
	LastOrdinal   int64  `json:"last_ordinal"`
}

// OrdinalRow maps one instant or ordinal onto a period's grid.
type OrdinalRow struct {
	Input   string `json:"input"`
	Ordinal int64  `json:"ordinal"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Aligned bool   `json:"aligned"`
}

// CountInfo relates an inner period to an outer one.
type CountInfo struct {
	Inner     string `json:"inner"`
	Outer     string `json:"outer"`
	Count     int64  `json:"count"`
	Relation  string `json:"relation"`
	Subperiod bool   `json:"subperiod"`
}

// ─── Validation Reports ───────────────────────────────────────────────────────

// ValidationReport summarises one validation run.
type ValidationReport struct {
	Resolution   string   `json:"resolution"`
	Periodicity  string   `json:"periodicity"`
	TimeAnchor   string   `json:"time_anchor"`
	OnDuplicates string   `json:"on_duplicates"`
	InputRows    int      `json:"input_rows"`
	OutputRows   int      `json:"output_rows"`
	Removed      int      `json:"removed"`
	Valid        bool     `json:"valid"`
	Problems     []string `json:"problems,omitempty"`
}

// ─── Result Envelope ──────────────────────────────────────────────────────────

// ResultStats carries timing and size metadata for a command result.
type ResultStats struct {
	DurationMs int64 `json:"duration_ms"`
	Items      int   `json:"items"`
}

// Result is the uniform envelope returned by every command.
// The Data field holds the typed payload; Kind identifies what is in it.
// Renderers switch on Kind to format output appropriately.
type Result struct {
	Kind        string      `json:"kind"`
	GeneratedAt time.Time   `json:"generated_at"`
	Command     string      `json:"command"`
	Data        interface{} `json:"data"`
	Warnings    []string    `json:"warnings,omitempty"`
	Stats       ResultStats `json:"stats"`

	// TimeFormat renders frame timestamps in text formats. Nil means
	// RFC 3339.
	TimeFormat func(time.Time) string `json:"-"`
}

// Table is a generic header-and-rows payload for KindTable results.
type Table struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// Kind constants for Result.Kind.
const (
	KindFrame      = "frame"
	KindSeriesMeta = "series_meta"
	KindPeriodInfo = "period_info"
	KindOrdinals   = "ordinals"
	KindCount      = "period_count"
	KindValidation = "validation"
	KindAggregate  = "aggregate"
	KindGaps       = "gaps"
	KindSummary    = "summary"
	KindTrend      = "trend"
	KindTable      = "table"
)
