// Package util provides shared utilities: timestamp and value parsing,
// value formatting, and an error collector.
package util

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ─── Timestamp Parsing ────────────────────────────────────────────────────────

// zonedLayouts carry their own UTC offset; naiveLayouts are read in the
// caller's location.
var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04Z07:00",
	}
	naiveLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02T15",
		"2006-01-02",
		"2006-01",
		"2006",
	}
)

// ParseTime parses an ISO-8601 timestamp at any precision from year down to
// nanosecond. A space may replace the date/time separator. Timestamps
// without a UTC offset are read in loc, or UTC when loc is nil.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ' '); i == 10 {
		s = s[:i] + "T" + s[i+1:]
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q: expected ISO-8601, e.g. 2024-01-31T09:00:00", s)
}

// FormatTime formats t as RFC 3339 with nanoseconds trimmed.
func FormatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// ─── Value Parsing ────────────────────────────────────────────────────────────

// ParseValue parses a numeric cell. Empty cells and the usual null markers
// ("." "NA" "NaN" "null") yield NaN.
func ParseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", ".", "na", "nan", "null", "none":
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN(), fmt.Errorf("invalid value %q", s)
	}
	return v, nil
}

// FormatValue formats a float64 for display, showing "." for NaN.
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return "."
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ─── Error Helpers ────────────────────────────────────────────────────────────

// MultiError collects multiple errors and presents them as one.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

func (m *MultiError) Error() string {
	msgs := make([]string, len(m.Errors))
	for i, e := range m.Errors {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error { return m.Errors }
