package period_test

import (
	"testing"
	"time"

	"github.com/derickschaefer/periodic/internal/period"
)

func TestPrecision(t *testing.T) {
	tests := []struct {
		text string
		want period.Precision
	}{
		{"P1Y", period.PrecisionYear},
		{"P2Y", period.PrecisionYear},
		{"P1M", period.PrecisionMonth},
		{"P1Y+9M", period.PrecisionMonth},
		{"P1Y+9MT9H", period.PrecisionHour},
		{"P1M+2D", period.PrecisionDay},
		{"P1D", period.PrecisionDay},
		{"P1D+T9H", period.PrecisionHour},
		{"PT1H", period.PrecisionHour},
		{"PT15M", period.PrecisionMinute},
		{"PT1H+T15M", period.PrecisionMinute},
		{"PT1S", period.PrecisionSecond},
		{"PT1M+T1S", period.PrecisionSecond},
		{"PT0.5S", period.PrecisionMillisecond},
		{"PT2S+T0.5S", period.PrecisionMillisecond},
		{"PT0.000001S", period.PrecisionMicrosecond},
		{"P1D+T0.000001S", period.PrecisionMicrosecond},
		{"P1D[Z]", period.PrecisionHour},
		{"P1M[+01:00]", period.PrecisionHour},
	}
	for _, tc := range tests {
		if got := period.MustParse(tc.text).Precision(); got != tc.want {
			t.Errorf("%s.Precision(): expected %v, got %v", tc.text, tc.want, got)
		}
	}
}

func TestFormatTime(t *testing.T) {
	at := time.Date(2020, time.March, 4, 5, 15, 30, 123_456_000, time.UTC)
	tests := []struct {
		text string
		want string
	}{
		{"P1Y", "2020"},
		{"P1M", "2020-03"},
		{"P1D", "2020-03-04"},
		{"PT1H", "2020-03-04T05"},
		{"PT15M", "2020-03-04T05:15"},
		{"PT1S", "2020-03-04T05:15:30"},
		{"PT0.5S", "2020-03-04T05:15:30.123"},
		{"PT0.000001S", "2020-03-04T05:15:30.123456"},
		{"PT15M[Z]", "2020-03-04T05:15Z"},
		{"P1D[+05:30]", "2020-03-04T10+05:30"},
	}
	for _, tc := range tests {
		if got := period.MustParse(tc.text).FormatTime(at); got != tc.want {
			t.Errorf("%s.FormatTime: expected %q, got %q", tc.text, tc.want, got)
		}
	}
	if got := period.MustParse("PT1H").Formatter(" ")(at); got != "2020-03-04 05" {
		t.Errorf("space separator: got %q", got)
	}
}

func TestPrecisionFormatEarlyYears(t *testing.T) {
	early := time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	if got := period.PrecisionDay.Format(early, "T", false); got != "0001-01-01" {
		t.Errorf("expected zero-padded year, got %q", got)
	}
}
