package period

import (
	"fmt"
	"time"
)

// Precision is the finest datetime component worth printing for a period.
type Precision uint8

const (
	PrecisionMicrosecond Precision = iota + 1
	PrecisionMillisecond
	PrecisionSecond
	PrecisionMinute
	PrecisionHour
	PrecisionDay
	PrecisionMonth
	PrecisionYear
)

var precisionNames = map[Precision]string{
	PrecisionMicrosecond: "microsecond",
	PrecisionMillisecond: "millisecond",
	PrecisionSecond:      "second",
	PrecisionMinute:      "minute",
	PrecisionHour:        "hour",
	PrecisionDay:         "day",
	PrecisionMonth:       "month",
	PrecisionYear:        "year",
}

func (pr Precision) String() string {
	if s, ok := precisionNames[pr]; ok {
		return s
	}
	return fmt.Sprintf("Precision(%d)", uint8(pr))
}

// Format renders t down to pr, using sep between date and time. An aware
// rendering appends "Z" or "±HH:MM"; day and coarser precisions carry no
// zone.
func (pr Precision) Format(t time.Time, sep string, aware bool) string {
	var clock string
	switch pr {
	case PrecisionMicrosecond:
		clock = "15:04:05.000000"
	case PrecisionMillisecond:
		clock = "15:04:05.000"
	case PrecisionSecond:
		clock = "15:04:05"
	case PrecisionMinute:
		clock = "15:04"
	case PrecisionHour:
		clock = "15"
	case PrecisionDay:
		return t.Format("2006-01-02")
	case PrecisionMonth:
		return t.Format("2006-01")
	default:
		return t.Format("2006")
	}
	layout := "2006-01-02" + sep + clock
	if aware {
		layout += "Z07:00"
	}
	return t.Format(layout)
}

// Precision returns the coarsest precision at which every instant aligned
// to p can be printed without losing information. A whole-hour period
// never needs minutes; a non-zero microsecond offset always needs
// microseconds. Periods with a timezone print at least the hour.
func (p Period) Precision() Precision {
	aware := p.tz != ""
	om := p.off.Microseconds
	if om%1000 != 0 {
		return PrecisionMicrosecond
	}
	oMillis := om / 1000 % 1000
	oSecs := om / microsPerSecond

	if p.gran.Step == Microseconds {
		m := p.gran.Multiplier
		switch {
		case m%1000 != 0:
			return PrecisionMicrosecond
		case m/1000%1000 != 0 || oMillis != 0:
			return PrecisionMillisecond
		}
		return PrecisionSecond
	}
	if oMillis != 0 {
		return PrecisionMillisecond
	}
	if oSecs%60 != 0 {
		return PrecisionSecond
	}
	oMins := oSecs / 60 % 60
	oHours := oSecs / 3600 % 24
	oDays := oSecs / secondsPerDay

	if p.gran.Step == Seconds {
		m := p.gran.Multiplier
		switch {
		case m%60 != 0:
			return PrecisionSecond
		case m/60%60 != 0 || oMins != 0:
			return PrecisionMinute
		case aware || m/3600%24 != 0 || oHours != 0:
			return PrecisionHour
		}
		return PrecisionDay
	}

	switch {
	case oMins != 0:
		return PrecisionMinute
	case aware || oHours != 0:
		return PrecisionHour
	case oDays > 0:
		return PrecisionDay
	case p.gran.Multiplier%12 != 0 || p.off.Months%12 != 0:
		return PrecisionMonth
	}
	return PrecisionYear
}

// FormatTime renders t, read in p's timezone, at p's precision with a "T"
// separator.
func (p Period) FormatTime(t time.Time) string {
	return p.Formatter("T")(t)
}

// Formatter returns a function that renders instants of p at p's precision.
func (p Period) Formatter(sep string) func(time.Time) string {
	pr, aware := p.Precision(), p.tz != ""
	return func(t time.Time) string {
		return pr.Format(p.wall(t), sep, aware)
	}
}
