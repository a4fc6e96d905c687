package period

import (
	"strconv"
	"strings"

	"github.com/govalues/decimal"
	isoperiod "github.com/rickb777/period"
)

// ─── Raw Fields ───────────────────────────────────────────────────────────────

// Fields is the raw magnitude tuple of one piece of period text, before it
// is collapsed into a Granularity. All fields are non-negative and
// Microseconds is below one second.
type Fields struct {
	Years        int64
	Months       int64
	Days         int64
	Hours        int64
	Minutes      int64
	Seconds      int64
	Microseconds int64
}

// IsZero reports whether every field is zero.
func (f Fields) IsZero() bool { return f == Fields{} }

// totals returns the calendar-month total and the fixed-duration total of f
// in microseconds.
func (f Fields) totals() (months, micros int64, err error) {
	for _, v := range []int64{f.Years, f.Months, f.Days, f.Hours, f.Minutes, f.Seconds, f.Microseconds} {
		if v < 0 {
			return 0, 0, &ParseError{Text: f.text(), Err: ErrNegative}
		}
	}
	if f.Microseconds >= microsPerSecond {
		return 0, 0, &ParseError{Text: f.text(), Err: ErrMalformed, Detail: "microseconds must be below one second"}
	}

	ok := true
	months, ok1 := mulAdd(f.Years, 12, f.Months)
	ok = ok && ok1
	days, ok2 := mulAdd(f.Days, 24, f.Hours)
	mins, ok3 := mulAdd(days, 60, f.Minutes)
	secs, ok4 := mulAdd(mins, 60, f.Seconds)
	micros, ok5 := mulAdd(secs, microsPerSecond, f.Microseconds)
	ok = ok && ok2 && ok3 && ok4 && ok5
	if !ok {
		return 0, 0, &ParseError{Text: f.text(), Err: ErrMalformed, Detail: "magnitude out of range"}
	}
	return months, micros, nil
}

// text renders f without collapsing units, for error messages only.
func (f Fields) text() string {
	var b strings.Builder
	b.WriteByte('P')
	for _, part := range []struct {
		v int64
		d byte
	}{{f.Years, 'Y'}, {f.Months, 'M'}, {f.Days, 'D'}} {
		if part.v != 0 {
			b.WriteString(strconv.FormatInt(part.v, 10))
			b.WriteByte(part.d)
		}
	}
	if f.Hours != 0 || f.Minutes != 0 || f.Seconds != 0 || f.Microseconds != 0 {
		b.WriteByte('T')
		for _, part := range []struct {
			v int64
			d byte
		}{{f.Hours, 'H'}, {f.Minutes, 'M'}} {
			if part.v != 0 {
				b.WriteString(strconv.FormatInt(part.v, 10))
				b.WriteByte(part.d)
			}
		}
		if f.Seconds != 0 || f.Microseconds != 0 {
			b.WriteString(secondsText(f.Seconds, f.Microseconds))
			b.WriteByte('S')
		}
	}
	return b.String()
}

// ─── Parsing ──────────────────────────────────────────────────────────────────

// ParseFields reads ISO-8601 duration text such as "P1Y2M", "PT15M" or
// "PT1.5S". Designators are case-insensitive and weeks are folded into days.
// Only the seconds field may carry a fraction; digits beyond the sixth are
// truncated, never rounded.
func ParseFields(text string) (Fields, error) {
	s := strings.ToUpper(strings.TrimSpace(text))
	switch {
	case s == "P" || s == "PT":
		return Fields{}, &ParseError{Text: text, Err: ErrEmpty}
	case strings.HasPrefix(s, "-P"):
		// a leading sign is only accepted so it can be reported precisely
	case !strings.HasPrefix(s, "P"):
		return Fields{}, &ParseError{Text: text, Err: ErrMalformed, Detail: "expected leading 'P'"}
	}

	iso, err := isoperiod.Parse(s)
	if err != nil {
		return Fields{}, &ParseError{Text: text, Err: ErrMalformed, Detail: err.Error()}
	}

	raw := []decimal.Decimal{
		iso.YearsDecimal(),
		iso.MonthsDecimal(),
		iso.WeeksDecimal(),
		iso.DaysDecimal(),
		iso.HoursDecimal(),
		iso.MinutesDecimal(),
		iso.SecondsDecimal(),
	}
	for _, d := range raw {
		if d.Sign() < 0 {
			return Fields{}, &ParseError{Text: text, Err: ErrNegative}
		}
	}

	var whole [6]int64
	for i, d := range raw[:6] {
		if !d.IsInt() {
			return Fields{}, &ParseError{Text: text, Err: ErrMalformed, Detail: "only seconds may carry a fraction"}
		}
		v, _, ok := d.Int64(0)
		if !ok {
			return Fields{}, &ParseError{Text: text, Err: ErrMalformed, Detail: "field out of range"}
		}
		whole[i] = v
	}
	secs, micros, ok := raw[6].Trunc(6).Int64(6)
	if !ok {
		return Fields{}, &ParseError{Text: text, Err: ErrMalformed, Detail: "seconds out of range"}
	}
	days, ok := mulAdd(whole[2], 7, whole[3])
	if !ok {
		return Fields{}, &ParseError{Text: text, Err: ErrMalformed, Detail: "days out of range"}
	}

	f := Fields{
		Years:        whole[0],
		Months:       whole[1],
		Days:         days,
		Hours:        whole[4],
		Minutes:      whole[5],
		Seconds:      secs,
		Microseconds: micros,
	}
	if f.IsZero() {
		return Fields{}, &ParseError{Text: text, Err: ErrEmpty}
	}
	return f, nil
}

// ─── Formatting ───────────────────────────────────────────────────────────────

// Format renders the canonical text of a granularity and offset: the base
// magnitude, followed by "+" and the offset when the offset is non-zero.
// Format is the inverse of parsing for every normalised pair.
func Format(g Granularity, off Offset) string {
	var b strings.Builder
	b.WriteByte('P')
	switch g.Step {
	case Months:
		appendMonths(&b, g.Multiplier)
	case Seconds:
		appendMicros(&b, g.Multiplier*microsPerSecond)
	case Microseconds:
		appendMicros(&b, g.Multiplier)
	}
	if !off.IsZero() {
		b.WriteByte('+')
		appendMonths(&b, off.Months)
		appendMicros(&b, off.Microseconds)
	}
	return b.String()
}

func appendMonths(b *strings.Builder, months int64) {
	if y := months / 12; y > 0 {
		b.WriteString(strconv.FormatInt(y, 10))
		b.WriteByte('Y')
	}
	if m := months % 12; m > 0 {
		b.WriteString(strconv.FormatInt(m, 10))
		b.WriteByte('M')
	}
}

func appendMicros(b *strings.Builder, micros int64) {
	secs, frac := micros/microsPerSecond, micros%microsPerSecond
	if d := secs / secondsPerDay; d > 0 {
		b.WriteString(strconv.FormatInt(d, 10))
		b.WriteByte('D')
	}
	rem := secs % secondsPerDay
	if rem == 0 && frac == 0 {
		return
	}
	b.WriteByte('T')
	if h := rem / 3600; h > 0 {
		b.WriteString(strconv.FormatInt(h, 10))
		b.WriteByte('H')
	}
	if m := rem % 3600 / 60; m > 0 {
		b.WriteString(strconv.FormatInt(m, 10))
		b.WriteByte('M')
	}
	if s := rem % 60; s > 0 || frac > 0 {
		b.WriteString(secondsText(s, frac))
		b.WriteByte('S')
	}
}

// secondsText renders whole seconds plus a microsecond fraction with
// trailing zeros stripped: (10, 500000) -> "10.5".
func secondsText(secs, micros int64) string {
	if micros == 0 {
		return strconv.FormatInt(secs, 10)
	}
	frac := strings.TrimRight(strconv.FormatInt(micros+microsPerSecond, 10)[1:], "0")
	return strconv.FormatInt(secs, 10) + "." + frac
}
