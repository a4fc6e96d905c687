package period

import "time"

// ─── Civil Time ───────────────────────────────────────────────────────────────

// epochUnix is midnight at the start of proleptic-Gregorian day zero
// (31 December of year 0), so 0001-01-01 is day one.
var epochUnix = time.Date(0, time.December, 31, 0, 0, 0, 0, time.UTC).Unix()

// civilMicros returns the wall-clock reading of t as microseconds since the
// epoch. The location's UTC offset is ignored.
func civilMicros(t time.Time) int64 {
	u := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC).Unix()
	return (u-epochUnix)*microsPerSecond + int64(t.Nanosecond()/1000)
}

// civilTime is the inverse of civilMicros, placing the wall clock in loc.
func civilTime(us int64, loc *time.Location) time.Time {
	secs, frac := floorDiv(us, microsPerSecond), floorMod(us, microsPerSecond)
	u := time.Unix(secs+epochUnix, frac*1000).UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), u.Nanosecond(), loc)
}

// monthIndex numbers calendar months from January of year 1.
func monthIndex(t time.Time) int64 {
	return int64(t.Year()-1)*12 + int64(t.Month()-1)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// wall reads t in p's timezone. A naive period reads t's own wall clock.
func (p Period) wall(t time.Time) time.Time {
	if p.tz == "" {
		return t
	}
	return t.In(p.location())
}

func (p Period) location() *time.Location {
	if p.tz == "" {
		return time.UTC
	}
	return zone(p.tz)
}

// ─── Ordinal Mapping ──────────────────────────────────────────────────────────

// Ordinal returns the index of the interval containing t: the interval
// starts at or before t and the next one starts after it.
func (p Period) Ordinal(t time.Time) int64 {
	us := civilMicros(p.wall(t))
	var n int64
	if p.gran.Step == Months {
		r := civilTime(us-p.off.Microseconds, time.UTC)
		n = floorDiv(monthIndex(r)-p.off.Months, p.gran.Multiplier)
	} else {
		n = floorDiv(us-p.off.Microseconds, p.gran.micros())
	}
	return n + p.shift
}

// DateTime returns the start of interval n, in p's timezone or UTC for a
// naive period. n must lie within OrdinalRange.
func (p Period) DateTime(n int64) time.Time {
	k := n - p.shift
	if p.gran.Step == Months {
		idx := k*p.gran.Multiplier + p.off.Months
		start := time.Date(int(floorDiv(idx, 12))+1, time.Month(floorMod(idx, 12)+1), 1, 0, 0, 0, 0, time.UTC)
		return civilTime(civilMicros(start)+p.off.Microseconds, p.location())
	}
	return civilTime(k*p.gran.micros()+p.off.Microseconds, p.location())
}

// IsAligned reports whether t is the start of an interval. Instants with
// sub-microsecond precision are never aligned.
func (p Period) IsAligned(t time.Time) bool {
	if t.Nanosecond()%1000 != 0 {
		return false
	}
	return civilMicros(p.DateTime(p.Ordinal(t))) == civilMicros(p.wall(t))
}

// Floor returns the start of the interval containing t.
func (p Period) Floor(t time.Time) time.Time {
	return p.DateTime(p.Ordinal(t))
}

// Add moves t by n whole intervals. Aligned instants stay on the grid;
// other instants move by n times the interval length, or by n times the
// month multiplier with end-of-month clamping.
func (p Period) Add(t time.Time, n int64) time.Time {
	if p.IsAligned(t) {
		return p.DateTime(p.Ordinal(t) + n)
	}
	w := p.wall(t)
	if p.gran.Step == Months {
		return MonthShift(w, n*p.gran.Multiplier)
	}
	sub := time.Duration(w.Nanosecond() % 1000)
	return civilTime(civilMicros(w)+n*p.gran.micros(), w.Location()).Add(sub)
}

// OrdinalRange returns the first and last ordinals whose intervals start
// within years 1 to 9999.
func (p Period) OrdinalRange() (lo, hi int64) {
	loc := p.location()
	first := time.Date(1, time.January, 1, 0, 0, 0, 0, loc)
	last := time.Date(9999, time.December, 31, 23, 59, 59, 999_999_000, loc)
	lo = p.Ordinal(first)
	if civilMicros(p.DateTime(lo)) < civilMicros(first) {
		lo++
	}
	return lo, p.Ordinal(last)
}

// ─── Calendar Shifts ──────────────────────────────────────────────────────────

// MonthShift adds n calendar months to t, clamping the day to the end of
// the target month: 31 January plus one month is 28 or 29 February.
func MonthShift(t time.Time, n int64) time.Time {
	if n == 0 {
		return t
	}
	idx := int64(t.Year())*12 + int64(t.Month()-1) + n
	y, m := int(floorDiv(idx, 12)), time.Month(floorMod(idx, 12)+1)
	d := min(t.Day(), daysIn(y, m))
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// YearShift adds n years to t, keeping month and day except that
// 29 February becomes 28 February in a common year.
func YearShift(t time.Time, n int64) time.Time {
	return MonthShift(t, 12*n)
}
