// Package period implements the calendar period value type that every
// periodic time series is built on.
//
// A Period is a repeating grid on the timeline: a base step (calendar
// months, whole seconds or microseconds) times a multiplier, optionally
// shifted by an offset, pinned to a timezone and renumbered by an ordinal
// shift. Each grid cell has an integer ordinal; Ordinal and DateTime map
// between instants and cells, and the alignment test used by the
// validator is DateTime(Ordinal(t)) == t.
//
// Periods are immutable comparable values. They round-trip through their
// canonical ISO-8601 text, e.g. "PT15M", "P1M" or "P1Y+9MT9H" for a water
// year starting on 1 October at 09:00.
package period

import (
	"time"
)

// Period is an immutable calendar grid. The zero value is not a valid
// period; use a factory or Parse.
type Period struct {
	gran  Granularity
	off   Offset
	tz    string
	shift int64
}

// ─── Factories ────────────────────────────────────────────────────────────────

// OfYears returns an n-year period.
func OfYears(n int64) (Period, error) { return ofUnit("OfYears", Months, n, 12) }

// OfMonths returns an n-month period.
func OfMonths(n int64) (Period, error) { return ofUnit("OfMonths", Months, n, 1) }

// OfDays returns an n-day period.
func OfDays(n int64) (Period, error) { return ofUnit("OfDays", Seconds, n, secondsPerDay) }

// OfHours returns an n-hour period.
func OfHours(n int64) (Period, error) { return ofUnit("OfHours", Seconds, n, 3600) }

// OfMinutes returns an n-minute period.
func OfMinutes(n int64) (Period, error) { return ofUnit("OfMinutes", Seconds, n, 60) }

// OfSeconds returns an n-second period.
func OfSeconds(n int64) (Period, error) { return ofUnit("OfSeconds", Seconds, n, 1) }

// OfMicroseconds returns an n-microsecond period. Whole seconds are
// promoted to the Seconds step.
func OfMicroseconds(n int64) (Period, error) {
	return ofUnit("OfMicroseconds", Microseconds, n, 1)
}

// OfDuration converts a positive fixed duration into a Seconds period, or a
// Microseconds period when d is not a whole number of seconds.
func OfDuration(d time.Duration) (Period, error) {
	switch {
	case d <= 0:
		return Period{}, constructionErr("OfDuration", "duration %v is not positive", d)
	case d%time.Microsecond != 0:
		return Period{}, constructionErr("OfDuration", "duration %v is finer than one microsecond", d)
	}
	return ofUnit("OfDuration", Microseconds, int64(d/time.Microsecond), 1)
}

// New builds a Period from a resolved granularity.
func New(g Granularity) (Period, error) {
	if !g.valid() {
		return Period{}, constructionErr("New", "invalid granularity %v×%d", g.Step, g.Multiplier)
	}
	return Period{gran: demote(g)}, nil
}

// Must panics if err is non-nil. It is meant for package-level literals
// and tests: period.Must(period.OfMinutes(15)).
func Must(p Period, err error) Period {
	if err != nil {
		panic(err)
	}
	return p
}

func ofUnit(op string, step Step, n, unit int64) (Period, error) {
	if n <= 0 {
		return Period{}, constructionErr(op, "count %d must be positive", n)
	}
	m, ok := mulChecked(n, unit)
	if !ok || (step == Seconds && m > maxSeconds) {
		return Period{}, constructionErr(op, "count %d out of range", n)
	}
	return Period{gran: demote(Granularity{Step: step, Multiplier: m})}, nil
}

// demote moves a whole-second Microseconds granularity onto the Seconds step.
func demote(g Granularity) Granularity {
	if g.Step == Microseconds && g.Multiplier%microsPerSecond == 0 {
		return Granularity{Step: Seconds, Multiplier: g.Multiplier / microsPerSecond}
	}
	return g
}

// ─── Accessors ────────────────────────────────────────────────────────────────

// Step returns the grid step.
func (p Period) Step() Step { return p.gran.Step }

// Multiplier returns the number of steps per interval.
func (p Period) Multiplier() int64 { return p.gran.Multiplier }

// Granularity returns the base (step, multiplier) pair.
func (p Period) Granularity() Granularity { return p.gran }

// Offset returns the normalised offset.
func (p Period) Offset() Offset { return p.off }

// Timezone returns the timezone name, or "" for a naive period.
func (p Period) Timezone() string { return p.tz }

// OrdinalShift returns the amount added to every ordinal.
func (p Period) OrdinalShift() int64 { return p.shift }

// IsZero reports whether p is the zero value, which is not a usable period.
func (p Period) IsZero() bool { return p == Period{} }

// Equal reports whether p and o are the same period, including timezone
// and ordinal shift.
func (p Period) Equal(o Period) bool { return p == o }

// IntervalDescriptor exposes the grid step and multiplier so an external
// windowing primitive can bucket rows without knowing Period internals.
func (p Period) IntervalDescriptor() (Step, int64) { return p.gran.Step, p.gran.Multiplier }

// OffsetDescriptor exposes the month and microsecond offsets.
func (p Period) OffsetDescriptor() (months, micros int64) {
	return p.off.Months, p.off.Microseconds
}

// AsFixedDuration returns the constant interval length. ok is false for
// Months-stepped periods, which have no fixed length, and for intervals
// too long for time.Duration.
func (p Period) AsFixedDuration() (d time.Duration, ok bool) {
	us := p.gran.micros()
	if us == 0 {
		return 0, false
	}
	d = time.Duration(us) * time.Microsecond
	if d/time.Microsecond != time.Duration(us) {
		return 0, false
	}
	return d, true
}

// ─── Builders ─────────────────────────────────────────────────────────────────

// WithMultiplier returns p with its multiplier multiplied by n. The offset
// is renormalised and the ordinal shift reset.
func (p Period) WithMultiplier(n int64) (Period, error) {
	if n <= 0 {
		return Period{}, constructionErr("WithMultiplier", "multiplier %d must be positive", n)
	}
	m, ok := mulChecked(p.gran.Multiplier, n)
	g := Granularity{Step: p.gran.Step, Multiplier: m}
	if !ok || !g.valid() {
		return Period{}, constructionErr("WithMultiplier", "multiplier %d out of range", n)
	}
	q := p
	q.gran = demote(g)
	off, err := normaliseOffset(q.gran, p.off)
	if err != nil {
		return Period{}, err
	}
	q.off = off
	q.shift = 0
	return q, nil
}

// WithYearOffset adds n years to the month offset.
func (p Period) WithYearOffset(n int64) (Period, error) {
	return p.withOffset("WithYearOffset", n, 12, 0)
}

// WithMonthOffset adds n months to the month offset.
func (p Period) WithMonthOffset(n int64) (Period, error) {
	return p.withOffset("WithMonthOffset", n, 1, 0)
}

// WithDayOffset adds n days to the microsecond offset.
func (p Period) WithDayOffset(n int64) (Period, error) {
	return p.withOffset("WithDayOffset", n, 0, microsPerDay)
}

// WithHourOffset adds n hours to the microsecond offset.
func (p Period) WithHourOffset(n int64) (Period, error) {
	return p.withOffset("WithHourOffset", n, 0, microsPerHour)
}

// WithMinuteOffset adds n minutes to the microsecond offset.
func (p Period) WithMinuteOffset(n int64) (Period, error) {
	return p.withOffset("WithMinuteOffset", n, 0, microsPerMinute)
}

// WithSecondOffset adds n seconds to the microsecond offset.
func (p Period) WithSecondOffset(n int64) (Period, error) {
	return p.withOffset("WithSecondOffset", n, 0, microsPerSecond)
}

// WithMicrosecondOffset adds n microseconds to the microsecond offset.
func (p Period) WithMicrosecondOffset(n int64) (Period, error) {
	return p.withOffset("WithMicrosecondOffset", n, 0, 1)
}

// withOffset folds n units into one offset axis. Exactly one of
// monthUnit and microUnit is non-zero.
func (p Period) withOffset(op string, n, monthUnit, microUnit int64) (Period, error) {
	if n < 0 {
		return Period{}, constructionErr(op, "offset %d must not be negative", n)
	}
	off := p.off
	var ok bool
	if monthUnit != 0 {
		off.Months, ok = mulAdd(n, monthUnit, off.Months)
	} else {
		off.Microseconds, ok = mulAdd(n, microUnit, off.Microseconds)
	}
	if !ok {
		return Period{}, constructionErr(op, "offset %d out of range", n)
	}
	return p.withOffsetValue(off)
}

// withOffsetValue replaces the offset wholesale.
func (p Period) withOffsetValue(off Offset) (Period, error) {
	if off.Months < 0 || off.Microseconds < 0 {
		return Period{}, constructionErr("WithOffset", "offset components must not be negative")
	}
	norm, err := normaliseOffset(p.gran, off)
	if err != nil {
		return Period{}, err
	}
	q := p
	q.off = norm
	q.shift = 0
	return q, nil
}

// normaliseOffset reduces each offset axis modulo the grid it shifts.
// Months-stepped grids keep the microsecond offset as given, since a month
// has no fixed length to reduce it by. A fixed-duration grid accepts whole
// years of month offset, which reduce to nothing; any other month offset
// cannot shift it and is rejected.
func normaliseOffset(g Granularity, off Offset) (Offset, error) {
	switch g.Step {
	case Months:
		off.Months %= g.Multiplier
	default:
		if off.Months%12 != 0 {
			return Offset{}, constructionErr("offset", "%d month(s) cannot shift a fixed %v grid", off.Months, g.Step)
		}
		off.Months = 0
		off.Microseconds %= g.micros()
	}
	return off, nil
}

// WithoutOffset returns p with a zero offset. The ordinal shift is kept.
func (p Period) WithoutOffset() Period {
	q := p
	q.off = Offset{}
	return q
}

// WithOrdinalShift returns p with every ordinal moved by n.
func (p Period) WithOrdinalShift(n int64) Period {
	q := p
	q.shift = n
	return q
}

// WithoutOrdinalShift returns p numbered from its natural origin. The grid
// is unchanged.
func (p Period) WithoutOrdinalShift() Period { return p.WithOrdinalShift(0) }

// Base returns the bare grid of p: same step, multiplier and timezone, no
// offset and no ordinal shift.
func (p Period) Base() Period {
	return Period{gran: p.gran, tz: p.tz}
}

// WithTimezone pins p to a timezone. name is "" (naive), "Z" or "UTC", a
// fixed offset "±HH:MM" within ±24:00, or an IANA zone name.
func (p Period) WithTimezone(name string) (Period, error) {
	canon, _, err := lookupZone(name)
	if err != nil {
		return Period{}, err
	}
	q := p
	q.tz = canon
	return q, nil
}

// WithOrigin returns p's base grid re-offset so that origin is aligned and
// numbered zero. The timezone of p is kept and origin is read in it.
func (p Period) WithOrigin(origin time.Time) (Period, error) {
	q := p.Base()
	w := q.wall(origin)
	var off Offset
	switch q.gran.Step {
	case Months:
		idx := monthIndex(w)
		off.Months = floorMod(idx, q.gran.Multiplier)
		off.Microseconds = civilMicros(w) - civilMicros(time.Date(w.Year(), w.Month(), 1, 0, 0, 0, 0, time.UTC))
	default:
		off.Microseconds = floorMod(civilMicros(w), q.gran.micros())
	}
	q, err := q.withOffsetValue(off)
	if err != nil {
		return Period{}, err
	}
	q.shift = -q.Ordinal(origin)
	return q, nil
}
