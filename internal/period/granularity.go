package period

import (
	"fmt"
	"math"
)

// Step selects the arithmetic grid a Period lives on.
type Step uint8

const (
	Months Step = iota + 1
	Seconds
	Microseconds
)

func (s Step) String() string {
	switch s {
	case Months:
		return "months"
	case Seconds:
		return "seconds"
	case Microseconds:
		return "microseconds"
	}
	return fmt.Sprintf("Step(%d)", uint8(s))
}

const (
	microsPerSecond = 1_000_000
	secondsPerDay   = 86_400
	microsPerMinute = 60 * microsPerSecond
	microsPerHour   = 60 * microsPerMinute
	microsPerDay    = secondsPerDay * microsPerSecond

	// maxSeconds keeps Seconds*1e6 inside int64 so every fixed grid can be
	// handled in microseconds.
	maxSeconds = math.MaxInt64 / microsPerSecond
)

// Granularity is a resolved base period: a single step and a positive
// multiplier of it.
type Granularity struct {
	Step       Step
	Multiplier int64
}

// micros returns the fixed length of g in microseconds, or 0 for Months.
func (g Granularity) micros() int64 {
	switch g.Step {
	case Seconds:
		return g.Multiplier * microsPerSecond
	case Microseconds:
		return g.Multiplier
	}
	return 0
}

func (g Granularity) valid() bool {
	switch g.Step {
	case Months, Microseconds:
		return g.Multiplier > 0
	case Seconds:
		return g.Multiplier > 0 && g.Multiplier <= maxSeconds
	}
	return false
}

// Offset shifts a grid away from its natural origin. Months and
// Microseconds compose independently: a year offset by nine months and
// nine hours starts each interval at 1 October 09:00.
type Offset struct {
	Months       int64
	Microseconds int64
}

// IsZero reports whether the offset leaves the grid unshifted.
func (o Offset) IsZero() bool { return o == Offset{} }

// Resolve collapses raw fields into a single-step granularity. A month
// component and a time component cannot both be present.
func Resolve(f Fields) (Granularity, error) {
	months, micros, err := f.totals()
	if err != nil {
		return Granularity{}, err
	}
	switch {
	case months != 0 && micros != 0:
		return Granularity{}, &GranularityError{Months: months, Microseconds: micros}
	case months != 0:
		return Granularity{Step: Months, Multiplier: months}, nil
	case micros == 0:
		return Granularity{}, &ParseError{Text: f.text(), Err: ErrEmpty}
	case micros%microsPerSecond == 0:
		return Granularity{Step: Seconds, Multiplier: micros / microsPerSecond}, nil
	}
	return Granularity{Step: Microseconds, Multiplier: micros}, nil
}

// resolveOffset collapses offset fields. Unlike a base period an offset may
// combine months with a time of day, and may be zero.
func resolveOffset(f Fields) (Offset, error) {
	months, micros, err := f.totals()
	if err != nil {
		return Offset{}, err
	}
	return Offset{Months: months, Microseconds: micros}, nil
}

// ─── Integer Helpers ──────────────────────────────────────────────────────────

// mulAdd returns a*m+b for non-negative operands, reporting overflow.
func mulAdd(a, m, b int64) (int64, bool) {
	p, ok := mulChecked(a, m)
	if !ok {
		return 0, false
	}
	return addChecked(p, b)
}

func mulChecked(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return c, true
}

func addChecked(a, b int64) (int64, bool) {
	c := a + b
	if (c > a) != (b > 0) {
		return 0, false
	}
	return c, true
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	m := a % b
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}
