package period

// CountVariable is returned by Count when the number of intervals differs
// from one outer interval to the next, e.g. days per month. Callers must
// then count per instance from the actual interval boundaries.
const CountVariable int64 = -1

// IsEpochAgnostic reports whether the grid splits the timeline the same
// way whatever instant ordinal zero falls on: the multiplier must divide
// the year (Months), the day (Seconds) or the second (Microseconds).
// PT15M and P3M are epoch-agnostic; P7D is not.
func (p Period) IsEpochAgnostic() bool {
	var whole int64
	switch p.gran.Step {
	case Months:
		whole = 12
	case Seconds:
		whole = secondsPerDay
	case Microseconds:
		whole = microsPerSecond
	default:
		return false
	}
	m := p.gran.Multiplier
	return m <= whole && whole%m == 0
}

// Count returns how many p intervals make up one other interval.
//
// It returns a positive constant when every other interval holds the same
// number of p intervals, CountVariable when p is a fixed-duration period
// inside a calendar one, and 0 when other's boundaries are not all
// boundaries of p. Periods in different timezones never relate. The
// ordinal shift does not take part.
func (p Period) Count(other Period) int64 {
	if p.IsZero() || other.IsZero() || p.tz != other.tz {
		return 0
	}
	inner, outer := p.gran, other.gran
	switch {
	case inner.Step != Months && outer.Step != Months:
		si, so := inner.micros(), outer.micros()
		if so%si != 0 || floorMod(other.off.Microseconds-p.off.Microseconds, si) != 0 {
			return 0
		}
		return so / si

	case inner.Step != Months:
		// Every calendar month starts at a midnight, so p must split the
		// day evenly and agree with other's time-of-day offset.
		si := inner.micros()
		if microsPerDay%si != 0 || floorMod(other.off.Microseconds-p.off.Microseconds, si) != 0 {
			return 0
		}
		return CountVariable

	case outer.Step != Months:
		return 0
	}

	mi, mo := inner.Multiplier, outer.Multiplier
	if mo%mi != 0 || floorMod(other.off.Months-p.off.Months, mi) != 0 ||
		p.off.Microseconds != other.off.Microseconds {
		return 0
	}
	return mo / mi
}

// IsSubperiodOf reports whether every boundary of other is also a boundary
// of p, so that other's intervals are unions of whole p intervals. The
// relation is reflexive, and antisymmetric once ordinal shifts are set
// aside: two periods that are subperiods of each other share one grid.
func (p Period) IsSubperiodOf(other Period) bool {
	return p.Count(other) != 0
}
