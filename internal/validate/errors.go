package validate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/derickschaefer/periodic/internal/period"
)

// Sentinels wrapped by the typed errors below.
var (
	ErrConfiguration      = errors.New("resolution is not a subperiod of periodicity")
	ErrResolution         = errors.New("timestamps not aligned to resolution")
	ErrPeriodicity        = errors.New("several timestamps in one periodicity interval")
	ErrDuplicateTimestamp = errors.New("duplicate timestamps")
	ErrTimeMutated        = errors.New("time column changed")
)

// previewLimit caps how many offending timestamps an error message lists.
const previewLimit = 5

func preview(ts []time.Time, total int) string {
	parts := make([]string, 0, min(len(ts), previewLimit))
	for _, t := range ts[:min(len(ts), previewLimit)] {
		parts = append(parts, t.Format(time.RFC3339Nano))
	}
	s := strings.Join(parts, ", ")
	if total > len(parts) {
		s += fmt.Sprintf(" and %d more", total-len(parts))
	}
	return s
}

// ConfigurationError reports a resolution that is not a subperiod of the
// periodicity. It is raised before any row is inspected.
type ConfigurationError struct {
	Resolution  period.Period
	Periodicity period.Period
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("validate: resolution %s is not a subperiod of periodicity %s",
		e.Resolution.Repr(), e.Periodicity.Repr())
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// ResolutionError lists timestamps that do not fall on the resolution grid.
// Misaligned holds at most the configured number of entries; Total counts
// them all.
type ResolutionError struct {
	Resolution period.Period
	Misaligned []time.Time
	Total      int
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("validate: %d timestamp(s) not aligned to resolution %s: %s",
		e.Total, e.Resolution.Repr(), preview(e.Misaligned, e.Total))
}

func (e *ResolutionError) Unwrap() error { return ErrResolution }

// Collision is one periodicity interval holding more than one timestamp.
type Collision struct {
	Ordinal int64
	Start   time.Time
	Members []time.Time
}

// PeriodicityError lists periodicity intervals holding several timestamps.
type PeriodicityError struct {
	Periodicity period.Period
	Collisions  []Collision
	Total       int
}

func (e *PeriodicityError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "validate: %d periodicity interval(s) of %s hold more than one timestamp",
		e.Total, e.Periodicity.Repr())
	if len(e.Collisions) > 0 {
		c := e.Collisions[0]
		fmt.Fprintf(&b, ": interval starting %s holds %s",
			c.Start.Format(time.RFC3339Nano), preview(c.Members, len(c.Members)))
	}
	return b.String()
}

func (e *PeriodicityError) Unwrap() error { return ErrPeriodicity }

// DuplicateTimestampError lists timestamps that occur on more than one row.
// It is only raised by the DuplicatesError strategy.
type DuplicateTimestampError struct {
	Times []time.Time
	Total int
}

func (e *DuplicateTimestampError) Error() string {
	return fmt.Sprintf("validate: %d duplicate timestamp(s): %s", e.Total, preview(e.Times, e.Total))
}

func (e *DuplicateTimestampError) Unwrap() error { return ErrDuplicateTimestamp }

// TimeMutatedError reports that an operation changed a frame's time column.
type TimeMutatedError struct {
	Added   []time.Time
	Removed []time.Time
}

func (e *TimeMutatedError) Error() string {
	return fmt.Sprintf("validate: time column changed: %d added, %d removed", len(e.Added), len(e.Removed))
}

func (e *TimeMutatedError) Unwrap() error { return ErrTimeMutated }
