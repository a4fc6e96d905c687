// Package validate enforces temporal integrity on a frame's time column:
// duplicates are resolved, every timestamp must sit on the resolution grid,
// and no periodicity interval may hold more than one timestamp.
package validate

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/derickschaefer/periodic/internal/model"
	"github.com/derickschaefer/periodic/internal/period"
)

// DefaultMaxReported caps how many offending timestamps or intervals an
// error carries.
const DefaultMaxReported = 100

// minChunk is the smallest slice of rows handed to one worker.
const minChunk = 4096

// Validator checks frames against one resolution and periodicity.
// It is immutable after New and safe for concurrent use.
type Validator struct {
	resolution  period.Period
	periodicity period.Period
	anchor      TimeAnchor
	duplicates  DuplicateStrategy
	maxReported int
	workers     int
	logger      *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithTimeAnchor sets which edge of its interval a timestamp denotes.
func WithTimeAnchor(a TimeAnchor) Option {
	return func(v *Validator) { v.anchor = a }
}

// WithDuplicates sets the duplicate timestamp strategy.
func WithDuplicates(d DuplicateStrategy) Option {
	return func(v *Validator) { v.duplicates = d }
}

// WithMaxReported caps the entries carried by validation errors.
// Non-positive values restore the default.
func WithMaxReported(n int) Option {
	return func(v *Validator) {
		if n <= 0 {
			n = DefaultMaxReported
		}
		v.maxReported = n
	}
}

// WithWorkers bounds the goroutines used for alignment and interval checks.
// Non-positive values mean GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(v *Validator) {
		if n <= 0 {
			n = runtime.GOMAXPROCS(0)
		}
		v.workers = n
	}
}

// WithLogger sets the logger. A nil logger keeps slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// New returns a Validator for the given resolution and periodicity.
//
// A zero resolution means PT0.000001S. A zero periodicity means the
// resolution itself. The resolution must be a subperiod of the periodicity,
// otherwise a *ConfigurationError is returned.
func New(resolution, periodicity period.Period, opts ...Option) (*Validator, error) {
	if resolution.IsZero() {
		resolution = period.Must(period.OfMicroseconds(1))
	}
	if periodicity.IsZero() {
		periodicity = resolution
	}
	v := &Validator{
		resolution:  resolution,
		periodicity: periodicity,
		anchor:      Point,
		duplicates:  DuplicatesError,
		maxReported: DefaultMaxReported,
		workers:     runtime.GOMAXPROCS(0),
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(v)
	}
	if !resolution.IsSubperiodOf(periodicity) {
		return nil, &ConfigurationError{Resolution: resolution, Periodicity: periodicity}
	}
	for _, p := range []period.Period{resolution, periodicity} {
		if !p.IsEpochAgnostic() {
			v.logger.Warn("period is not epoch-agnostic; interval boundaries depend on the epoch",
				"period", p.Repr())
		}
	}
	return v, nil
}

// Resolution returns the resolution period.
func (v *Validator) Resolution() period.Period { return v.resolution }

// Periodicity returns the periodicity period.
func (v *Validator) Periodicity() period.Period { return v.periodicity }

// TimeAnchor returns the configured anchor.
func (v *Validator) TimeAnchor() TimeAnchor { return v.anchor }

// Duplicates returns the configured duplicate strategy.
func (v *Validator) Duplicates() DuplicateStrategy { return v.duplicates }

// Validate resolves duplicates, sorts rows by time and checks alignment and
// periodicity. It returns a new frame; f is never modified.
//
// When both checks fail the error joins a *ResolutionError and a
// *PeriodicityError, in that order. A context error aborts the run.
func (v *Validator) Validate(ctx context.Context, f *model.Frame) (*model.Frame, error) {
	start := time.Now()
	rows, removed, err := resolveDuplicates(f.Rows, v.duplicates, v.maxReported)
	if err != nil {
		return nil, err
	}
	if removed > 0 {
		v.logger.Debug("duplicates resolved", "strategy", v.duplicates.String(), "removed", removed)
	}
	slices.SortStableFunc(rows, func(a, b model.Row) int { return a.Time.Compare(b.Time) })

	var resErr, perErr error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e, err := v.checkAlignment(gctx, rows)
		if e != nil {
			resErr = e
		}
		return err
	})
	g.Go(func() error {
		e, err := v.checkPeriodicity(gctx, rows)
		if e != nil {
			perErr = e
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := errors.Join(resErr, perErr); err != nil {
		return nil, err
	}

	v.logger.Debug("frame validated",
		"rows", len(rows),
		"resolution", v.resolution.Repr(),
		"periodicity", v.periodicity.Repr(),
		"elapsed", time.Since(start))
	return f.WithRows(rows), nil
}

// RemoveMisaligned returns f without the rows whose timestamps are off the
// resolution grid, along with the removed timestamps. Row order is kept.
func (v *Validator) RemoveMisaligned(ctx context.Context, f *model.Frame) (*model.Frame, []time.Time, error) {
	bad, err := v.misaligned(ctx, f.Rows)
	if err != nil {
		return nil, nil, err
	}
	kept := make([]model.Row, 0, len(f.Rows))
	var dropped []time.Time
	for i, r := range f.Rows {
		if bad[i] {
			dropped = append(dropped, r.Time)
			continue
		}
		kept = append(kept, cloneRow(r))
	}
	return f.WithRows(kept), dropped, nil
}

// Aligned reports whether t sits on the resolution grid under the
// configured anchor.
func (v *Validator) Aligned(t time.Time) bool {
	if v.anchor == End {
		t = v.resolution.Add(t, -1)
	}
	return v.resolution.IsAligned(t)
}

// Bucket returns the ordinal of the periodicity interval t belongs to under
// the configured anchor.
func (v *Validator) Bucket(t time.Time) int64 {
	if v.anchor == End {
		t = t.Add(-time.Microsecond)
	}
	return v.periodicity.Ordinal(t)
}

// ─── Checks ───────────────────────────────────────────────────────────────────

func (v *Validator) misaligned(ctx context.Context, rows []model.Row) ([]bool, error) {
	bad := make([]bool, len(rows))
	err := forEachChunk(ctx, len(rows), v.workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			bad[i] = !v.Aligned(rows[i].Time)
		}
	})
	return bad, err
}

func (v *Validator) checkAlignment(ctx context.Context, rows []model.Row) (*ResolutionError, error) {
	bad, err := v.misaligned(ctx, rows)
	if err != nil {
		return nil, err
	}
	e := &ResolutionError{Resolution: v.resolution}
	for i, b := range bad {
		if !b {
			continue
		}
		e.Total++
		if len(e.Misaligned) < v.maxReported {
			e.Misaligned = append(e.Misaligned, rows[i].Time)
		}
	}
	if e.Total == 0 {
		return nil, nil
	}
	return e, nil
}

func (v *Validator) checkPeriodicity(ctx context.Context, rows []model.Row) (*PeriodicityError, error) {
	ords := make([]int64, len(rows))
	err := forEachChunk(ctx, len(rows), v.workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			ords[i] = v.Bucket(rows[i].Time)
		}
	})
	if err != nil {
		return nil, err
	}

	first := make(map[int64]int, len(rows))
	groups := make(map[int64][]int)
	for i, o := range ords {
		j, seen := first[o]
		if !seen {
			first[o] = i
			continue
		}
		if _, ok := groups[o]; !ok {
			groups[o] = []int{j}
		}
		groups[o] = append(groups[o], i)
	}
	if len(groups) == 0 {
		return nil, nil
	}

	keys := make([]int64, 0, len(groups))
	for o := range groups {
		keys = append(keys, o)
	}
	slices.Sort(keys)
	e := &PeriodicityError{Periodicity: v.periodicity, Total: len(keys)}
	for _, o := range keys[:min(len(keys), v.maxReported)] {
		c := Collision{Ordinal: o, Start: v.periodicity.DateTime(o)}
		for _, i := range groups[o] {
			c.Members = append(c.Members, rows[i].Time)
		}
		e.Collisions = append(e.Collisions, c)
	}
	return e, nil
}

// forEachChunk splits [0, n) into contiguous chunks and runs fn over them on
// at most workers goroutines. The context is checked before each chunk.
func forEachChunk(ctx context.Context, n, workers int, fn func(lo, hi int)) error {
	if n == 0 {
		return ctx.Err()
	}
	workers = max(workers, 1)
	size := max(minChunk, (n+workers-1)/workers)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(lo, hi)
			return nil
		})
	}
	return g.Wait()
}

// CheckMutation compares the time columns of two frames as sets of
// instants and returns a *TimeMutatedError when they differ. Operations
// that must leave the time column alone call it on their output.
func CheckMutation(before, after *model.Frame) error {
	count := make(map[instant]int, before.Len())
	byKey := make(map[instant]time.Time, before.Len())
	for _, r := range before.Rows {
		k := keyOf(r.Time)
		count[k]++
		byKey[k] = r.Time
	}
	e := &TimeMutatedError{}
	for _, r := range after.Rows {
		k := keyOf(r.Time)
		if count[k] == 0 {
			e.Added = append(e.Added, r.Time)
			continue
		}
		count[k]--
	}
	for _, r := range before.Rows {
		k := keyOf(r.Time)
		if count[k] > 0 {
			e.Removed = append(e.Removed, byKey[k])
			count[k]--
		}
	}
	if len(e.Added) == 0 && len(e.Removed) == 0 {
		return nil
	}
	return e
}
