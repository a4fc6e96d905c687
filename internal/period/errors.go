package period

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every error returned by this package wraps exactly one
// of these, so callers can branch with errors.Is.
var (
	ErrMalformed    = errors.New("malformed period text")
	ErrNegative     = errors.New("negative period field")
	ErrEmpty        = errors.New("empty period")
	ErrMixed        = errors.New("period mixes calendar months with a fixed duration")
	ErrConstruction = errors.New("invalid period construction")
)

// ParseError reports period text that could not be read.
// Err is one of ErrMalformed, ErrNegative or ErrEmpty.
type ParseError struct {
	Text   string
	Err    error
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("period: parse %q: %v: %s", e.Text, e.Err, e.Detail)
	}
	return fmt.Sprintf("period: parse %q: %v", e.Text, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// GranularityError reports a base period that carries both a month
// component and a time component, e.g. "P1M1D".
type GranularityError struct {
	Months       int64
	Microseconds int64
}

func (e *GranularityError) Error() string {
	return fmt.Sprintf("period: %d month(s) and %dµs cannot share one base period: %v",
		e.Months, e.Microseconds, ErrMixed)
}

func (e *GranularityError) Unwrap() error { return ErrMixed }

// ConstructionError reports an invalid factory argument, an offset out of
// range, or an unsupported timezone.
type ConstructionError struct {
	Op     string
	Reason string
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("period: %s: %s", e.Op, e.Reason)
}

func (e *ConstructionError) Unwrap() error { return ErrConstruction }

func constructionErr(op, format string, args ...any) error {
	return &ConstructionError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
