package validate

import (
	"fmt"
	"strings"
)

// TimeAnchor describes which edge of its resolution interval a stored
// timestamp denotes.
type TimeAnchor uint8

const (
	// Point timestamps are exact instants.
	Point TimeAnchor = iota
	// Start timestamps open their interval.
	Start
	// End timestamps close their interval: 00:00 on 2 January ends the
	// daily interval of 1 January.
	End
)

func (a TimeAnchor) String() string {
	switch a {
	case Point:
		return "point"
	case Start:
		return "start"
	case End:
		return "end"
	}
	return fmt.Sprintf("TimeAnchor(%d)", uint8(a))
}

// MarshalText implements encoding.TextMarshaler.
func (a TimeAnchor) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// ParseTimeAnchor reads "point", "start" or "end", case-insensitively.
func ParseTimeAnchor(s string) (TimeAnchor, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "point", "":
		return Point, nil
	case "start":
		return Start, nil
	case "end":
		return End, nil
	}
	return Point, fmt.Errorf("invalid time anchor %q: must be point, start or end", s)
}

// DuplicateStrategy governs how rows sharing one timestamp are resolved
// before validation.
type DuplicateStrategy uint8

const (
	// DuplicatesError fails when any timestamp repeats.
	DuplicatesError DuplicateStrategy = iota
	// DuplicatesDrop removes every row of a repeated timestamp.
	DuplicatesDrop
	// DuplicatesKeepFirst keeps the first row of each timestamp.
	DuplicatesKeepFirst
	// DuplicatesKeepLast keeps the last row of each timestamp.
	DuplicatesKeepLast
	// DuplicatesMerge collapses each group into one row holding, per
	// column, the first non-null value in row order.
	DuplicatesMerge
)

var duplicateNames = []string{"error", "drop", "keep_first", "keep_last", "merge"}

func (d DuplicateStrategy) String() string {
	if int(d) < len(duplicateNames) {
		return duplicateNames[d]
	}
	return fmt.Sprintf("DuplicateStrategy(%d)", uint8(d))
}

// ParseDuplicateStrategy reads a strategy name. Hyphens and underscores are
// interchangeable.
func ParseDuplicateStrategy(s string) (DuplicateStrategy, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	if norm == "" {
		return DuplicatesError, nil
	}
	for i, name := range duplicateNames {
		if norm == name {
			return DuplicateStrategy(i), nil
		}
	}
	return DuplicatesError, fmt.Errorf("invalid duplicate strategy %q: must be one of %s",
		s, strings.Join(duplicateNames, ", "))
}
