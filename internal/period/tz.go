package period

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// zones caches resolved locations by canonical name. Named zones come from
// the host's timezone database.
var zones sync.Map

// utcName is the canonical name of a zero UTC offset.
const utcName = "Z"

// lookupZone canonicalises a timezone name and resolves it. The empty name
// is the naive zone and resolves to a nil location.
func lookupZone(name string) (string, *time.Location, error) {
	s := strings.TrimSpace(name)
	switch strings.ToUpper(s) {
	case "":
		return "", nil, nil
	case "Z", "UTC":
		return utcName, time.UTC, nil
	}
	if loc, ok := zones.Load(s); ok {
		return s, loc.(*time.Location), nil
	}

	var canon string
	var loc *time.Location
	if s[0] == '+' || s[0] == '-' {
		secs, err := parseUTCOffset(s)
		if err != nil {
			return "", nil, err
		}
		if secs == 0 {
			return utcName, time.UTC, nil
		}
		canon = formatUTCOffset(secs)
		loc = time.FixedZone(canon, secs)
	} else {
		l, err := time.LoadLocation(s)
		if err != nil {
			return "", nil, constructionErr("WithTimezone", "unknown timezone %q", s)
		}
		canon, loc = l.String(), l
	}
	zones.Store(canon, loc)
	return canon, loc, nil
}

// Location resolves a timezone name in any form WithTimezone accepts.
// The empty name yields a nil location.
func Location(name string) (*time.Location, error) {
	_, loc, err := lookupZone(name)
	return loc, err
}

// zone resolves a canonical name already accepted by lookupZone.
func zone(name string) *time.Location {
	if name == utcName {
		return time.UTC
	}
	if loc, ok := zones.Load(name); ok {
		return loc.(*time.Location)
	}
	if _, loc, err := lookupZone(name); err == nil && loc != nil {
		return loc
	}
	return time.UTC
}

// parseUTCOffset reads "±H", "±HH" or "±HH:MM" as seconds east of UTC.
// Offsets of a whole day or more are rejected.
func parseUTCOffset(s string) (int, error) {
	sign := 1
	if s[0] == '-' {
		sign = -1
	}
	hh, mm, hasMinutes := strings.Cut(s[1:], ":")
	h, err := strconv.Atoi(hh)
	if err != nil || len(hh) == 0 || len(hh) > 2 {
		return 0, constructionErr("WithTimezone", "malformed UTC offset %q", s)
	}
	m := 0
	if hasMinutes {
		m, err = strconv.Atoi(mm)
		if err != nil || len(mm) == 0 || len(mm) > 2 || m > 59 {
			return 0, constructionErr("WithTimezone", "malformed UTC offset %q", s)
		}
	}
	secs := h*3600 + m*60
	if secs >= secondsPerDay {
		return 0, constructionErr("WithTimezone", "UTC offset %q is outside ±24:00", s)
	}
	return sign * secs, nil
}

func formatUTCOffset(secs int) string {
	sign := byte('+')
	if secs < 0 {
		sign, secs = '-', -secs
	}
	return fmt.Sprintf("%c%02d:%02d", sign, secs/3600, secs%3600/60)
}
