package period

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// String returns the canonical text of p, e.g. "PT15M" or "P1Y+9MT9H".
// Timezone and ordinal shift are not included; see Repr.
func (p Period) String() string {
	if p.IsZero() {
		return ""
	}
	return Format(p.gran, p.off)
}

// Repr returns text that reconstructs p exactly: the canonical text, then
// the timezone in brackets and the ordinal shift when either is set, e.g.
// "P1D[+05:30]" or "PT1H[]-3".
func (p Period) Repr() string {
	s := p.String()
	if p.tz == "" && p.shift == 0 {
		return s
	}
	s += "[" + p.tz + "]"
	if p.shift != 0 {
		s += strconv.FormatInt(p.shift, 10)
	}
	return s
}

// Parse reads period text in any of the forms:
//
//	P1D                       plain ISO-8601 duration
//	P1Y+9MT9H                 duration plus offset (the offset's P is optional)
//	1883-01-01T09:00/P1D      origin and duration, see WithOrigin
//	P1D+T9H[+05:30]-3         Repr output
func Parse(text string) (Period, error) {
	s := strings.TrimSpace(text)
	if open := strings.IndexByte(s, '['); open >= 0 {
		return parseRepr(text, s, open)
	}
	if head, tail, ok := strings.Cut(s, "/"); ok {
		return parseWithOrigin(text, head, tail)
	}
	return parseOffsetForm(s)
}

// MustParse is Parse that panics on error.
func MustParse(text string) Period {
	return Must(Parse(text))
}

func parseOffsetForm(s string) (Period, error) {
	base, offText, hasOffset := strings.Cut(s, "+")
	f, err := ParseFields(base)
	if err != nil {
		return Period{}, err
	}
	g, err := Resolve(f)
	if err != nil {
		return Period{}, err
	}
	p, err := New(g)
	if err != nil || !hasOffset {
		return p, err
	}

	ot := strings.ToUpper(strings.TrimSpace(offText))
	if !strings.HasPrefix(ot, "P") {
		ot = "P" + ot
	}
	of, err := ParseFields(ot)
	if err != nil && !errors.Is(err, ErrEmpty) {
		return Period{}, err
	}
	off, err := resolveOffset(of)
	if err != nil {
		return Period{}, err
	}
	return p.withOffsetValue(off)
}

func parseRepr(text, s string, open int) (Period, error) {
	closing := strings.IndexByte(s, ']')
	if closing < open {
		return Period{}, &ParseError{Text: text, Err: ErrMalformed, Detail: "unterminated timezone"}
	}
	p, err := parseOffsetForm(s[:open])
	if err != nil {
		return Period{}, err
	}
	if p, err = p.WithTimezone(s[open+1 : closing]); err != nil {
		return Period{}, err
	}
	if rest := s[closing+1:]; rest != "" {
		n, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return Period{}, &ParseError{Text: text, Err: ErrMalformed, Detail: "bad ordinal shift"}
		}
		p = p.WithOrdinalShift(n)
	}
	return p, nil
}

func parseWithOrigin(text, head, tail string) (Period, error) {
	origin, zoned, err := parseOrigin(strings.TrimSpace(head))
	if err != nil {
		return Period{}, &ParseError{Text: text, Err: ErrMalformed, Detail: err.Error()}
	}
	p, err := parseOffsetForm(strings.TrimSpace(tail))
	if err != nil {
		return Period{}, err
	}
	if zoned {
		_, secs := origin.Zone()
		name := utcName
		if secs != 0 {
			name = formatUTCOffset(secs)
		}
		if p, err = p.WithTimezone(name); err != nil {
			return Period{}, err
		}
	}
	return p.WithOrigin(origin)
}

// originLayouts are tried in order; the bool marks layouts carrying a zone.
var originLayouts = []struct {
	layout string
	zoned  bool
}{
	{"2006-01-02T15:04:05Z07:00", true},
	{"2006-01-02T15:04:05", false},
	{"2006-01-02T15:04", false},
	{"2006-01-02T15", false},
	{"2006-01-02", false},
	{"2006-01", false},
	{"2006", false},
}

func parseOrigin(s string) (time.Time, bool, error) {
	s = strings.Replace(s, " ", "T", 1)
	if n := len(s); n > 0 && s[n-1] == 'z' {
		s = s[:n-1] + "Z"
	}
	for _, l := range originLayouts {
		if t, err := time.Parse(l.layout, s); err == nil {
			return t, l.zoned, nil
		}
	}
	return time.Time{}, false, errors.New("unrecognised origin datetime " + strconv.Quote(s))
}

// MarshalText encodes p as its Repr so metadata round-trips losslessly.
func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.Repr()), nil
}

// UnmarshalText decodes any form accepted by Parse. Empty text decodes to
// the zero Period.
func (p *Period) UnmarshalText(b []byte) error {
	if len(strings.TrimSpace(string(b))) == 0 {
		*p = Period{}
		return nil
	}
	q, err := Parse(string(b))
	if err != nil {
		return err
	}
	*p = q
	return nil
}
