package localtime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultRule is Central European Time with the EU daylight saving rule.
const DefaultRule = "CET-1CEST,M3.5.0,M10.5.0/3"

// Transition is a POSIX "Mm.w.d/time" DST switch: weekday d (0 = Sunday) of
// week w (5 = last) of month m, at the given local time.
type Transition struct {
	Month   int
	Week    int
	Weekday int
	At      time.Duration
}

// Rule is a fixed standard offset plus an optional yearly DST period.
// Offsets are seconds east of UTC.
type Rule struct {
	StdName   string
	StdOffset int
	DSTName   string
	DSTOffset int
	Start     Transition
	End       Transition
}

// HasDST reports whether the rule defines a daylight saving period.
func (r Rule) HasDST() bool {
	return r.DSTName != ""
}

// ParseRule parses a POSIX TZ string such as "CET-1CEST,M3.5.0,M10.5.0/3".
// Only the month/week/day transition form is supported.
func ParseRule(s string) (Rule, error) {
	p := &ruleParser{s: s}
	r, err := p.parse()
	if err != nil {
		return Rule{}, fmt.Errorf("parse TZ rule %q: %w", s, err)
	}
	return r, nil
}

type ruleParser struct {
	s   string
	pos int
}

func (p *ruleParser) rest() string {
	return p.s[p.pos:]
}

func (p *ruleParser) parse() (Rule, error) {
	var r Rule
	var err error

	if r.StdName, err = p.name(); err != nil {
		return Rule{}, err
	}
	off, err := p.offset()
	if err != nil {
		return Rule{}, fmt.Errorf("standard offset: %w", err)
	}
	// POSIX offsets are west of UTC.
	r.StdOffset = -off

	if p.rest() == "" {
		return r, nil
	}

	if r.DSTName, err = p.name(); err != nil {
		return Rule{}, err
	}
	r.DSTOffset = r.StdOffset + 3600
	if p.rest() != "" && p.rest()[0] != ',' {
		off, err := p.offset()
		if err != nil {
			return Rule{}, fmt.Errorf("dst offset: %w", err)
		}
		r.DSTOffset = -off
	}

	if !strings.HasPrefix(p.rest(), ",") {
		return Rule{}, fmt.Errorf("missing DST transition rules")
	}
	p.pos++
	if r.Start, err = p.transition(); err != nil {
		return Rule{}, fmt.Errorf("dst start: %w", err)
	}
	if !strings.HasPrefix(p.rest(), ",") {
		return Rule{}, fmt.Errorf("missing DST end rule")
	}
	p.pos++
	if r.End, err = p.transition(); err != nil {
		return Rule{}, fmt.Errorf("dst end: %w", err)
	}
	if p.rest() != "" {
		return Rule{}, fmt.Errorf("trailing characters %q", p.rest())
	}
	return r, nil
}

func (p *ruleParser) name() (string, error) {
	rest := p.rest()
	if strings.HasPrefix(rest, "<") {
		end := strings.IndexByte(rest, '>')
		if end < 0 {
			return "", fmt.Errorf("unterminated zone name")
		}
		p.pos += end + 1
		return rest[1:end], nil
	}
	n := 0
	for n < len(rest) && isLetter(rest[n]) {
		n++
	}
	if n < 3 {
		return "", fmt.Errorf("zone name at %q too short", rest)
	}
	p.pos += n
	return rest[:n], nil
}

// offset parses [+|-]hh[:mm[:ss]] and returns seconds.
func (p *ruleParser) offset() (int, error) {
	rest := p.rest()
	sign := 1
	if rest != "" && (rest[0] == '+' || rest[0] == '-') {
		if rest[0] == '-' {
			sign = -1
		}
		p.pos++
	}
	secs, err := p.clock()
	if err != nil {
		return 0, err
	}
	return sign * secs, nil
}

// clock parses hh[:mm[:ss]] of at most 24 hours and returns seconds.
func (p *ruleParser) clock() (int, error) {
	total := 0
	for i, mult := range []int{3600, 60, 1} {
		if i > 0 {
			if !strings.HasPrefix(p.rest(), ":") {
				break
			}
			p.pos++
		}
		v, err := p.number()
		if err != nil {
			return 0, err
		}
		if i > 0 && v > 59 {
			return 0, fmt.Errorf("%d out of range for minutes or seconds", v)
		}
		total += v * mult
	}
	if total > 24*3600 {
		return 0, fmt.Errorf("%ds is more than 24 hours", total)
	}
	return total, nil
}

func (p *ruleParser) number() (int, error) {
	rest := p.rest()
	n := 0
	for n < len(rest) && rest[n] >= '0' && rest[n] <= '9' {
		n++
	}
	if n == 0 {
		return 0, fmt.Errorf("expected number at %q", rest)
	}
	p.pos += n
	return strconv.Atoi(rest[:n])
}

func (p *ruleParser) transition() (Transition, error) {
	if !strings.HasPrefix(p.rest(), "M") {
		return Transition{}, fmt.Errorf("unsupported transition form %q (only Mm.w.d)", p.rest())
	}
	p.pos++

	var fields [3]int
	for i := range fields {
		if i > 0 {
			if !strings.HasPrefix(p.rest(), ".") {
				return Transition{}, fmt.Errorf("malformed Mm.w.d rule")
			}
			p.pos++
		}
		v, err := p.number()
		if err != nil {
			return Transition{}, err
		}
		fields[i] = v
	}
	t := Transition{Month: fields[0], Week: fields[1], Weekday: fields[2], At: 2 * time.Hour}
	if t.Month < 1 || t.Month > 12 || t.Week < 1 || t.Week > 5 || t.Weekday > 6 {
		return Transition{}, fmt.Errorf("transition M%d.%d.%d out of range", t.Month, t.Week, t.Weekday)
	}

	if strings.HasPrefix(p.rest(), "/") {
		p.pos++
		secs, err := p.offset()
		if err != nil {
			return Transition{}, fmt.Errorf("transition time: %w", err)
		}
		t.At = time.Duration(secs) * time.Second
	}
	return t, nil
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// day returns the day of month the transition falls on in the given year.
func (t Transition) day(year int) int {
	first := time.Date(year, time.Month(t.Month), 1, 0, 0, 0, 0, time.UTC).Weekday()
	d := 1 + (t.Weekday-int(first)+7)%7 + (t.Week-1)*7
	for d > DaysIn(year, t.Month) {
		d -= 7
	}
	return d
}

// instant returns the UTC unix second of the transition in year, given the
// offset in effect just before it.
func (t Transition) instant(year, offsetBefore int) int64 {
	midnight := time.Date(year, time.Month(t.Month), t.day(year), 0, 0, 0, 0, time.UTC).Unix()
	return midnight + int64(t.At/time.Second) - int64(offsetBefore)
}

// inDST reports whether the UTC unix second falls in the daylight period.
func (r Rule) inDST(utc int64) bool {
	if !r.HasDST() {
		return false
	}
	year := time.Unix(utc+int64(r.StdOffset), 0).UTC().Year()
	start := r.Start.instant(year, r.StdOffset)
	end := r.End.instant(year, r.DSTOffset)
	if start < end {
		return utc >= start && utc < end
	}
	// Southern hemisphere: the daylight period spans the new year.
	return utc >= start || utc < end
}

func (r Rule) offsetAt(utc int64) (int, string) {
	if r.inDST(utc) {
		return r.DSTOffset, r.DSTName
	}
	return r.StdOffset, r.StdName
}
