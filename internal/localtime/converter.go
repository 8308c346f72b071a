package localtime

import "fmt"

// Converter converts between UTC and local DateTime values using one Rule.
type Converter struct {
	rule Rule
}

// NewConverter returns a Converter for the given rule.
func NewConverter(rule Rule) *Converter {
	return &Converter{rule: rule}
}

// NewConverterFromString parses a POSIX TZ string and returns a Converter.
func NewConverterFromString(tz string) (*Converter, error) {
	r, err := ParseRule(tz)
	if err != nil {
		return nil, err
	}
	return NewConverter(r), nil
}

// Rule returns the rule the converter was built with.
func (c *Converter) Rule() Rule {
	return c.rule
}

func checkFrame(d DateTime, want Frame) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.Frame != want {
		return fmt.Errorf("%w: %w: got %s, want %s", ErrConversion, ErrFrame, d.Frame, want)
	}
	return nil
}

// ToLocal converts a UTC DateTime to local wall-clock time.
func (c *Converter) ToLocal(utc DateTime) (DateTime, error) {
	if err := checkFrame(utc, UTC); err != nil {
		return DateTime{}, err
	}
	sec := utc.unix()
	off, _ := c.rule.offsetAt(sec)
	return fromUnix(sec+int64(off), Local), nil
}

// ToUTC converts a local wall-clock DateTime to UTC.
//
// Wall-clock times inside the spring-forward gap do not exist and fail with
// ErrNonexistent. Times inside the fall-back overlap occur twice and resolve
// to the first occurrence, which is daylight time.
func (c *Converter) ToUTC(local DateTime) (DateTime, error) {
	if err := checkFrame(local, Local); err != nil {
		return DateTime{}, err
	}
	wall := local.unix()

	candidates := []int{c.rule.StdOffset}
	if c.rule.HasDST() {
		candidates = []int{c.rule.DSTOffset, c.rule.StdOffset}
	}
	for _, off := range candidates {
		utc := wall - int64(off)
		if got, _ := c.rule.offsetAt(utc); got == off {
			return fromUnix(utc, UTC), nil
		}
	}
	return DateTime{}, fmt.Errorf("%w: %w: %s", ErrConversion, ErrNonexistent, local)
}

// OffsetSeconds returns the local offset east of UTC in effect at utc.
func (c *Converter) OffsetSeconds(utc DateTime) (int, error) {
	if err := checkFrame(utc, UTC); err != nil {
		return 0, err
	}
	off, _ := c.rule.offsetAt(utc.unix())
	return off, nil
}

// ZoneAbbr returns the zone abbreviation ("CET", "CEST") in effect at utc.
func (c *Converter) ZoneAbbr(utc DateTime) (string, error) {
	if err := checkFrame(utc, UTC); err != nil {
		return "", err
	}
	_, name := c.rule.offsetAt(utc.unix())
	return name, nil
}
