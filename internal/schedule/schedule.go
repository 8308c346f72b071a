// Package schedule maps forecast cloud cover to the hour the main output
// switches off and to the number of indicator LEDs to light.
package schedule

import (
	"errors"
	"fmt"
	"math"
)

// FallbackPinOffHour is used when no range matches the cloud cover.
const FallbackPinOffHour = 17

// ErrInvalidTable is returned by New for tables that do not cover [0,100]
// with contiguous, non-overlapping ranges.
var ErrInvalidTable = errors.New("schedule: invalid cloud cover table")

// Range maps cloud cover in [Min, Max) to the hour the output turns off.
type Range struct {
	Min        float64 `mapstructure:"min" yaml:"min"`
	Max        float64 `mapstructure:"max" yaml:"max"`
	PinOffHour int     `mapstructure:"pin_off_hour" yaml:"pin_off_hour"`
}

// Table is an ordered, immutable set of ranges. Index 0 is the clearest sky.
// The zero Table matches nothing and always yields the fallbacks.
type Table struct {
	ranges []Range
}

// DefaultRanges is the stock table: clearer skies keep the output on later.
var DefaultRanges = []Range{
	{Min: 0, Max: 10, PinOffHour: 22},
	{Min: 10, Max: 20, PinOffHour: 21},
	{Min: 20, Max: 30, PinOffHour: 20},
	{Min: 30, Max: 40, PinOffHour: 19},
	{Min: 40, Max: 50, PinOffHour: 18},
	{Min: 50, Max: 100, PinOffHour: 17},
}

// Default returns the stock six-range table.
func Default() Table {
	t, err := New(DefaultRanges)
	if err != nil {
		panic(err)
	}
	return t
}

// New validates ranges and returns a Table holding a private copy of them.
func New(ranges []Range) (Table, error) {
	if len(ranges) == 0 {
		return Table{}, fmt.Errorf("%w: no ranges", ErrInvalidTable)
	}
	for i, r := range ranges {
		if r.Min >= r.Max {
			return Table{}, fmt.Errorf("%w: range %d [%g,%g) is empty", ErrInvalidTable, i, r.Min, r.Max)
		}
		if r.PinOffHour < 0 || r.PinOffHour > 23 {
			return Table{}, fmt.Errorf("%w: range %d pin off hour %d", ErrInvalidTable, i, r.PinOffHour)
		}
		if i > 0 && r.Min != ranges[i-1].Max {
			return Table{}, fmt.Errorf("%w: range %d starts at %g, previous ends at %g", ErrInvalidTable, i, r.Min, ranges[i-1].Max)
		}
	}
	if ranges[0].Min != 0 || ranges[len(ranges)-1].Max != 100 {
		return Table{}, fmt.Errorf("%w: ranges cover [%g,%g), want [0,100]", ErrInvalidTable, ranges[0].Min, ranges[len(ranges)-1].Max)
	}
	return Table{ranges: append([]Range(nil), ranges...)}, nil
}

// Ranges returns a copy of the table's ranges.
func (t Table) Ranges() []Range {
	return append([]Range(nil), t.ranges...)
}

// Len returns the number of ranges.
func (t Table) Len() int {
	return len(t.ranges)
}

// lookup returns the index of the range containing cloudcover, or -1.
func (t Table) lookup(cloudcover float64) int {
	if math.IsNaN(cloudcover) {
		return -1
	}
	c := math.Max(0, math.Min(100, cloudcover))
	for i, r := range t.ranges {
		if c >= r.Min && c < r.Max {
			return i
		}
	}
	// Max is exclusive, so 100% belongs to the last range.
	if n := len(t.ranges); n > 0 && c == 100 && t.ranges[n-1].Max == 100 {
		return n - 1
	}
	return -1
}

// PinOffHour returns the local hour at which the output should turn off.
// Cloud cover is clamped to [0,100]. FallbackPinOffHour is returned if no
// range matches.
func (t Table) PinOffHour(cloudcover float64) int {
	i := t.lookup(cloudcover)
	if i < 0 {
		return FallbackPinOffHour
	}
	return t.ranges[i].PinOffHour
}

// IndicatorCount returns how many of total indicators to light. The count is
// proportional to the matched range's distance from the cloudiest range, so
// it decreases as cloud cover increases. Returns 0 if no range matches.
func (t Table) IndicatorCount(cloudcover float64, total int) int {
	i := t.lookup(cloudcover)
	if i < 0 || total <= 0 {
		return 0
	}
	n := len(t.ranges)
	if n == 1 {
		return total
	}
	inverted := (n - 1) - i
	return inverted * total / (n - 1)
}
