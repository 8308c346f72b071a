package gpio

// FakeDriver is a test double that records output commands.
type FakeDriver struct {
	// Main is the last value passed to SetMain.
	Main bool

	// Lit is the last indicator count.
	Lit int

	// Lines is the number of indicator lines the fake pretends to have.
	Lines int

	// MainCalls and IndicatorCalls count successful calls.
	MainCalls      int
	IndicatorCalls int

	// Closed tracks if Close was called
	Closed bool

	// MainError and IndicatorError, if set, are returned by the setters.
	MainError      error
	IndicatorError error
}

// NewFakeDriver creates a FakeDriver with n indicator lines.
func NewFakeDriver(n int) *FakeDriver {
	return &FakeDriver{Lines: n}
}

// SetMain records the main output value.
func (f *FakeDriver) SetMain(active bool) error {
	if f.MainError != nil {
		return f.MainError
	}
	f.Main = active
	f.MainCalls++
	return nil
}

// SetIndicators records the lit count.
func (f *FakeDriver) SetIndicators(count, total int) error {
	if f.IndicatorError != nil {
		return f.IndicatorError
	}
	if err := checkIndicators(count, total, f.Lines); err != nil {
		return err
	}
	f.Lit = count
	f.IndicatorCalls++
	return nil
}

// Levels returns the raw active-low line values the real driver would set.
func (f *FakeDriver) Levels() []int {
	return indicatorLevels(f.Lit, f.Lines)
}

// Close marks the driver as closed.
func (f *FakeDriver) Close() error {
	f.Closed = true
	return nil
}
