package weather

import (
	"context"
	"fmt"
)

// FakeSource is a test double returning a scripted forecast.
type FakeSource struct {
	// Forecast is returned by every successful Fetch.
	Forecast Forecast

	// Err, if set, is returned (wrapped in ErrFetch) instead.
	Err error

	// Calls counts Fetch calls.
	Calls int
}

// NewFakeSource returns a FakeSource reporting the given cloud cover.
func NewFakeSource(cloudcover float64) *FakeSource {
	return &FakeSource{Forecast: Forecast{
		TomorrowCloudCover: cloudcover,
		StartHour:          DefaultStartHour,
		EndHour:            DefaultEndHour,
	}}
}

// Fetch returns the scripted forecast or error.
func (f *FakeSource) Fetch(ctx context.Context, lat, lon float64) (Forecast, error) {
	f.Calls++
	if f.Err != nil {
		return Forecast{}, fmt.Errorf("%w: %w", ErrFetch, f.Err)
	}
	return f.Forecast, nil
}
