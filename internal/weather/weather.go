// Package weather fetches tomorrow's daytime cloud cover forecast.
package weather

import (
	"context"
	"errors"
	"fmt"
)

// ErrFetch is wrapped by every failed or unusable forecast fetch.
var ErrFetch = errors.New("weather: forecast unavailable")

// Source fetches a forecast for a location.
type Source interface {
	Fetch(ctx context.Context, lat, lon float64) (Forecast, error)
}

// TimeOfDay is an hour and minute in the location's local time.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// HourlyCloudCover is one forecast hour used in the daytime average.
type HourlyCloudCover struct {
	Hour       int     `json:"hour"`
	CloudCover float64 `json:"cloudcover"`
}

// Forecast is tomorrow's daytime cloud cover.
type Forecast struct {
	// TomorrowCloudCover is the mean cloud cover percentage over tomorrow's
	// daytime hours.
	TomorrowCloudCover float64
	// Date is tomorrow's date as YYYY-MM-DD, if the provider reported it.
	Date string
	// Sunrise and Sunset are nil when the provider did not report them.
	Sunrise *TimeOfDay
	Sunset  *TimeOfDay
	// StartHour and EndHour bound the averaged hours (inclusive).
	StartHour int
	EndHour   int
	Hourly    []HourlyCloudCover
}

// Default daytime window when sunrise or sunset is unknown.
const (
	DefaultStartHour = 6
	DefaultEndHour   = 18
)

// daytimeWindow returns the inclusive hour range to average over.
// The window starts the first full hour after sunrise (rounding a sunrise at
// or after half past up by one more hour) and ends the hour before sunset.
func daytimeWindow(sunrise, sunset *TimeOfDay) (start, end int) {
	start, end = DefaultStartHour, DefaultEndHour
	if sunrise != nil {
		start = sunrise.Hour + 1
		if sunrise.Minute >= 30 {
			start++
		}
	}
	if sunset != nil {
		end = sunset.Hour - 1
	}
	return start, end
}
