package weather

import (
	"fmt"
	"strconv"
	"strings"
)

// response models the parts of the Open-Meteo forecast response we use.
// Timestamps are local ISO 8601 without offset, e.g. "2025-10-20T06:23".
type response struct {
	Daily struct {
		Time    []string `json:"time"`
		Sunrise []string `json:"sunrise"`
		Sunset  []string `json:"sunset"`
	} `json:"daily"`
	Hourly struct {
		Time       []string   `json:"time"`
		CloudCover []*float64 `json:"cloudcover"`
	} `json:"hourly"`
}

// parseTimeOfDay extracts HH:MM from "YYYY-MM-DDTHH:MM".
func parseTimeOfDay(s string) (*TimeOfDay, bool) {
	_, clock, ok := strings.Cut(s, "T")
	if !ok {
		return nil, false
	}
	hh, mm, ok := strings.Cut(clock, ":")
	if !ok {
		return nil, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return nil, false
	}
	m, err := strconv.Atoi(mm[:min(2, len(mm))])
	if err != nil || m < 0 || m > 59 {
		return nil, false
	}
	return &TimeOfDay{Hour: h, Minute: m}, true
}

// forecast averages tomorrow's cloud cover over the daytime window.
// Tomorrow is every hourly entry whose date differs from the first entry's.
func (r *response) forecast() (Forecast, error) {
	var f Forecast
	if len(r.Daily.Time) >= 2 {
		f.Date = r.Daily.Time[1]
	}
	if len(r.Daily.Sunrise) >= 2 {
		f.Sunrise, _ = parseTimeOfDay(r.Daily.Sunrise[1])
	}
	if len(r.Daily.Sunset) >= 2 {
		f.Sunset, _ = parseTimeOfDay(r.Daily.Sunset[1])
	}
	f.StartHour, f.EndHour = daytimeWindow(f.Sunrise, f.Sunset)

	if len(r.Hourly.Time) == 0 {
		return Forecast{}, fmt.Errorf("%w: no hourly data", ErrFetch)
	}
	if len(r.Hourly.CloudCover) != len(r.Hourly.Time) {
		return Forecast{}, fmt.Errorf("%w: %d hourly times but %d cloud cover values",
			ErrFetch, len(r.Hourly.Time), len(r.Hourly.CloudCover))
	}

	firstDate, _, _ := strings.Cut(r.Hourly.Time[0], "T")
	var sum float64
	for i, ts := range r.Hourly.Time {
		date, _, _ := strings.Cut(ts, "T")
		if date == firstDate {
			continue
		}
		v := r.Hourly.CloudCover[i]
		tod, ok := parseTimeOfDay(ts)
		if v == nil || !ok {
			continue
		}
		if tod.Hour < f.StartHour || tod.Hour > f.EndHour {
			continue
		}
		sum += *v
		f.Hourly = append(f.Hourly, HourlyCloudCover{Hour: tod.Hour, CloudCover: *v})
	}

	if len(f.Hourly) == 0 {
		return Forecast{}, fmt.Errorf("%w: no daytime hours for tomorrow between %d and %d",
			ErrFetch, f.StartHour, f.EndHour)
	}
	f.TomorrowCloudCover = sum / float64(len(f.Hourly))
	return f, nil
}
