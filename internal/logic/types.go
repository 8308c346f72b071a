// Package logic contains the pure duty-cycle logic: when the main output is
// active, when a forecast fetch is due, and how the persisted state changes.
// This package has NO I/O (no GPIO, clock, network or storage).
// The local hour is always passed in by the caller.
package logic

import (
	"time"

	"github.com/sweeney/cloudcover-switch/internal/localtime"
	"github.com/sweeney/cloudcover-switch/internal/schedule"
)

// Defaults for a cold boot, before any forecast has been fetched.
const (
	DefaultPinOffHour = 17
	DefaultCloudCover = 75.0
)

// PersistentState is everything that survives between wake cycles.
type PersistentState struct {
	PinOffHour          int     `json:"pin_off_hour" yaml:"pin_off_hour"`
	WeatherFetchedToday bool    `json:"weather_fetched_today" yaml:"weather_fetched_today"`
	CurrentCloudCover   float64 `json:"current_cloud_cover" yaml:"current_cloud_cover"`
	LastPinActive       bool    `json:"last_pin_active" yaml:"last_pin_active"`
}

// DefaultState returns the state used on first boot.
func DefaultState() PersistentState {
	return PersistentState{
		PinOffHour:        DefaultPinOffHour,
		CurrentCloudCover: DefaultCloudCover,
	}
}

// Config is the schedule configuration consumed by the Machine.
type Config struct {
	ActivationStartHour int
	WeatherCheckHour    int
	Table               schedule.Table
	TotalIndicators     int
}

// Observation is the result of feeding one local hour to the Machine.
type Observation struct {
	Hour         int  `json:"hour"`
	ActiveWindow bool `json:"active_window"`
	// Rearmed is true when the window closed this cycle and the daily fetch
	// flag was cleared.
	Rearmed  bool `json:"rearmed"`
	FetchDue bool `json:"fetch_due"`
}

// ScheduleDecision is what the outputs should show this cycle.
type ScheduleDecision struct {
	ActivateMain   bool `json:"activate_main"`
	ShowIndicators bool `json:"show_indicators"`
	IndicatorCount int  `json:"indicator_count"`
}

// FetchOutcome records what happened to the forecast fetch in a cycle.
type FetchOutcome string

const (
	FetchSkipped   FetchOutcome = "SKIPPED"
	FetchSucceeded FetchOutcome = "OK"
	FetchFailed    FetchOutcome = "FAILED"
)

// CycleReport summarises one completed wake cycle.
type CycleReport struct {
	ID          string
	StartedAt   time.Time
	UTC         localtime.DateTime
	Local       localtime.DateTime
	Zone        string
	OffsetSecs  int
	SyncWait    time.Duration
	Observation Observation
	Fetch       FetchOutcome
	FetchError  string
	Decision    ScheduleDecision
	State       PersistentState
	// SleepSeconds is the planned sleep until the next cycle.
	SleepSeconds int
	// SleepFallback is true when the second clock read failed.
	SleepFallback bool
}
