// Package store persists the duty-cycle state between wake cycles, and a
// short history of completed cycles.
package store

import (
	"context"
	"time"

	"github.com/sweeney/cloudcover-switch/internal/logic"
)

// Store loads and saves PersistentState.
type Store interface {
	// Load returns the saved state. found is false on a cold boot, when
	// nothing has been saved yet.
	Load(ctx context.Context) (state logic.PersistentState, found bool, err error)

	// Save replaces the saved state.
	Save(ctx context.Context, state logic.PersistentState) error

	// AppendCycle records a completed cycle.
	AppendCycle(ctx context.Context, rec CycleRecord) error

	// RecentCycles returns up to n records, newest first.
	RecentCycles(ctx context.Context, n int) ([]CycleRecord, error)

	Close() error
}

// CycleRecord is the stored summary of one wake cycle.
type CycleRecord struct {
	ID           string    `json:"id" yaml:"id"`
	StartedAt    time.Time `json:"started_at" yaml:"started_at"`
	LocalTime    string    `json:"local_time" yaml:"local_time"`
	Hour         int       `json:"hour" yaml:"hour"`
	Active       bool      `json:"active" yaml:"active"`
	Fetch        string    `json:"fetch" yaml:"fetch"`
	CloudCover   float64   `json:"cloud_cover" yaml:"cloud_cover"`
	PinOffHour   int       `json:"pin_off_hour" yaml:"pin_off_hour"`
	Indicators   int       `json:"indicators" yaml:"indicators"`
	SleepSeconds int       `json:"sleep_seconds" yaml:"sleep_seconds"`
}

// RecordFromReport builds the stored summary of a cycle report.
func RecordFromReport(r logic.CycleReport) CycleRecord {
	return CycleRecord{
		ID:           r.ID,
		StartedAt:    r.StartedAt.UTC(),
		LocalTime:    r.Local.String(),
		Hour:         r.Observation.Hour,
		Active:       r.Decision.ActivateMain,
		Fetch:        string(r.Fetch),
		CloudCover:   r.State.CurrentCloudCover,
		PinOffHour:   r.State.PinOffHour,
		Indicators:   r.Decision.IndicatorCount,
		SleepSeconds: r.SleepSeconds,
	}
}
