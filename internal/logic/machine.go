package logic

import "github.com/sweeney/cloudcover-switch/internal/schedule"

// Machine owns PersistentState and is the only thing that mutates it.
type Machine struct {
	cfg   Config
	state PersistentState
}

// NewMachine creates a Machine starting from the given (loaded) state.
func NewMachine(cfg Config, state PersistentState) *Machine {
	return &Machine{cfg: cfg, state: state}
}

// State returns a copy of the current persistent state.
func (m *Machine) State() PersistentState {
	return m.state
}

// Observe evaluates the duty-cycle window for the given local hour, applies
// the edge trigger, and reports whether a forecast fetch is due.
// Call it exactly once per wake cycle.
func (m *Machine) Observe(hour int) Observation {
	active := hour >= m.cfg.ActivationStartHour && hour < m.state.PinOffHour

	obs := Observation{Hour: hour, ActiveWindow: active}

	// Window just closed: re-arm tomorrow's fetch.
	if m.state.LastPinActive && !active {
		m.state.WeatherFetchedToday = false
		obs.Rearmed = true
	}
	m.state.LastPinActive = active

	obs.FetchDue = hour == m.cfg.WeatherCheckHour && !m.state.WeatherFetchedToday
	return obs
}

// RecordForecast applies a successful forecast fetch.
// A failed fetch must not be recorded; the flag stays clear and the next
// cycle at the check hour retries.
func (m *Machine) RecordForecast(cloudcover float64) {
	m.state.CurrentCloudCover = cloudcover
	m.state.PinOffHour = m.cfg.Table.PinOffHour(cloudcover)
	m.state.WeatherFetchedToday = true
}

// Decide returns the output decision for an observation made this cycle.
// Indicators are shown only once a forecast has informed the schedule.
func (m *Machine) Decide(obs Observation) ScheduleDecision {
	d := ScheduleDecision{
		ActivateMain:   obs.ActiveWindow,
		ShowIndicators: m.state.WeatherFetchedToday && obs.ActiveWindow,
	}
	if d.ShowIndicators {
		d.IndicatorCount = m.cfg.Table.IndicatorCount(m.state.CurrentCloudCover, m.cfg.TotalIndicators)
	}
	return d
}

// DefaultConfig returns the stock schedule: window opens at 09:00, forecast
// checked at 16:00, five indicators.
func DefaultConfig() Config {
	return Config{
		ActivationStartHour: 9,
		WeatherCheckHour:    16,
		Table:               schedule.Default(),
		TotalIndicators:     5,
	}
}
