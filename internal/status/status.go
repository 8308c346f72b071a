// Package status tracks what the daemon last did so the web pages and
// lifecycle events can report it without touching the cycle runner.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/cloudcover-switch/internal/logic"
)

// NetworkInfo is the host network state written by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config is the subset of the daemon configuration shown on the status page.
type Config struct {
	DeviceName          string
	Timezone            string
	Latitude            float64
	Longitude           float64
	ActivationStartHour int
	WeatherCheckHour    int
	TotalIndicators     int
	Broker              string
	HTTPAddr            string
	StateDriver         string
}

// Snapshot is a copy of the tracked state, safe to read without the lock.
type Snapshot struct {
	// LastCycle is nil until the first cycle completes.
	LastCycle     *logic.CycleReport
	NextWake      time.Time
	Cycles        int
	FetchFailures int
	LastError     string
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime is measured from StartTime to Now.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker is written by the cycle loop and read by HTTP handlers.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// RecordCycle stores a completed cycle and when the next one is due.
func (t *Tracker) RecordCycle(r logic.CycleReport, nextWake time.Time) {
	t.mu.Lock()
	t.snap.LastCycle = &r
	t.snap.NextWake = nextWake
	t.snap.Cycles++
	if r.Fetch == logic.FetchFailed {
		t.snap.FetchFailures++
	}
	t.mu.Unlock()
}

// SetError records the last cycle-level error. Empty clears it.
func (t *Tracker) SetError(msg string) {
	t.mu.Lock()
	t.snap.LastError = msg
	t.mu.Unlock()
}

func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot copies the state, including the last cycle report, and stamps Now.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.LastCycle != nil {
		c := *s.LastCycle
		s.LastCycle = &c
	}
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
