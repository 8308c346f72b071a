// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/cloudcover-switch/internal/localtime"
	"github.com/sweeney/cloudcover-switch/internal/logic"
	"github.com/sweeney/cloudcover-switch/internal/weather"
)

// DefaultTopicPrefix is the root of every topic this daemon publishes.
const DefaultTopicPrefix = "home/cloudcover-switch"

// Topics are the MQTT topics used by a publisher.
type Topics struct {
	Cycle       string
	Diagnostics string
	System      string
}

// TopicsFor derives the topic set from a prefix.
func TopicsFor(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{
		Cycle:       prefix + "/cycle",
		Diagnostics: prefix + "/diagnostics",
		System:      prefix + "/system",
	}
}

// Publisher publishes cycle reports and events to MQTT.
type Publisher interface {
	// Publish sends a cycle report to the broker.
	// Returns error if publishing fails (should not abort the cycle).
	Publish(report logic.CycleReport) error

	// PublishDiagnostics sends the forecast breakdown after a fetch.
	PublishDiagnostics(d Diagnostics) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "RECONNECTED", "FATAL"
	Reason     string // e.g., "SIGTERM", error text
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload is the cycle report message.
type Payload struct {
	Cycle CyclePayload `json:"cycle"`
}

// CyclePayload contains the cycle details.
type CyclePayload struct {
	ID                  string  `json:"id"`
	Timestamp           string  `json:"timestamp"`
	LocalTime           string  `json:"local_time"`
	Zone                string  `json:"zone"`
	Hour                int     `json:"hour"`
	ActiveWindow        bool    `json:"active_window"`
	Rearmed             bool    `json:"rearmed"`
	Fetch               string  `json:"fetch"`
	FetchError          string  `json:"fetch_error,omitempty"`
	Main                string  `json:"main"`
	Indicators          int     `json:"indicators"`
	PinOffHour          int     `json:"pin_off_hour"`
	CloudCover          float64 `json:"cloud_cover"`
	WeatherFetchedToday bool    `json:"weather_fetched_today"`
	SyncWaitSeconds     float64 `json:"sync_wait_seconds"`
	SleepSeconds        int     `json:"sleep_seconds"`
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

// FormatPayload creates the JSON payload for a cycle report.
func FormatPayload(r logic.CycleReport) ([]byte, error) {
	payload := Payload{
		Cycle: CyclePayload{
			ID:                  r.ID,
			Timestamp:           r.StartedAt.UTC().Format(time.RFC3339),
			LocalTime:           formatLocal(r.Local),
			Zone:                r.Zone,
			Hour:                r.Observation.Hour,
			ActiveWindow:        r.Observation.ActiveWindow,
			Rearmed:             r.Observation.Rearmed,
			Fetch:               string(r.Fetch),
			FetchError:          r.FetchError,
			Main:                onOff(r.Decision.ActivateMain),
			Indicators:          r.Decision.IndicatorCount,
			PinOffHour:          r.State.PinOffHour,
			CloudCover:          r.State.CurrentCloudCover,
			WeatherFetchedToday: r.State.WeatherFetchedToday,
			SyncWaitSeconds:     r.SyncWait.Seconds(),
			SleepSeconds:        r.SleepSeconds,
		},
	}
	return json.Marshal(payload)
}

// formatLocal renders a wall-clock time as "2006-01-02 15:04:05".
func formatLocal(d localtime.DateTime) string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", d.Year, d.Month, d.Day, d.Hour, d.Minute, d.Second)
}

// Diagnostics is the forecast breakdown published after each successful
// fetch.
type Diagnostics struct {
	Device        string                     `json:"device"`
	Timestamp     string                     `json:"timestamp"`
	Date          string                     `json:"date"`
	Sunrise       string                     `json:"sunrise"`
	Sunset        string                     `json:"sunset"`
	AvgCloudCover float64                    `json:"avg_cloudcover"`
	PinOffHour    int                        `json:"pin_off_hour"`
	LEDCount      int                        `json:"led_count"`
	Hourly        []weather.HourlyCloudCover `json:"hourly"`
}

// NewDiagnostics builds a diagnostics message. local is the wall-clock time
// of the fetch.
func NewDiagnostics(device string, local localtime.DateTime, f weather.Forecast, pinOffHour, ledCount int) Diagnostics {
	d := Diagnostics{
		Device:        device,
		Timestamp:     formatLocal(local),
		Date:          f.Date,
		Sunrise:       "unknown",
		Sunset:        "unknown",
		AvgCloudCover: f.TomorrowCloudCover,
		PinOffHour:    pinOffHour,
		LEDCount:      ledCount,
		Hourly:        f.Hourly,
	}
	if f.Sunrise != nil {
		d.Sunrise = f.Sunrise.String()
	}
	if f.Sunset != nil {
		d.Sunset = f.Sunset.String()
	}
	if d.Hourly == nil {
		d.Hourly = []weather.HourlyCloudCover{}
	}
	return d
}

// FormatDiagnosticsPayload creates the JSON payload for diagnostics.
func FormatDiagnosticsPayload(d Diagnostics) ([]byte, error) {
	return json.Marshal(d)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
