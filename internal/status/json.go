package status

import (
	"encoding/json"
	"fmt"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Device        string       `json:"device"`
	Main          string       `json:"main"`
	Indicators    int          `json:"indicators"`
	State         *StateJSON   `json:"state,omitempty"`
	LastCycle     *CycleJSON   `json:"last_cycle,omitempty"`
	NextWake      string       `json:"next_wake,omitempty"`
	Cycles        int          `json:"cycles"`
	FetchFailures int          `json:"fetch_failures"`
	LastError     string       `json:"last_error,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// StateJSON is the persisted duty-cycle state.
type StateJSON struct {
	PinOffHour          int     `json:"pin_off_hour"`
	WeatherFetchedToday bool    `json:"weather_fetched_today"`
	CurrentCloudCover   float64 `json:"current_cloud_cover"`
	LastPinActive       bool    `json:"last_pin_active"`
}

// CycleJSON summarises the last completed cycle.
type CycleJSON struct {
	ID           string `json:"id"`
	LocalTime    string `json:"local_time"`
	Zone         string `json:"zone"`
	Fetch        string `json:"fetch"`
	FetchError   string `json:"fetch_error,omitempty"`
	SleepSeconds int    `json:"sleep_seconds"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Timezone            string  `json:"timezone"`
	Latitude            float64 `json:"latitude"`
	Longitude           float64 `json:"longitude"`
	ActivationStartHour int     `json:"activation_start_hour"`
	WeatherCheckHour    int     `json:"weather_check_hour"`
	TotalIndicators     int     `json:"total_indicators"`
	HTTPAddr            string  `json:"http_addr"`
	StateDriver         string  `json:"state_driver"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Device:        snap.Config.DeviceName,
		Main:          "UNKNOWN",
		Cycles:        snap.Cycles,
		FetchFailures: snap.FetchFailures,
		LastError:     snap.LastError,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			Timezone:            snap.Config.Timezone,
			Latitude:            snap.Config.Latitude,
			Longitude:           snap.Config.Longitude,
			ActivationStartHour: snap.Config.ActivationStartHour,
			WeatherCheckHour:    snap.Config.WeatherCheckHour,
			TotalIndicators:     snap.Config.TotalIndicators,
			HTTPAddr:            snap.Config.HTTPAddr,
			StateDriver:         snap.Config.StateDriver,
		},
	}

	if c := snap.LastCycle; c != nil {
		inner.Main = "OFF"
		if c.Decision.ActivateMain {
			inner.Main = "ON"
		}
		inner.Indicators = c.Decision.IndicatorCount
		inner.State = &StateJSON{
			PinOffHour:          c.State.PinOffHour,
			WeatherFetchedToday: c.State.WeatherFetchedToday,
			CurrentCloudCover:   c.State.CurrentCloudCover,
			LastPinActive:       c.State.LastPinActive,
		}
		inner.LastCycle = &CycleJSON{
			ID: c.ID,
			LocalTime: fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d",
				c.Local.Year, c.Local.Month, c.Local.Day, c.Local.Hour, c.Local.Minute, c.Local.Second),
			Zone:         c.Zone,
			Fetch:        string(c.Fetch),
			FetchError:   c.FetchError,
			SleepSeconds: c.SleepSeconds,
		}
	}
	if !snap.NextWake.IsZero() {
		inner.NextWake = snap.NextWake.UTC().Format(time.RFC3339)
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
