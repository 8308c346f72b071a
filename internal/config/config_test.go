package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/cloudcover-switch/internal/schedule"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ActivationStartHour != 9 || cfg.WeatherCheckHour != 16 {
		t.Errorf("hours: got %d/%d, want 9/16", cfg.ActivationStartHour, cfg.WeatherCheckHour)
	}
	if len(cfg.CloudCoverRanges) != 6 {
		t.Errorf("ranges: got %d, want 6", len(cfg.CloudCoverRanges))
	}
	if cfg.Weather.Timeout != 30*time.Second {
		t.Errorf("Weather.Timeout: got %v", cfg.Weather.Timeout)
	}
	if len(cfg.GPIO.LEDPins) != 5 {
		t.Errorf("LEDPins: got %v", cfg.GPIO.LEDPins)
	}
	if cfg.State.Driver != StateSQLite {
		t.Errorf("State.Driver: got %q", cfg.State.Driver)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
device_name: greenhouse
activation_start_hour: 8
weather_check_hour: 15
location:
  latitude: 50.06
  longitude: 19.94
cloudcover_ranges:
  - {min: 0, max: 50, pin_off_hour: 21}
  - {min: 50, max: 100, pin_off_hour: 18}
gpio:
  led_pins: [5, 6, 7]
weather:
  timeout: 10s
state:
  driver: memory
mqtt:
  enabled: false
`)
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DeviceName != "greenhouse" {
		t.Errorf("DeviceName: got %q", cfg.DeviceName)
	}
	if cfg.ActivationStartHour != 8 || cfg.WeatherCheckHour != 15 {
		t.Errorf("hours: got %d/%d", cfg.ActivationStartHour, cfg.WeatherCheckHour)
	}
	if cfg.Location.Latitude != 50.06 {
		t.Errorf("Latitude: got %v", cfg.Location.Latitude)
	}
	want := []schedule.Range{{Min: 0, Max: 50, PinOffHour: 21}, {Min: 50, Max: 100, PinOffHour: 18}}
	if len(cfg.CloudCoverRanges) != 2 || cfg.CloudCoverRanges[0] != want[0] || cfg.CloudCoverRanges[1] != want[1] {
		t.Errorf("ranges: got %+v", cfg.CloudCoverRanges)
	}
	if cfg.Weather.Timeout != 10*time.Second {
		t.Errorf("Weather.Timeout: got %v", cfg.Weather.Timeout)
	}
	if cfg.MQTT.Enabled {
		t.Error("expected MQTT disabled")
	}
	// Keys absent from the file keep their defaults.
	if cfg.GPIO.MainPin != 13 {
		t.Errorf("MainPin: got %d, want 13", cfg.GPIO.MainPin)
	}

	lc, err := cfg.Logic()
	if err != nil {
		t.Fatalf("Logic: %v", err)
	}
	if lc.TotalIndicators != 3 {
		t.Errorf("TotalIndicators: got %d, want 3", lc.TotalIndicators)
	}
	if got := lc.Table.PinOffHour(20); got != 21 {
		t.Errorf("PinOffHour(20): got %d, want 21", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "mqtt:\n  broker: tcp://file:1883\n")
	t.Setenv("CLOUDCOVER_MQTT_BROKER", "tcp://env:1883")
	t.Setenv("CLOUDCOVER_WEATHER_CHECK_HOUR", "17")

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MQTT.Broker != "tcp://env:1883" {
		t.Errorf("Broker: got %q", cfg.MQTT.Broker)
	}
	if cfg.WeatherCheckHour != 17 {
		t.Errorf("WeatherCheckHour: got %d", cfg.WeatherCheckHour)
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("CLOUDCOVER_MQTT_BROKER", "tcp://env:1883")
	t.Setenv("CLOUDCOVER_LOG_LEVEL", "warn")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	if err := fs.Parse([]string{"--broker", "tcp://flag:1883", "--led-pins", "20,21", "--state", "memory"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load("", fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MQTT.Broker != "tcp://flag:1883" {
		t.Errorf("Broker: got %q", cfg.MQTT.Broker)
	}
	if len(cfg.GPIO.LEDPins) != 2 || cfg.GPIO.LEDPins[0] != 20 {
		t.Errorf("LEDPins: got %v", cfg.GPIO.LEDPins)
	}
	if cfg.State.Driver != StateMemory {
		t.Errorf("State.Driver: got %q", cfg.State.Driver)
	}
	// Unset flags do not mask the environment.
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level: got %q, want warn", cfg.Log.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"start hour", func(c *Config) { c.ActivationStartHour = 24 }, "activation_start_hour"},
		{"check hour", func(c *Config) { c.WeatherCheckHour = -1 }, "weather_check_hour"},
		{"timezone", func(c *Config) { c.Timezone = "CET" }, "timezone"},
		{"latitude", func(c *Config) { c.Location.Latitude = 91 }, "latitude"},
		{"longitude", func(c *Config) { c.Location.Longitude = -181 }, "longitude"},
		{"ranges gap", func(c *Config) {
			c.CloudCoverRanges = []schedule.Range{{Min: 0, Max: 40, PinOffHour: 20}, {Min: 50, Max: 100, PinOffHour: 18}}
		}, "cloudcover_ranges"},
		{"no leds", func(c *Config) { c.GPIO.LEDPins = nil }, "led_pins"},
		{"duplicate pin", func(c *Config) { c.GPIO.LEDPins = []int{5, 13} }, "used twice"},
		{"state driver", func(c *Config) { c.State.Driver = "redis" }, "state.driver"},
		{"state path", func(c *Config) { c.State.Path = "" }, "state.path"},
		{"bolt path", func(c *Config) { c.State.Driver, c.State.Path = StateBolt, "" }, "bolt driver"},
		{"broker", func(c *Config) { c.MQTT.Broker = "" }, "mqtt.broker"},
		{"log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"timeout", func(c *Config) { c.Weather.Timeout = 0 }, "weather.timeout"},
		{"cache ttl a day", func(c *Config) { c.Weather.CacheTTL = 24 * time.Hour }, "weather.cache_ttl"},
		{"cache ttl negative", func(c *Config) { c.Weather.CacheTTL = -time.Minute }, "weather.cache_ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateDisabledFeatures(t *testing.T) {
	cfg := Default()
	cfg.MQTT.Enabled = false
	cfg.MQTT.Broker = ""
	cfg.HTTP.Enabled = false
	cfg.HTTP.Addr = ""
	cfg.State.Driver = StateMemory
	cfg.State.Path = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestYAMLMasksPassword(t *testing.T) {
	cfg := Default()
	cfg.MQTT.Password = "hunter2"

	out, err := cfg.YAML()
	if err != nil {
		t.Fatalf("YAML: %v", err)
	}
	if strings.Contains(string(out), "hunter2") {
		t.Error("password leaked into YAML output")
	}
	if cfg.MQTT.Password != "hunter2" {
		t.Error("YAML modified the receiver")
	}

	var back Config
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if back.Timezone != cfg.Timezone || back.GPIO.MainPin != cfg.GPIO.MainPin {
		t.Errorf("round trip: got %+v", back)
	}
	if !strings.Contains(string(out), "pin_off_hour: 22") {
		t.Errorf("expected ranges in output:\n%s", out)
	}
}

func TestDerivedConfigs(t *testing.T) {
	cfg := Default()
	if om := cfg.OpenMeteo(); om.BaseURL != cfg.Weather.BaseURL || om.CacheTTL != time.Hour {
		t.Errorf("OpenMeteo: got %+v", om)
	}
	if b := cfg.Broker(); b.TopicPrefix != "home/cloudcover-switch" || b.BufferSize != 100 {
		t.Errorf("Broker: got %+v", b)
	}
	conv, err := cfg.Converter()
	if err != nil {
		t.Fatalf("Converter: %v", err)
	}
	if conv.Rule().StdName != "CET" {
		t.Errorf("rule: got %+v", conv.Rule())
	}
}
