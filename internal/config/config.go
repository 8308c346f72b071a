// Package config loads the daemon configuration from defaults, an optional
// YAML file, CLOUDCOVER_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/cloudcover-switch/internal/gpio"
	"github.com/sweeney/cloudcover-switch/internal/localtime"
	"github.com/sweeney/cloudcover-switch/internal/logger"
	"github.com/sweeney/cloudcover-switch/internal/logic"
	"github.com/sweeney/cloudcover-switch/internal/mqtt"
	"github.com/sweeney/cloudcover-switch/internal/schedule"
	"github.com/sweeney/cloudcover-switch/internal/weather"
)

// ErrInvalid is returned when the configuration cannot be used.
var ErrInvalid = errors.New("config: invalid configuration")

// EnvPrefix is prepended to environment overrides, e.g. CLOUDCOVER_MQTT_BROKER.
const EnvPrefix = "CLOUDCOVER"

// State drivers.
const (
	StateSQLite = "sqlite"
	StateBolt   = "bolt"
	StateMemory = "memory"
)

// Config is the full daemon configuration. It is built once at startup and
// not modified afterwards.
type Config struct {
	DeviceName          string            `mapstructure:"device_name" yaml:"device_name"`
	ActivationStartHour int               `mapstructure:"activation_start_hour" yaml:"activation_start_hour"`
	WeatherCheckHour    int               `mapstructure:"weather_check_hour" yaml:"weather_check_hour"`
	Timezone            string            `mapstructure:"timezone" yaml:"timezone"`
	Location            LocationConfig    `mapstructure:"location" yaml:"location"`
	CloudCoverRanges    []schedule.Range  `mapstructure:"cloudcover_ranges" yaml:"cloudcover_ranges"`
	GPIO                GPIOConfig        `mapstructure:"gpio" yaml:"gpio"`
	Weather             WeatherConfig     `mapstructure:"weather" yaml:"weather"`
	State               StateConfig       `mapstructure:"state" yaml:"state"`
	MQTT                MQTTConfig        `mapstructure:"mqtt" yaml:"mqtt"`
	HTTP                HTTPConfig        `mapstructure:"http" yaml:"http"`
	Diagnostics         DiagnosticsConfig `mapstructure:"diagnostics" yaml:"diagnostics"`
	Log                 LogConfig         `mapstructure:"log" yaml:"log"`
}

type LocationConfig struct {
	Latitude  float64 `mapstructure:"latitude" yaml:"latitude"`
	Longitude float64 `mapstructure:"longitude" yaml:"longitude"`
}

type GPIOConfig struct {
	Chip    string `mapstructure:"chip" yaml:"chip"`
	MainPin int    `mapstructure:"main_pin" yaml:"main_pin"`
	LEDPins []int  `mapstructure:"led_pins" yaml:"led_pins"`
}

type WeatherConfig struct {
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MinInterval time.Duration `mapstructure:"min_interval" yaml:"min_interval"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	CachePath   string        `mapstructure:"cache_path" yaml:"cache_path"`
}

type StateConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Broker      string `mapstructure:"broker" yaml:"broker"`
	ClientID    string `mapstructure:"client_id" yaml:"client_id"`
	Username    string `mapstructure:"username" yaml:"username"`
	Password    string `mapstructure:"password" yaml:"password"`
	TopicPrefix string `mapstructure:"topic_prefix" yaml:"topic_prefix"`
	BufferSize  int    `mapstructure:"buffer_size" yaml:"buffer_size"`
}

type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

type DiagnosticsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DeviceName:          "cloudcover-switch",
		ActivationStartHour: 9,
		WeatherCheckHour:    16,
		Timezone:            localtime.DefaultRule,
		Location:            LocationConfig{Latitude: 52.23, Longitude: 21.01},
		CloudCoverRanges:    append([]schedule.Range(nil), schedule.DefaultRanges...),
		GPIO: GPIOConfig{
			Chip:    gpio.DefaultChip,
			MainPin: gpio.DefaultPinMain,
			LEDPins: append([]int(nil), gpio.DefaultLEDPins...),
		},
		Weather: WeatherConfig{
			BaseURL:     weather.DefaultBaseURL,
			Timeout:     30 * time.Second,
			MinInterval: time.Minute,
			CacheTTL:    time.Hour,
			CachePath:   "/var/lib/cloudcover-switch/forecast.cache",
		},
		State: StateConfig{
			Driver: StateSQLite,
			Path:   "/var/lib/cloudcover-switch/state.db",
		},
		MQTT: MQTTConfig{
			Enabled:     true,
			Broker:      "tcp://192.168.1.200:1883",
			ClientID:    "cloudcover-switch",
			TopicPrefix: mqtt.DefaultTopicPrefix,
			BufferSize:  100,
		},
		HTTP:        HTTPConfig{Enabled: true, Addr: ":80"},
		Diagnostics: DiagnosticsConfig{Enabled: true},
		Log:         LogConfig{Level: logger.InfoLevel},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("device_name", d.DeviceName)
	v.SetDefault("activation_start_hour", d.ActivationStartHour)
	v.SetDefault("weather_check_hour", d.WeatherCheckHour)
	v.SetDefault("timezone", d.Timezone)
	v.SetDefault("location.latitude", d.Location.Latitude)
	v.SetDefault("location.longitude", d.Location.Longitude)
	v.SetDefault("cloudcover_ranges", d.CloudCoverRanges)
	v.SetDefault("gpio.chip", d.GPIO.Chip)
	v.SetDefault("gpio.main_pin", d.GPIO.MainPin)
	v.SetDefault("gpio.led_pins", d.GPIO.LEDPins)
	v.SetDefault("weather.base_url", d.Weather.BaseURL)
	v.SetDefault("weather.timeout", d.Weather.Timeout)
	v.SetDefault("weather.min_interval", d.Weather.MinInterval)
	v.SetDefault("weather.cache_ttl", d.Weather.CacheTTL)
	v.SetDefault("weather.cache_path", d.Weather.CachePath)
	v.SetDefault("state.driver", d.State.Driver)
	v.SetDefault("state.path", d.State.Path)
	v.SetDefault("mqtt.enabled", d.MQTT.Enabled)
	v.SetDefault("mqtt.broker", d.MQTT.Broker)
	v.SetDefault("mqtt.client_id", d.MQTT.ClientID)
	v.SetDefault("mqtt.username", d.MQTT.Username)
	v.SetDefault("mqtt.password", d.MQTT.Password)
	v.SetDefault("mqtt.topic_prefix", d.MQTT.TopicPrefix)
	v.SetDefault("mqtt.buffer_size", d.MQTT.BufferSize)
	v.SetDefault("http.enabled", d.HTTP.Enabled)
	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("diagnostics.enabled", d.Diagnostics.Enabled)
	v.SetDefault("log.level", d.Log.Level)
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"device-name": "device_name",
	"timezone":    "timezone",
	"latitude":    "location.latitude",
	"longitude":   "location.longitude",
	"gpio-chip":   "gpio.chip",
	"pin-main":    "gpio.main_pin",
	"led-pins":    "gpio.led_pins",
	"state":       "state.driver",
	"state-path":  "state.path",
	"broker":      "mqtt.broker",
	"mqtt":        "mqtt.enabled",
	"http":        "http.addr",
	"log-level":   "log.level",
	"weather-url": "weather.base_url",
	"diagnostics": "diagnostics.enabled",
}

// AddFlags registers the overridable settings on fs. Flag defaults match
// Default(); a flag only takes effect when it is set explicitly.
func AddFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.StringP("config", "c", "", "Path to YAML configuration file")
	fs.String("device-name", d.DeviceName, "Device name used in reports")
	fs.String("timezone", d.Timezone, "POSIX TZ rule for local time")
	fs.Float64("latitude", d.Location.Latitude, "Forecast latitude")
	fs.Float64("longitude", d.Location.Longitude, "Forecast longitude")
	fs.String("gpio-chip", d.GPIO.Chip, "GPIO chip name")
	fs.Int("pin-main", d.GPIO.MainPin, "BCM pin number for the main output")
	fs.IntSlice("led-pins", d.GPIO.LEDPins, "BCM pin numbers for the indicator LEDs")
	fs.String("state", d.State.Driver, "State store driver (sqlite|bolt|memory)")
	fs.String("state-path", d.State.Path, "State database path (sqlite or bolt)")
	fs.String("broker", d.MQTT.Broker, "MQTT broker address")
	fs.Bool("mqtt", d.MQTT.Enabled, "Publish reports to MQTT")
	fs.String("http", d.HTTP.Addr, "HTTP status address")
	fs.String("log-level", d.Log.Level, "Log level (debug|info|warn|error)")
	fs.String("weather-url", d.Weather.BaseURL, "Open-Meteo base URL")
	fs.Bool("diagnostics", d.Diagnostics.Enabled, "Publish forecast diagnostics after each fetch")
}

// Load builds the configuration. path may be empty; fs may be nil.
// The result is validated.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: read %s: %w", ErrInvalid, path, err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem found, joined into one error.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.ActivationStartHour < 0 || c.ActivationStartHour > 23 {
		bad("activation_start_hour %d out of range 0-23", c.ActivationStartHour)
	}
	if c.WeatherCheckHour < 0 || c.WeatherCheckHour > 23 {
		bad("weather_check_hour %d out of range 0-23", c.WeatherCheckHour)
	}
	if _, err := localtime.ParseRule(c.Timezone); err != nil {
		bad("timezone: %v", err)
	}
	if c.Location.Latitude < -90 || c.Location.Latitude > 90 {
		bad("location.latitude %v out of range", c.Location.Latitude)
	}
	if c.Location.Longitude < -180 || c.Location.Longitude > 180 {
		bad("location.longitude %v out of range", c.Location.Longitude)
	}
	if _, err := schedule.New(c.CloudCoverRanges); err != nil {
		bad("cloudcover_ranges: %v", err)
	}

	if len(c.GPIO.LEDPins) == 0 {
		bad("gpio.led_pins is empty")
	}
	seen := map[int]bool{c.GPIO.MainPin: true}
	if c.GPIO.MainPin < 0 {
		bad("gpio.main_pin %d is negative", c.GPIO.MainPin)
	}
	for _, p := range c.GPIO.LEDPins {
		if p < 0 {
			bad("gpio.led_pins: pin %d is negative", p)
		}
		if seen[p] {
			bad("gpio: pin %d used twice", p)
		}
		seen[p] = true
	}

	if c.Weather.Timeout <= 0 {
		bad("weather.timeout must be positive")
	}
	// A forecast is fetched once a day; a cached one must not reach the next.
	if c.Weather.CacheTTL < 0 || c.Weather.CacheTTL >= 24*time.Hour {
		bad("weather.cache_ttl %v must be in [0, 24h)", c.Weather.CacheTTL)
	}

	switch c.State.Driver {
	case StateMemory:
	case StateSQLite, StateBolt:
		if c.State.Path == "" {
			bad("state.path is required for the %s driver", c.State.Driver)
		}
	default:
		bad("state.driver %q (want %s, %s or %s)", c.State.Driver, StateSQLite, StateBolt, StateMemory)
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		bad("mqtt.broker is required when mqtt is enabled")
	}
	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		bad("http.addr is required when http is enabled")
	}
	if !logger.ValidLevel(c.Log.Level) {
		bad("log.level %q", c.Log.Level)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Converter returns the local-time converter for the configured rule.
func (c Config) Converter() (*localtime.Converter, error) {
	return localtime.NewConverterFromString(c.Timezone)
}

// Logic returns the duty-cycle machine configuration.
func (c Config) Logic() (logic.Config, error) {
	table, err := schedule.New(c.CloudCoverRanges)
	if err != nil {
		return logic.Config{}, err
	}
	return logic.Config{
		ActivationStartHour: c.ActivationStartHour,
		WeatherCheckHour:    c.WeatherCheckHour,
		Table:               table,
		TotalIndicators:     len(c.GPIO.LEDPins),
	}, nil
}

// OpenMeteo returns the weather client configuration.
func (c Config) OpenMeteo() weather.OpenMeteoConfig {
	return weather.OpenMeteoConfig{
		BaseURL:     c.Weather.BaseURL,
		Timeout:     c.Weather.Timeout,
		MinInterval: c.Weather.MinInterval,
		CacheTTL:    c.Weather.CacheTTL,
		CachePath:   c.Weather.CachePath,
	}
}

// Broker returns the MQTT connection configuration.
func (c Config) Broker() mqtt.Config {
	return mqtt.Config{
		Broker:      c.MQTT.Broker,
		ClientID:    c.MQTT.ClientID,
		Username:    c.MQTT.Username,
		Password:    c.MQTT.Password,
		TopicPrefix: c.MQTT.TopicPrefix,
		BufferSize:  c.MQTT.BufferSize,
	}
}

// YAML renders the configuration with the MQTT password masked.
func (c Config) YAML() ([]byte, error) {
	if c.MQTT.Password != "" {
		c.MQTT.Password = "********"
	}
	return yaml.Marshal(c)
}
