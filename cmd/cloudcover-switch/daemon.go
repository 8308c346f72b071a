package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/cloudcover-switch/internal/config"
	"github.com/sweeney/cloudcover-switch/internal/cycle"
	"github.com/sweeney/cloudcover-switch/internal/gpio"
	"github.com/sweeney/cloudcover-switch/internal/logger"
	"github.com/sweeney/cloudcover-switch/internal/logic"
	"github.com/sweeney/cloudcover-switch/internal/mqtt"
	"github.com/sweeney/cloudcover-switch/internal/rtc"
	"github.com/sweeney/cloudcover-switch/internal/status"
	"github.com/sweeney/cloudcover-switch/internal/store"
	"github.com/sweeney/cloudcover-switch/internal/wake"
	"github.com/sweeney/cloudcover-switch/internal/weather"
	"github.com/sweeney/cloudcover-switch/internal/web"
)

// app holds everything a cycle needs, built from the configuration.
type app struct {
	cfg       config.Config
	log       *logger.Logger
	store     store.Store
	driver    *gpio.RealDriver
	publisher *mqtt.RealPublisher
	tracker   *status.Tracker
	runner    *cycle.Runner
}

func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.State.Driver {
	case config.StateMemory:
		return store.NewMemory(), nil
	case config.StateBolt:
		return store.OpenBolt(cfg.State.Path)
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.State.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
		return store.OpenSQLite(cfg.State.Path)
	}
}

func newApp(cfg config.Config, log *logger.Logger) (*app, error) {
	conv, err := cfg.Converter()
	if err != nil {
		return nil, err
	}
	lc, err := cfg.Logic()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.close(true)
		}
	}()

	if a.store, err = openStore(cfg); err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	if a.driver, err = gpio.NewRealDriver(cfg.GPIO.Chip, cfg.GPIO.MainPin, cfg.GPIO.LEDPins); err != nil {
		return nil, fmt.Errorf("init gpio: %w", err)
	}

	if cfg.Weather.CachePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Weather.CachePath), 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	source := weather.NewOpenMeteo(cfg.OpenMeteo(), log.Named("weather"))

	var pub mqtt.Publisher
	if cfg.MQTT.Enabled {
		if a.publisher, err = mqtt.NewRealPublisher(cfg.Broker(), log.Named("mqtt")); err != nil {
			return nil, fmt.Errorf("init mqtt: %w", err)
		}
		pub = a.publisher
	}

	a.tracker = status.NewTracker(time.Now(), status.Config{
		DeviceName:          cfg.DeviceName,
		Timezone:            cfg.Timezone,
		Latitude:            cfg.Location.Latitude,
		Longitude:           cfg.Location.Longitude,
		ActivationStartHour: cfg.ActivationStartHour,
		WeatherCheckHour:    cfg.WeatherCheckHour,
		TotalIndicators:     lc.TotalIndicators,
		Broker:              cfg.MQTT.Broker,
		HTTPAddr:            cfg.HTTP.Addr,
		StateDriver:         cfg.State.Driver,
	})
	if net := readNetworkInfo(); net != nil {
		a.tracker.SetNetwork(net)
	}

	a.runner = cycle.New(cycle.Config{
		Logic:       lc,
		Latitude:    cfg.Location.Latitude,
		Longitude:   cfg.Location.Longitude,
		DeviceName:  cfg.DeviceName,
		Diagnostics: cfg.Diagnostics.Enabled,
	}, cycle.Deps{
		Clock:     rtc.NewSystemClock(),
		Converter: conv,
		Sleeper:   wake.TimerSleeper{},
		Store:     a.store,
		Weather:   source,
		Driver:    a.driver,
		Publisher: pub,
		Tracker:   a.tracker,
		Log:       log.Named("cycle"),
	})
	ok = true
	return a, nil
}

// close shuts everything down. resetOutputs chooses between returning the
// lines to inputs and leaving them driven.
func (a *app) close(resetOutputs bool) {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.driver != nil {
		var err error
		if resetOutputs {
			err = a.driver.Close()
		} else {
			err = a.driver.Release()
		}
		if err != nil {
			a.log.Warnw("gpio close", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warnw("state store close", "error", err)
		}
	}
}

// mqttPublisher returns the publisher as interfaces, both nil when MQTT is
// disabled.
func (a *app) mqttPublisher() (mqtt.Publisher, mqtt.ConnectionStatus) {
	if a.publisher == nil {
		return nil, nil
	}
	return a.publisher, a.publisher
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the wake-cycle daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := logger.Get(cfg.Log.Level)
			defer log.Sync()

			a, err := newApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.close(true)
			return a.daemon(cmd.Context())
		},
	}
}

func (a *app) daemon(ctx context.Context) error {
	pub, mqttStatus := a.mqttPublisher()

	if pub != nil {
		snap := a.tracker.Snapshot()
		startup := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := pub.PublishSystem(startup); err != nil {
			a.log.Warnw("failed to publish startup event", "error", err)
		} else {
			a.log.Infow("published startup event")
		}
	}

	if a.cfg.HTTP.Enabled {
		srv := web.New(a.cfg.HTTP.Addr, a.tracker, a.store)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.log.Errorw("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		a.log.Infow("http status server listening", "addr", a.cfg.HTTP.Addr)
	}

	a.log.Infow("started",
		"device", a.cfg.DeviceName,
		"timezone", a.cfg.Timezone,
		"state", a.cfg.State.Driver,
		"mqtt", a.cfg.MQTT.Enabled)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	l := &loop{
		runner:     a.runner,
		publisher:  pub,
		mqttStatus: mqttStatus,
		tracker:    a.tracker,
		sleeper:    wake.TimerSleeper{},
		log:        a.log,
		now:        time.Now,
	}
	return l.run(ctx, sigCh)
}

func newOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single wake cycle and print the seconds until the next one",
		Long: `Runs one cycle and prints the planned sleep in seconds on stdout, for
setups where a timer or rtcwake schedules the next run. Outputs are left
driven when the process exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			// stdout carries the result.
			log := logger.NewWriter(os.Stderr, cfg.Log.Level)
			defer log.Sync()

			a, err := newApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.close(false)

			report, err := a.runner.Run(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), report.SleepSeconds)
			return err
		},
	}
}

// cycleRunner runs one wake cycle. *cycle.Runner satisfies it.
type cycleRunner interface {
	Run(ctx context.Context) (logic.CycleReport, error)
}

// loop runs cycles back to back, sleeping the planned time between them,
// until a signal arrives or a cycle fails fatally.
type loop struct {
	runner     cycleRunner
	publisher  mqtt.Publisher // may be nil
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	sleeper    wake.Sleeper
	log        *logger.Logger
	now        func() time.Time
}

func (l *loop) run(ctx context.Context, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reasons := make(chan string, 1)
	go func() {
		select {
		case s := <-sig:
			l.log.Infow("received signal, shutting down", "signal", s.String())
			reasons <- signalName(s)
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		report, err := l.runner.Run(ctx)
		if err != nil {
			if ctx.Err() != nil && !errors.Is(err, cycle.ErrFatal) {
				break
			}
			l.log.Errorw("cycle failed", "error", err)
			l.publishSystem("FATAL", err.Error())
			return err
		}

		if net := readNetworkInfo(); net != nil && l.tracker != nil {
			l.tracker.SetNetwork(net)
		}

		d := time.Duration(report.SleepSeconds) * time.Second
		l.log.Debugw("sleeping until next cycle", "duration", d)
		if err := l.sleeper.Sleep(ctx, d); err != nil {
			break
		}
	}

	reason := "UNKNOWN"
	select {
	case reason = <-reasons:
	default:
	}
	l.publishSystem("SHUTDOWN", reason)
	return nil
}

func (l *loop) publishSystem(event, reason string) {
	if l.publisher == nil {
		return
	}
	e := mqtt.SystemEvent{
		Timestamp: l.now(),
		Event:     event,
		Reason:    reason,
		Retained:  true,
	}
	if l.tracker != nil {
		if l.mqttStatus != nil {
			l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
		}
		e.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), event, reason)
	}
	if err := l.publisher.PublishSystem(e); err != nil {
		l.log.Warnw("failed to publish system event", "event", event, "error", err)
	} else {
		l.log.Infow("published system event", "event", event)
	}
}
