// Package cycle runs one wake cycle: load state, align to the hour, read the
// clock, update the duty-cycle machine, drive the outputs, save, plan the
// next wake and report.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/cloudcover-switch/internal/gpio"
	"github.com/sweeney/cloudcover-switch/internal/localtime"
	"github.com/sweeney/cloudcover-switch/internal/logger"
	"github.com/sweeney/cloudcover-switch/internal/logic"
	"github.com/sweeney/cloudcover-switch/internal/mqtt"
	"github.com/sweeney/cloudcover-switch/internal/rtc"
	"github.com/sweeney/cloudcover-switch/internal/status"
	"github.com/sweeney/cloudcover-switch/internal/store"
	"github.com/sweeney/cloudcover-switch/internal/wake"
	"github.com/sweeney/cloudcover-switch/internal/weather"
)

// ErrFatal marks a cycle failure after which the daemon must not continue:
// the clock or the state store is unusable.
var ErrFatal = errors.New("cycle: fatal error")

// Config holds the per-deployment settings of the runner.
type Config struct {
	Logic       logic.Config
	Latitude    float64
	Longitude   float64
	DeviceName  string
	Diagnostics bool
}

// Deps are the runner's collaborators. Publisher and Tracker may be nil.
type Deps struct {
	Clock     rtc.TimeSource
	Converter *localtime.Converter
	Sleeper   wake.Sleeper
	Store     store.Store
	Weather   weather.Source
	Driver    gpio.Driver
	Publisher mqtt.Publisher
	Tracker   *status.Tracker
	Log       *logger.Logger

	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

// Runner executes wake cycles. It keeps no state between cycles; everything
// that must survive goes through the Store.
type Runner struct {
	cfg     Config
	deps    Deps
	sync    *wake.Synchronizer
	planner *wake.Planner
}

// New creates a Runner.
func New(cfg Config, deps Deps) *Runner {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Sleeper == nil {
		deps.Sleeper = wake.TimerSleeper{}
	}
	return &Runner{
		cfg:     cfg,
		deps:    deps,
		sync:    wake.NewSynchronizer(deps.Clock, deps.Converter, deps.Sleeper),
		planner: wake.NewPlanner(deps.Clock, deps.Converter),
	}
}

func fatal(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrFatal, step, err)
}

// Run executes one cycle. A cancelled ctx during the wake sync returns
// ctx.Err() with nothing changed. Errors wrapping ErrFatal mean the caller
// should stop.
func (r *Runner) Run(ctx context.Context) (logic.CycleReport, error) {
	report, err := r.run(ctx)
	if r.deps.Tracker != nil {
		if err != nil {
			r.deps.Tracker.SetError(err.Error())
		} else {
			r.deps.Tracker.SetError("")
		}
	}
	return report, err
}

func (r *Runner) run(ctx context.Context) (logic.CycleReport, error) {
	log := r.deps.Log
	report := logic.CycleReport{ID: r.deps.NewID(), StartedAt: r.deps.Now()}

	state, found, err := r.deps.Store.Load(ctx)
	if err != nil {
		return report, fatal("load state", err)
	}
	if !found {
		log.Infow("no saved state, starting from defaults", "cycle", report.ID)
	}

	utc, wait, err := r.sync.Sync(ctx)
	report.SyncWait = wait
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report, ctxErr
		}
		return report, fatal("wake sync", err)
	}
	if report.SyncWait > 0 {
		log.Debugw("waited for the hour", "cycle", report.ID, "wait", report.SyncWait)
	}

	local, err := r.deps.Converter.ToLocal(utc)
	if err != nil {
		return report, fatal("convert to local", err)
	}
	report.UTC = utc
	report.Local = local
	// Both only fail on invalid input, which ToLocal has already rejected.
	report.Zone, _ = r.deps.Converter.ZoneAbbr(utc)
	report.OffsetSecs, _ = r.deps.Converter.OffsetSeconds(utc)

	m := logic.NewMachine(r.cfg.Logic, state)
	obs := m.Observe(local.Hour)
	report.Observation = obs
	if obs.Rearmed {
		log.Infow("window closed, forecast re-armed", "cycle", report.ID, "hour", local.Hour)
	}

	report.Fetch = logic.FetchSkipped
	var forecast weather.Forecast
	if obs.FetchDue {
		forecast, err = r.deps.Weather.Fetch(ctx, r.cfg.Latitude, r.cfg.Longitude)
		if err != nil {
			report.Fetch = logic.FetchFailed
			report.FetchError = err.Error()
			log.Warnw("forecast fetch failed, will retry next cycle", "cycle", report.ID, "error", err)
		} else {
			m.RecordForecast(forecast.TomorrowCloudCover)
			report.Fetch = logic.FetchSucceeded
			log.Infow("forecast recorded",
				"cycle", report.ID,
				"date", forecast.Date,
				"cloudcover", forecast.TomorrowCloudCover,
				"pin_off_hour", m.State().PinOffHour)
		}
	}

	decision := m.Decide(obs)
	report.Decision = decision
	r.drive(report.ID, decision)

	report.State = m.State()
	// The state must be written even if shutdown was requested mid-cycle.
	if err := r.deps.Store.Save(context.WithoutCancel(ctx), report.State); err != nil {
		return report, fatal("save state", err)
	}

	plan, err := r.planner.PlanNow()
	if err != nil {
		log.Warnw("clock read after cycle failed, sleeping one hour", "cycle", report.ID, "error", err)
	}
	report.SleepSeconds = plan.SleepSeconds
	report.SleepFallback = plan.Fallback

	r.report(ctx, report, forecast)

	log.Infow("cycle complete",
		"cycle", report.ID,
		"local", local.String(),
		"zone", report.Zone,
		"main", decision.ActivateMain,
		"indicators", decision.IndicatorCount,
		"fetch", report.Fetch,
		"sleep", plan.Duration())
	return report, nil
}

// drive sets the outputs. Failures are logged; the next cycle sets them again.
func (r *Runner) drive(id string, d logic.ScheduleDecision) {
	total := r.cfg.Logic.TotalIndicators
	if err := r.deps.Driver.SetMain(d.ActivateMain); err != nil {
		r.deps.Log.Errorw("set main output", "cycle", id, "error", err)
	}
	lit := 0
	if d.ShowIndicators {
		lit = d.IndicatorCount
	}
	if err := r.deps.Driver.SetIndicators(lit, total); err != nil {
		r.deps.Log.Errorw("set indicators", "cycle", id, "error", err)
	}
}

// report records history, publishes and updates the tracker. Nothing here
// can fail the cycle.
func (r *Runner) report(ctx context.Context, rep logic.CycleReport, forecast weather.Forecast) {
	log := r.deps.Log

	if err := r.deps.Store.AppendCycle(context.WithoutCancel(ctx), store.RecordFromReport(rep)); err != nil {
		log.Warnw("append cycle history", "cycle", rep.ID, "error", err)
	}

	if p := r.deps.Publisher; p != nil {
		if err := p.Publish(rep); err != nil {
			log.Warnw("publish cycle report", "cycle", rep.ID, "error", err)
		}
		if rep.Fetch == logic.FetchSucceeded && r.cfg.Diagnostics {
			d := mqtt.NewDiagnostics(r.cfg.DeviceName, rep.Local, forecast, rep.State.PinOffHour, r.cfg.Logic.TotalIndicators)
			if err := p.PublishDiagnostics(d); err != nil {
				log.Warnw("publish diagnostics", "cycle", rep.ID, "error", err)
			}
		}
	}

	if t := r.deps.Tracker; t != nil {
		t.RecordCycle(rep, r.deps.Now().Add(time.Duration(rep.SleepSeconds)*time.Second))
		if cs, ok := r.deps.Publisher.(mqtt.ConnectionStatus); ok {
			t.SetMQTTConnected(cs.IsConnected())
		}
	}
}
