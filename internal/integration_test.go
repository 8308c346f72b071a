package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/sweeney/cloudcover-switch/internal/cycle"
	"github.com/sweeney/cloudcover-switch/internal/gpio"
	"github.com/sweeney/cloudcover-switch/internal/localtime"
	"github.com/sweeney/cloudcover-switch/internal/logic"
	"github.com/sweeney/cloudcover-switch/internal/mqtt"
	"github.com/sweeney/cloudcover-switch/internal/rtc"
	"github.com/sweeney/cloudcover-switch/internal/status"
	"github.com/sweeney/cloudcover-switch/internal/store"
	"github.com/sweeney/cloudcover-switch/internal/wake"
	"github.com/sweeney/cloudcover-switch/internal/weather"
)

// seqSource returns one forecast per call, repeating the last.
type seqSource struct {
	covers []float64
	calls  int
}

func (s *seqSource) Fetch(ctx context.Context, lat, lon float64) (weather.Forecast, error) {
	c := s.covers[min(s.calls, len(s.covers)-1)]
	s.calls++
	return weather.Forecast{TomorrowCloudCover: c, Date: fmt.Sprintf("day-%d", s.calls)}, nil
}

// sim wires a real cycle runner to fakes and advances the fake clock by the
// planned sleep after every cycle, as the daemon loop does.
type sim struct {
	clock   *rtc.FakeClock
	store   store.Store
	source  weather.Source
	driver  *gpio.FakeDriver
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	runner  *cycle.Runner
	// drift is added to every planned sleep, like an inaccurate sleep timer.
	drift time.Duration
}

func newSim(t *testing.T, startUTC time.Time, st store.Store, source weather.Source) *sim {
	t.Helper()
	conv, err := localtime.NewConverterFromString(localtime.DefaultRule)
	if err != nil {
		t.Fatalf("converter: %v", err)
	}
	s := &sim{
		clock:   rtc.NewFakeClock(startUTC),
		store:   st,
		source:  source,
		driver:  gpio.NewFakeDriver(5),
		pub:     mqtt.NewFakePublisher(),
		tracker: status.NewTracker(startUTC, status.Config{}),
	}
	s.build(conv)
	return s
}

func (s *sim) build(conv *localtime.Converter) {
	s.runner = cycle.New(cycle.Config{
		Logic:       logic.DefaultConfig(),
		DeviceName:  "sim",
		Diagnostics: true,
	}, cycle.Deps{
		Clock:     s.clock,
		Converter: conv,
		Sleeper:   &wake.FakeSleeper{Clock: s.clock},
		Store:     s.store,
		Weather:   s.source,
		Driver:    s.driver,
		Publisher: s.pub,
		Tracker:   s.tracker,
		Now:       func() time.Time { return s.clock.Now },
	})
}

func (s *sim) step(t *testing.T) logic.CycleReport {
	t.Helper()
	r, err := s.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("cycle at %v: %v", s.clock.Now, err)
	}
	s.clock.Advance(time.Duration(r.SleepSeconds)*time.Second + s.drift)
	return r
}

func (s *sim) steps(t *testing.T, n int) []logic.CycleReport {
	t.Helper()
	out := make([]logic.CycleReport, n)
	for i := range out {
		out[i] = s.step(t)
	}
	return out
}

func cet(y, mo, d, h, mi, sec int) time.Time {
	return time.Date(y, time.Month(mo), d, h-1, mi, sec, 0, time.UTC)
}

func TestIntegrationThreeDays(t *testing.T) {
	source := &seqSource{covers: []float64{35, 5, 80}}
	s := newSim(t, cet(2026, 1, 14, 0, 0, 30), store.NewMemory(), source)

	reports := s.steps(t, 72)

	type window struct {
		firstOn, lastOn int
		lit             int
	}
	want := []window{
		{9, 18, 2}, // 35%: pin-off 19 from the 16:00 fetch
		{9, 21, 5}, // 5%: pin-off 22
		{9, 16, 0}, // 80%: pin-off 17, takes effect at 17:00
	}

	for i, r := range reports {
		day, hour := i/24, i%24
		if r.Local.Hour != hour || r.Local.Minute != 0 || r.Local.Second != 30 {
			t.Fatalf("cycle %d woke at %s", i, r.Local)
		}
		w := want[day]
		on := hour >= w.firstOn && hour <= w.lastOn
		if r.Decision.ActivateMain != on {
			t.Errorf("day %d %02d:00: main=%v, want %v", day, hour, r.Decision.ActivateMain, on)
		}
		lit := 0
		if on && hour >= 16 {
			lit = w.lit
		}
		if r.Decision.IndicatorCount != lit {
			t.Errorf("day %d %02d:00: indicators=%d, want %d", day, hour, r.Decision.IndicatorCount, lit)
		}
		fetch := logic.FetchSkipped
		if hour == 16 {
			fetch = logic.FetchSucceeded
		}
		if r.Fetch != fetch {
			t.Errorf("day %d %02d:00: fetch=%s, want %s", day, hour, r.Fetch, fetch)
		}
	}

	if source.calls != 3 {
		t.Errorf("fetches: got %d, want 3", source.calls)
	}
	if len(s.pub.Diagnostics) != 3 {
		t.Errorf("diagnostics: got %d, want 3", len(s.pub.Diagnostics))
	}
	if snap := s.tracker.Snapshot(); snap.Cycles != 72 {
		t.Errorf("tracker cycles: got %d", snap.Cycles)
	}
}

func TestIntegrationRestartKeepsState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	st, err := store.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	source := weather.NewFakeSource(35)
	s := newSim(t, cet(2026, 1, 14, 15, 0, 30), st, source)

	s.steps(t, 2) // 15:00, 16:00 (fetch)
	st.Close()

	// New process: same clock, fresh store handle and runner.
	st2, err := store.OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()
	conv, _ := localtime.NewConverterFromString(localtime.DefaultRule)
	s.store = st2
	s.build(conv)

	r := s.step(t) // 17:00
	if !r.Decision.ActivateMain || r.State.PinOffHour != 19 {
		t.Errorf("17:00 after restart: main=%v pin_off=%d", r.Decision.ActivateMain, r.State.PinOffHour)
	}
	if r.Decision.IndicatorCount != 2 {
		t.Errorf("17:00 after restart: indicators=%d, want 2", r.Decision.IndicatorCount)
	}
	s.step(t)     // 18:00
	r = s.step(t) // 19:00
	if r.Decision.ActivateMain || !r.Observation.Rearmed || r.State.WeatherFetchedToday {
		t.Errorf("19:00: %+v", r)
	}
	if source.Calls != 1 {
		t.Errorf("fetches: got %d, want 1", source.Calls)
	}

	recs, err := st2.RecentCycles(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentCycles: %v", err)
	}
	if len(recs) != 5 || recs[0].Hour != 19 || recs[4].Hour != 15 {
		t.Errorf("history across restart: got %d records", len(recs))
	}
}

func TestIntegrationSpringForward(t *testing.T) {
	// 2026-03-29: 02:00 CET becomes 03:00 CEST.
	s := newSim(t, cet(2026, 3, 28, 23, 0, 30), store.NewMemory(), weather.NewFakeSource(50))

	var hours []int
	var zones []string
	for _, r := range s.steps(t, 6) {
		hours = append(hours, r.Local.Hour)
		zones = append(zones, r.Zone)
		if r.Local.Minute != 0 || r.Local.Second != 30 {
			t.Errorf("woke at %s", r.Local)
		}
	}
	wantHours := []int{23, 0, 1, 3, 4, 5}
	wantZones := []string{"CET", "CET", "CET", "CEST", "CEST", "CEST"}
	for i := range wantHours {
		if hours[i] != wantHours[i] || zones[i] != wantZones[i] {
			t.Fatalf("hours %v zones %v, want %v %v", hours, zones, wantHours, wantZones)
		}
	}
}

func TestIntegrationFallBack(t *testing.T) {
	// 2026-10-25: 03:00 CEST becomes 02:00 CET, so 02:xx happens twice.
	start := time.Date(2026, 10, 24, 22, 0, 30, 0, time.UTC) // 00:00:30 CEST
	s := newSim(t, start, store.NewMemory(), weather.NewFakeSource(50))

	var got []string
	for _, r := range s.steps(t, 5) {
		got = append(got, fmt.Sprintf("%02d %s", r.Local.Hour, r.Zone))
	}
	want := []string{"00 CEST", "01 CEST", "02 CEST", "02 CET", "03 CET"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestIntegrationSleepDriftAbsorbed(t *testing.T) {
	for _, drift := range []time.Duration{-20 * time.Second, 25 * time.Second, -95 * time.Second} {
		t.Run(drift.String(), func(t *testing.T) {
			s := newSim(t, cet(2026, 1, 14, 8, 0, 30), store.NewMemory(), weather.NewFakeSource(50))
			s.drift = drift

			for i, r := range s.steps(t, 10) {
				if r.Local.Hour != 8+i {
					t.Fatalf("cycle %d at %s", i, r.Local)
				}
				if r.Local.Minute != 0 || r.Local.Second < 30 || r.Local.Second > 55 {
					t.Errorf("cycle %d at %s, want HH:00:30..55", i, r.Local)
				}
			}
		})
	}
}

func TestIntegrationPayloadFormat(t *testing.T) {
	s := newSim(t, cet(2026, 1, 14, 16, 0, 30), store.NewMemory(), weather.NewFakeSource(35))
	s.step(t)

	if len(s.pub.Payloads) != 1 {
		t.Fatalf("payloads: got %d", len(s.pub.Payloads))
	}
	var p mqtt.Payload
	if err := json.Unmarshal(s.pub.Payloads[0], &p); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if p.Cycle.Main != "ON" || p.Cycle.Fetch != "OK" || p.Cycle.PinOffHour != 19 || p.Cycle.Indicators != 2 {
		t.Errorf("payload: %+v", p.Cycle)
	}

	d, err := mqtt.FormatDiagnosticsPayload(s.pub.Diagnostics[0])
	if err != nil {
		t.Fatalf("diagnostics: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(d, &m); err != nil {
		t.Fatalf("invalid diagnostics JSON: %v", err)
	}
	if m["sunrise"] != "unknown" || m["led_count"] != float64(5) {
		t.Errorf("diagnostics: %v", m)
	}
}
