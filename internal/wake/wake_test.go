package wake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/cloudcover-switch/internal/localtime"
	"github.com/sweeney/cloudcover-switch/internal/rtc"
)

func cet(t *testing.T) *localtime.Converter {
	t.Helper()
	c, err := localtime.NewConverterFromString(localtime.DefaultRule)
	if err != nil {
		t.Fatalf("converter: %v", err)
	}
	return c
}

// winterUTC returns the UTC instant for a January wall-clock time in CET.
func winterUTC(hour, min, sec int) time.Time {
	return time.Date(2026, 1, 15, hour-1, min, sec, 0, time.UTC)
}

func TestSyncWaitsNearHour(t *testing.T) {
	tests := []struct {
		name           string
		hour, min, sec int
		want           time.Duration
	}{
		{"59:40", 15, 59, 40, 50 * time.Second},
		{"58:00", 15, 58, 0, 2*time.Minute + 30*time.Second},
		{"00:05", 16, 0, 5, 25 * time.Second},
		{"00:29", 16, 0, 29, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := rtc.NewFakeClock(winterUTC(tt.hour, tt.min, tt.sec))
			sleeper := &FakeSleeper{Clock: clock}
			s := NewSynchronizer(clock, cet(t), sleeper)

			utc, waited, err := s.Sync(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if waited != tt.want {
				t.Errorf("expected wait %v, got %v", tt.want, waited)
			}
			if sleeper.Total() != tt.want {
				t.Errorf("expected slept %v, got %v", tt.want, sleeper.Total())
			}
			for _, d := range sleeper.Slept {
				if d > time.Second {
					t.Errorf("step %v exceeds one second", d)
				}
			}
			end := clock.Now.Add(time.Hour) // back to CET wall clock
			if end.Minute() != 0 || end.Second() != 30 {
				t.Errorf("expected to finish at HH:00:30, got %s", end.Format("15:04:05"))
			}
			if !utc.Time().Equal(clock.Now) {
				t.Errorf("returned %s, want the last reading %s", utc, clock.Now)
			}
		})
	}
}

func TestSyncReturnsImmediately(t *testing.T) {
	for _, hms := range [][3]int{{14, 30, 0}, {14, 1, 0}, {14, 57, 59}, {14, 0, 30}, {14, 0, 45}} {
		clock := rtc.NewFakeClock(winterUTC(hms[0], hms[1], hms[2]))
		sleeper := &FakeSleeper{Clock: clock}
		s := NewSynchronizer(clock, cet(t), sleeper)

		utc, waited, err := s.Sync(context.Background())
		if err != nil {
			t.Fatalf("%v: unexpected error: %v", hms, err)
		}
		if !utc.Time().Equal(winterUTC(hms[0], hms[1], hms[2])) {
			t.Errorf("%v: returned %s", hms, utc)
		}
		if waited != 0 || len(sleeper.Slept) != 0 {
			t.Errorf("%v: expected no wait, got %v over %d sleeps", hms, waited, len(sleeper.Slept))
		}
		if clock.Reads != 1 {
			t.Errorf("%v: expected a single clock read, got %d", hms, clock.Reads)
		}
	}
}

func TestSyncCancellation(t *testing.T) {
	clock := rtc.NewFakeClock(winterUTC(15, 59, 40))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sleeper := &FakeSleeper{Clock: clock, CancelAfter: 5, Cancel: cancel}
	s := NewSynchronizer(clock, cet(t), sleeper)

	_, waited, err := s.Sync(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if waited != 5*time.Second {
		t.Errorf("expected 5s waited before cancel, got %v", waited)
	}
}

func TestSyncClockError(t *testing.T) {
	clock := rtc.NewFakeClock(winterUTC(15, 59, 40))
	clock.ReadError = errors.New("i2c timeout")
	s := NewSynchronizer(clock, cet(t), &FakeSleeper{Clock: clock})

	if _, _, err := s.Sync(context.Background()); !errors.Is(err, rtc.ErrClock) {
		t.Errorf("expected rtc.ErrClock, got %v", err)
	}
}

func TestSyncSummerTime(t *testing.T) {
	// 15:59:40 CEST is 13:59:40 UTC.
	clock := rtc.NewFakeClock(time.Date(2026, 7, 1, 13, 59, 40, 0, time.UTC))
	s := NewSynchronizer(clock, cet(t), &FakeSleeper{Clock: clock})

	_, waited, err := s.Sync(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if waited != 50*time.Second {
		t.Errorf("expected 50s, got %v", waited)
	}
}

func TestPlanFrom(t *testing.T) {
	tests := []struct {
		min, sec int
		want     int
	}{
		{7, 12, 3198},
		{0, 30, 3600},
		{0, 0, 3630},
		{59, 59, 31},
	}
	for _, tt := range tests {
		local := localtime.DateTime{Year: 2026, Month: 1, Day: 15, Hour: 14, Minute: tt.min, Second: tt.sec, Frame: localtime.Local}
		p := PlanFrom(local)
		if p.SleepSeconds != tt.want {
			t.Errorf("14:%02d:%02d: expected %d, got %d", tt.min, tt.sec, tt.want, p.SleepSeconds)
		}
		if p.Fallback {
			t.Error("unexpected fallback")
		}
	}
}

func TestPlanNowLandsOnHalfMinute(t *testing.T) {
	clock := rtc.NewFakeClock(winterUTC(14, 7, 12))
	p, err := NewPlanner(clock, cet(t)).PlanNow()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.SleepSeconds != 3198 {
		t.Errorf("expected 3198, got %d", p.SleepSeconds)
	}
	wake := clock.Now.Add(p.Duration()).Add(time.Hour)
	if got := wake.Format("15:04:05"); got != "15:00:30" {
		t.Errorf("expected wake at 15:00:30, got %s", got)
	}
}

func TestPlanNowFallback(t *testing.T) {
	clock := rtc.NewFakeClock(winterUTC(14, 7, 12))
	clock.ReadError = errors.New("bus error")

	p, err := NewPlanner(clock, cet(t)).PlanNow()
	if err == nil {
		t.Fatal("expected error")
	}
	if p.SleepSeconds != 3600 || !p.Fallback {
		t.Errorf("expected 3600s fallback, got %+v", p)
	}
}

func TestTimerSleeperCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (TimerSleeper{}).Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestTimerSleeperElapses(t *testing.T) {
	start := time.Now()
	if err := (TimerSleeper{}).Sleep(context.Background(), 10*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Error("returned too early")
	}
}
