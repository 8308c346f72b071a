package logic

import "testing"

func TestDefaultState(t *testing.T) {
	s := DefaultState()
	if s.PinOffHour != 17 {
		t.Errorf("expected PinOffHour 17, got %d", s.PinOffHour)
	}
	if s.CurrentCloudCover != 75.0 {
		t.Errorf("expected CurrentCloudCover 75, got %v", s.CurrentCloudCover)
	}
	if s.WeatherFetchedToday {
		t.Error("new state should not have a forecast")
	}
	if s.LastPinActive {
		t.Error("new state should not be active")
	}
}

func TestObserveActiveWindow(t *testing.T) {
	tests := []struct {
		hour       int
		pinOffHour int
		want       bool
	}{
		{0, 17, false},
		{8, 17, false},
		{9, 17, true},
		{16, 17, true},
		{17, 17, false},
		{21, 22, true},
		{22, 22, false},
		{23, 22, false},
	}
	for _, tt := range tests {
		st := DefaultState()
		st.PinOffHour = tt.pinOffHour
		m := NewMachine(DefaultConfig(), st)

		obs := m.Observe(tt.hour)
		if obs.ActiveWindow != tt.want {
			t.Errorf("hour %d, off %d: expected active=%v, got %v", tt.hour, tt.pinOffHour, tt.want, obs.ActiveWindow)
		}
		if m.State().LastPinActive != tt.want {
			t.Errorf("hour %d: LastPinActive should follow the window", tt.hour)
		}
	}
}

func TestEdgeTriggerFiresOnce(t *testing.T) {
	st := DefaultState()
	st.LastPinActive = true
	st.WeatherFetchedToday = true
	m := NewMachine(DefaultConfig(), st)

	// Window closes at 17.
	obs := m.Observe(17)
	if !obs.Rearmed {
		t.Error("expected re-arm on closing transition")
	}
	if m.State().WeatherFetchedToday {
		t.Error("expected fetched flag cleared")
	}

	// A forecast arriving while the window is closed must survive the next
	// closed cycle. 60% keeps the off hour at 17.
	m.RecordForecast(60)
	obs = m.Observe(18)
	if obs.Rearmed {
		t.Error("edge trigger fired twice")
	}
	if !m.State().WeatherFetchedToday {
		t.Error("flag reset while window stayed closed")
	}
}

func TestEdgeTriggerNotFiredWhileActive(t *testing.T) {
	st := DefaultState()
	st.WeatherFetchedToday = true
	m := NewMachine(DefaultConfig(), st)

	for hour := 9; hour < 17; hour++ {
		if obs := m.Observe(hour); obs.Rearmed {
			t.Fatalf("unexpected re-arm at %d", hour)
		}
	}
	if !m.State().WeatherFetchedToday {
		t.Error("flag should survive the active window")
	}
}

func TestFetchGating(t *testing.T) {
	m := NewMachine(DefaultConfig(), DefaultState())

	if obs := m.Observe(15); obs.FetchDue {
		t.Error("fetch should not be due before check hour")
	}
	if obs := m.Observe(16); !obs.FetchDue {
		t.Error("fetch should be due at check hour without a forecast")
	}

	m.RecordForecast(35)
	if obs := m.Observe(16); obs.FetchDue {
		t.Error("fetch should not be due once fetched")
	}
}

func TestFailedFetchRetriesNextDay(t *testing.T) {
	m := NewMachine(DefaultConfig(), DefaultState())

	// Check hour, fetch fails: nothing recorded.
	if obs := m.Observe(16); !obs.FetchDue {
		t.Fatal("expected fetch due")
	}
	if m.State().PinOffHour != 17 || m.State().CurrentCloudCover != 75 {
		t.Errorf("failed fetch must not change state: %+v", m.State())
	}

	// 17:00 closes the window. The flag was never set so the re-arm is a no-op.
	m.Observe(17)
	for hour := 18; hour < 24; hour++ {
		if obs := m.Observe(hour); obs.FetchDue {
			t.Errorf("fetch due at %d", hour)
		}
	}
	if obs := m.Observe(16); !obs.FetchDue {
		t.Error("expected retry at next check hour")
	}
}

func TestRecordForecast(t *testing.T) {
	m := NewMachine(DefaultConfig(), DefaultState())
	m.RecordForecast(35)

	s := m.State()
	if s.PinOffHour != 19 {
		t.Errorf("expected PinOffHour 19, got %d", s.PinOffHour)
	}
	if s.CurrentCloudCover != 35 {
		t.Errorf("expected cloud cover 35, got %v", s.CurrentCloudCover)
	}
	if !s.WeatherFetchedToday {
		t.Error("expected fetched flag set")
	}
}

func TestDecide(t *testing.T) {
	m := NewMachine(DefaultConfig(), DefaultState())

	// Active on the default schedule but no forecast yet.
	d := m.Decide(m.Observe(10))
	if !d.ActivateMain {
		t.Error("expected main active at 10:00")
	}
	if d.ShowIndicators || d.IndicatorCount != 0 {
		t.Errorf("indicators should stay off without a forecast, got %+v", d)
	}

	obs := m.Observe(16)
	m.RecordForecast(35)
	d = m.Decide(obs)
	if !d.ActivateMain || !d.ShowIndicators {
		t.Errorf("expected main and indicators on, got %+v", d)
	}
	if d.IndicatorCount != 2 {
		t.Errorf("expected 2 indicators, got %d", d.IndicatorCount)
	}

	// 19:00 closes the extended window.
	d = m.Decide(m.Observe(19))
	if d.ActivateMain || d.ShowIndicators || d.IndicatorCount != 0 {
		t.Errorf("expected everything off, got %+v", d)
	}
}

func TestStateIsACopy(t *testing.T) {
	m := NewMachine(DefaultConfig(), DefaultState())
	s := m.State()
	s.PinOffHour = 3
	if m.State().PinOffHour != 17 {
		t.Error("mutating the snapshot changed the machine")
	}
}

func TestFullDay(t *testing.T) {
	m := NewMachine(DefaultConfig(), DefaultState())

	var mainHours, fetches, rearms int
	for day := 0; day < 3; day++ {
		for hour := 0; hour < 24; hour++ {
			obs := m.Observe(hour)
			if obs.FetchDue {
				fetches++
				m.RecordForecast(5)
			}
			if obs.Rearmed {
				rearms++
			}
			if m.Decide(obs).ActivateMain {
				mainHours++
			}
		}
	}

	if fetches != 3 {
		t.Errorf("expected one fetch per day, got %d", fetches)
	}
	// Clear sky: day 1 runs 9-16 then extends to 22 after the 16:00 fetch.
	if mainHours != 3*(22-9) {
		t.Errorf("expected %d active hours, got %d", 3*(22-9), mainHours)
	}
	if rearms != 3 {
		t.Errorf("expected one re-arm per day, got %d", rearms)
	}
}
