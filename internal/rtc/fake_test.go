package rtc

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/cloudcover-switch/internal/localtime"
)

func TestFakeClockRead(t *testing.T) {
	f := NewFakeClock(time.Date(2025, 6, 1, 14, 7, 12, 0, time.UTC))
	f.Step = time.Second

	dt, err := f.ReadUTC()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := localtime.DateTime{Year: 2025, Month: 6, Day: 1, Hour: 14, Minute: 7, Second: 12, Frame: localtime.UTC}
	if dt != want {
		t.Errorf("first read: got %s, want %s", dt, want)
	}

	dt, _ = f.ReadUTC()
	if dt.Second != 13 {
		t.Errorf("second read: expected step to advance to :13, got %s", dt)
	}
	if f.Reads != 2 {
		t.Errorf("Reads: got %d, want 2", f.Reads)
	}
}

func TestFakeClockReadError(t *testing.T) {
	f := NewFakeClock(time.Now())
	f.ReadError = errors.New("i2c timeout")

	_, err := f.ReadUTC()
	if !errors.Is(err, ErrClock) {
		t.Errorf("expected ErrClock, got %v", err)
	}
}

func TestFakeClockWrite(t *testing.T) {
	f := NewFakeClock(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	dt := localtime.DateTime{Year: 2025, Month: 10, Day: 22, Hour: 14, Minute: 30, Second: 15, Frame: localtime.UTC}

	if err := f.WriteUTC(dt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Writes) != 1 || f.Writes[0] != dt {
		t.Errorf("Writes: got %v", f.Writes)
	}
	got, _ := f.ReadUTC()
	if got != dt {
		t.Errorf("read after write: got %s, want %s", got, dt)
	}
}

func TestWriteRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		dt   localtime.DateTime
	}{
		{"local frame", localtime.DateTime{Year: 2025, Month: 1, Day: 1, Frame: localtime.Local}},
		{"invalid day", localtime.DateTime{Year: 2025, Month: 2, Day: 30, Frame: localtime.UTC}},
		{"year past register range", localtime.DateTime{Year: 2100, Month: 1, Day: 1, Frame: localtime.UTC}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFakeClock(time.Now())
			err := f.WriteUTC(tt.dt)
			if !errors.Is(err, ErrClock) {
				t.Errorf("expected ErrClock, got %v", err)
			}
			if len(f.Writes) != 0 {
				t.Error("rejected value must not be recorded")
			}
		})
	}
}
