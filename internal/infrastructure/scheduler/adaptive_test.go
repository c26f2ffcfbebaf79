package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func eastern(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

func TestIntervalFollowsTradingDay(t *testing.T) {
	loc := eastern(t)
	cfg := DefaultConfig()
	cfg.Location = loc

	cases := []struct {
		name string
		at   time.Time
		want time.Duration
	}{
		{"peak", time.Date(2024, 3, 5, 9, 0, 0, 0, loc), 10 * time.Second},
		{"peak end is exclusive", time.Date(2024, 3, 5, 10, 30, 0, 0, loc), 30 * time.Second},
		{"premarket", time.Date(2024, 3, 5, 4, 0, 0, 0, loc), 30 * time.Second},
		{"afternoon", time.Date(2024, 3, 5, 15, 45, 0, 0, loc), 30 * time.Second},
		{"evening", time.Date(2024, 3, 5, 20, 0, 0, 0, loc), 2 * time.Minute},
		{"night", time.Date(2024, 3, 5, 2, 0, 0, 0, loc), 2 * time.Minute},
		{"saturday peak hour", time.Date(2024, 3, 9, 9, 0, 0, 0, loc), 10 * time.Minute},
		{"sunday", time.Date(2024, 3, 10, 12, 0, 0, 0, loc), 10 * time.Minute},
	}

	for _, tc := range cases {
		if got := cfg.Interval(tc.at); got != tc.want {
			t.Fatalf("%s: interval = %v, want %v", tc.name, got, tc.want)
		}
	}

	// UTC input is converted to the configured zone first.
	utc := time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)
	if got := cfg.Interval(utc); got != 10*time.Second {
		t.Fatalf("expected peak interval for 09:00 ET, got %v", got)
	}
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("08:00", "10:30")
	if err != nil {
		t.Fatalf("ParseWindow error: %v", err)
	}
	if w.Start != 480 || w.End != 630 {
		t.Fatalf("unexpected window %+v", w)
	}
	if _, err := ParseWindow("10:30", "08:00"); err == nil {
		t.Fatal("expected error for inverted window")
	}
	if _, err := ParseWindow("8am", "10:30"); err == nil {
		t.Fatal("expected error for malformed clock")
	}
}

func TestAdaptiveSchedulerRunsUntilStopped(t *testing.T) {
	cfg := Config{
		Location:         time.UTC,
		PeakInterval:     time.Millisecond,
		TradingInterval:  time.Millisecond,
		OffHoursInterval: time.Millisecond,
		WeekendInterval:  time.Millisecond,
	}
	var intervals int32
	s := NewAdaptiveScheduler(cfg, WithIntervalHook(func(time.Duration) { atomic.AddInt32(&intervals, 1) }))

	var runs int32
	if err := s.Start(context.Background(), func(time.Time) { atomic.AddInt32(&runs, 1) }); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&runs) < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop error: %v", err)
	}

	if atomic.LoadInt32(&runs) < 3 {
		t.Fatalf("expected at least 3 cycles, got %d", runs)
	}
	if atomic.LoadInt32(&intervals) == 0 {
		t.Fatal("interval hook never called")
	}

	after := atomic.LoadInt32(&runs)
	time.Sleep(10 * time.Millisecond)
	if atomic.LoadInt32(&runs) != after {
		t.Fatal("job kept running after Stop")
	}
}

func TestAdaptiveSchedulerStopsOnContextCancel(t *testing.T) {
	s := NewAdaptiveScheduler(Config{Location: time.UTC, WeekendInterval: time.Hour, OffHoursInterval: time.Hour, TradingInterval: time.Hour, PeakInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx, func(time.Time) {}); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	done := s.finished()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after cancellation")
	}
}
