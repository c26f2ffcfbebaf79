// Package scheduler drives the poll loop with an interval that follows the
// US trading day.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FilingScanner/internal/ports"
)

// Window is a half-open [Start, End) range in minutes after local midnight.
type Window struct {
	Start int
	End   int
}

func (w Window) contains(minute int) bool {
	return minute >= w.Start && minute < w.End
}

// ParseWindow reads "HH:MM" bounds.
func ParseWindow(start, end string) (Window, error) {
	s, err := parseClock(start)
	if err != nil {
		return Window{}, err
	}
	e, err := parseClock(end)
	if err != nil {
		return Window{}, err
	}
	if e <= s {
		return Window{}, fmt.Errorf("window %s-%s is empty", start, end)
	}
	return Window{Start: s, End: e}, nil
}

func parseClock(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", v, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

type Config struct {
	Location         *time.Location
	Peak             Window
	Trading          Window
	PeakInterval     time.Duration
	TradingInterval  time.Duration
	OffHoursInterval time.Duration
	WeekendInterval  time.Duration
}

func DefaultConfig() Config {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return Config{
		Location:         loc,
		Peak:             Window{Start: 8 * 60, End: 10*60 + 30},
		Trading:          Window{Start: 4 * 60, End: 20 * 60},
		PeakInterval:     10 * time.Second,
		TradingInterval:  30 * time.Second,
		OffHoursInterval: 2 * time.Minute,
		WeekendInterval:  10 * time.Minute,
	}
}

// Interval picks the sleep after a cycle that ran at now.
func (c Config) Interval(now time.Time) time.Duration {
	local := now.In(c.Location)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return c.WeekendInterval
	}
	minute := local.Hour()*60 + local.Minute()
	switch {
	case c.Peak.contains(minute):
		return c.PeakInterval
	case c.Trading.contains(minute):
		return c.TradingInterval
	default:
		return c.OffHoursInterval
	}
}

// AdaptiveScheduler runs the job, sleeps the interval for the current time
// of day, and repeats. Cycles never overlap.
type AdaptiveScheduler struct {
	cfg        Config
	now        func() time.Time
	onInterval func(time.Duration)

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ ports.Scheduler = (*AdaptiveScheduler)(nil)

type Option func(*AdaptiveScheduler)

func WithClock(now func() time.Time) Option {
	return func(s *AdaptiveScheduler) { s.now = now }
}

// WithIntervalHook reports each chosen interval, e.g. to a gauge.
func WithIntervalHook(fn func(time.Duration)) Option {
	return func(s *AdaptiveScheduler) { s.onInterval = fn }
}

func NewAdaptiveScheduler(cfg Config, opts ...Option) *AdaptiveScheduler {
	def := DefaultConfig()
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.Peak == (Window{}) {
		cfg.Peak = def.Peak
	}
	if cfg.Trading == (Window{}) {
		cfg.Trading = def.Trading
	}
	if cfg.PeakInterval <= 0 {
		cfg.PeakInterval = def.PeakInterval
	}
	if cfg.TradingInterval <= 0 {
		cfg.TradingInterval = def.TradingInterval
	}
	if cfg.OffHoursInterval <= 0 {
		cfg.OffHoursInterval = def.OffHoursInterval
	}
	if cfg.WeekendInterval <= 0 {
		cfg.WeekendInterval = def.WeekendInterval
	}

	s := &AdaptiveScheduler{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the loop; the first cycle runs immediately.
func (s *AdaptiveScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return nil
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop, s.done = stop, done
	s.mu.Unlock()

	go func() {
		defer close(done)
		for {
			job(s.now())

			wait := s.cfg.Interval(s.now())
			if s.onInterval != nil {
				s.onInterval(wait)
			}

			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return
			case <-stop:
				timer.Stop()
				return
			}
		}
	}()

	return nil
}

// Stop halts the loop and waits for an in-flight cycle to finish or ctx to
// expire.
func (s *AdaptiveScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finished is closed when the running loop exits; nil when not started.
func (s *AdaptiveScheduler) finished() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}
