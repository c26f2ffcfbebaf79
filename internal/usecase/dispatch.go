package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"FilingScanner/internal/domain"
	"FilingScanner/internal/ports"
)

// DispatchObserver counts deliveries per sink.
type DispatchObserver interface {
	DispatchResult(sink string, err error)
}

// Sink is one named alert destination.
type Sink struct {
	Name       string
	Dispatcher ports.AlertDispatcher
}

// Fanout delivers every alert to each sink in order. Sink failures are
// logged and counted, never returned.
type Fanout struct {
	sinks    []Sink
	observer DispatchObserver
	logger   *slog.Logger
}

var _ ports.AlertDispatcher = (*Fanout)(nil)

func NewFanout(logger *slog.Logger, observer DispatchObserver, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	var active []Sink
	for _, s := range sinks {
		if s.Dispatcher != nil {
			active = append(active, s)
		}
	}
	return &Fanout{sinks: active, observer: observer, logger: logger}
}

func (f *Fanout) Dispatch(ctx context.Context, alert domain.Alert) error {
	for _, sink := range f.sinks {
		err := sink.Dispatcher.Dispatch(ctx, alert)
		if f.observer != nil {
			f.observer.DispatchResult(sink.Name, err)
		}
		if err != nil {
			f.logger.Warn("alert sink failed", "sink", sink.Name, "alert", alert.ID, "ticker", alert.Ticker(), "error", err)
		}
	}
	return nil
}

// Sinks lists the active sink names.
func (f *Fanout) Sinks() []string {
	names := make([]string, 0, len(f.sinks))
	for _, s := range f.sinks {
		names = append(names, s.Name)
	}
	return names
}

// LogDispatcher writes accepted alerts as structured log lines.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(_ context.Context, alert domain.Alert) error {
	in := alert.Decision.Inputs
	d.logger.Info("alert",
		"id", alert.ID,
		"ticker", alert.Ticker(),
		"form", in.Signals.FormType,
		"categories", strings.Join(in.Signals.Categories(), ","),
		"composite", in.Score.Composite,
		"price", in.Snapshot.Price.Value,
		"url", in.Filing.DocumentURL,
	)
	return nil
}

// NotifierDispatcher renders alerts as chat text.
type NotifierDispatcher struct {
	notifier ports.Notifier
}

func NewNotifierDispatcher(n ports.Notifier) *NotifierDispatcher {
	return &NotifierDispatcher{notifier: n}
}

func (d *NotifierDispatcher) Dispatch(ctx context.Context, alert domain.Alert) error {
	return d.notifier.Publish(ctx, FormatAlert(alert))
}

// RepositoryDispatcher persists alerts.
type RepositoryDispatcher struct {
	repo ports.AlertRepository
}

func NewRepositoryDispatcher(repo ports.AlertRepository) *RepositoryDispatcher {
	return &RepositoryDispatcher{repo: repo}
}

func (d *RepositoryDispatcher) Dispatch(ctx context.Context, alert domain.Alert) error {
	return d.repo.SaveAlert(ctx, alert)
}

// FormatAlert builds the plain-text summary sent to chat channels.
func FormatAlert(alert domain.Alert) string {
	in := alert.Decision.Inputs

	var b strings.Builder
	ticker := alert.Ticker()
	if ticker == "" {
		ticker = in.Entity.RegistrantID
	}
	fmt.Fprintf(&b, "%s %s - %s\n", ticker, in.Signals.FormType, in.Entity.DisplayName)
	fmt.Fprintf(&b, "Score: %.2f\n", in.Score.Composite)

	if cats := in.Signals.Categories(); len(cats) > 0 {
		fmt.Fprintf(&b, "Signals: %s\n", strings.Join(cats, ", "))
	}
	if in.Signals.Ratio != "" {
		fmt.Fprintf(&b, "Split: %s\n", in.Signals.Ratio)
	}

	snap := in.Snapshot
	if snap.Price.Known {
		fmt.Fprintf(&b, "Price: $%.4g", snap.Price.Value)
		if ratio, ok := snap.VolumeRatio(); ok {
			fmt.Fprintf(&b, " | Vol %.1fx avg", ratio)
		}
		b.WriteString("\n")
	}
	if snap.Float.Known {
		fmt.Fprintf(&b, "Float: %s", humanShares(snap.Float.Value))
		if so, ok := snap.SORatio(); ok {
			fmt.Fprintf(&b, " (%.0f%% of O/S)", so)
		}
		b.WriteString("\n")
	}

	jurisdiction := in.Entity.Incorporation
	if in.Entity.Operation != "" && in.Entity.Operation != jurisdiction {
		jurisdiction = strings.Trim(jurisdiction+" / "+in.Entity.Operation, " /")
	}
	if jurisdiction != "" {
		fmt.Fprintf(&b, "Jurisdiction: %s\n", jurisdiction)
	}
	b.WriteString(in.Filing.DocumentURL)
	return b.String()
}

func humanShares(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}
