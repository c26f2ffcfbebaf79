// Package metrics exposes scanner counters on a private Prometheus registry.
// A nil *Scanner is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Scanner struct {
	registry *prometheus.Registry

	cyclesTotal     prometheus.Counter
	candidatesTotal prometheus.Counter
	decisionsTotal  *prometheus.CounterVec
	providerTotal   *prometheus.CounterVec
	dispatchTotal   *prometheus.CounterVec
	filingDuration  *prometheus.HistogramVec
	pollInterval    prometheus.Gauge
}

func NewScanner() *Scanner {
	registry := prometheus.NewRegistry()

	cyclesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "filingscanner",
			Subsystem: "poller",
			Name:      "cycles_total",
			Help:      "Completed poll cycles.",
		},
	)
	candidatesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "filingscanner",
			Subsystem: "poller",
			Name:      "candidates_total",
			Help:      "Filing references returned by the feeds after freshness filtering.",
		},
	)
	decisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filingscanner",
			Subsystem: "gate",
			Name:      "decisions_total",
			Help:      "Gate decisions by deciding stage.",
		},
		[]string{"stage"},
	)
	providerTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filingscanner",
			Subsystem: "marketdata",
			Name:      "provider_results_total",
			Help:      "Market data provider calls by outcome.",
		},
		[]string{"provider", "field", "outcome"},
	)
	dispatchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filingscanner",
			Subsystem: "alerts",
			Name:      "dispatch_total",
			Help:      "Alert deliveries by sink and status.",
		},
		[]string{"sink", "status"},
	)
	filingDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "filingscanner",
			Subsystem: "pipeline",
			Name:      "filing_duration_seconds",
			Help:      "Time spent processing one filing, by outcome.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"outcome"},
	)
	pollInterval := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "filingscanner",
			Subsystem: "scheduler",
			Name:      "poll_interval_seconds",
			Help:      "Currently selected sleep between cycles.",
		},
	)

	registry.MustRegister(cyclesTotal, candidatesTotal, decisionsTotal, providerTotal, dispatchTotal, filingDuration, pollInterval)

	return &Scanner{
		registry:        registry,
		cyclesTotal:     cyclesTotal,
		candidatesTotal: candidatesTotal,
		decisionsTotal:  decisionsTotal,
		providerTotal:   providerTotal,
		dispatchTotal:   dispatchTotal,
		filingDuration:  filingDuration,
		pollInterval:    pollInterval,
	}
}

func (m *Scanner) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *Scanner) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Scanner) CycleCompleted(candidates int) {
	if m == nil {
		return
	}
	m.cyclesTotal.Inc()
	m.candidatesTotal.Add(float64(candidates))
}

func (m *Scanner) Decision(stage string) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(stage).Inc()
}

func (m *Scanner) ProviderResult(provider, field, outcome string) {
	if m == nil {
		return
	}
	m.providerTotal.WithLabelValues(provider, field, outcome).Inc()
}

func (m *Scanner) DispatchResult(sink string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dispatchTotal.WithLabelValues(sink, status).Inc()
}

func (m *Scanner) ObserveFiling(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.filingDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Scanner) SetPollInterval(d time.Duration) {
	if m == nil {
		return
	}
	m.pollInterval.Set(d.Seconds())
}
