package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Scanner) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	return rec.Body.String()
}

func TestScannerCounters(t *testing.T) {
	m := NewScanner()

	m.CycleCompleted(3)
	m.CycleCompleted(2)
	m.Decision("accepted")
	m.Decision("float_ceiling")
	m.Decision("float_ceiling")
	m.ProviderResult("fmp", "price", "ok")
	m.DispatchResult("telegram", errors.New("down"))
	m.ObserveFiling("rejected", 200*time.Millisecond)
	m.SetPollInterval(30 * time.Second)

	body := scrape(t, m)
	for _, want := range []string{
		"filingscanner_poller_cycles_total 2",
		"filingscanner_poller_candidates_total 5",
		`filingscanner_gate_decisions_total{stage="float_ceiling"} 2`,
		`filingscanner_marketdata_provider_results_total{field="price",outcome="ok",provider="fmp"} 1`,
		`filingscanner_alerts_dispatch_total{sink="telegram",status="error"} 1`,
		`filingscanner_pipeline_filing_duration_seconds_count{outcome="rejected"} 1`,
		"filingscanner_scheduler_poll_interval_seconds 30",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in exposition:\n%s", want, body)
		}
	}
}

func TestNilScannerIsNoop(t *testing.T) {
	var m *Scanner
	m.CycleCompleted(1)
	m.Decision("accepted")
	m.ProviderResult("fmp", "price", "ok")
	m.DispatchResult("log", nil)
	m.ObserveFiling("accepted", time.Second)
	m.SetPollInterval(time.Second)
	if m.Registry() != nil {
		t.Fatal("nil metrics should have no registry")
	}
}
