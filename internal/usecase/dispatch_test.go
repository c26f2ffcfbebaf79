package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FilingScanner/internal/domain"
)

type resultLog struct {
	results map[string]int
}

func (r *resultLog) DispatchResult(sink string, err error) {
	if r.results == nil {
		r.results = map[string]int{}
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.results[sink+"/"+status]++
}

type textNotifier struct{ messages []string }

func (n *textNotifier) Publish(_ context.Context, message string) error {
	n.messages = append(n.messages, message)
	return nil
}

func sampleAlert() domain.Alert {
	var set domain.SignalSet
	set.Add(domain.Signal{Category: domain.CategoryArtificialInflation, Derived: "1-for-25"})
	set.FormType = "8-K"
	set.Ratio = "1-for-25"

	return domain.Alert{
		ID: "a-1",
		Decision: domain.GateDecision{
			Accepted: true,
			Inputs: domain.DecisionInputs{
				Filing:   domain.FilingReference{DocumentURL: "https://www.sec.gov/x-index.htm"},
				Entity:   domain.EntityInfo{Ticker: "ACME", DisplayName: "ACME CORP", Incorporation: "Nevada", Operation: "China"},
				Signals:  set,
				Snapshot: acmeMarket,
				Score:    domain.ScoreBreakdown{Composite: 0.83},
			},
		},
	}
}

func TestFanoutDeliversToEverySinkDespiteFailures(t *testing.T) {
	failing := &recordingDispatcher{err: errors.New("down")}
	healthy := &recordingDispatcher{}
	results := &resultLog{}

	fan := NewFanout(quietLog, results,
		Sink{Name: "broken", Dispatcher: failing},
		Sink{Name: "disabled"},
		Sink{Name: "healthy", Dispatcher: healthy},
	)

	err := fan.Dispatch(context.Background(), sampleAlert())
	require.NoError(t, err)

	assert.Len(t, failing.alerts, 1)
	assert.Len(t, healthy.alerts, 1)
	assert.Equal(t, []string{"broken", "healthy"}, fan.Sinks())
	assert.Equal(t, 1, results.results["broken/error"])
	assert.Equal(t, 1, results.results["healthy/ok"])
}

func TestNotifierDispatcherFormatsAlert(t *testing.T) {
	n := &textNotifier{}
	require.NoError(t, NewNotifierDispatcher(n).Dispatch(context.Background(), sampleAlert()))
	require.Len(t, n.messages, 1)

	msg := n.messages[0]
	for _, want := range []string{
		"ACME 8-K - ACME CORP",
		"Score: 0.83",
		"Signals: Artificial Inflation",
		"Split: 1-for-25",
		"Vol 5.0x avg",
		"Float: 3.00M (75% of O/S)",
		"Jurisdiction: Nevada / China",
		"https://www.sec.gov/x-index.htm",
	} {
		assert.True(t, strings.Contains(msg, want), "missing %q in %q", want, msg)
	}
}

func TestLogDispatcherNeverFails(t *testing.T) {
	assert.NoError(t, NewLogDispatcher(quietLog).Dispatch(context.Background(), sampleAlert()))
}
