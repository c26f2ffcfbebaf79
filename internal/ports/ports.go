package ports

import (
	"context"
	"time"

	"FilingScanner/internal/domain"
)

// FilingSource polls the registry feeds for fresh filing references.
// Implementations never fail a cycle: errors are logged and yield no entries.
type FilingSource interface {
	Poll(ctx context.Context, now time.Time) []domain.FilingReference
}

// DocumentFetcher resolves a filing reference to combined plain text.
type DocumentFetcher interface {
	FetchText(ctx context.Context, ref domain.FilingReference) (string, error)
}

// EntityResolver maps a registrant identifier to ticker and jurisdictions.
type EntityResolver interface {
	Resolve(ctx context.Context, registrantID string) domain.EntityInfo
}

// SignalExtractor turns filing text into categorized signals.
type SignalExtractor interface {
	Extract(text string) domain.SignalSet
}

// MarketDataResolver builds a market snapshot for a ticker.
type MarketDataResolver interface {
	Resolve(ctx context.Context, req MarketDataRequest) domain.MarketSnapshot
}

// MarketDataRequest carries everything a provider may need.
type MarketDataRequest struct {
	Ticker       string
	RegistrantID string
	Text         string
}

// Scorer combines signals and market data into a composite score.
type Scorer interface {
	Score(signals domain.SignalSet, snapshot domain.MarketSnapshot, at time.Time) domain.ScoreBreakdown
}

// DedupStore remembers filing identities across cycles.
type DedupStore interface {
	SeenOrRecord(key domain.DedupKey, at time.Time) bool
}

// Gate runs the eligibility predicate chain.
type Gate interface {
	Evaluate(in domain.DecisionInputs) domain.GateDecision
	// Unscoreable rejects a filing whose text could not be obtained.
	Unscoreable(in domain.DecisionInputs) domain.GateDecision
	Commit(decision domain.GateDecision)
}

// AlertDispatcher receives accepted decisions; it owns persistence and delivery.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, alert domain.Alert) error
}

// AlertRepository persists alerts for history and audit.
type AlertRepository interface {
	SaveAlert(ctx context.Context, alert domain.Alert) error
}

// Notifier streams alert messages to a chat channel.
type Notifier interface {
	Publish(ctx context.Context, message string) error
}

// Scheduler controls when pipeline cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
