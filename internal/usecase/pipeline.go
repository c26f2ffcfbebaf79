package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"FilingScanner/internal/domain"
	"FilingScanner/internal/ports"
)

// Observer receives pipeline counters; *metrics.Scanner satisfies it.
type Observer interface {
	CycleCompleted(candidates int)
	Decision(stage string)
	ObserveFiling(outcome string, d time.Duration)
}

// Resetter is implemented by per-cycle caches.
type Resetter interface {
	Reset()
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.FilingSource
	Dedup      ports.DedupStore
	Fetcher    ports.DocumentFetcher
	Entities   ports.EntityResolver
	Extractor  ports.SignalExtractor
	MarketData ports.MarketDataResolver
	Scorer     ports.Scorer
	Gate       ports.Gate
	Dispatcher ports.AlertDispatcher
	CycleCache Resetter
	Observer   Observer
	Logger     *slog.Logger
	Clock      func() time.Time
}

// Pipeline runs poll, fetch, extract, resolve, score and gate for each
// candidate filing.
type Pipeline struct {
	source     ports.FilingSource
	dedup      ports.DedupStore
	fetcher    ports.DocumentFetcher
	entities   ports.EntityResolver
	extractor  ports.SignalExtractor
	marketData ports.MarketDataResolver
	scorer     ports.Scorer
	gate       ports.Gate
	dispatcher ports.AlertDispatcher
	cycleCache Resetter
	observer   Observer
	logger     *slog.Logger
	now        func() time.Time
}

// CycleReport summarizes one poll cycle.
type CycleReport struct {
	Candidates int
	Skipped    int
	Accepted   int
	Rejected   int
	Failed     int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Pipeline{
		source:     deps.Source,
		dedup:      deps.Dedup,
		fetcher:    deps.Fetcher,
		entities:   deps.Entities,
		extractor:  deps.Extractor,
		marketData: deps.MarketData,
		scorer:     deps.Scorer,
		gate:       deps.Gate,
		dispatcher: deps.Dispatcher,
		cycleCache: deps.CycleCache,
		observer:   deps.Observer,
		logger:     logger,
		now:        clock,
	}
}

// RunCycle polls once and processes candidates sequentially. A failing
// filing is logged and counted; it never aborts the cycle.
func (p *Pipeline) RunCycle(ctx context.Context, trigger time.Time) CycleReport {
	var report CycleReport
	if p.source == nil {
		return report
	}
	if p.cycleCache != nil {
		p.cycleCache.Reset()
	}

	refs := p.source.Poll(ctx, trigger)
	report.Candidates = len(refs)

	for _, ref := range refs {
		if ctx.Err() != nil {
			break
		}

		start := p.now()
		decision, processed, err := p.ProcessFiling(ctx, ref)
		outcome := "rejected"
		switch {
		case err != nil:
			report.Failed++
			outcome = "failed"
			p.logger.Error("filing failed", "title", ref.Title, "url", ref.DocumentURL, "error", err)
		case !processed:
			report.Skipped++
			continue
		case decision.Accepted:
			report.Accepted++
			outcome = "accepted"
		default:
			report.Rejected++
		}
		if p.observer != nil {
			p.observer.ObserveFiling(outcome, p.now().Sub(start))
		}
	}

	if p.observer != nil {
		p.observer.CycleCompleted(report.Candidates)
	}
	p.logger.Info("cycle complete",
		"candidates", report.Candidates,
		"skipped", report.Skipped,
		"accepted", report.Accepted,
		"rejected", report.Rejected,
		"failed", report.Failed,
	)
	return report
}

// ProcessFiling runs one reference to a gate decision. processed is false
// when the reference was already seen. Panics are recovered into err.
func (p *Pipeline) ProcessFiling(ctx context.Context, ref domain.FilingReference) (decision domain.GateDecision, processed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing %s: %v", ref.DocumentURL, r)
		}
	}()

	if p.dedup != nil && p.dedup.SeenOrRecord(ref.Key(), p.now()) {
		p.logger.Debug("filing already seen", "title", ref.Title)
		return decision, false, nil
	}

	in := domain.DecisionInputs{Filing: ref}

	text, fetchErr := p.fetcher.FetchText(ctx, ref)
	if fetchErr != nil || strings.TrimSpace(text) == "" {
		if fetchErr != nil {
			p.logger.Warn("filing text unavailable", "url", ref.DocumentURL, "error", fetchErr)
		}
		decision = p.gate.Unscoreable(in)
		p.record(decision)
		return decision, true, nil
	}

	var (
		entity  domain.EntityInfo
		signals domain.SignalSet
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic resolving entity %s: %v", ref.RegistrantID, r)
			}
		}()
		entity = p.entities.Resolve(gctx, ref.RegistrantID)
		return nil
	})
	signals = p.extractor.Extract(text)
	if err := g.Wait(); err != nil {
		return decision, true, err
	}

	if ref.FormType != "" {
		signals.FormType = ref.FormType
	}

	snapshot := p.marketData.Resolve(ctx, ports.MarketDataRequest{
		Ticker:       entity.Ticker,
		RegistrantID: ref.RegistrantID,
		Text:         text,
	})
	score := p.scorer.Score(signals, snapshot, p.now())

	in.Entity = entity
	in.Signals = signals
	in.Snapshot = snapshot
	in.Score = score

	decision = p.gate.Evaluate(in)
	p.record(decision)

	if decision.Accepted {
		alert := domain.Alert{
			ID:        uuid.NewString(),
			Decision:  decision,
			CreatedAt: p.now(),
		}
		if p.dispatcher != nil {
			if err := p.dispatcher.Dispatch(ctx, alert); err != nil {
				p.logger.Warn("alert dispatch failed", "ticker", alert.Ticker(), "error", err)
			}
		}
		p.gate.Commit(decision)
	}
	return decision, true, nil
}

func (p *Pipeline) record(decision domain.GateDecision) {
	if p.observer != nil {
		p.observer.Decision(decision.Stage)
	}
	p.logger.Info("gate decision",
		"title", decision.Inputs.Filing.Title,
		"ticker", decision.Inputs.Entity.Ticker,
		"stage", decision.Stage,
		"accepted", decision.Accepted,
		"reason", decision.Reason,
		"composite", decision.Inputs.Score.Composite,
	)
}
