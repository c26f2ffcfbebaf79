// Package marketdata resolves price, volume and share counts through ordered
// provider chains. The first valid value stops a chain; anything else falls
// through to the next provider.
package marketdata

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"FilingScanner/internal/domain"
	"FilingScanner/internal/infrastructure/resilience"
	"FilingScanner/internal/ports"
)

const DefaultProviderTimeout = 8 * time.Second

var (
	// ErrUnsupported means the provider has no endpoint for the field.
	ErrUnsupported = errors.New("marketdata: field not supported")
	// ErrNoData means the provider answered without a usable value.
	ErrNoData = errors.New("marketdata: no data")
)

// Provider fetches one field for one request.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, field domain.Field, req ports.MarketDataRequest) (float64, error)
}

// Observer receives one outcome per provider call.
type Observer interface {
	ProviderResult(provider, field, outcome string)
}

// DefaultChains is the built-in provider order per field.
func DefaultChains() map[domain.Field][]string {
	return map[domain.Field][]string{
		domain.FieldPrice:             {"finnhub", "fmp", "polygon"},
		domain.FieldVolume:            {"fmp", "polygon"},
		domain.FieldAverageVolume:     {"fmp", "finnhub"},
		domain.FieldFloat:             {"filing_text", "fmp"},
		domain.FieldSharesOutstanding: {"fmp", "finnhub", "polygon", "sec_xbrl", "filing_text"},
	}
}

// ChainsFromConfig overlays configured chains on the defaults. Unknown field
// names are ignored; an empty list keeps the default.
func ChainsFromConfig(raw map[string][]string) map[domain.Field][]string {
	chains := DefaultChains()
	for _, f := range domain.Fields {
		names := raw[string(f)]
		if len(names) == 0 {
			continue
		}
		chain := make([]string, 0, len(names))
		for _, n := range names {
			if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
				chain = append(chain, n)
			}
		}
		if len(chain) > 0 {
			chains[f] = chain
		}
	}
	return chains
}

type Config struct {
	ProviderTimeout time.Duration
	Chains          map[domain.Field][]string
}

type Resolver struct {
	providers map[string]Provider
	chains    map[domain.Field][]string
	executor  *resilience.Executor
	observer  Observer
	logger    *slog.Logger
}

var _ ports.MarketDataResolver = (*Resolver)(nil)

type Option func(*Resolver)

// WithExecutor replaces the default single-attempt, breaker-guarded executor.
func WithExecutor(e *resilience.Executor) Option {
	return func(r *Resolver) { r.executor = e }
}

func WithObserver(o Observer) Option {
	return func(r *Resolver) { r.observer = o }
}

func NewResolver(cfg Config, providers []Provider, logger *slog.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = DefaultProviderTimeout
	}
	if len(cfg.Chains) == 0 {
		cfg.Chains = DefaultChains()
	}

	r := &Resolver{
		providers: make(map[string]Provider, len(providers)),
		chains:    cfg.Chains,
		logger:    logger,
	}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.executor == nil {
		r.executor = resilience.NewExecutor(resilience.Config{
			MaxAttempts:    1,
			AttemptTimeout: cfg.ProviderTimeout,
			BreakerEnabled: true,
		}, logger)
	}
	return r
}

// Resolve fills every field concurrently. It never fails; unresolved fields
// stay unknown.
func (r *Resolver) Resolve(ctx context.Context, req ports.MarketDataRequest) domain.MarketSnapshot {
	var (
		mu   sync.Mutex
		snap domain.MarketSnapshot
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, field := range domain.Fields {
		field := field
		chain := r.chains[field]
		g.Go(func() error {
			metric := r.resolveField(gctx, field, chain, req)
			mu.Lock()
			snap.Set(field, metric)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if missing := Unresolved(snap); len(missing) > 0 {
		r.logger.Debug("market fields unresolved", "ticker", req.Ticker, "fields", missing)
	}
	return snap
}

// Unresolved lists the snapshot fields no provider could fill.
func Unresolved(snap domain.MarketSnapshot) []domain.Field {
	var out []domain.Field
	for _, f := range domain.Fields {
		if !snap.Get(f).Known {
			out = append(out, f)
		}
	}
	return out
}

func (r *Resolver) resolveField(ctx context.Context, field domain.Field, chain []string, req ports.MarketDataRequest) domain.Metric {
	for _, name := range chain {
		provider, ok := r.providers[name]
		if !ok {
			continue
		}

		var value float64
		err := r.executor.Execute(ctx, "marketdata."+name, func(ctx context.Context) error {
			v, err := provider.Fetch(ctx, field, req)
			if err != nil {
				return err
			}
			value = v
			return nil
		}, classify)

		outcome := "ok"
		switch {
		case errors.Is(err, ErrUnsupported):
			outcome = "unsupported"
		case errors.Is(err, ErrNoData):
			outcome = "no_data"
		case resilience.IsCircuitOpen(err):
			outcome = "circuit_open"
		case err != nil:
			outcome = "error"
			r.logger.Debug("provider failed", "provider", name, "field", field, "ticker", req.Ticker, "error", err)
		case !valid(value):
			outcome = "invalid"
		}
		r.observe(name, field, outcome)

		if outcome == "ok" {
			return domain.KnownMetric(value, name)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return domain.Metric{}
}

func (r *Resolver) observe(provider string, field domain.Field, outcome string) {
	if r.observer != nil {
		r.observer.ProviderResult(provider, string(field), outcome)
	}
}

// classify keeps "nothing to report" answers out of the breaker counts.
func classify(err error) resilience.ErrorClassification {
	if errors.Is(err, ErrUnsupported) || errors.Is(err, ErrNoData) {
		return resilience.ErrorClassification{}
	}
	return resilience.NoRetryClassifier(err)
}

func valid(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
