package marketdata

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FilingScanner/internal/domain"
	"FilingScanner/internal/infrastructure/resilience"
	"FilingScanner/internal/ports"
)

type fakeProvider struct {
	name   string
	values map[domain.Field]float64
	err    error
	delay  time.Duration

	mu    sync.Mutex
	calls map[domain.Field]int
}

func newFake(name string, values map[domain.Field]float64) *fakeProvider {
	return &fakeProvider{name: name, values: values, calls: map[domain.Field]int{}}
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Fetch(ctx context.Context, field domain.Field, _ ports.MarketDataRequest) (float64, error) {
	f.mu.Lock()
	f.calls[field]++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if f.err != nil {
		return 0, f.err
	}
	v, ok := f.values[field]
	if !ok {
		return 0, ErrUnsupported
	}
	return v, nil
}

func (f *fakeProvider) callCount(field domain.Field) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[field]
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (r *recordingObserver) ProviderResult(provider, field, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = map[string]int{}
	}
	r.outcomes[provider+"/"+field+"/"+outcome]++
}

func priceChain(names ...string) Config {
	return Config{
		ProviderTimeout: 50 * time.Millisecond,
		Chains:          map[domain.Field][]string{domain.FieldPrice: names},
	}
}

func TestResolverStopsAtFirstValidValue(t *testing.T) {
	a := newFake("a", map[domain.Field]float64{domain.FieldPrice: 2.5})
	b := newFake("b", map[domain.Field]float64{domain.FieldPrice: 3})
	c := newFake("c", map[domain.Field]float64{domain.FieldPrice: 4})

	r := NewResolver(priceChain("a", "b", "c"), []Provider{a, b, c}, nil)
	snap := r.Resolve(context.Background(), ports.MarketDataRequest{Ticker: "ACME"})

	assert.Equal(t, domain.KnownMetric(2.5, "a"), snap.Price)
	assert.Equal(t, 1, a.callCount(domain.FieldPrice))
	assert.Equal(t, 0, b.callCount(domain.FieldPrice))
	assert.Equal(t, 0, c.callCount(domain.FieldPrice))
}

func TestResolverFallsThroughInvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		value float64
	}{
		{name: "zero", value: 0},
		{name: "negative", value: -1},
		{name: "nan", value: math.NaN()},
		{name: "inf", value: math.Inf(1)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bad := newFake("bad", map[domain.Field]float64{domain.FieldPrice: tc.value})
			good := newFake("good", map[domain.Field]float64{domain.FieldPrice: 1.75})
			obs := &recordingObserver{}

			r := NewResolver(priceChain("bad", "good"), []Provider{bad, good}, nil, WithObserver(obs))
			snap := r.Resolve(context.Background(), ports.MarketDataRequest{Ticker: "ACME"})

			assert.Equal(t, domain.KnownMetric(1.75, "good"), snap.Price)
			assert.Equal(t, 1, obs.outcomes["bad/price/invalid"])
			assert.Equal(t, 1, obs.outcomes["good/price/ok"])
		})
	}
}

func TestResolverErrorsAndTimeoutsFallThrough(t *testing.T) {
	failing := newFake("failing", nil)
	failing.err = errors.New("boom")
	slow := newFake("slow", map[domain.Field]float64{domain.FieldPrice: 9})
	slow.delay = time.Second
	last := newFake("last", map[domain.Field]float64{domain.FieldPrice: 4.2})

	r := NewResolver(priceChain("failing", "missing", "slow", "last"), []Provider{failing, slow, last}, nil)

	start := time.Now()
	snap := r.Resolve(context.Background(), ports.MarketDataRequest{Ticker: "ACME"})

	assert.Equal(t, domain.KnownMetric(4.2, "last"), snap.Price)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestResolverExhaustedChainLeavesFieldUnknown(t *testing.T) {
	none := newFake("none", map[domain.Field]float64{})
	r := NewResolver(priceChain("none"), []Provider{none}, nil)

	snap := r.Resolve(context.Background(), ports.MarketDataRequest{Ticker: "ACME"})

	assert.False(t, snap.Price.Known)
	assert.False(t, snap.Float.Known)
	assert.False(t, snap.SharesOutstanding.Known)
	assert.Equal(t, domain.Fields, Unresolved(snap))
}

func TestResolverBreakerSkipsFailingProvider(t *testing.T) {
	failing := newFake("failing", nil)
	failing.err = errors.New("down")
	backup := newFake("backup", map[domain.Field]float64{domain.FieldPrice: 1})

	exec := resilience.NewExecutor(resilience.Config{
		MaxAttempts:         1,
		AttemptTimeout:      50 * time.Millisecond,
		BreakerEnabled:      true,
		BreakerMinRequests:  2,
		BreakerFailureRatio: 0.5,
		BreakerOpenTimeout:  time.Minute,
	}, nil)
	r := NewResolver(priceChain("failing", "backup"), []Provider{failing, backup}, nil, WithExecutor(exec))

	for i := 0; i < 5; i++ {
		snap := r.Resolve(context.Background(), ports.MarketDataRequest{Ticker: "ACME"})
		require.True(t, snap.Price.Known)
		assert.Equal(t, "backup", snap.Price.Source)
	}
	assert.Equal(t, 2, failing.callCount(domain.FieldPrice))
}

func TestResolverResolvesEveryField(t *testing.T) {
	fmp := newFake("fmp", map[domain.Field]float64{
		domain.FieldPrice:             1.2,
		domain.FieldVolume:            500000,
		domain.FieldAverageVolume:     100000,
		domain.FieldSharesOutstanding: 8000000,
	})
	text := newFake("filing_text", map[domain.Field]float64{domain.FieldFloat: 3000000})

	r := NewResolver(Config{}, []Provider{fmp, text}, nil)
	snap := r.Resolve(context.Background(), ports.MarketDataRequest{Ticker: "ACME"})

	assert.Equal(t, "fmp", snap.Price.Source)
	assert.Equal(t, 500000.0, snap.Volume.Value)
	assert.Equal(t, 100000.0, snap.AverageVolume.Value)
	assert.Equal(t, domain.KnownMetric(3000000, "filing_text"), snap.Float)
	assert.Equal(t, 8000000.0, snap.SharesOutstanding.Value)
	assert.Equal(t, 0, fmp.callCount(domain.FieldFloat))
	assert.Empty(t, Unresolved(snap))
}

func TestChainsFromConfig(t *testing.T) {
	chains := ChainsFromConfig(map[string][]string{
		"price":   {" Polygon ", ""},
		"volume":  {},
		"unknown": {"fmp"},
	})

	assert.Equal(t, []string{"polygon"}, chains[domain.FieldPrice])
	assert.Equal(t, DefaultChains()[domain.FieldVolume], chains[domain.FieldVolume])
	assert.Len(t, chains, len(domain.Fields))
}
