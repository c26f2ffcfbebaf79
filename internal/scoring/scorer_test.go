package scoring

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FilingScanner/internal/domain"
	"FilingScanner/internal/rules"
)

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := New(rules.MustDefault())
	require.NoError(t, err)
	return s
}

func eastern(t *testing.T, layout string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	at, err := time.ParseInLocation("2006-01-02 15:04", layout, loc)
	require.NoError(t, err)
	return at
}

func catalystSet() domain.SignalSet {
	var set domain.SignalSet
	set.Add(domain.Signal{Category: "Major Contract", Matches: []string{"purchase order"}})
	set.Add(domain.Signal{Category: "Revenue Growth", Matches: []string{"record revenue"}})
	return set
}

func TestScoreLowFloatCleanCatalyst(t *testing.T) {
	t.Parallel()
	s := newTestScorer(t)

	snap := domain.MarketSnapshot{
		Volume:        domain.KnownMetric(50_000, "fmp"),
		AverageVolume: domain.KnownMetric(10_000, "fmp"),
		Float:         domain.KnownMetric(2_000_000, "filing_text"),
	}
	// Tuesday late morning: regular session, no attention window
	b := s.Score(catalystSet(), snap, eastern(t, "2024-03-05 11:00"))

	assert.Equal(t, 1.0, b.VolumeScore)
	assert.Equal(t, 1.0, b.FloatScore)
	assert.Zero(t, b.RatioScore)
	assert.InDelta(t, 0.75, b.Base, 1e-9)

	m, ok := b.Multiplier(MultCleanCatalyst)
	require.True(t, ok, "clean catalyst bonus expected, got %+v", b.Multipliers)
	assert.Equal(t, 1.25, m.Value)

	_, ok = b.Multiplier(MultCategory)
	assert.False(t, ok, "catalyst categories carry no priority multiplier")

	assert.Greater(t, b.Composite, 0.5)
	assert.LessOrEqual(t, b.Composite, 1.0)
}

func TestDeathSpiralBlocksCleanCatalyst(t *testing.T) {
	t.Parallel()
	s := newTestScorer(t)

	set := catalystSet()
	set.Add(domain.Signal{Category: "Dilution", Matches: []string{"dilution"}})
	snap := domain.MarketSnapshot{Float: domain.KnownMetric(2_000_000, "fmp")}

	b := s.Score(set, snap, eastern(t, "2024-03-05 11:00"))
	_, ok := b.Multiplier(MultCleanCatalyst)
	assert.False(t, ok)

	m, ok := b.Multiplier(MultCategory)
	require.True(t, ok)
	assert.Equal(t, 1.15, m.Value)
}

func TestCategoryPriority(t *testing.T) {
	t.Parallel()
	s := newTestScorer(t)
	at := eastern(t, "2024-03-05 11:00")

	var set domain.SignalSet
	set.Add(domain.Signal{Category: "Artificial Inflation"})
	set.Add(domain.Signal{Category: "Going Concern"})
	set.Add(domain.Signal{Category: "Name Change"})

	m, ok := s.Score(set, domain.MarketSnapshot{}, at).Multiplier(MultCategory)
	require.True(t, ok)
	assert.Equal(t, 1.35, m.Value, "structural outranks distress and inflation")

	set.Distress = domain.DistressReport{Severity: 0.8}
	m, ok = s.Score(set, domain.MarketSnapshot{}, at).Multiplier(MultCategory)
	require.True(t, ok)
	assert.InDelta(t, 1.4, m.Value, 1e-9, "crisis severity outranks everything")
}

func TestCustodianOutranksGhost(t *testing.T) {
	t.Parallel()
	s := newTestScorer(t)
	at := eastern(t, "2024-03-05 11:00")

	var set domain.SignalSet
	set.Add(domain.Signal{Category: "Shell Company"})
	set.Add(domain.Signal{Category: domain.CategoryCustodianControl, Derived: "verified"})
	set.Custodian = domain.CustodianInfo{Bank: "Citibank, N.A.", Verified: true}

	b := s.Score(set, domain.MarketSnapshot{}, at)
	_, ok := b.Multiplier(MultCustodian)
	assert.True(t, ok)
	_, ok = b.Multiplier(MultGhost)
	assert.False(t, ok)

	set.Custodian.Verified = false
	b = s.Score(set, domain.MarketSnapshot{}, at)
	_, ok = b.Multiplier(MultCustodian)
	assert.False(t, ok)
	_, ok = b.Multiplier(MultGhost)
	assert.True(t, ok)
}

func TestTimeOfDayWindows(t *testing.T) {
	t.Parallel()
	s := newTestScorer(t)

	cases := map[string]struct {
		at   string
		want float64
		name string
	}{
		"open":       {"2024-03-05 09:45", 1.1, "open"},
		"close":      {"2024-03-05 15:30", 1.1, "close"},
		"premarket":  {"2024-03-05 07:00", 0.95, "premarket"},
		"afterhours": {"2024-03-05 17:00", 0.9, "afterhours"},
		"overnight":  {"2024-03-05 23:00", 0.85, "overnight"},
		"weekend":    {"2024-03-09 10:00", 0.85, "weekend"},
	}
	for name, tc := range cases {
		m, ok := s.Score(domain.SignalSet{}, domain.MarketSnapshot{}, eastern(t, tc.at)).Multiplier(MultTimeOfDay)
		require.True(t, ok, name)
		assert.Equal(t, tc.want, m.Value, name)
		assert.Equal(t, tc.name, m.Reason, name)
	}

	m, ok := s.Score(domain.SignalSet{}, domain.MarketSnapshot{}, eastern(t, "2024-03-05 21:00")).Multiplier(MultAttention)
	require.True(t, ok)
	assert.Equal(t, 1.1, m.Value)
}

func TestFormComboFirstMatch(t *testing.T) {
	t.Parallel()
	s := newTestScorer(t)

	var set domain.SignalSet
	set.FormType = "424B5"
	set.Financing = domain.FinancingATM
	set.Add(domain.Signal{Category: domain.CategoryOffering, Derived: "atm"})

	b := s.Score(set, domain.MarketSnapshot{}, eastern(t, "2024-03-05 11:00"))
	m, ok := b.Multiplier(MultFormCombo)
	require.True(t, ok)
	assert.Equal(t, 0.85, m.Value)
	m, ok = b.Multiplier(MultFinancing)
	require.True(t, ok)
	assert.Equal(t, 0.8, m.Value)
}

func TestCompositeStaysInBounds(t *testing.T) {
	t.Parallel()
	s := newTestScorer(t)
	table := rules.MustDefault()
	rng := rand.New(rand.NewSource(42))

	metric := func() domain.Metric {
		if rng.Intn(4) == 0 {
			return domain.Metric{}
		}
		return domain.KnownMetric(rng.Float64()*1e8+1, "test")
	}

	for i := 0; i < 2000; i++ {
		var set domain.SignalSet
		for _, c := range table.Categories {
			if rng.Intn(5) == 0 {
				set.Add(domain.Signal{Category: c.Name})
			}
		}
		set.Custodian.Verified = rng.Intn(2) == 0
		set.Distress.Severity = rng.Float64()
		set.Financing = []domain.FinancingType{"", "generic", "underwritten", "registered_direct", "atm"}[rng.Intn(5)]
		set.ItemCodes = []string{"1.01", "2.01", "5.03"}[:rng.Intn(4)]
		set.FormType = []string{"", "8-K", "6-K", "F-6", "424B3", "S-1"}[rng.Intn(6)]

		snap := domain.MarketSnapshot{
			Price:             metric(),
			Volume:            metric(),
			AverageVolume:     metric(),
			Float:             metric(),
			SharesOutstanding: metric(),
		}
		at := time.Unix(rng.Int63n(2_000_000_000), 0)

		b := s.Score(set, snap, at)
		require.GreaterOrEqual(t, b.Composite, 0.0)
		require.LessOrEqual(t, b.Composite, 1.0)
		require.Equal(t, b, s.Score(set, snap, at), "score must be reproducible")
	}
}
