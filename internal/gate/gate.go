// Package gate runs the ordered eligibility predicate chain that turns a
// scored filing into an accept or reject decision.
package gate

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"FilingScanner/internal/domain"
	"FilingScanner/internal/ports"
	"FilingScanner/internal/rules"
)

// Stage names, in evaluation order.
const (
	StageDocument            = "document"
	StageJurisdiction        = "jurisdiction"
	StageJurisdictionAllowed = "jurisdiction_allowed"
	StageFloatCeiling        = "float_ceiling"
	StageVolumeFloor         = "volume_floor"
	StageSignalStrength      = "signal_strength"
	StageDuplicate           = "duplicate"
	StageAccepted            = "accepted"
)

// Rejection reasons.
const (
	ReasonNoText            = "no filing text"
	ReasonUnknownJuris      = "unknown jurisdiction"
	ReasonJurisNotAllowed   = "jurisdiction not allowed"
	ReasonHighRisk          = "high-risk jurisdiction without extreme ratio or strong signal"
	ReasonNoFloatData       = "no float/shares data"
	ReasonFloatAboveCeiling = "float above ceiling"
	ReasonNoVolumeData      = "no volume data"
	ReasonVolumeBelowFloor  = "volume below floor"
	ReasonWeakSignal        = "weak signal"
	ReasonDuplicate         = "duplicate of previous alert"
	ReasonAccepted          = "accepted"
)

// Config carries every threshold of the chain.
type Config struct {
	AllowedJurisdictions  []string
	HighRiskJurisdictions []string
	// FloatCeilings maps a form-type prefix to its float ceiling; the longest
	// matching prefix wins.
	FloatCeilings       map[string]float64
	DefaultFloatCeiling float64
	VolumeFloor         float64
	LoweredVolumeFloor  float64
	VolumeBypassRatio   float64
	ExtremeRatioHigh    float64
	ExtremeRatioLow     float64
	HighScore           float64
	StrongVolumeScore   float64
	MinDistinctSignals  int
}

// DefaultConfig mirrors the production thresholds.
func DefaultConfig() Config {
	return Config{
		AllowedJurisdictions:  DefaultAllowedJurisdictions(),
		HighRiskJurisdictions: []string{"China", "Hong Kong"},
		FloatCeilings: map[string]float64{
			"8-K":  50_000_000,
			"6-K":  75_000_000,
			"F-6":  100_000_000,
			"S-1":  30_000_000,
			"F-1":  30_000_000,
			"424B": 30_000_000,
		},
		DefaultFloatCeiling: 50_000_000,
		VolumeFloor:         25_000,
		LoweredVolumeFloor:  5_000,
		VolumeBypassRatio:   3,
		ExtremeRatioHigh:    80,
		ExtremeRatioLow:     10,
		HighScore:           0.7,
		StrongVolumeScore:   0.8,
		MinDistinctSignals:  2,
	}
}

// DefaultAllowedJurisdictions lists the US states plus the common offshore
// and foreign-private-issuer domiciles.
func DefaultAllowedJurisdictions() []string {
	return []string{
		"Alabama", "Alaska", "Arizona", "Arkansas", "California", "Colorado", "Connecticut",
		"Delaware", "District of Columbia", "Florida", "Georgia", "Hawaii", "Idaho", "Illinois",
		"Indiana", "Iowa", "Kansas", "Kentucky", "Louisiana", "Maine", "Maryland", "Massachusetts",
		"Michigan", "Minnesota", "Mississippi", "Missouri", "Montana", "Nebraska", "Nevada",
		"New Hampshire", "New Jersey", "New Mexico", "New York", "North Carolina", "North Dakota",
		"Ohio", "Oklahoma", "Oregon", "Pennsylvania", "Rhode Island", "South Carolina",
		"South Dakota", "Tennessee", "Texas", "Utah", "Vermont", "Virginia", "Washington",
		"West Virginia", "Wisconsin", "Wyoming", "Puerto Rico", "United States",
		"Canada", "Israel", "United Kingdom", "Cayman Islands", "British Virgin Islands",
		"Bermuda", "Marshall Islands", "Ireland", "Netherlands", "Singapore", "Australia",
	}
}

// Gate is safe for concurrent use; the alert history is mutex-guarded.
type Gate struct {
	cfg      Config
	table    *rules.Table
	allowed  map[string]bool
	highRisk map[string]bool
	now      func() time.Time

	mu   sync.Mutex
	last map[string]string
}

var _ ports.Gate = (*Gate)(nil)

type Option func(*Gate)

// WithClock overrides the decision timestamp source.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

func New(cfg Config, table *rules.Table, opts ...Option) (*Gate, error) {
	if table == nil {
		return nil, fmt.Errorf("gate: rules table is nil")
	}
	if cfg.VolumeBypassRatio <= 0 {
		cfg.VolumeBypassRatio = 3
	}
	if cfg.MinDistinctSignals <= 0 {
		cfg.MinDistinctSignals = 2
	}
	g := &Gate{
		cfg:      cfg,
		table:    table,
		allowed:  normalizeSet(cfg.AllowedJurisdictions),
		highRisk: normalizeSet(cfg.HighRiskJurisdictions),
		now:      time.Now,
		last:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Evaluate runs the stages in order; the first failure decides. It does not
// touch the alert history: call Commit once the alert has been dispatched.
func (g *Gate) Evaluate(in domain.DecisionInputs) domain.GateDecision {
	decision := domain.GateDecision{Inputs: in, DecidedAt: g.now()}

	reject := func(stage, reason string) domain.GateDecision {
		decision.Stage = stage
		decision.Reason = reason
		return decision
	}

	if !in.Entity.Known() {
		return reject(StageJurisdiction, ReasonUnknownJuris)
	}
	if ok, reason := g.jurisdictionAllowed(in); !ok {
		return reject(StageJurisdictionAllowed, reason)
	}
	if ok, reason := g.floatWithinCeiling(in); !ok {
		return reject(StageFloatCeiling, reason)
	}
	if ok, reason := g.volumeAboveFloor(in); !ok {
		return reject(StageVolumeFloor, reason)
	}
	if !g.signalQualifies(in) {
		return reject(StageSignalStrength, ReasonWeakSignal)
	}
	if g.isDuplicate(in) {
		return reject(StageDuplicate, ReasonDuplicate)
	}

	decision.Accepted = true
	decision.Stage = StageAccepted
	decision.Reason = ReasonAccepted
	return decision
}

// Commit records an accepted decision as the latest alert for its ticker.
func (g *Gate) Commit(decision domain.GateDecision) {
	if !decision.Accepted {
		return
	}
	g.mu.Lock()
	g.last[historyKey(decision.Inputs)] = Fingerprint(decision.Inputs)
	g.mu.Unlock()
}

// Unscoreable builds the rejection for a filing whose text could not be fetched.
func (g *Gate) Unscoreable(in domain.DecisionInputs) domain.GateDecision {
	return domain.GateDecision{
		Stage:     StageDocument,
		Reason:    ReasonNoText,
		Inputs:    in,
		DecidedAt: g.now(),
	}
}

func (g *Gate) jurisdictionAllowed(in domain.DecisionInputs) (bool, string) {
	e := in.Entity
	if g.inSet(g.highRisk, e.Incorporation, e.IncorporationCode) || g.inSet(g.highRisk, e.Operation, e.OperationCode) {
		if g.extremeRatio(in.Snapshot) || g.strongSignal(in) {
			return true, ""
		}
		return false, ReasonHighRisk
	}
	if g.inSet(g.allowed, e.Incorporation, e.IncorporationCode) || g.inSet(g.allowed, e.Operation, e.OperationCode) {
		return true, ""
	}
	return false, ReasonJurisNotAllowed
}

func (g *Gate) floatWithinCeiling(in domain.DecisionInputs) (bool, string) {
	snap := in.Snapshot
	var effective float64
	switch {
	case snap.Float.Known:
		effective = snap.Float.Value
	case snap.SharesOutstanding.Known:
		effective = snap.SharesOutstanding.Value
	default:
		return false, ReasonNoFloatData
	}

	ceiling := g.ceilingFor(formType(in))
	if ceiling > 0 && effective > ceiling {
		return false, fmt.Sprintf("%s (%.0f > %.0f)", ReasonFloatAboveCeiling, effective, ceiling)
	}
	return true, ""
}

func (g *Gate) volumeAboveFloor(in domain.DecisionInputs) (bool, string) {
	snap := in.Snapshot
	if !snap.Volume.Known {
		return false, ReasonNoVolumeData
	}
	if ratio, ok := snap.VolumeRatio(); ok && ratio >= g.cfg.VolumeBypassRatio {
		return true, ""
	}

	floor := g.cfg.VolumeFloor
	if g.hasGroup(in.Signals, rules.GroupBiotech) || g.strongSignal(in) || g.extremeRatio(snap) {
		floor = g.cfg.LoweredVolumeFloor
	}
	if snap.Volume.Value < floor {
		return false, fmt.Sprintf("%s (%.0f < %.0f)", ReasonVolumeBelowFloor, snap.Volume.Value, floor)
	}
	return true, ""
}

// signalQualifies applies the alternative acceptance rules in order.
func (g *Gate) signalQualifies(in domain.DecisionInputs) bool {
	signals := in.Signals
	if g.hasAlwaysQualify(signals) {
		return true
	}
	if signals.Len() >= 1 && in.Score.Composite >= g.cfg.HighScore {
		return true
	}
	if signals.Len() >= 1 && in.Score.VolumeScore >= g.cfg.StrongVolumeScore {
		return true
	}

	neutral, directional := 0, 0
	for _, sig := range signals.Signals {
		if c, ok := g.table.Category(sig.Category); ok && c.Neutral() {
			neutral++
		} else {
			directional++
		}
	}
	if neutral >= 1 && directional >= 1 {
		return true
	}
	return directional >= g.cfg.MinDistinctSignals
}

func (g *Gate) isDuplicate(in domain.DecisionInputs) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	prev, ok := g.last[historyKey(in)]
	return ok && prev == Fingerprint(in)
}

func (g *Gate) strongSignal(in domain.DecisionInputs) bool {
	return in.Score.Composite >= g.cfg.HighScore || g.hasAlwaysQualify(in.Signals)
}

func (g *Gate) extremeRatio(snap domain.MarketSnapshot) bool {
	ratio, ok := snap.SORatio()
	if !ok {
		return false
	}
	return ratio >= g.cfg.ExtremeRatioHigh || ratio <= g.cfg.ExtremeRatioLow
}

func (g *Gate) hasAlwaysQualify(signals domain.SignalSet) bool {
	for _, sig := range signals.Signals {
		if c, ok := g.table.Category(sig.Category); ok && c.AlwaysQualify {
			return true
		}
	}
	return false
}

func (g *Gate) hasGroup(signals domain.SignalSet, group string) bool {
	for _, sig := range signals.Signals {
		if c, ok := g.table.Category(sig.Category); ok && c.Group == group {
			return true
		}
	}
	return false
}

func (g *Gate) ceilingFor(form string) float64 {
	form = strings.ToUpper(form)
	best, bestLen := g.cfg.DefaultFloatCeiling, -1
	for prefix, ceiling := range g.cfg.FloatCeilings {
		p := strings.ToUpper(prefix)
		if strings.HasPrefix(form, p) && len(p) > bestLen {
			best, bestLen = ceiling, len(p)
		}
	}
	return best
}

func (g *Gate) inSet(set map[string]bool, values ...string) bool {
	for _, v := range values {
		if v = normalize(v); v != "" && set[v] {
			return true
		}
	}
	return false
}

// Fingerprint identifies an alert's content: form type plus sorted categories.
func Fingerprint(in domain.DecisionInputs) string {
	return strings.ToUpper(formType(in)) + "|" + strings.Join(in.Signals.SortedCategories(), ",")
}

func historyKey(in domain.DecisionInputs) string {
	if in.Entity.HasTicker() {
		return "ticker:" + strings.ToUpper(strings.TrimSpace(in.Entity.Ticker))
	}
	return "cik:" + in.Entity.RegistrantID
}

func formType(in domain.DecisionInputs) string {
	if in.Filing.FormType != "" {
		return in.Filing.FormType
	}
	return in.Signals.FormType
}

func normalizeSet(list []string) map[string]bool {
	out := make(map[string]bool, len(list))
	for _, v := range list {
		if n := normalize(v); n != "" {
			out[n] = true
		}
	}
	return out
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
