// Package scoring combines extracted signals and market data into a bounded
// composite score. The scorer is a pure function of its inputs and the rules
// table: the same signals, snapshot and timestamp always give the same result.
package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"FilingScanner/internal/domain"
	"FilingScanner/internal/ports"
	"FilingScanner/internal/rules"
)

// Multiplier names recorded in the breakdown.
const (
	MultCategory       = "category"
	MultCustodian      = "custodian_control"
	MultGhost          = "ghost_company"
	MultFloatTightness = "float_tightness"
	MultFinancing      = "financing"
	MultMergerRebrand  = "merger_rebrand"
	MultItemContext    = "item_context"
	MultCleanCatalyst  = "clean_catalyst"
	MultFormCombo      = "form_combo"
	MultTimeOfDay      = "time_of_day"
	MultAttention      = "attention"
)

type Scorer struct {
	table *rules.Table
	cfg   rules.Scoring
	loc   *time.Location
}

var _ ports.Scorer = (*Scorer)(nil)

// New binds a scorer to a validated rules table.
func New(table *rules.Table) (*Scorer, error) {
	if table == nil {
		return nil, fmt.Errorf("scoring: rules table is nil")
	}
	loc, err := time.LoadLocation(table.Scoring.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scoring: load timezone %q: %w", table.Scoring.Timezone, err)
	}
	return &Scorer{table: table, cfg: table.Scoring, loc: loc}, nil
}

// Score computes the weighted base and applies every multiplier whose
// precondition holds. The composite is clamped to [0,1].
func (s *Scorer) Score(signals domain.SignalSet, snap domain.MarketSnapshot, at time.Time) domain.ScoreBreakdown {
	var b domain.ScoreBreakdown

	if ratio, ok := snap.VolumeRatio(); ok {
		b.VolumeScore = stepAtLeast(s.cfg.VolumeSteps, ratio)
	}
	if snap.Float.Known {
		b.FloatScore = stepAtMost(s.cfg.FloatSteps, snap.Float.Value)
	}
	if ratio, ok := snap.SORatio(); ok {
		b.RatioScore = stepAtMost(s.cfg.RatioSteps, ratio)
	}

	w := s.cfg.Weights
	b.Base = (w.Volume*b.VolumeScore + w.Float*b.FloatScore + w.Ratio*b.RatioScore) / (w.Volume + w.Float + w.Ratio)

	apply := func(name string, value float64, reason string) {
		if value <= 0 {
			return
		}
		b.Multipliers = append(b.Multipliers, domain.Multiplier{Name: name, Value: value, Reason: reason})
	}

	if v, reason, ok := s.categoryMultiplier(signals); ok {
		apply(MultCategory, v, reason)
	}

	switch {
	case signals.Custodian.Verified:
		apply(MultCustodian, s.cfg.Custodian, signals.Custodian.Bank)
	case s.cfg.GhostCategory != "" && signals.Has(s.cfg.GhostCategory):
		apply(MultGhost, s.cfg.Ghost, s.cfg.GhostCategory)
	}

	if ft := s.cfg.FloatTightness; snap.Float.Known && ft.MaxFloat > 0 && snap.Float.Value <= ft.MaxFloat {
		if signals.Has(domain.CategoryCustodianControl) {
			apply(MultFloatTightness, ft.WithCustodian, "tight float with custodian")
		} else {
			apply(MultFloatTightness, ft.WithoutCustodian, "tight float")
		}
	}

	if signals.Financing != domain.FinancingNone {
		if v, ok := s.cfg.Financing[string(signals.Financing)]; ok {
			apply(MultFinancing, v, string(signals.Financing))
		}
	}

	if mr := s.cfg.MergerRebrand; signals.Has(mr.Merger...) && signals.Has(mr.Rebrand...) {
		apply(MultMergerRebrand, mr.Value, "merger with rebrand")
	}

	if code, ok := s.itemContext(signals); ok {
		apply(MultItemContext, s.cfg.ItemContext, "item "+code)
	}

	if cc := s.cfg.CleanCatalyst; snap.Float.Known && snap.Float.Value <= cc.MaxFloat && s.hasCatalyst(signals) && !s.hasDeathSpiral(signals) {
		apply(MultCleanCatalyst, cc.Value, "low float clean catalyst")
	}

	if combo, ok := s.formCombo(signals); ok {
		apply(MultFormCombo, combo.Value, combo.Form)
	}

	tod, todReason := s.timeOfDay(at)
	apply(MultTimeOfDay, tod, todReason)
	att, attReason := s.attention(at)
	apply(MultAttention, att, attReason)

	composite := b.Base
	for _, m := range b.Multipliers {
		composite *= m.Value
	}
	b.Composite = clamp01(composite)
	return b
}

// categoryMultiplier picks one multiplier by priority: crisis severity,
// structural, distress, inflation.
func (s *Scorer) categoryMultiplier(signals domain.SignalSet) (float64, string, bool) {
	cm := s.cfg.Categories
	if sev := signals.Distress.Severity; sev > 0 && sev >= s.table.Distress.CrisisThreshold {
		return cm.CrisisBase + cm.CrisisSlope*sev, fmt.Sprintf("crisis severity %.2f", sev), true
	}
	for _, group := range []struct {
		name  string
		value float64
	}{
		{rules.GroupStructural, cm.Structural},
		{rules.GroupDistress, cm.Distress},
		{rules.GroupInflation, cm.Inflation},
	} {
		if name, ok := s.firstInGroup(signals, group.name); ok {
			return group.value, group.name + ": " + name, true
		}
	}
	return 0, "", false
}

func (s *Scorer) firstInGroup(signals domain.SignalSet, group string) (string, bool) {
	for _, sig := range signals.Signals {
		if c, ok := s.table.Category(sig.Category); ok && c.Group == group {
			return sig.Category, true
		}
	}
	return "", false
}

func (s *Scorer) hasCatalyst(signals domain.SignalSet) bool {
	for _, sig := range signals.Signals {
		if c, ok := s.table.Category(sig.Category); ok && c.Catalyst() {
			return true
		}
	}
	return false
}

func (s *Scorer) hasDeathSpiral(signals domain.SignalSet) bool {
	for _, sig := range signals.Signals {
		if c, ok := s.table.Category(sig.Category); ok && c.DeathSpiral {
			return true
		}
	}
	return false
}

func (s *Scorer) itemContext(signals domain.SignalSet) (string, bool) {
	for _, code := range signals.ItemCodes {
		for _, ic := range s.table.ItemCodes {
			if ic.Code == code && signals.Has(ic.Categories...) {
				return code, true
			}
		}
	}
	return "", false
}

func (s *Scorer) formCombo(signals domain.SignalSet) (rules.FormCombo, bool) {
	form := strings.ToUpper(strings.TrimSpace(signals.FormType))
	if form == "" {
		return rules.FormCombo{}, false
	}
	for _, combo := range s.cfg.FormCombos {
		if strings.HasPrefix(form, strings.ToUpper(combo.Form)) && signals.Has(combo.Categories...) {
			return combo, true
		}
	}
	return rules.FormCombo{}, false
}

func (s *Scorer) timeOfDay(at time.Time) (float64, string) {
	local := at.In(s.loc)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return s.cfg.TimeOfDayDefault, "weekend"
	}
	return pickWindow(s.cfg.TimeOfDay, minuteOfDay(local), s.cfg.TimeOfDayDefault, "overnight")
}

func (s *Scorer) attention(at time.Time) (float64, string) {
	return pickWindow(s.cfg.Attention, minuteOfDay(at.In(s.loc)), s.cfg.AttentionDefault, "none")
}

func pickWindow(windows []rules.Window, minute int, fallback float64, fallbackName string) (float64, string) {
	for _, w := range windows {
		if w.Contains(minute) {
			return w.Value, w.Name
		}
	}
	return fallback, fallbackName
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// stepAtLeast returns the score of the first step whose threshold is <= v.
// Steps are ordered highest threshold first.
func stepAtLeast(steps []rules.Step, v float64) float64 {
	for _, st := range steps {
		if v >= st.Threshold {
			return st.Score
		}
	}
	return 0
}

// stepAtMost returns the score of the first step whose ceiling is >= v.
// Steps are ordered smallest ceiling first.
func stepAtMost(steps []rules.Step, v float64) float64 {
	for _, st := range steps {
		if v <= st.Threshold {
			return st.Score
		}
	}
	return 0
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
