// Package rules holds the hand-curated signal vocabulary and scoring tables.
// Tables are immutable data: loaded once from YAML (an embedded default or an
// override file) and passed to the extractor and scorer.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Category groups drive the scorer's priority multiplier.
const (
	GroupStructural = "structural"
	GroupDistress   = "distress"
	GroupInflation  = "inflation"
	GroupCatalyst   = "catalyst"
	GroupBiotech    = "biotech"
	GroupNeutral    = "neutral"
)

// Table is the complete rules document.
type Table struct {
	Categories []Category     `yaml:"categories"`
	Custodians []string       `yaml:"custodians"`
	ADRMarkers []string       `yaml:"adrMarkers"`
	Financing  FinancingRules `yaml:"financing"`
	Distress   DistressRules  `yaml:"distress"`
	ItemCodes  []ItemCode     `yaml:"itemCodes"`
	Scoring    Scoring        `yaml:"scoring"`
}

// Category is one entry of the closed signal vocabulary.
type Category struct {
	Name          string   `yaml:"name"`
	Group         string   `yaml:"group"`
	Keywords      []string `yaml:"keywords"`
	AlwaysQualify bool     `yaml:"alwaysQualify"`
	DeathSpiral   bool     `yaml:"deathSpiral"`
}

// Neutral categories carry context but no directional signal.
func (c Category) Neutral() bool { return c.Group == GroupNeutral }

// Catalyst categories are clean positive events.
func (c Category) Catalyst() bool { return c.Group == GroupCatalyst || c.Group == GroupBiotech }

// FinancingRules lists phrases whose co-occurrence classifies an offering.
type FinancingRules struct {
	Anchors          []string `yaml:"anchors"`
	ATM              []string `yaml:"atm"`
	RegisteredDirect []string `yaml:"registeredDirect"`
	Underwritten     []string `yaml:"underwritten"`
	Generic          []string `yaml:"generic"`
}

// Band awards points when a value is below (op "<") or above (op ">") a limit.
type Band struct {
	Op     string  `yaml:"op"`
	Value  float64 `yaml:"value"`
	Points float64 `yaml:"points"`
}

// Matches reports whether v falls into the band.
func (b Band) Matches(v float64) bool {
	switch b.Op {
	case "<":
		return v < b.Value
	case "<=":
		return v <= b.Value
	case ">":
		return v > b.Value
	case ">=":
		return v >= b.Value
	default:
		return false
	}
}

// DistressRules maps labelled financial ratios to severity points. Bands are
// ordered most severe first; the first matching band per ratio counts.
type DistressRules struct {
	CurrentRatio            []Band  `yaml:"currentRatio"`
	Leverage                []Band  `yaml:"leverage"`
	InterestCoverage        []Band  `yaml:"interestCoverage"`
	NegativeWorkingCapital  float64 `yaml:"negativeWorkingCapital"`
	NegativeBookValuePerShr float64 `yaml:"negativeBookValuePerShare"`
	CrisisThreshold         float64 `yaml:"crisisThreshold"`
}

// ItemCode maps a current-report item number to the categories it contextualises.
type ItemCode struct {
	Code       string   `yaml:"code"`
	Categories []string `yaml:"categories"`
}

// Step is one tier of a step function.
type Step struct {
	Threshold float64 `yaml:"threshold"`
	Score     float64 `yaml:"score"`
}

// Weights combine the three base sub-scores.
type Weights struct {
	Volume float64 `yaml:"volume"`
	Float  float64 `yaml:"float"`
	Ratio  float64 `yaml:"ratio"`
}

// CategoryMultipliers are chosen by group priority.
type CategoryMultipliers struct {
	CrisisBase  float64 `yaml:"crisisBase"`
	CrisisSlope float64 `yaml:"crisisSlope"`
	Structural  float64 `yaml:"structural"`
	Distress    float64 `yaml:"distress"`
	Inflation   float64 `yaml:"inflation"`
}

// FloatTightness rewards or penalises a tight float depending on custodian control.
type FloatTightness struct {
	MaxFloat         float64 `yaml:"maxFloat"`
	WithCustodian    float64 `yaml:"withCustodian"`
	WithoutCustodian float64 `yaml:"withoutCustodian"`
}

// MergerRebrand is the structural-catalyst combination bonus.
type MergerRebrand struct {
	Merger  []string `yaml:"merger"`
	Rebrand []string `yaml:"rebrand"`
	Value   float64  `yaml:"value"`
}

// CleanCatalyst is the low float without death-spiral bonus.
type CleanCatalyst struct {
	MaxFloat float64 `yaml:"maxFloat"`
	Value    float64 `yaml:"value"`
}

// FormCombo adjusts the score for a form type paired with a category.
type FormCombo struct {
	Form       string   `yaml:"form"`
	Categories []string `yaml:"categories"`
	Value      float64  `yaml:"value"`
}

// Window is a clock window in the scoring timezone; End before Start wraps midnight.
type Window struct {
	Name  string  `yaml:"name"`
	Start string  `yaml:"start"`
	End   string  `yaml:"end"`
	Value float64 `yaml:"value"`

	startMin, endMin int
}

// Contains reports whether minute-of-day m is inside the window.
func (w Window) Contains(m int) bool {
	if w.startMin <= w.endMin {
		return m >= w.startMin && m < w.endMin
	}
	return m >= w.startMin || m < w.endMin
}

// Scoring holds every scorer constant.
type Scoring struct {
	Weights          Weights             `yaml:"weights"`
	VolumeSteps      []Step              `yaml:"volumeSteps"`
	FloatSteps       []Step              `yaml:"floatSteps"`
	RatioSteps       []Step              `yaml:"ratioSteps"`
	Categories       CategoryMultipliers `yaml:"categoryMultipliers"`
	Custodian        float64             `yaml:"custodian"`
	GhostCategory    string              `yaml:"ghostCategory"`
	Ghost            float64             `yaml:"ghost"`
	FloatTightness   FloatTightness      `yaml:"floatTightness"`
	Financing        map[string]float64  `yaml:"financing"`
	MergerRebrand    MergerRebrand       `yaml:"mergerRebrand"`
	ItemContext      float64             `yaml:"itemContext"`
	CleanCatalyst    CleanCatalyst       `yaml:"cleanCatalyst"`
	FormCombos       []FormCombo         `yaml:"formCombos"`
	Timezone         string              `yaml:"timezone"`
	TimeOfDay        []Window            `yaml:"timeOfDay"`
	TimeOfDayDefault float64             `yaml:"timeOfDayDefault"`
	Attention        []Window            `yaml:"attention"`
	AttentionDefault float64             `yaml:"attentionDefault"`
}

// Default returns the embedded rules table.
func Default() (*Table, error) {
	return Parse(defaultYAML)
}

// MustDefault panics if the embedded table is invalid; for tests and wiring.
func MustDefault() *Table {
	t, err := Default()
	if err != nil {
		panic(err)
	}
	return t
}

// Load reads an override table; an empty path yields the embedded default.
func Load(path string) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML rules document.
func Parse(raw []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("rules: parse: %w", err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Category looks up a category definition by name.
func (t *Table) Category(name string) (Category, bool) {
	for _, c := range t.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

func (t *Table) validate() error {
	if len(t.Categories) == 0 {
		return fmt.Errorf("rules: no categories defined")
	}
	seen := make(map[string]bool, len(t.Categories))
	for _, c := range t.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("rules: category without name")
		}
		if seen[c.Name] {
			return fmt.Errorf("rules: duplicate category %q", c.Name)
		}
		seen[c.Name] = true
		switch c.Group {
		case GroupStructural, GroupDistress, GroupInflation, GroupCatalyst, GroupBiotech, GroupNeutral:
		default:
			return fmt.Errorf("rules: category %q has unknown group %q", c.Name, c.Group)
		}
	}
	for _, ic := range t.ItemCodes {
		for _, name := range ic.Categories {
			if !seen[name] {
				return fmt.Errorf("rules: item %s references unknown category %q", ic.Code, name)
			}
		}
	}

	w := t.Scoring.Weights
	if w.Volume < 0 || w.Float < 0 || w.Ratio < 0 || w.Volume+w.Float+w.Ratio <= 0 {
		return fmt.Errorf("rules: scoring weights must be non-negative with a positive sum")
	}
	if t.Scoring.TimeOfDayDefault <= 0 {
		t.Scoring.TimeOfDayDefault = 1
	}
	if t.Scoring.AttentionDefault <= 0 {
		t.Scoring.AttentionDefault = 1
	}
	if t.Scoring.Timezone == "" {
		t.Scoring.Timezone = "America/New_York"
	}
	for i := range t.Scoring.TimeOfDay {
		if err := t.Scoring.TimeOfDay[i].bind(); err != nil {
			return err
		}
	}
	for i := range t.Scoring.Attention {
		if err := t.Scoring.Attention[i].bind(); err != nil {
			return err
		}
	}
	return nil
}

func (w *Window) bind() error {
	start, err := parseClock(w.Start)
	if err != nil {
		return fmt.Errorf("rules: window %q start: %w", w.Name, err)
	}
	end, err := parseClock(w.End)
	if err != nil {
		return fmt.Errorf("rules: window %q end: %w", w.Name, err)
	}
	w.startMin, w.endMin = start, end
	return nil
}

// parseClock converts "HH:MM" into minutes after midnight.
func parseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}
