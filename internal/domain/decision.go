package domain

import "time"

// Multiplier is one factor applied to the weighted base score.
type Multiplier struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Reason string  `json:"reason,omitempty"`
}

// ScoreBreakdown keeps every input of the composite so it can be audited
// and recomputed.
type ScoreBreakdown struct {
	VolumeScore float64      `json:"volume_score"`
	FloatScore  float64      `json:"float_score"`
	RatioScore  float64      `json:"ratio_score"`
	Base        float64      `json:"base"`
	Multipliers []Multiplier `json:"multipliers"`
	Composite   float64      `json:"composite"`
}

// Multiplier returns an applied multiplier by name.
func (b ScoreBreakdown) Multiplier(name string) (Multiplier, bool) {
	for _, m := range b.Multipliers {
		if m.Name == name {
			return m, true
		}
	}
	return Multiplier{}, false
}

// DecisionInputs is the snapshot of everything the gate looked at.
type DecisionInputs struct {
	Filing   FilingReference `json:"filing"`
	Entity   EntityInfo      `json:"entity"`
	Signals  SignalSet       `json:"signals"`
	Snapshot MarketSnapshot  `json:"snapshot"`
	Score    ScoreBreakdown  `json:"score"`
}

// GateDecision is the terminal artifact of one pipeline run for one filing.
type GateDecision struct {
	Accepted  bool           `json:"accepted"`
	Stage     string         `json:"stage"`
	Reason    string         `json:"reason"`
	Inputs    DecisionInputs `json:"inputs"`
	DecidedAt time.Time      `json:"decided_at"`
}

// Alert is an accepted decision handed to the dispatcher.
type Alert struct {
	ID        string       `json:"id"`
	Decision  GateDecision `json:"decision"`
	CreatedAt time.Time    `json:"created_at"`
}

// Ticker is a shortcut to the alert's trading symbol.
func (a Alert) Ticker() string {
	return a.Decision.Inputs.Entity.Ticker
}
