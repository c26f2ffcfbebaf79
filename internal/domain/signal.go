package domain

import "sort"

// Category names produced by the specialized sub-extractors. Keyword
// categories come from the rules table.
const (
	CategoryArtificialInflation = "Artificial Inflation"
	CategoryCustodianControl    = "Custodian Control"
	CategoryOffering            = "Offering"
	CategoryFinancialDistress   = "Financial Distress"
)

// FinancingType classifies how an offering is being placed.
type FinancingType string

const (
	FinancingNone             FinancingType = ""
	FinancingGeneric          FinancingType = "generic"
	FinancingUnderwritten     FinancingType = "underwritten"
	FinancingRegisteredDirect FinancingType = "registered_direct"
	FinancingATM              FinancingType = "atm"
)

// Signal is one detected category with the evidence that triggered it.
type Signal struct {
	Category string   `json:"category"`
	Matches  []string `json:"matches,omitempty"`
	Derived  string   `json:"derived,omitempty"`
}

// CustodianInfo records a depositary or custodian bank named in the text.
type CustodianInfo struct {
	Bank     string `json:"bank,omitempty"`
	Verified bool   `json:"verified"`
}

// DistressReport holds labelled ratios found in the text and the severity
// derived from their threshold bands.
type DistressReport struct {
	Ratios   map[string]float64 `json:"ratios,omitempty"`
	Severity float64            `json:"severity"`
}

// SignalSet is the ordered outcome of signal extraction.
type SignalSet struct {
	Signals   []Signal       `json:"signals"`
	FormType  string         `json:"form_type,omitempty"`
	Ratio     string         `json:"ratio,omitempty"`
	Custodian CustodianInfo  `json:"custodian"`
	Financing FinancingType  `json:"financing,omitempty"`
	Distress  DistressReport `json:"distress"`
	ItemCodes []string       `json:"item_codes,omitempty"`
}

// Add appends a category or merges matches into an existing one.
func (s *SignalSet) Add(sig Signal) {
	for i := range s.Signals {
		if s.Signals[i].Category != sig.Category {
			continue
		}
		for _, m := range sig.Matches {
			if !containsString(s.Signals[i].Matches, m) {
				s.Signals[i].Matches = append(s.Signals[i].Matches, m)
			}
		}
		if sig.Derived != "" {
			s.Signals[i].Derived = sig.Derived
		}
		return
	}
	s.Signals = append(s.Signals, sig)
}

// Get returns the signal for a category.
func (s SignalSet) Get(category string) (Signal, bool) {
	for _, sig := range s.Signals {
		if sig.Category == category {
			return sig, true
		}
	}
	return Signal{}, false
}

// Has reports whether any of the categories is present.
func (s SignalSet) Has(categories ...string) bool {
	for _, c := range categories {
		if _, ok := s.Get(c); ok {
			return true
		}
	}
	return false
}

// Categories lists detected categories in detection order.
func (s SignalSet) Categories() []string {
	out := make([]string, 0, len(s.Signals))
	for _, sig := range s.Signals {
		out = append(out, sig.Category)
	}
	return out
}

// SortedCategories lists detected categories alphabetically.
func (s SignalSet) SortedCategories() []string {
	out := s.Categories()
	sort.Strings(out)
	return out
}

// Len is the number of detected categories.
func (s SignalSet) Len() int {
	return len(s.Signals)
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
