package signals

import (
	"FilingScanner/internal/domain"
	"FilingScanner/internal/rules"
)

type financingMatcher struct {
	anchors          []phrase
	atm              []phrase
	registeredDirect []phrase
	underwritten     []phrase
	generic          []phrase
}

func newFinancingMatcher(r rules.FinancingRules) (financingMatcher, error) {
	var (
		m   financingMatcher
		err error
	)
	if m.anchors, err = compilePhrases(r.Anchors); err != nil {
		return m, err
	}
	if m.atm, err = compilePhrases(r.ATM); err != nil {
		return m, err
	}
	if m.registeredDirect, err = compilePhrases(r.RegisteredDirect); err != nil {
		return m, err
	}
	if m.underwritten, err = compilePhrases(r.Underwritten); err != nil {
		return m, err
	}
	if m.generic, err = compilePhrases(r.Generic); err != nil {
		return m, err
	}
	return m, nil
}

// Classify picks the most specific offering type present. ATM and
// underwritten wording only counts next to an offering anchor phrase.
func (m financingMatcher) Classify(text string) (domain.FinancingType, []string) {
	anchored := len(matchingPhrases(m.anchors, text)) > 0

	if hits := matchingPhrases(m.atm, text); len(hits) > 0 && anchored {
		return domain.FinancingATM, hits
	}
	if hits := matchingPhrases(m.registeredDirect, text); len(hits) > 0 {
		return domain.FinancingRegisteredDirect, hits
	}
	if hits := matchingPhrases(m.underwritten, text); len(hits) > 0 && anchored {
		return domain.FinancingUnderwritten, hits
	}
	if hits := matchingPhrases(m.generic, text); len(hits) > 0 {
		return domain.FinancingGeneric, hits
	}
	return domain.FinancingNone, nil
}

func (e *Extractor) applyFinancing(text string, set *domain.SignalSet) {
	kind, hits := e.financing.Classify(text)
	if kind == domain.FinancingNone {
		return
	}
	set.Financing = kind
	set.Add(domain.Signal{
		Category: domain.CategoryOffering,
		Matches:  hits,
		Derived:  string(kind),
	})
}

func matchingPhrases(list []phrase, text string) []string {
	var out []string
	for _, p := range list {
		if p.expr.MatchString(text) {
			out = append(out, p.text)
		}
	}
	return out
}
