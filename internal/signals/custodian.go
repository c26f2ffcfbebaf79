package signals

import (
	"strings"

	"FilingScanner/internal/domain"
)

// applyCustodian looks for a named depositary or custodian bank. Control is
// verified when the filing is an ADR registration or uses depositary wording.
func (e *Extractor) applyCustodian(text string, set *domain.SignalSet) {
	var bank string
	for _, p := range e.custodians {
		if p.expr.MatchString(text) {
			bank = p.text
			break
		}
	}
	if bank == "" {
		return
	}

	verified := strings.HasPrefix(strings.ToUpper(set.FormType), "F-6")
	if !verified {
		for _, p := range e.adrMarkers {
			if p.expr.MatchString(text) {
				verified = true
				break
			}
		}
	}

	derived := "unverified"
	if verified {
		derived = "verified"
	}
	set.Custodian = domain.CustodianInfo{Bank: bank, Verified: verified}
	set.Add(domain.Signal{
		Category: domain.CategoryCustodianControl,
		Matches:  []string{bank},
		Derived:  derived,
	})
}
