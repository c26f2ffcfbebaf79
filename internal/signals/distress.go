package signals

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"FilingScanner/internal/domain"
	"FilingScanner/internal/rules"
)

// Ratio labels reported in DistressReport.Ratios.
const (
	RatioCurrent          = "current_ratio"
	RatioWorkingCapital   = "working_capital"
	RatioBookValuePerShr  = "book_value_per_share"
	RatioLeverage         = "leverage"
	RatioInterestCoverage = "interest_coverage"
)

const numberPattern = `(\$?\s*\(?-?\$?\s*\d[\d,]*(?:\.\d+)?\)?)`

var (
	currentRatioExpr = regexp.MustCompile(`(?i)current\s+ratio\s+(?:of|was|is|at|stood\s+at)?\s*(?:approximately\s+)?` + numberPattern)
	workingCapExpr   = regexp.MustCompile(`(?i)working\s+capital\s+(deficit|deficiency)?\s*(?:of|was|is)?\s*(?:approximately\s+)?` + numberPattern)
	negWorkingExpr   = regexp.MustCompile(`(?i)(?:negative\s+working\s+capital|working\s+capital\s+(?:deficit|deficiency))`)
	bookValueExpr    = regexp.MustCompile(`(?i)(?:net\s+)?(?:tangible\s+)?book\s+value\s+per\s+share\s+(?:of|was|is)?\s*(?:approximately\s+)?(negative\s+)?` + numberPattern)
	leverageExpr     = regexp.MustCompile(`(?i)(?:debt[\s-]+to[\s-]+equity(?:\s+ratio)?|leverage\s+ratio)\s+(?:of|was|is)?\s*(?:approximately\s+)?(negative\s+)?` + numberPattern)
	coverageExpr     = regexp.MustCompile(`(?i)interest\s+coverage(?:\s+ratio)?\s+(?:of|was|is)?\s*(?:approximately\s+)?` + numberPattern)
)

// ParseDistress extracts labelled balance-sheet ratios and scores them
// against the bands of r. Severity is capped at 1.
func ParseDistress(text string, r rules.DistressRules) domain.DistressReport {
	report := domain.DistressReport{Ratios: map[string]float64{}}
	points := 0.0

	if m := currentRatioExpr.FindStringSubmatch(text); m != nil {
		if v, ok := parseAmount(m[1]); ok {
			report.Ratios[RatioCurrent] = v
			points += bandPoints(r.CurrentRatio, v)
		}
	}

	if m := workingCapExpr.FindStringSubmatch(text); m != nil {
		if v, ok := parseAmount(m[2]); ok {
			if m[1] != "" && v > 0 {
				v = -v
			}
			report.Ratios[RatioWorkingCapital] = v
		}
	}
	if wc, ok := report.Ratios[RatioWorkingCapital]; (ok && wc < 0) || (!ok && negWorkingExpr.MatchString(text)) {
		if !ok {
			report.Ratios[RatioWorkingCapital] = -1
		}
		points += r.NegativeWorkingCapital
	}

	if m := bookValueExpr.FindStringSubmatch(text); m != nil {
		if v, ok := parseAmount(m[2]); ok {
			if m[1] != "" && v > 0 {
				v = -v
			}
			report.Ratios[RatioBookValuePerShr] = v
			if v < 0 {
				points += r.NegativeBookValuePerShr
			}
		}
	}

	if m := leverageExpr.FindStringSubmatch(text); m != nil {
		if v, ok := parseAmount(m[2]); ok {
			if m[1] != "" && v > 0 {
				v = -v
			}
			report.Ratios[RatioLeverage] = v
			if v < 0 {
				// negative equity: worse than any positive leverage
				points += maxPoints(r.Leverage)
			} else {
				points += bandPoints(r.Leverage, v)
			}
		}
	}

	if m := coverageExpr.FindStringSubmatch(text); m != nil {
		if v, ok := parseAmount(m[1]); ok {
			report.Ratios[RatioInterestCoverage] = v
			points += bandPoints(r.InterestCoverage, v)
		}
	}

	if len(report.Ratios) == 0 {
		report.Ratios = nil
	}
	report.Severity = math.Min(1, math.Round(points*100)/100)
	return report
}

func (e *Extractor) applyDistress(text string, set *domain.SignalSet) {
	report := ParseDistress(text, e.distress)
	set.Distress = report
	if report.Severity <= 0 {
		return
	}
	set.Add(domain.Signal{
		Category: domain.CategoryFinancialDistress,
		Matches:  ratioLabels(report.Ratios),
		Derived:  "severity=" + strconv.FormatFloat(report.Severity, 'f', 2, 64),
	})
}

func bandPoints(bands []rules.Band, v float64) float64 {
	for _, b := range bands {
		if b.Matches(v) {
			return b.Points
		}
	}
	return 0
}

func maxPoints(bands []rules.Band) float64 {
	best := 0.0
	for _, b := range bands {
		best = math.Max(best, b.Points)
	}
	return best
}

// parseAmount reads "1.25", "$(3,400)", "-0.4" or "(0.12)".
func parseAmount(raw string) (float64, bool) {
	s := strings.TrimLeft(strings.TrimSpace(raw), "$ ")
	negative := strings.HasPrefix(s, "(")
	s = strings.Trim(s, "()$ ")
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimLeft(s, "-$ ")
	}
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}

func ratioLabels(ratios map[string]float64) []string {
	var out []string
	for _, label := range []string{RatioCurrent, RatioWorkingCapital, RatioBookValuePerShr, RatioLeverage, RatioInterestCoverage} {
		if _, ok := ratios[label]; ok {
			out = append(out, label)
		}
	}
	return out
}
