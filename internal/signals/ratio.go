package signals

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"FilingScanner/internal/domain"
)

var (
	numericRatioExpr = regexp.MustCompile(`(?i)\b(\d{1,3})\s*-?\s*for\s*-?\s*(\d{1,3}(?:,\d{3})+|\d{1,5})\b`)
	// The colon form only counts right after ratio or split wording; a bare
	// "10:30" is a clock time.
	colonRatioExpr   = regexp.MustCompile(`(?i)(?:ratio\s+of|reverse\s+(?:stock\s+)?split(?:\s+of)?|consolidation\s+of)\s+(?:approximately\s+)?(\d{1,3})\s*:\s*(\d{1,3}(?:,\d{3})+|\d{1,5})\b`)
	clockSuffixExpr  = regexp.MustCompile(`(?i)^\s*[ap]\.?\s?m\b`)
	wordRatioExpr    = regexp.MustCompile(`(?i)\b(one|two|three|four|five)[\s-]+for[\s-]+((?:[a-z]+[\s-]){0,2}[a-z]+)\b`)
	splitContextExpr = regexp.MustCompile(`(?i)reverse\s+(?:stock\s+)?split|consolidat(?:e|ion)|split`)
)

const ratioContextWindow = 200

var smallNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7,
	"eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13,
	"fourteen": 14, "fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18,
	"nineteen": 19, "twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

// ParseConsolidationRatio finds the first reverse-split style ratio
// ("1-for-25", "one-for-twenty-five", "1:25") that sits near split wording.
// It returns the normalised form "1-for-25".
func ParseConsolidationRatio(text string) (string, bool) {
	candidates := []struct {
		expr  *regexp.Regexp
		parse func(m []string) (int, int, bool)
	}{
		{numericRatioExpr, parseNumericPair},
		{wordRatioExpr, parseWordPair},
		{colonRatioExpr, parseNumericPair},
	}

	for _, c := range candidates {
		for _, loc := range c.expr.FindAllStringSubmatchIndex(text, -1) {
			m := submatches(text, loc)
			from, to, ok := c.parse(m)
			if !ok || from >= to {
				continue
			}
			if clockSuffixExpr.MatchString(text[loc[1]:]) {
				continue
			}
			if !nearSplitWording(text, loc[0], loc[1]) {
				continue
			}
			return fmt.Sprintf("%d-for-%d", from, to), true
		}
	}
	return "", false
}

func (e *Extractor) applyRatio(text string, set *domain.SignalSet) {
	ratio, ok := ParseConsolidationRatio(text)
	if !ok {
		return
	}
	set.Ratio = ratio
	set.Add(domain.Signal{
		Category: domain.CategoryArtificialInflation,
		Matches:  []string{ratio},
		Derived:  ratio,
	})
}

func nearSplitWording(text string, start, end int) bool {
	lo := start - ratioContextWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + ratioContextWindow
	if hi > len(text) {
		hi = len(text)
	}
	return splitContextExpr.MatchString(text[lo:hi])
}

func submatches(text string, loc []int) []string {
	out := make([]string, len(loc)/2)
	for i := range out {
		if loc[2*i] >= 0 {
			out[i] = text[loc[2*i]:loc[2*i+1]]
		}
	}
	return out
}

func parseNumericPair(m []string) (int, int, bool) {
	if len(m) < 3 {
		return 0, 0, false
	}
	from, err := strconv.Atoi(m[1])
	if err != nil || from <= 0 {
		return 0, 0, false
	}
	to, err := strconv.Atoi(strings.ReplaceAll(m[2], ",", ""))
	if err != nil || to <= 0 {
		return 0, 0, false
	}
	return from, to, true
}

func parseWordPair(m []string) (int, int, bool) {
	if len(m) < 3 {
		return 0, 0, false
	}
	from, ok := wordsToNumber(m[1])
	if !ok {
		return 0, 0, false
	}
	to, ok := wordsToNumber(m[2])
	if !ok {
		return 0, 0, false
	}
	return from, to, true
}

// wordsToNumber handles "twenty-five", "one hundred", "two hundred fifty".
func wordsToNumber(s string) (int, bool) {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ' ' || r == '-' || r == '\t' || r == '\n'
	})
	if len(fields) == 0 {
		return 0, false
	}

	total, current := 0, 0
	for _, f := range fields {
		switch {
		case f == "hundred":
			if current == 0 {
				current = 1
			}
			current *= 100
		case f == "and":
		default:
			v, ok := smallNumbers[f]
			if !ok {
				// trailing words ("shares", "basis") end the number
				if total+current == 0 {
					return 0, false
				}
				return total + current, true
			}
			current += v
		}
	}
	total += current
	return total, total > 0
}
