// Package signals maps filing text to categorized signals. Everything here is
// a pure function of (text, rules): no I/O, no clocks, no globals.
package signals

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"FilingScanner/internal/domain"
	"FilingScanner/internal/ports"
	"FilingScanner/internal/rules"
)

var (
	itemCodeExpr       = regexp.MustCompile(`(?i)\bitem\s+(\d{1,2}\.\d{2})\b`)
	submissionTypeExpr = regexp.MustCompile(`(?im)^\s*CONFORMED SUBMISSION TYPE:\s*([A-Z0-9][A-Z0-9 /\-]*?)\s*$`)
	formHeaderExpr     = regexp.MustCompile(`(?m)^\s*FORM\s+([0-9]{1,2}-[A-Z]{1,2}|[A-Z]{1,2}-[0-9]{1,2}|424B[1-8]|SC 13[DG])\b`)
)

// Extractor is compiled once from a rules table and safe for concurrent use.
type Extractor struct {
	categories []phraseGroup
	custodians []phrase
	adrMarkers []phrase
	financing  financingMatcher
	distress   rules.DistressRules
}

var _ ports.SignalExtractor = (*Extractor)(nil)

type phrase struct {
	text string
	expr *regexp.Regexp
}

type phraseGroup struct {
	name    string
	phrases []phrase
}

// NewExtractor compiles every keyword of the table.
func NewExtractor(table *rules.Table) (*Extractor, error) {
	if table == nil {
		return nil, fmt.Errorf("signals: rules table is nil")
	}

	e := &Extractor{distress: table.Distress}
	for _, c := range table.Categories {
		if len(c.Keywords) == 0 {
			continue
		}
		group := phraseGroup{name: c.Name}
		for _, kw := range c.Keywords {
			p, err := compilePhrase(kw)
			if err != nil {
				return nil, fmt.Errorf("signals: category %q: %w", c.Name, err)
			}
			group.phrases = append(group.phrases, p)
		}
		e.categories = append(e.categories, group)
	}

	var err error
	if e.custodians, err = compilePhrases(table.Custodians); err != nil {
		return nil, fmt.Errorf("signals: custodians: %w", err)
	}
	if e.adrMarkers, err = compilePhrases(table.ADRMarkers); err != nil {
		return nil, fmt.Errorf("signals: adr markers: %w", err)
	}
	if e.financing, err = newFinancingMatcher(table.Financing); err != nil {
		return nil, fmt.Errorf("signals: financing: %w", err)
	}
	return e, nil
}

// Extract runs the keyword table and every sub-parser over text.
func (e *Extractor) Extract(text string) domain.SignalSet {
	var set domain.SignalSet
	if strings.TrimSpace(text) == "" {
		return set
	}

	set.FormType = DetectFormType(text)

	for _, group := range e.categories {
		var matched []string
		for _, p := range group.phrases {
			if p.expr.MatchString(text) {
				matched = append(matched, p.text)
			}
		}
		if len(matched) > 0 {
			set.Add(domain.Signal{Category: group.name, Matches: matched})
		}
	}

	e.applyRatio(text, &set)
	e.applyCustodian(text, &set)
	e.applyFinancing(text, &set)
	e.applyDistress(text, &set)
	set.ItemCodes = ItemCodes(text)

	return set
}

// ItemCodes lists current-report item numbers in order of first appearance.
func ItemCodes(text string) []string {
	var (
		codes []string
		seen  = map[string]bool{}
	)
	for _, m := range itemCodeExpr.FindAllStringSubmatch(text, -1) {
		code := m[1]
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	return codes
}

// DetectFormType reads the submission header or the cover-page form line.
func DetectFormType(text string) string {
	if m := submissionTypeExpr.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := formHeaderExpr.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func compilePhrases(list []string) ([]phrase, error) {
	out := make([]phrase, 0, len(list))
	for _, item := range list {
		p, err := compilePhrase(item)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// compilePhrase builds a case-insensitive, word-bounded matcher that
// tolerates line wraps between words.
func compilePhrase(text string) (phrase, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return phrase{}, fmt.Errorf("empty phrase")
	}

	quoted := regexp.QuoteMeta(text)
	quoted = strings.Join(strings.Fields(quoted), `\s+`)

	var b strings.Builder
	b.WriteString("(?i)")
	if first, _ := utf8.DecodeRuneInString(text); isWordRune(first) {
		b.WriteString(`\b`)
	}
	b.WriteString(quoted)
	if last, _ := utf8.DecodeLastRuneInString(text); isWordRune(last) {
		b.WriteString(`\b`)
	}

	expr, err := regexp.Compile(b.String())
	if err != nil {
		return phrase{}, fmt.Errorf("compile %q: %w", text, err)
	}
	return phrase{text: text, expr: expr}, nil
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
