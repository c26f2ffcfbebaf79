package marketdata

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"FilingScanner/internal/domain"
	"FilingScanner/internal/ports"
)

const amount = `(\d[\d,]*(?:\.\d+)?)\s*(million)?`

var (
	floatExprs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bfloat\s+of\s+(?:approximately\s+)?` + amount + `\s+shares`),
		regexp.MustCompile(`(?i)` + amount + `\s+shares\s+of\s+(?:our\s+|the\s+registrant['’]s\s+)?common\s+stock(?:\s+(?:were|are))?\s+held\s+by\s+non-affiliates`),
	}
	sharesExprs = []*regexp.Regexp{
		// The count must be the subject of "outstanding"; "shares issuable upon
		// exercise of outstanding warrants" is not a share count.
		regexp.MustCompile(`(?i)` + amount + `\s+shares\s+of\s+(?:the\s+registrant['’]s\s+|our\s+|its\s+)?(?:class\s+a\s+)?common\s+stock,?\s+(?:(?:\$?[\d.]+\s+)?par\s+value(?:\s+\$?[\d.]+)?(?:\s+per\s+share)?,?\s+)?(?:(?:were|are)\s+)?(?:issued\s+and\s+)?outstanding`),
		regexp.MustCompile(`(?i)shares\s+(?:of\s+common\s+stock\s+)?outstanding[^.\d]{0,40}?` + amount),
	}
)

// FilingText reads share counts stated in the filing itself.
type FilingText struct{}

func NewFilingText() *FilingText { return &FilingText{} }

func (FilingText) Name() string { return "filing_text" }

func (FilingText) Fetch(_ context.Context, field domain.Field, req ports.MarketDataRequest) (float64, error) {
	var exprs []*regexp.Regexp
	switch field {
	case domain.FieldFloat:
		exprs = floatExprs
	case domain.FieldSharesOutstanding:
		exprs = sharesExprs
	default:
		return 0, ErrUnsupported
	}
	if v, ok := ParseShareCount(req.Text, exprs); ok {
		return v, nil
	}
	return 0, ErrNoData
}

// ParseShareCount returns the first amount matched by exprs, scaled when the
// text says "million".
func ParseShareCount(text string, exprs []*regexp.Regexp) (float64, bool) {
	for _, expr := range exprs {
		m := expr.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		if m[2] != "" {
			v *= 1e6
		}
		return v, true
	}
	return 0, false
}
