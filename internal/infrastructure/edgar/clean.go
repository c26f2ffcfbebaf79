package edgar

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	legalHeaderExpr = regexp.MustCompile(`(?i)^(united states|securities and exchange commission|united states securities and exchange commission|washington,? d\.?c\.? 20549|current report|pursuant to section 13 or 15\(d\).*|\(exact name of registrant.*\)|\(commission file number\)|\(i\.?r\.?s\.? employer.*\)|\(state or other jurisdiction.*\)|\(address of principal executive offices.*\)|\(registrant's telephone number.*\))$`)
	navExpr         = regexp.MustCompile(`(?i)^(table of contents|back to top|home|search|print|next page|previous page|\[?link\]?|page \d+( of \d+)?|\d{1,3})$`)
	checkBoxExpr    = regexp.MustCompile(`^(☐|☒|☑|\[\s*[xX]?\s*\]|¨|ý|þ)\s*`)
	signatureExpr   = regexp.MustCompile(`(?i)^signatures?$`)
	signatureLead   = regexp.MustCompile(`(?i)^pursuant to the requirements`)
	signatureEnd    = regexp.MustCompile(`(?i)^(exhibit|ex-)\s*\d`)
)

const maxSignatureLines = 25

// cleanText drops registry chrome from converted text. Repeated lines, such
// as the form header on every page, are kept once; seen spans documents.
// A "Signatures" heading starts a skipped block only when the attestation
// wording follows it, so a table of contents entry keeps what comes next.
func cleanText(text string, seen map[string]struct{}) string {
	var (
		out       []string
		signature = -1
		heading   string
	)
	keep := func(line string) {
		if navExpr.MatchString(line) || legalHeaderExpr.MatchString(line) || checkBoxExpr.MatchString(line) {
			return
		}
		if _, dup := seen[line]; dup {
			return
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.Join(strings.Fields(raw), " ")
		if line == "" {
			continue
		}

		if heading != "" {
			pending := heading
			heading = ""
			if signatureLead.MatchString(line) {
				signature = 0
				continue
			}
			keep(pending)
		}

		if signature >= 0 {
			if signatureEnd.MatchString(line) || signature >= maxSignatureLines {
				signature = -1
			} else {
				signature++
				continue
			}
		}
		if signatureExpr.MatchString(line) {
			heading = line
			continue
		}

		keep(line)
	}
	if heading != "" {
		keep(heading)
	}
	return strings.Join(out, "\n")
}

// truncateText cuts s to at most max bytes without splitting a rune.
func truncateText(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func looksLikeMarkup(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}
	head := strings.ToLower(string(body[:min(len(body), 8192)]))
	for _, tag := range []string{"<html", "<body", "<div", "<p>", "<p ", "<table", "<font"} {
		if strings.Contains(head, tag) {
			return true
		}
	}
	return false
}
