package parser

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"FilingScanner/internal/domain"
	"FilingScanner/internal/scanner"
)

// Fetcher downloads a registry URL through the shared rate limiter.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// "8-K - ACME CORP (0001234567) (Filer)"
var entryTitleExpr = regexp.MustCompile(`^\s*(.+?)\s+-\s+(.+?)\s+\((\d{1,10})\)\s*(?:\(([^)]*)\))?\s*$`)

// AtomScanner reads the registry's "latest filings" Atom feeds.
type AtomScanner struct {
	fetcher Fetcher
}

// NewAtomScanner wires the rate-limited registry fetcher.
func NewAtomScanner(fetcher Fetcher) *AtomScanner {
	return &AtomScanner{fetcher: fetcher}
}

// Name identifies the strategy inside the registry.
func (a *AtomScanner) Name() string {
	return "atom"
}

// Scan fetches one feed and converts its entries. Entries that cannot be
// parsed are skipped; only a fetch or feed-level parse failure is an error.
func (a *AtomScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.FilingReference, error) {
	if a.fetcher == nil {
		return nil, fmt.Errorf("feed %s: fetcher is not configured", req.Feed.Name)
	}
	if strings.TrimSpace(req.Feed.URL) == "" {
		return nil, fmt.Errorf("feed %s: no url configured", req.Feed.Name)
	}

	raw, err := a.fetcher.Fetch(ctx, req.Feed.URL)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", req.Feed.Name, err)
	}

	feed, err := gofeed.NewParser().ParseString(string(raw))
	if err != nil {
		return nil, fmt.Errorf("feed %s: parse: %w", req.Feed.Name, err)
	}

	feedType := req.Feed.Type
	if feedType == "" {
		feedType = domain.FeedCurrentEvents
	}

	refs := make([]domain.FilingReference, 0, len(feed.Items))
	for _, item := range feed.Items {
		ref, err := parseEntry(item, feedType)
		if err != nil {
			continue
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func parseEntry(item *gofeed.Item, feedType domain.FeedType) (domain.FilingReference, error) {
	if item == nil {
		return domain.FilingReference{}, fmt.Errorf("nil entry")
	}

	title := strings.TrimSpace(item.Title)
	m := entryTitleExpr.FindStringSubmatch(title)
	if m == nil {
		return domain.FilingReference{}, fmt.Errorf("unrecognised title %q", title)
	}

	link := strings.TrimSpace(item.Link)
	if link == "" && len(item.Links) > 0 {
		link = strings.TrimSpace(item.Links[0])
	}
	if link == "" {
		return domain.FilingReference{}, fmt.Errorf("entry %q has no link", title)
	}

	var publishedAt time.Time
	switch {
	case item.UpdatedParsed != nil:
		publishedAt = *item.UpdatedParsed
	case item.PublishedParsed != nil:
		publishedAt = *item.PublishedParsed
	default:
		return domain.FilingReference{}, fmt.Errorf("entry %q has no timestamp", title)
	}

	form := strings.TrimSpace(m[1])
	if form == "" && len(item.Categories) > 0 {
		form = strings.TrimSpace(item.Categories[0])
	}

	return domain.FilingReference{
		RegistrantID: padCIK(m[3]),
		DisplayName:  strings.TrimSpace(m[2]),
		DocumentURL:  link,
		Title:        title,
		FormType:     form,
		PublishedAt:  publishedAt.UTC(),
		FeedType:     feedType,
	}, nil
}

func padCIK(cik string) string {
	cik = strings.TrimLeft(strings.TrimSpace(cik), "0")
	if cik == "" {
		return ""
	}
	return strings.Repeat("0", max(0, 10-len(cik))) + cik
}
