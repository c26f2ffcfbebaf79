package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"FilingScanner/internal/domain"
	"FilingScanner/internal/scanner"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8" ?>
<feed xmlns="http://www.w3.org/2005/Atom">
<title>Latest Filings - Tue, 05 Mar 2024 10:02:11 EST</title>
<entry>
<title>8-K - ACME CORP (0001234567) (Filer)</title>
<link rel="alternate" type="text/html" href="https://www.sec.gov/Archives/edgar/data/1234567/000123456724000010/0001234567-24-000010-index.htm"/>
<summary type="html"> &lt;b&gt;Filed:&lt;/b&gt; 2024-03-05 &lt;b&gt;AccNo:&lt;/b&gt; 0001234567-24-000010</summary>
<updated>2024-03-05T10:01:30-05:00</updated>
<category scheme="https://www.sec.gov/" label="form type" term="8-K"/>
<id>urn:tag:sec.gov,2008:accession-number=0001234567-24-000010</id>
</entry>
<entry>
<title>6-K - Globex Holdings Ltd (0000765432) (Filer)</title>
<link rel="alternate" type="text/html" href="https://www.sec.gov/Archives/edgar/data/765432/000076543224000002/0000765432-24-000002-index.htm"/>
<updated>2024-03-05T09:40:00-05:00</updated>
<id>urn:tag:sec.gov,2008:accession-number=0000765432-24-000002</id>
</entry>
<entry>
<title>malformed entry without registrant</title>
<link rel="alternate" type="text/html" href="https://www.sec.gov/x"/>
<updated>2024-03-05T10:00:00-05:00</updated>
</entry>
</feed>`

type httpFetcher struct {
	client *http.Client
}

func (f httpFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func TestParseEntry(t *testing.T) {
	t.Parallel()

	updated := time.Date(2024, time.March, 5, 15, 1, 30, 0, time.UTC)
	item := &gofeed.Item{
		Title:         "SC 13D - Tiny Biotech, Inc. (0000098765) (Subject)",
		Link:          "https://www.sec.gov/Archives/edgar/data/98765/x-index.htm",
		UpdatedParsed: &updated,
	}

	ref, err := parseEntry(item, domain.FeedCurrentEvents)
	if err != nil {
		t.Fatalf("parseEntry error: %v", err)
	}
	if ref.FormType != "SC 13D" {
		t.Fatalf("unexpected form: %q", ref.FormType)
	}
	if ref.DisplayName != "Tiny Biotech, Inc." {
		t.Fatalf("unexpected name: %q", ref.DisplayName)
	}
	if ref.RegistrantID != "0000098765" {
		t.Fatalf("unexpected registrant: %q", ref.RegistrantID)
	}
	if !ref.PublishedAt.Equal(updated) {
		t.Fatalf("unexpected published: %v", ref.PublishedAt)
	}

	if _, err := parseEntry(&gofeed.Item{Title: "8-K - X (1) (Filer)", Link: "u"}, domain.FeedCurrentEvents); err == nil {
		t.Fatal("expected error for entry without timestamp")
	}
}

func TestAtomScannerScan(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	sc := NewAtomScanner(httpFetcher{client: server.Client()})
	refs, err := sc.Scan(context.Background(), scanner.Request{
		Feed: scanner.Feed{Name: "current-8k", URL: server.URL + "/feed"},
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if len(refs) != 2 {
		t.Fatalf("expected 2 filings, got %d", len(refs))
	}
	if refs[0].RegistrantID != "0001234567" || refs[0].FormType != "8-K" {
		t.Fatalf("unexpected first filing: %+v", refs[0])
	}
	if !strings.HasSuffix(refs[0].DocumentURL, "-index.htm") {
		t.Fatalf("unexpected link: %s", refs[0].DocumentURL)
	}
	if refs[0].FeedType != domain.FeedCurrentEvents {
		t.Fatalf("unexpected feed type: %s", refs[0].FeedType)
	}
	want := time.Date(2024, time.March, 5, 15, 1, 30, 0, time.UTC)
	if !refs[0].PublishedAt.Equal(want) {
		t.Fatalf("unexpected timestamp: %v", refs[0].PublishedAt)
	}
}

func TestAtomScannerFetchError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	sc := NewAtomScanner(httpFetcher{client: server.Client()})
	if _, err := sc.Scan(context.Background(), scanner.Request{Feed: scanner.Feed{Name: "f", URL: server.URL}}); err == nil {
		t.Fatal("expected error on server failure")
	}
}
