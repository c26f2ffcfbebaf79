package edgar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"FilingScanner/internal/domain"
	"FilingScanner/internal/infrastructure/parser"
)

const indexTemplate = `<html><body><table class="tableFile">
<tr><th>Seq</th><th>Description</th><th>Document</th><th>Type</th><th>Size</th></tr>
<tr><td>1</td><td>8-K</td><td><a href="/ix?doc=/data/main.htm">main.htm</a></td><td>8-K</td><td>100</td></tr>
<tr><td>2</td><td>PRESS RELEASE</td><td><a href="/data/ex99.htm">ex99.htm</a></td><td>EX-99.1</td><td>100</td></tr>
<tr><td>3</td><td>LOGO</td><td><a href="/data/logo.jpg">logo.jpg</a></td><td>GRAPHIC</td><td>100</td></tr>
<tr><td>4</td><td>XBRL</td><td><a href="/data/acme.xsd">acme.xsd</a></td><td>EX-101.SCH</td><td>100</td></tr>
</table></body></html>`

const mainDoc = `<html><body>
<p>UNITED STATES</p><p>SECURITIES AND EXCHANGE COMMISSION</p><p>Washington, D.C. 20549</p>
<p>FORM 8-K</p>
<p>☐ Written communications pursuant to Rule 425</p>
<p>Item 5.03 Amendments to Articles of Incorporation</p>
<p>The Company effected a 1-for-25 reverse stock split.</p>
<p>SIGNATURES</p>
<p>Pursuant to the requirements of the Securities Exchange Act of 1934, the registrant has duly caused this report to be signed.</p>
<p>ACME CORP</p><p>By: /s/ Jane Doe</p>
<p>FORM 8-K</p>
</body></html>`

const exhibitDoc = `<html><body><p>FORM 8-K</p><p>Acme announces name change to Acme Global.</p></body></html>`

func newDocumentServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/filing-index.htm", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, indexTemplate)
	})
	mux.HandleFunc("/data/main.htm", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, mainDoc)
	})
	mux.HandleFunc("/data/ex99.htm", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, exhibitDoc)
	})
	mux.HandleFunc("/data/logo.jpg", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("graphic exhibit must not be fetched")
	})
	return httptest.NewServer(mux)
}

func TestFetchTextCombinesAndCleans(t *testing.T) {
	t.Parallel()

	var hits int32
	server := newDocumentServer(t, &hits)
	defer server.Close()

	fetcher := NewDocumentFetcher(newTestClient(server), fastExecutor(), FetchConfig{}, nil)
	text, err := fetcher.FetchText(context.Background(), domain.FilingReference{
		DocumentURL: server.URL + "/filing-index.htm",
		FormType:    "8-K",
	})
	if err != nil {
		t.Fatalf("FetchText error: %v", err)
	}

	if hits != 2 {
		t.Fatalf("expected 2 document fetches, got %d", hits)
	}
	for _, want := range []string{"1-for-25 reverse stock split", "Item 5.03", "name change"} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing %q in text:\n%s", want, text)
		}
	}
	for _, unwanted := range []string{"Washington, D.C. 20549", "Written communications", "Jane Doe"} {
		if strings.Contains(text, unwanted) {
			t.Fatalf("boilerplate %q not stripped:\n%s", unwanted, text)
		}
	}
	if strings.Count(text, "FORM 8-K") != 1 {
		t.Fatalf("repeated form header should appear once:\n%s", text)
	}
	if strings.Index(text, "reverse stock split") > strings.Index(text, "name change") {
		t.Fatalf("primary document should come first:\n%s", text)
	}
}

func TestCleanTextKeepsContentsEntryForSignatures(t *testing.T) {
	t.Parallel()

	text := strings.Join([]string{
		"Item 1.01 Entry into a Material Definitive Agreement",
		"Signatures",
		"Item 3.02 Unregistered Sales of Equity Securities",
		"The Company issued 2,000,000 shares to the investor.",
		"SIGNATURES",
		"Pursuant to the requirements of the Securities Exchange Act of 1934, the registrant has duly caused this report to be signed.",
		"ACME CORP",
		"By: /s/ Jane Doe",
		"Exhibit 99.1 Press release",
	}, "\n")

	got := cleanText(text, map[string]struct{}{})

	for _, want := range []string{"Item 3.02", "issued 2,000,000 shares", "Exhibit 99.1"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q after contents entry:\n%s", want, got)
		}
	}
	for _, unwanted := range []string{"Pursuant to the requirements", "Jane Doe", "ACME CORP"} {
		if strings.Contains(got, unwanted) {
			t.Fatalf("signature block %q not stripped:\n%s", unwanted, got)
		}
	}
	if strings.Count(got, "Signatures") != 1 {
		t.Fatalf("contents entry should be kept once:\n%s", got)
	}
}

func TestFetchTextTruncatesRuneSafe(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "ééééé")
	}))
	defer server.Close()

	fetcher := NewDocumentFetcher(newTestClient(server), fastExecutor(), FetchConfig{MaxTextBytes: 5}, nil)
	text, err := fetcher.FetchText(context.Background(), domain.FilingReference{DocumentURL: server.URL + "/doc.txt"})
	if err != nil {
		t.Fatalf("FetchText error: %v", err)
	}
	if text != "éé" {
		t.Fatalf("expected rune-safe cut, got %q", text)
	}
}

func TestFetchTextRetriesAndGivesUp(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	fetcher := NewDocumentFetcher(newTestClient(server), fastExecutor(), FetchConfig{}, nil)
	text, err := fetcher.FetchText(context.Background(), domain.FilingReference{DocumentURL: server.URL + "/x-index.htm"})
	if err == nil || text != "" {
		t.Fatalf("expected failure, got %q, %v", text, err)
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate-limit error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRankDocuments(t *testing.T) {
	t.Parallel()

	docs := []parser.IndexDocument{
		{Seq: 2, Name: "ex99.htm", Type: "EX-99.1"},
		{Seq: 1, Name: "main.htm", Type: "8-K"},
		{Seq: 0, Name: "full.txt"},
		{Seq: 3, Name: "img.png", Type: "GRAPHIC"},
		{Seq: 4, Name: "R1.htm", Type: "EX-101.INS"},
	}

	got := rankDocuments(docs, "8-K")
	want := []string{"full.txt", "main.htm", "ex99.htm"}
	if len(got) != len(want) {
		t.Fatalf("expected %d documents, got %+v", len(want), got)
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Fatalf("position %d: want %s, got %s", i, name, got[i].Name)
		}
	}
}
