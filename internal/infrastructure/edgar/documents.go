package edgar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/k3a/html2text"

	"FilingScanner/internal/domain"
	"FilingScanner/internal/infrastructure/parser"
	"FilingScanner/internal/infrastructure/resilience"
	"FilingScanner/internal/ports"
)

// ErrNoText is returned when no candidate document produced usable text.
var ErrNoText = errors.New("edgar: no filing text")

var (
	skippedTypes = []string{"GRAPHIC", "XML", "ZIP", "EX-101", "JSON"}
	skippedExts  = map[string]bool{
		"jpg": true, "jpeg": true, "png": true, "gif": true, "pdf": true,
		"xml": true, "xsd": true, "json": true, "zip": true, "xlsx": true,
	}
)

type FetchConfig struct {
	MaxDocuments     int
	MaxDocumentBytes int64
	MaxTextBytes     int
}

func DefaultFetchConfig() FetchConfig {
	return FetchConfig{MaxDocuments: 2, MaxDocumentBytes: 2 << 20, MaxTextBytes: 200000}
}

// DocumentFetcher turns a filing index page into combined plain text.
type DocumentFetcher struct {
	client   *Client
	executor *resilience.Executor
	cfg      FetchConfig
	logger   *slog.Logger
}

var _ ports.DocumentFetcher = (*DocumentFetcher)(nil)

func NewDocumentFetcher(client *Client, executor *resilience.Executor, cfg FetchConfig, logger *slog.Logger) *DocumentFetcher {
	def := DefaultFetchConfig()
	if cfg.MaxDocuments <= 0 {
		cfg.MaxDocuments = def.MaxDocuments
	}
	if cfg.MaxDocumentBytes <= 0 {
		cfg.MaxDocumentBytes = def.MaxDocumentBytes
	}
	if cfg.MaxTextBytes <= 0 {
		cfg.MaxTextBytes = def.MaxTextBytes
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig(), logger)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentFetcher{client: client, executor: executor, cfg: cfg, logger: logger}
}

// FetchText downloads the index page, picks the best candidate documents and
// returns their cleaned, concatenated text. A reference that already points at
// a document (not an index page) is fetched directly.
func (f *DocumentFetcher) FetchText(ctx context.Context, ref domain.FilingReference) (string, error) {
	if strings.TrimSpace(ref.DocumentURL) == "" {
		return "", fmt.Errorf("filing %s: %w", ref.Title, ErrNoText)
	}

	var candidates []parser.IndexDocument
	if isIndexPage(ref.DocumentURL) {
		index, err := f.get(ctx, "edgar.index", ref.DocumentURL)
		if err != nil {
			return "", fmt.Errorf("fetch index %s: %w", ref.DocumentURL, err)
		}
		docs, err := parser.ParseIndexPage(index.Body, ref.DocumentURL)
		if err != nil {
			return "", err
		}
		candidates = rankDocuments(docs, ref.FormType)
	} else {
		candidates = []parser.IndexDocument{{URL: ref.DocumentURL, Type: ref.FormType}}
	}
	if len(candidates) > f.cfg.MaxDocuments {
		candidates = candidates[:f.cfg.MaxDocuments]
	}

	var (
		parts   []string
		lastErr error
		seen    = map[string]struct{}{}
	)
	for _, doc := range candidates {
		resp, err := f.get(ctx, "edgar.document", doc.URL)
		if err != nil {
			lastErr = err
			f.logger.Warn("document fetch failed", "url", doc.URL, "error", err)
			continue
		}
		if resp.Truncated {
			f.logger.Debug("document truncated", "url", doc.URL, "limit", f.cfg.MaxDocumentBytes)
		}

		raw := string(resp.Body)
		if looksLikeMarkup(resp.ContentType, resp.Body) {
			raw = html2text.HTML2Text(raw)
		}
		if text := cleanText(raw, seen); text != "" {
			parts = append(parts, text)
		}
	}

	if len(parts) == 0 {
		if lastErr != nil {
			return "", fmt.Errorf("filing %s: %w", ref.DocumentURL, lastErr)
		}
		return "", fmt.Errorf("filing %s: %w", ref.DocumentURL, ErrNoText)
	}
	return truncateText(strings.Join(parts, "\n\n"), f.cfg.MaxTextBytes), nil
}

func (f *DocumentFetcher) get(ctx context.Context, op, url string) (Response, error) {
	var resp Response
	err := f.executor.Execute(ctx, op, func(ctx context.Context) error {
		r, err := f.client.Get(ctx, url, f.cfg.MaxDocumentBytes)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, Classify)
	return resp, err
}

// rankDocuments drops non-text exhibits and orders the rest: plain text
// before markup, the primary form document before exhibits, then by sequence.
func rankDocuments(docs []parser.IndexDocument, formType string) []parser.IndexDocument {
	var out []parser.IndexDocument
	for _, d := range docs {
		if skipDocument(d) {
			continue
		}
		out = append(out, d)
	}

	form := strings.ToUpper(strings.TrimSpace(formType))
	primary := func(d parser.IndexDocument) int {
		t := strings.ToUpper(d.Type)
		if (form != "" && t == form) || d.Seq == 1 {
			return 0
		}
		return 1
	}
	sort.SliceStable(out, func(i, j int) bool {
		fi, fj := formatRank(out[i]), formatRank(out[j])
		if fi != fj {
			return fi < fj
		}
		pi, pj := primary(out[i]), primary(out[j])
		if pi != pj {
			return pi < pj
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

func skipDocument(d parser.IndexDocument) bool {
	t := strings.ToUpper(d.Type)
	for _, prefix := range skippedTypes {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return skippedExts[d.Ext()]
}

func formatRank(d parser.IndexDocument) int {
	switch d.Ext() {
	case "txt":
		return 0
	case "htm", "html":
		return 1
	default:
		return 2
	}
}

func isIndexPage(url string) bool {
	u := strings.ToLower(url)
	return strings.HasSuffix(u, "-index.htm") || strings.HasSuffix(u, "-index.html")
}
