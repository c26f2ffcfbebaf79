package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// IndexDocument is one row of a filing index page's document table.
type IndexDocument struct {
	Seq         int
	Description string
	Name        string
	URL         string
	Type        string
	Size        int64
}

// Ext is the lower-case file extension without the dot.
func (d IndexDocument) Ext() string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(d.Name)), ".")
}

// ParseIndexPage reads the document tables of a "-index.htm" page. Links are
// resolved against pageURL; inline-XBRL viewer links point at the raw file.
func ParseIndexPage(body []byte, pageURL string) ([]IndexDocument, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid index url %s: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse index page: %w", err)
	}

	var docs []IndexDocument
	seen := map[string]struct{}{}

	doc.Find("table.tableFile tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 4 {
			return
		}

		link := cells.Eq(2).Find("a").First()
		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		href = strings.TrimPrefix(href, "/ix?doc=")

		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}

		seq, _ := strconv.Atoi(strings.TrimSpace(cells.Eq(0).Text()))
		var size int64
		if cells.Length() > 4 {
			size, _ = strconv.ParseInt(strings.TrimSpace(cells.Eq(4).Text()), 10, 64)
		}

		// inline XBRL rows render as "acme-8k.htm iXBRL"
		name := path.Base(ref.Path)
		if fields := strings.Fields(link.Text()); len(fields) > 0 {
			name = fields[0]
		}

		docs = append(docs, IndexDocument{
			Seq:         seq,
			Description: strings.TrimSpace(cells.Eq(1).Text()),
			Name:        name,
			URL:         abs,
			Type:        strings.TrimSpace(cells.Eq(3).Text()),
			Size:        size,
		})
	})

	return docs, nil
}
