package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"FilingScanner/internal/domain"
	"FilingScanner/internal/ports"
)

const DefaultSECDataURL = "https://data.sec.gov"

// RegistryFetcher is the rate-limited registry client.
type RegistryFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// SECXBRL reads the cover-page share count the registrant last reported.
type SECXBRL struct {
	fetcher RegistryFetcher
	baseURL string
}

func NewSECXBRL(fetcher RegistryFetcher, baseURL string) *SECXBRL {
	if baseURL == "" {
		baseURL = DefaultSECDataURL
	}
	return &SECXBRL{fetcher: fetcher, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *SECXBRL) Name() string { return "sec_xbrl" }

func (s *SECXBRL) Fetch(ctx context.Context, field domain.Field, req ports.MarketDataRequest) (float64, error) {
	if field != domain.FieldSharesOutstanding {
		return 0, ErrUnsupported
	}
	cik := strings.TrimLeft(strings.TrimSpace(req.RegistrantID), "0")
	if cik == "" {
		return 0, ErrNoData
	}
	cik = strings.Repeat("0", max(0, 10-len(cik))) + cik

	url := fmt.Sprintf("%s/api/xbrl/companyconcept/CIK%s/dei/EntityCommonStockSharesOutstanding.json", s.baseURL, cik)
	body, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return 0, err
	}

	var concept struct {
		Units map[string][]struct {
			Val   float64 `json:"val"`
			End   string  `json:"end"`
			Filed string  `json:"filed"`
		} `json:"units"`
	}
	if err := json.Unmarshal(body, &concept); err != nil {
		return 0, fmt.Errorf("sec_xbrl: decode: %w", err)
	}

	var (
		best     float64
		bestDate string
	)
	for _, fact := range concept.Units["shares"] {
		date := fact.Filed + fact.End
		if date >= bestDate {
			best, bestDate = fact.Val, date
		}
	}
	if bestDate == "" {
		return 0, ErrNoData
	}
	return best, nil
}
