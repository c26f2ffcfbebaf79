package marketdata

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"FilingScanner/internal/domain"
	"FilingScanner/internal/ports"
)

const DefaultFMPURL = "https://financialmodelingprep.com"

type fmpQuote struct {
	Price             float64 `json:"price"`
	Volume            float64 `json:"volume"`
	AvgVolume         float64 `json:"avgVolume"`
	SharesOutstanding float64 `json:"sharesOutstanding"`
}

type fmpFloat struct {
	FloatShares       float64 `json:"floatShares"`
	OutstandingShares float64 `json:"outstandingShares"`
}

// fmpQuoteTTL bounds how long one quote serves the four quote fields.
const fmpQuoteTTL = 30 * time.Second

type cachedQuote struct {
	quote fmpQuote
	at    time.Time
}

// FMP serves quotes and the share float endpoint. Price, volume, average
// volume and shares outstanding share one quote call per ticker.
type FMP struct {
	src    httpSource
	apiKey string
	now    func() time.Time

	group  singleflight.Group
	mu     sync.Mutex
	quotes map[string]cachedQuote
}

func NewFMP(client *http.Client, baseURL, apiKey string) *FMP {
	if baseURL == "" {
		baseURL = DefaultFMPURL
	}
	return &FMP{
		src:    newHTTPSource("fmp", client, baseURL),
		apiKey: apiKey,
		now:    time.Now,
		quotes: make(map[string]cachedQuote),
	}
}

func (f *FMP) Name() string { return "fmp" }

func (f *FMP) Fetch(ctx context.Context, field domain.Field, req ports.MarketDataRequest) (float64, error) {
	ticker, err := needTicker(req.Ticker)
	if err != nil {
		return 0, err
	}

	if field == domain.FieldFloat {
		var rows []fmpFloat
		q := url.Values{"symbol": {ticker}, "apikey": {f.apiKey}}
		if err := f.src.getJSON(ctx, "/api/v4/shares_float", q, &rows); err != nil {
			return 0, err
		}
		if len(rows) == 0 {
			return 0, ErrNoData
		}
		return rows[0].FloatShares, nil
	}

	q, err := f.quote(ctx, ticker)
	if err != nil {
		return 0, err
	}

	switch field {
	case domain.FieldPrice:
		return q.Price, nil
	case domain.FieldVolume:
		return q.Volume, nil
	case domain.FieldAverageVolume:
		return q.AvgVolume, nil
	case domain.FieldSharesOutstanding:
		return q.SharesOutstanding, nil
	}
	return 0, ErrUnsupported
}

func (f *FMP) quote(ctx context.Context, ticker string) (fmpQuote, error) {
	f.mu.Lock()
	if c, ok := f.quotes[ticker]; ok && f.now().Sub(c.at) < fmpQuoteTTL {
		f.mu.Unlock()
		return c.quote, nil
	}
	f.mu.Unlock()

	v, err, _ := f.group.Do(ticker, func() (interface{}, error) {
		var rows []fmpQuote
		if err := f.src.getJSON(ctx, "/api/v3/quote/"+url.PathEscape(ticker), url.Values{"apikey": {f.apiKey}}, &rows); err != nil {
			return fmpQuote{}, err
		}
		if len(rows) == 0 {
			return fmpQuote{}, ErrNoData
		}
		f.mu.Lock()
		for k, c := range f.quotes {
			if f.now().Sub(c.at) >= fmpQuoteTTL {
				delete(f.quotes, k)
			}
		}
		f.quotes[ticker] = cachedQuote{quote: rows[0], at: f.now()}
		f.mu.Unlock()
		return rows[0], nil
	})
	if err != nil {
		return fmpQuote{}, err
	}
	return v.(fmpQuote), nil
}
