package marketdata

import (
	"context"
	"net/http"
	"net/url"

	"FilingScanner/internal/domain"
	"FilingScanner/internal/ports"
)

const DefaultFinnhubURL = "https://finnhub.io/api/v1"

// Finnhub reports share counts and average volume in millions.
type Finnhub struct {
	src    httpSource
	apiKey string
}

func NewFinnhub(client *http.Client, baseURL, apiKey string) *Finnhub {
	if baseURL == "" {
		baseURL = DefaultFinnhubURL
	}
	return &Finnhub{src: newHTTPSource("finnhub", client, baseURL), apiKey: apiKey}
}

func (f *Finnhub) Name() string { return "finnhub" }

func (f *Finnhub) Fetch(ctx context.Context, field domain.Field, req ports.MarketDataRequest) (float64, error) {
	ticker, err := needTicker(req.Ticker)
	if err != nil {
		return 0, err
	}
	q := url.Values{"symbol": {ticker}, "token": {f.apiKey}}

	switch field {
	case domain.FieldPrice:
		var quote struct {
			Current float64 `json:"c"`
		}
		if err := f.src.getJSON(ctx, "/quote", q, &quote); err != nil {
			return 0, err
		}
		return quote.Current, nil

	case domain.FieldSharesOutstanding:
		var profile struct {
			ShareOutstanding float64 `json:"shareOutstanding"`
		}
		if err := f.src.getJSON(ctx, "/stock/profile2", q, &profile); err != nil {
			return 0, err
		}
		return profile.ShareOutstanding * 1e6, nil

	case domain.FieldAverageVolume:
		q.Set("metric", "all")
		var metrics struct {
			Metric struct {
				AvgVolume10D float64 `json:"10DayAverageTradingVolume"`
			} `json:"metric"`
		}
		if err := f.src.getJSON(ctx, "/stock/metric", q, &metrics); err != nil {
			return 0, err
		}
		return metrics.Metric.AvgVolume10D * 1e6, nil
	}
	return 0, ErrUnsupported
}
