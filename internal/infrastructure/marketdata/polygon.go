package marketdata

import (
	"context"
	"net/http"
	"net/url"

	"FilingScanner/internal/domain"
	"FilingScanner/internal/ports"
)

const DefaultPolygonURL = "https://api.polygon.io"

type Polygon struct {
	src    httpSource
	apiKey string
}

func NewPolygon(client *http.Client, baseURL, apiKey string) *Polygon {
	if baseURL == "" {
		baseURL = DefaultPolygonURL
	}
	return &Polygon{src: newHTTPSource("polygon", client, baseURL), apiKey: apiKey}
}

func (p *Polygon) Name() string { return "polygon" }

func (p *Polygon) Fetch(ctx context.Context, field domain.Field, req ports.MarketDataRequest) (float64, error) {
	ticker, err := needTicker(req.Ticker)
	if err != nil {
		return 0, err
	}
	q := url.Values{"apiKey": {p.apiKey}}

	switch field {
	case domain.FieldPrice, domain.FieldVolume:
		var prev struct {
			Results []struct {
				Close  float64 `json:"c"`
				Volume float64 `json:"v"`
			} `json:"results"`
		}
		if err := p.src.getJSON(ctx, "/v2/aggs/ticker/"+url.PathEscape(ticker)+"/prev", q, &prev); err != nil {
			return 0, err
		}
		if len(prev.Results) == 0 {
			return 0, ErrNoData
		}
		if field == domain.FieldPrice {
			return prev.Results[0].Close, nil
		}
		return prev.Results[0].Volume, nil

	case domain.FieldSharesOutstanding:
		var ref struct {
			Results struct {
				ShareClassShares float64 `json:"share_class_shares_outstanding"`
				WeightedShares   float64 `json:"weighted_shares_outstanding"`
			} `json:"results"`
		}
		if err := p.src.getJSON(ctx, "/v3/reference/tickers/"+url.PathEscape(ticker), q, &ref); err != nil {
			return 0, err
		}
		if ref.Results.ShareClassShares > 0 {
			return ref.Results.ShareClassShares, nil
		}
		return ref.Results.WeightedShares, nil
	}
	return 0, ErrUnsupported
}
