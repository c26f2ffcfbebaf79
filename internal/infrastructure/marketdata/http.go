package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBytes = 1 << 20

// StatusError is a non-2xx vendor response.
type StatusError struct {
	Provider   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("marketdata: %s returned %d", e.Provider, e.StatusCode)
}

// httpSource is the shared JSON GET used by the vendor providers.
type httpSource struct {
	name    string
	client  *http.Client
	baseURL string
}

func newHTTPSource(name string, client *http.Client, baseURL string) httpSource {
	if client == nil {
		client = &http.Client{Timeout: DefaultProviderTimeout + 2*time.Second}
	}
	return httpSource{name: name, client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s httpSource) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := s.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", s.name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return &StatusError{Provider: s.name, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", s.name, err)
	}
	return nil
}

func needTicker(ticker string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t == "" {
		return "", ErrNoData
	}
	return t, nil
}
