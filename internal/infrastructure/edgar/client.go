// Package edgar talks to the SEC registry: filing index pages, documents and
// the per-entity submissions records. Every request goes through one shared
// rate limiter and carries the configured User-Agent.
package edgar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"FilingScanner/internal/infrastructure/resilience"
	"FilingScanner/internal/ratelimit"
)

const (
	defaultUserAgent = "FilingScanner/1.0 admin@example.com"
	rateThresholdMsg = "Request Rate Threshold Exceeded"
	defaultMaxBytes  = 2 << 20
)

// ErrRateLimited marks a 429 or a "blocked" response; callers cool down
// before retrying.
var ErrRateLimited = errors.New("edgar: rate limited")

// StatusError is a non-2xx response other than a rate-limit block.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("edgar: %s returned %d", e.URL, e.StatusCode)
}

// Response is a fully read, size-capped body.
type Response struct {
	Body        []byte
	ContentType string
	Truncated   bool
}

type Client struct {
	http      *http.Client
	limiter   *ratelimit.Limiter
	userAgent string
}

// NewClient shares limiter across every registry request.
func NewClient(httpClient *http.Client, limiter *ratelimit.Limiter, userAgent string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.DefaultMinInterval)
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = defaultUserAgent
	}
	return &Client{http: httpClient, limiter: limiter, userAgent: userAgent}
}

// Get waits for the limiter, then reads at most maxBytes of the body.
func (c *Client) Get(ctx context.Context, url string, maxBytes int64) (Response, error) {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Response{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,text/plain,application/json,application/atom+xml;q=0.9,*/*;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return Response{}, fmt.Errorf("read %s: %w", url, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Response{}, fmt.Errorf("%w: %s returned 429", ErrRateLimited, url)
	case resp.StatusCode == http.StatusForbidden:
		// SEC answers 403 both for undeclared agents and for throttled ones.
		return Response{}, fmt.Errorf("%w: %s returned 403", ErrRateLimited, url)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Response{}, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	if bytes.Contains(body[:min(len(body), 4096)], []byte(rateThresholdMsg)) {
		return Response{}, fmt.Errorf("%w: %s", ErrRateLimited, rateThresholdMsg)
	}

	out := Response{Body: body, ContentType: resp.Header.Get("Content-Type")}
	if int64(len(body)) > maxBytes {
		out.Body = body[:maxBytes]
		out.Truncated = true
	}
	return out, nil
}

// Classify maps registry errors to the retry policy: rate limits cool down,
// client errors are permanent, everything else is transient.
func Classify(err error) resilience.ErrorClassification {
	switch {
	case errors.Is(err, context.Canceled):
		return resilience.ErrorClassification{}
	case errors.Is(err, ErrRateLimited):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true, Cooldown: true}
	}
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 && se.StatusCode != http.StatusRequestTimeout {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

// Fetch reads a registry URL with the default cap; feed scanners use it.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Get(ctx, url, defaultMaxBytes)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
