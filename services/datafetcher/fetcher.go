// Package datafetcher is the shared HTTP transport for every upstream market-data API.
package datafetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultTimeout bounds one upstream request
	DefaultTimeout = 10 * time.Second
	maxBodyBytes   = 8 << 20
	userAgent      = "xrp-etf-backend/1.0"
)

var (
	// ErrUpstream wraps transport failures and non-2xx responses
	ErrUpstream = errors.New("upstream unavailable")
	// ErrMalformed marks a payload that is missing fields the caller relies on
	ErrMalformed = errors.New("malformed upstream payload")
)

// StatusError carries the status code of a non-2xx response
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.URL, e.Status, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrUpstream
}

// Malformed builds an ErrMalformed with context
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// DataFetcher performs JSON requests against upstream APIs
type DataFetcher struct {
	httpClient *http.Client
	log        zerolog.Logger
}

// NewDataFetcher creates a new data fetcher instance
func NewDataFetcher(timeout time.Duration, log zerolog.Logger) *DataFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &DataFetcher{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log.With().Str("component", "datafetcher").Logger(),
	}
}

// WithHTTPClient replaces the underlying client, for tests
func (df *DataFetcher) WithHTTPClient(client *http.Client) *DataFetcher {
	df.httpClient = client
	return df
}

// GetJSON issues a GET and decodes the JSON body into out
func (df *DataFetcher) GetJSON(ctx context.Context, rawURL string, query url.Values, headers map[string]string, out any) error {
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return df.do(req, out)
}

// PostJSON issues a POST with a JSON body and decodes the JSON response into out
func (df *DataFetcher) PostJSON(ctx context.Context, rawURL string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return df.do(req, out)
}

func (df *DataFetcher) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}

	start := time.Now()
	resp, err := df.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUpstream, req.Method, req.URL.Host, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrUpstream, err)
	}

	df.log.Debug().
		Str("method", req.Method).
		Str("host", req.URL.Host).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("Upstream request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return &StatusError{URL: req.URL.Host + req.URL.Path, Status: resp.StatusCode, Body: snippet}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: failed to parse response: %v", ErrMalformed, err)
	}
	return nil
}
