// Package feargreed reads the crypto Fear & Greed index from alternative.me.
package feargreed

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"xrp_etf_backend/services/datafetcher"
)

// Index is one reading of the index
type Index struct {
	Value          int       `json:"value"`
	Classification string    `json:"classification"`
	Time           time.Time `json:"time"`
}

type response struct {
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
		Timestamp           string `json:"timestamp"`
	} `json:"data"`
}

// Client reads the index
type Client struct {
	fetcher *datafetcher.DataFetcher
	url     string
}

// NewClient creates a new client
func NewClient(fetcher *datafetcher.DataFetcher, url string) *Client {
	return &Client{fetcher: fetcher, url: url}
}

// Latest returns the current reading
func (c *Client) Latest(ctx context.Context) (*Index, error) {
	var resp response
	if err := c.fetcher.GetJSON(ctx, c.url, url.Values{"limit": {"1"}}, nil, &resp); err != nil {
		return nil, fmt.Errorf("fear & greed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, datafetcher.Malformed("fear & greed: empty data")
	}

	d := resp.Data[0]
	value, err := strconv.Atoi(d.Value)
	if err != nil || value < 0 || value > 100 {
		return nil, datafetcher.Malformed("fear & greed: bad value %q", d.Value)
	}

	index := &Index{Value: value, Classification: d.ValueClassification}
	if ts, err := strconv.ParseInt(d.Timestamp, 10, 64); err == nil {
		index.Time = time.Unix(ts, 0).UTC()
	}
	return index, nil
}
