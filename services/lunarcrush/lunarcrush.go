// Package lunarcrush reads social metrics for a coin. It is optional and only used when a
// key is configured.
package lunarcrush

import (
	"context"
	"fmt"
	"strings"

	"xrp_etf_backend/config"
	"xrp_etf_backend/services/datafetcher"
)

// Social is the subset of coin metrics used by the sentiment score
type Social struct {
	GalaxyScore     float64 `json:"galaxyScore"`
	AltRank         int     `json:"altRank"`
	Sentiment       float64 `json:"sentiment"`
	SocialDominance float64 `json:"socialDominance"`
	Interactions24h float64 `json:"interactions24h"`
}

type response struct {
	Data *struct {
		GalaxyScore     float64 `json:"galaxy_score"`
		AltRank         int     `json:"alt_rank"`
		Sentiment       float64 `json:"sentiment"`
		SocialDominance float64 `json:"social_dominance"`
		Interactions24h float64 `json:"interactions_24h"`
	} `json:"data"`
}

// Client reads coin metrics
type Client struct {
	fetcher *datafetcher.DataFetcher
	baseURL string
	apiKey  string
}

// NewClient creates a new client
func NewClient(fetcher *datafetcher.DataFetcher, baseURL, apiKey string) *Client {
	return &Client{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// Enabled reports whether a key is configured
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Coin returns social metrics for the coin symbol (e.g. "xrp")
func (c *Client) Coin(ctx context.Context, symbol string) (*Social, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("lunarcrush: %w", config.ErrNotConfigured)
	}

	var resp response
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	endpoint := fmt.Sprintf("%s/coins/%s/v1", c.baseURL, strings.ToLower(symbol))
	if err := c.fetcher.GetJSON(ctx, endpoint, nil, headers, &resp); err != nil {
		return nil, fmt.Errorf("lunarcrush %s: %w", symbol, err)
	}
	if resp.Data == nil {
		return nil, datafetcher.Malformed("lunarcrush %s: missing data", symbol)
	}
	d := resp.Data
	return &Social{
		GalaxyScore:     d.GalaxyScore,
		AltRank:         d.AltRank,
		Sentiment:       d.Sentiment,
		SocialDominance: d.SocialDominance,
		Interactions24h: d.Interactions24h,
	}, nil
}
