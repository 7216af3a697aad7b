// Package coingecko reads coin market data and price history from the CoinGecko v3 API.
package coingecko

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"xrp_etf_backend/services/datafetcher"
)

// XRP is the CoinGecko id for XRP
const XRP = "ripple"

// Market is the market snapshot of one coin in USD
type Market struct {
	ID                string    `json:"id"`
	Symbol            string    `json:"symbol"`
	Name              string    `json:"name"`
	Rank              int       `json:"rank"`
	PriceUSD          float64   `json:"priceUsd"`
	MarketCapUSD      float64   `json:"marketCapUsd"`
	VolumeUSD         float64   `json:"volumeUsd"`
	High24h           float64   `json:"high24h"`
	Low24h            float64   `json:"low24h"`
	ATH               float64   `json:"ath"`
	Change24h         float64   `json:"change24h"`
	Change7d          float64   `json:"change7d"`
	Change30d         float64   `json:"change30d"`
	CirculatingSupply float64   `json:"circulatingSupply"`
	TotalSupply       float64   `json:"totalSupply"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Point is one sample of a time series
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// MarketChart holds price and volume history
type MarketChart struct {
	Prices  []Point `json:"prices"`
	Volumes []Point `json:"volumes"`
}

type usd struct {
	USD *float64 `json:"usd"`
}

func (u usd) value() float64 {
	if u.USD == nil {
		return 0
	}
	return *u.USD
}

type coinResponse struct {
	ID            string `json:"id"`
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	MarketCapRank int    `json:"market_cap_rank"`
	MarketData    *struct {
		CurrentPrice      usd       `json:"current_price"`
		MarketCap         usd       `json:"market_cap"`
		TotalVolume       usd       `json:"total_volume"`
		High24h           usd       `json:"high_24h"`
		Low24h            usd       `json:"low_24h"`
		ATH               usd       `json:"ath"`
		Change24h         float64   `json:"price_change_percentage_24h"`
		Change7d          float64   `json:"price_change_percentage_7d"`
		Change30d         float64   `json:"price_change_percentage_30d"`
		CirculatingSupply float64   `json:"circulating_supply"`
		TotalSupply       float64   `json:"total_supply"`
		LastUpdated       time.Time `json:"last_updated"`
	} `json:"market_data"`
}

type chartResponse struct {
	Prices       [][2]float64 `json:"prices"`
	TotalVolumes [][2]float64 `json:"total_volumes"`
}

// Client talks to CoinGecko
type Client struct {
	fetcher *datafetcher.DataFetcher
	baseURL string
	apiKey  string
}

// NewClient creates a CoinGecko client. apiKey is optional (demo tier).
func NewClient(fetcher *datafetcher.DataFetcher, baseURL, apiKey string) *Client {
	return &Client{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (c *Client) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"x-cg-demo-api-key": c.apiKey}
}

// Coin fetches the market snapshot for id
func (c *Client) Coin(ctx context.Context, id string) (*Market, error) {
	query := url.Values{
		"localization":   {"false"},
		"tickers":        {"false"},
		"community_data": {"false"},
		"developer_data": {"false"},
	}

	var resp coinResponse
	if err := c.fetcher.GetJSON(ctx, c.baseURL+"/coins/"+url.PathEscape(id), query, c.headers(), &resp); err != nil {
		return nil, fmt.Errorf("coingecko coin %s: %w", id, err)
	}
	if resp.MarketData == nil || resp.MarketData.CurrentPrice.USD == nil {
		return nil, datafetcher.Malformed("coingecko coin %s: missing market_data", id)
	}

	md := resp.MarketData
	return &Market{
		ID:                resp.ID,
		Symbol:            strings.ToUpper(resp.Symbol),
		Name:              resp.Name,
		Rank:              resp.MarketCapRank,
		PriceUSD:          md.CurrentPrice.value(),
		MarketCapUSD:      md.MarketCap.value(),
		VolumeUSD:         md.TotalVolume.value(),
		High24h:           md.High24h.value(),
		Low24h:            md.Low24h.value(),
		ATH:               md.ATH.value(),
		Change24h:         md.Change24h,
		Change7d:          md.Change7d,
		Change30d:         md.Change30d,
		CirculatingSupply: md.CirculatingSupply,
		TotalSupply:       md.TotalSupply,
		UpdatedAt:         md.LastUpdated,
	}, nil
}

// MarketChart fetches USD price and volume history for the last days
func (c *Client) MarketChart(ctx context.Context, id string, days int) (*MarketChart, error) {
	query := url.Values{
		"vs_currency": {"usd"},
		"days":        {strconv.Itoa(days)},
	}

	var resp chartResponse
	endpoint := c.baseURL + "/coins/" + url.PathEscape(id) + "/market_chart"
	if err := c.fetcher.GetJSON(ctx, endpoint, query, c.headers(), &resp); err != nil {
		return nil, fmt.Errorf("coingecko market_chart %s: %w", id, err)
	}
	if len(resp.Prices) == 0 {
		return nil, datafetcher.Malformed("coingecko market_chart %s: no prices", id)
	}

	return &MarketChart{
		Prices:  toPoints(resp.Prices),
		Volumes: toPoints(resp.TotalVolumes),
	}, nil
}

func toPoints(raw [][2]float64) []Point {
	points := make([]Point, 0, len(raw))
	for _, p := range raw {
		points = append(points, Point{
			Time:  time.UnixMilli(int64(p[0])).UTC(),
			Value: p[1],
		})
	}
	return points
}
