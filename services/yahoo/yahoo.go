// Package yahoo reads quotes and daily bars from the Yahoo Finance chart endpoint.
package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"xrp_etf_backend/services/datafetcher"
)

// Bar is one OHLCV candle
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Chart is a reshaped chart response for one symbol
type Chart struct {
	Symbol        string  `json:"symbol"`
	Currency      string  `json:"currency"`
	Exchange      string  `json:"exchange"`
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previousClose"`
	Volume        int64   `json:"volume"`
	Bars          []Bar   `json:"bars"`
}

// Totals sums share volume and close*volume over the bars
func (c *Chart) Totals() (shares int64, dollars float64) {
	for _, b := range c.Bars {
		shares += b.Volume
		dollars += b.Close * float64(b.Volume)
	}
	return shares, dollars
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string   `json:"symbol"`
				Currency           string   `json:"currency"`
				ExchangeName       string   `json:"exchangeName"`
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
				RegularMarketVol   *int64   `json:"regularMarketVolume"`
				PreviousClose      *float64 `json:"previousClose"`
				ChartPreviousClose *float64 `json:"chartPreviousClose"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Client talks to the chart endpoint
type Client struct {
	fetcher *datafetcher.DataFetcher
	baseURL string
	limiter *rate.Limiter
}

// NewClient creates a client paced at rps requests per second (0 means unpaced)
func NewClient(fetcher *datafetcher.DataFetcher, baseURL string, rps int) *Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(limit, max(rps, 1)),
	}
}

// Chart fetches bars for symbol over rng (1d, 5d, 1mo, 3mo, 6mo, 1y) at interval (1d, ...)
func (c *Client) Chart(ctx context.Context, symbol, rng, interval string) (*Chart, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s", c.baseURL, url.PathEscape(symbol))
	query := url.Values{
		"range":    {rng},
		"interval": {interval},
	}

	var resp chartResponse
	if err := c.fetcher.GetJSON(ctx, endpoint, query, nil, &resp); err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}
	if resp.Chart.Error != nil {
		return nil, datafetcher.Malformed("yahoo chart %s: %s", symbol, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, datafetcher.Malformed("yahoo chart %s: empty result", symbol)
	}

	result := resp.Chart.Result[0]
	chart := &Chart{
		Symbol:   symbol,
		Currency: result.Meta.Currency,
		Exchange: result.Meta.ExchangeName,
	}

	if len(result.Indicators.Quote) > 0 {
		q := result.Indicators.Quote[0]
		for i, ts := range result.Timestamp {
			closePx := at(q.Close, i)
			if closePx == 0 {
				continue
			}
			chart.Bars = append(chart.Bars, Bar{
				Time:   time.Unix(ts, 0).UTC(),
				Open:   at(q.Open, i),
				High:   at(q.High, i),
				Low:    at(q.Low, i),
				Close:  closePx,
				Volume: atInt(q.Volume, i),
			})
		}
	}

	switch {
	case result.Meta.RegularMarketPrice != nil:
		chart.Price = *result.Meta.RegularMarketPrice
	case len(chart.Bars) > 0:
		chart.Price = chart.Bars[len(chart.Bars)-1].Close
	}
	if chart.Price <= 0 {
		return nil, datafetcher.Malformed("yahoo chart %s: no price", symbol)
	}

	switch {
	case result.Meta.RegularMarketVol != nil:
		chart.Volume = *result.Meta.RegularMarketVol
	case len(chart.Bars) > 0:
		chart.Volume = chart.Bars[len(chart.Bars)-1].Volume
	}

	switch {
	case result.Meta.PreviousClose != nil:
		chart.PreviousClose = *result.Meta.PreviousClose
	case result.Meta.ChartPreviousClose != nil:
		chart.PreviousClose = *result.Meta.ChartPreviousClose
	}

	return chart, nil
}

func at(values []*float64, i int) float64 {
	if i >= len(values) || values[i] == nil {
		return 0
	}
	return *values[i]
}

func atInt(values []*int64, i int) int64 {
	if i >= len(values) || values[i] == nil {
		return 0
	}
	return *values[i]
}
