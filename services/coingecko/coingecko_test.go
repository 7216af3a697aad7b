package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xrp_etf_backend/services/datafetcher"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(datafetcher.NewDataFetcher(time.Second, zerolog.Nop()), srv.URL, "")
}

func TestCoin(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/ripple", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("tickers"))
		w.Write([]byte(`{
			"id": "ripple", "symbol": "xrp", "name": "XRP", "market_cap_rank": 4,
			"market_data": {
				"current_price": {"usd": 2.41},
				"market_cap": {"usd": 140000000000},
				"total_volume": {"usd": 5200000000},
				"high_24h": {"usd": 2.5}, "low_24h": {"usd": 2.3}, "ath": {"usd": 3.84},
				"price_change_percentage_24h": 3.2,
				"price_change_percentage_7d": -1.5,
				"price_change_percentage_30d": 12.0,
				"circulating_supply": 58000000000,
				"total_supply": 99986000000,
				"last_updated": "2025-01-02T10:00:00Z"
			}
		}`))
	})

	m, err := client.Coin(context.Background(), XRP)
	require.NoError(t, err)
	assert.Equal(t, "XRP", m.Symbol)
	assert.Equal(t, 4, m.Rank)
	assert.Equal(t, 2.41, m.PriceUSD)
	assert.Equal(t, 3.2, m.Change24h)
	assert.Equal(t, -1.5, m.Change7d)
	assert.Equal(t, float64(5200000000), m.VolumeUSD)
}

func TestCoin_MissingMarketData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "ripple", "symbol": "xrp"}`))
	})

	_, err := client.Coin(context.Background(), XRP)
	assert.ErrorIs(t, err, datafetcher.ErrMalformed)
}

func TestMarketChart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/ripple/market_chart", r.URL.Path)
		assert.Equal(t, "30", r.URL.Query().Get("days"))
		w.Write([]byte(`{"prices": [[1735689600000, 2.1], [1735776000000, 2.2]], "total_volumes": [[1735689600000, 1000]]}`))
	})

	chart, err := client.MarketChart(context.Background(), XRP, 30)
	require.NoError(t, err)
	require.Len(t, chart.Prices, 2)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), chart.Prices[0].Time)
	assert.Equal(t, 2.2, chart.Prices[1].Value)
	assert.Len(t, chart.Volumes, 1)
}
