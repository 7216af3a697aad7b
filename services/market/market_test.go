package market_test

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xrp_etf_backend/config"
	"xrp_etf_backend/models"
	"xrp_etf_backend/services/cache"
	"xrp_etf_backend/services/coingecko"
	"xrp_etf_backend/services/market"
	"xrp_etf_backend/services/market/markettest"
	"xrp_etf_backend/services/yahoo"
)

func totalSymbols() int {
	n := 0
	for _, group := range models.ETFGroups {
		n += len(models.ETFSymbols[group])
	}
	return n
}

func TestETFData_CachesWithinTTL(t *testing.T) {
	fake := markettest.New(t)
	svc := fake.Service(false)
	ctx := context.Background()

	var published int
	svc.OnETFUpdate(func(*models.ETFData) { published++ })

	first, err := svc.ETFData(ctx, false)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, totalSymbols(), fake.Hits(markettest.Yahoo))

	second, err := svc.ETFData(ctx, false)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Same(t, first.Value, second.Value)
	assert.Equal(t, totalSymbols(), fake.Hits(markettest.Yahoo), "no upstream call within TTL")
	assert.Equal(t, 1, published)

	data := first.Value
	assert.Equal(t, models.ETFGroups, data.Groups)
	spot := data.Data["Spot ETFs"]
	require.Len(t, spot, len(models.ETFSymbols["Spot ETFs"]))
	assert.Equal(t, "GXRP", spot[0].Symbol)
	assert.Equal(t, "Grayscale", spot[0].Description)
	assert.Equal(t, markettest.ChartPrice("GXRP"), spot[0].Price)
	assert.Equal(t, int64(1000), spot[0].Daily.Shares)
	require.NotNil(t, spot[0].Weekly)
	assert.Equal(t, int64(600), spot[0].Weekly.Shares)
	assert.Empty(t, data.Errors)
}

func TestETFData_RecordsSymbolFailures(t *testing.T) {
	fake := markettest.New(t)
	fake.FailSymbol("XRPC")
	svc := fake.Service(false)

	res, err := svc.ETFData(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, res.Value.Errors, 1)
	assert.True(t, strings.HasPrefix(res.Value.Errors[0], "XRPC: "))

	for _, etf := range res.Value.Data["Spot ETFs"] {
		assert.NotEqual(t, "XRPC", etf.Symbol)
	}
}

// serviceWithClock returns a service whose cache reads the time from *now
func serviceWithClock(fake *markettest.Fake, now *time.Time) *market.Service {
	cfg := fake.Config(false)
	store := cache.NewStore(cache.WithClock(func() time.Time { return *now }))
	return market.NewService(store, markettest.Clients(cfg), cfg, zerolog.Nop())
}

func TestETFData_StaleWhenUpstreamDown(t *testing.T) {
	fake := markettest.New(t)
	now := time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)
	svc := serviceWithClock(fake, &now)
	ctx := context.Background()

	first, err := svc.ETFData(ctx, false)
	require.NoError(t, err)

	fake.Fail(markettest.Yahoo)
	now = now.Add(2 * config.ETFDataTTL)
	expired, err := svc.ETFData(ctx, false)
	require.NoError(t, err)
	assert.True(t, expired.Stale)
	assert.Same(t, first.Value, expired.Value)
	assert.Equal(t, 2*config.ETFDataTTL, expired.Age())
}

func TestETFData_FailsWithoutPriorValue(t *testing.T) {
	fake := markettest.New(t)
	fake.Fail(markettest.Yahoo)

	_, err := fake.Service(false).ETFData(context.Background(), false)
	assert.Error(t, err)
}

func TestBuildETF_Windows(t *testing.T) {
	day := func(d int) yahoo.Bar {
		return yahoo.Bar{Time: parseDay(t, d), Close: 10, Volume: 100}
	}
	chart := &yahoo.Chart{Symbol: "XRP", Price: 12.346, Volume: 50}
	// one bar per day from Nov 1 to Jan 10
	for d := 0; d < 71; d++ {
		chart.Bars = append(chart.Bars, day(d))
	}

	etf := market.BuildETF(chart)
	assert.Equal(t, "Bitwise XRP", etf.Description)
	assert.Equal(t, 12.35, etf.Price)
	assert.Equal(t, int64(617), etf.Daily.Dollars)
	assert.Equal(t, int64(500), etf.Weekly.Shares)
	assert.Equal(t, int64(3100), etf.Monthly.Shares, "Dec 11 through Jan 10")
	assert.Equal(t, int64(7100), etf.Yearly.Shares)
	assert.Equal(t, int64(71000), etf.Yearly.Dollars)
}

func parseDay(t *testing.T, offset int) time.Time {
	t.Helper()
	return time.Date(2024, 11, 1, 14, 30, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func TestHistorical(t *testing.T) {
	fake := markettest.New(t)
	svc := fake.Service(false)

	res, err := svc.Historical(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "1mo", res.Value.Period)
	assert.Equal(t, append(append([]string{}, models.ETFSymbols["Spot ETFs"]...), "XRP-USD"), res.Value.Symbols)
	require.Len(t, res.Value.Data["XRP-USD"], 3)
	assert.Equal(t, "2025-01-01", res.Value.Data["XRP-USD"][0].Date)

	_, err = svc.Historical(context.Background(), "2w")
	assert.ErrorIs(t, err, market.ErrInvalidPeriod)
}

func TestSentiment(t *testing.T) {
	fake := markettest.New(t)
	svc := fake.Service(false)

	res, err := svc.Sentiment(context.Background(), false)
	require.NoError(t, err)
	s := res.Value

	names := make([]string, 0, len(s.Signals))
	for _, sig := range s.Signals {
		names = append(names, sig.Name)
	}
	assert.Equal(t, []string{"Momentum 24h", "Trend 7d", "Turnover", "Fear & Greed"}, names)
	assert.Equal(t, 2.5, s.PriceUSD)

	// momentum 60, trend 60, turnover 30, fear & greed 72
	want := (60*0.30 + 60*0.20 + 30*0.15 + 72*0.35) / (0.30 + 0.20 + 0.15 + 0.35)
	assert.InDelta(t, want, float64(s.Score), 0.5)
	assert.Equal(t, market.Label(s.Score), s.Label)
}

func TestSentiment_PartialSources(t *testing.T) {
	fake := markettest.New(t)
	fake.Fail(markettest.CoinGecko)
	svc := fake.Service(false)

	res, err := svc.Sentiment(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, res.Value.Signals, 1)
	assert.Equal(t, 72, res.Value.Score)
	assert.Equal(t, "Greed", res.Value.Label)

	fake.Fail(markettest.FearGreed)
	_, err = svc.Sentiment(context.Background(), true)
	assert.Error(t, err, "no source left")
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Extreme Fear", market.Label(10))
	assert.Equal(t, "Fear", market.Label(25))
	assert.Equal(t, "Neutral", market.Label(50))
	assert.Equal(t, "Greed", market.Label(74))
	assert.Equal(t, "Extreme Greed", market.Label(75))
}

func TestEscrow(t *testing.T) {
	fake := markettest.New(t)
	res, err := fake.Service(false).Escrow(context.Background(), false)
	require.NoError(t, err)

	e := res.Value
	assert.Equal(t, "1500000000", e.TotalLocked.String())
	assert.Equal(t, 2, e.Count)
	require.Len(t, e.Upcoming, 1, "released escrows are not upcoming")
	require.NotNil(t, e.NextUnlock)
	assert.Equal(t, 2030, e.NextUnlock.FinishAfter.Year())
}

func TestNetwork(t *testing.T) {
	fake := markettest.New(t)
	res, err := fake.Service(false).Network(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "full", res.Value.ServerState)
	assert.Equal(t, 21, res.Value.Peers)
	assert.Equal(t, "0.2", res.Value.ReserveIncXRP.String())
}

func TestDEX(t *testing.T) {
	fake := markettest.New(t)
	res, err := fake.Service(false).DEX(context.Background(), false)
	require.NoError(t, err)

	d := res.Value
	assert.Equal(t, "XRP/USD", d.Pair)
	assert.InDelta(t, 2.51, d.BestAsk, 1e-9, "asks sorted cheapest first")
	assert.InDelta(t, 2.49, d.BestBid, 1e-9)
	assert.InDelta(t, 2.50, d.MidPrice, 1e-9)
	assert.InDelta(t, 0.8, d.SpreadPct, 1e-9)
	assert.Equal(t, "300", d.AskDepth.String())
	assert.Equal(t, "100", d.BidDepth.String())
}

func TestODL(t *testing.T) {
	fake := markettest.New(t)
	res, err := fake.Service(false).ODL(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, "2000000", res.Value.Total.String())
	require.Len(t, res.Value.Corridors, 2)
	assert.Equal(t, "Bitso", res.Value.Corridors[0].Exchange)
	assert.Empty(t, res.Value.Errors)
}

func TestODL_AllWalletsFail(t *testing.T) {
	fake := markettest.New(t)
	fake.Fail(markettest.XRPL)
	_, err := fake.Service(false).ODL(context.Background(), false)
	assert.Error(t, err)
}

func TestRichList(t *testing.T) {
	fake := markettest.New(t)
	svc := fake.Service(false)

	list, res, err := svc.RichList(context.Background(), 2, false)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	require.Len(t, list.Accounts, 2)
	assert.Equal(t, "Ripple", list.Accounts[0].Name)
	assert.Equal(t, "2150000000", list.Total.String())
	assert.Equal(t, []models.RichTier{
		{Min: 1_000_000_000, Count: 1},
		{Min: 100_000_000, Count: 2},
		{Min: 10_000_000, Count: 2},
		{Min: 1_000_000, Count: 3},
	}, list.Tiers)

	all, res, err := svc.RichList(context.Background(), 0, false)
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Len(t, all.Accounts, 3)
	assert.Equal(t, 1, fake.Hits(markettest.XRPScan))
}

func TestInsights_NotConfigured(t *testing.T) {
	fake := markettest.New(t)
	svc := fake.Service(false)

	_, err := svc.Insights(context.Background(), map[string]any{"price": 2.5}, false)
	assert.ErrorIs(t, err, config.ErrNotConfigured)
	assert.Zero(t, fake.Hits(markettest.AI))
}

func TestInsights_CachedPerPayload(t *testing.T) {
	fake := markettest.New(t)
	svc := fake.Service(true)
	ctx := context.Background()

	first, err := svc.Insights(ctx, map[string]any{"price": 2.5, "etf": "XRP"}, false)
	require.NoError(t, err)
	assert.Equal(t, markettest.AIAnswer, first.Value)
	assert.False(t, first.Cached)

	same, err := svc.Insights(ctx, map[string]any{"etf": "XRP", "price": 2.5}, false)
	require.NoError(t, err)
	assert.True(t, same.Cached)
	assert.Equal(t, 1, fake.Hits(markettest.AI))

	_, err = svc.Insights(ctx, map[string]any{"price": 2.6}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.Hits(markettest.AI))

	forced, err := svc.Insights(ctx, map[string]any{"price": 2.6}, true)
	require.NoError(t, err)
	assert.False(t, forced.Cached)
	assert.Equal(t, 3, fake.Hits(markettest.AI))
}

func TestChat(t *testing.T) {
	fake := markettest.New(t)
	svc := fake.Service(true)

	reply, err := svc.Chat(context.Background(), "How are flows?", map[string]any{"sentiment": 72, "etfData": []int{1}})
	require.NoError(t, err)
	assert.Equal(t, markettest.AIAnswer, reply.Response)
	assert.Equal(t, []string{"etfData", "sentiment"}, reply.Sources)

	_, err = svc.Chat(context.Background(), "  ", nil)
	assert.ErrorIs(t, err, market.ErrEmptyQuestion)
}

func TestCompactUSD(t *testing.T) {
	assert.Equal(t, "$950", market.CompactUSD(950))
	assert.Equal(t, "$12.3K", market.CompactUSD(12_345))
	assert.Equal(t, "$45.2M", market.CompactUSD(45_200_000))
	assert.Equal(t, "$1.5B", market.CompactUSD(1_500_000_000))
}

func TestComposePost(t *testing.T) {
	coin := &coingecko.Market{PriceUSD: 2.4567, Change24h: -1.234}
	etfs := &models.ETFData{Data: map[string][]models.ETF{
		"Spot ETFs": {
			{Symbol: "XRP", Daily: models.Volume{Dollars: 12_100_000}},
			{Symbol: "XRPC", Daily: models.Volume{Dollars: 8_000_000}},
			{Symbol: "GXRP", Daily: models.Volume{Dollars: 5_200_000}},
			{Symbol: "TOXR", Daily: models.Volume{Dollars: 100}},
		},
	}}

	text := market.ComposePost(coin, etfs)
	assert.Contains(t, text, "$XRP $2.4567 (-1.23% 24h)")
	assert.Contains(t, text, "XRP ETFs traded $25.3M today")
	assert.Contains(t, text, "Top: $XRP $12.1M · $XRPC $8M · $GXRP $5.2M")
	assert.NotContains(t, text, "TOXR")
	assert.LessOrEqual(t, utf8.RuneCountInString(text), market.MaxPostLength)
}

func TestXPost(t *testing.T) {
	fake := markettest.New(t)
	post, err := fake.Service(false).XPost(context.Background())
	require.NoError(t, err)
	assert.Contains(t, post.Text, "#XRP")
	assert.Equal(t, utf8.RuneCountInString(post.Text), post.Length)
}
