package holdings

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xrp_etf_backend/config"
	"xrp_etf_backend/models"
	"xrp_etf_backend/scheduler"
	"xrp_etf_backend/services/cache"
	"xrp_etf_backend/services/datafetcher"
	"xrp_etf_backend/services/market/markettest"
	"xrp_etf_backend/services/xrpl"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func snapshot(date string, total int64) models.ExchangeHoldingsSnapshot {
	return models.ExchangeHoldingsSnapshot{
		Date:        date,
		Total:       decimal.NewFromInt(total),
		PerExchange: map[string]decimal.Decimal{"Binance": decimal.NewFromInt(total)},
		TakenAt:     time.Date(2025, 1, 2, 15, 50, 0, 0, time.UTC),
	}
}

func TestStore_SameDateOverwrites(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, snapshot("2025-01-02", 100)))
	require.NoError(t, store.Upsert(ctx, snapshot("2025-01-02", 250)))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	latest, ok, err := store.Latest(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "250", latest.Total.String())
	assert.Equal(t, "250", latest.PerExchange["Binance"].String())
	assert.True(t, latest.TakenAt.Equal(time.Date(2025, 1, 2, 15, 50, 0, 0, time.UTC)))
}

func TestStore_EvictsOldestBeyondLimit(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < MaxSnapshots+5; i++ {
		date := start.AddDate(0, 0, i).Format(time.DateOnly)
		require.NoError(t, store.Upsert(ctx, snapshot(date, int64(i))))
	}

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, MaxSnapshots, count)

	all, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, MaxSnapshots)
	assert.Equal(t, start.AddDate(0, 0, 5).Format(time.DateOnly), all[0].Date, "oldest five evicted")
	assert.Equal(t, start.AddDate(0, 0, MaxSnapshots+4).Format(time.DateOnly), all[len(all)-1].Date)

	recent, err := store.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.True(t, recent[0].Date < recent[2].Date, "ascending")
}

func TestStore_Empty(t *testing.T) {
	store := newStore(t)
	_, ok, err := store.Latest(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDateKey_UsesPacificDate(t *testing.T) {
	// 03:00 UTC on Jan 2 is still Jan 1 in Los Angeles
	assert.Equal(t, "2025-01-01", DateKey(time.Date(2025, 1, 2, 3, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025-01-02", DateKey(time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)))
}

func newService(t *testing.T, rpcURL string, now *time.Time) *Service {
	t.Helper()
	client := xrpl.NewClient(datafetcher.NewDataFetcher(2*time.Second, zerolog.Nop()), rpcURL)
	wallets := map[string][]string{
		"Binance": {"rBinance1", "rBinance2"},
		"Kraken":  {"rKraken"},
	}
	clock := func() time.Time { return *now }
	return NewService(client, wallets, newStore(t), cache.NewStore(cache.WithClock(clock)), zerolog.Nop(), WithClock(clock))
}

func TestService_Current(t *testing.T) {
	fake := markettest.New(t)
	now := time.Date(2025, 1, 2, 15, 50, 0, 0, time.UTC)
	svc := newService(t, fake.Config(false).XRPLRPCURL, &now)

	res, err := svc.Current(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "3000000", res.Value.Total.String())
	require.Len(t, res.Value.Exchanges, 2)
	assert.Equal(t, "Binance", res.Value.Exchanges[0].Exchange)
	assert.Equal(t, 2, res.Value.Exchanges[0].Accounts)

	_, err = svc.Current(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 3, fake.Hits("xrpl:account_info"), "second read served from cache")
}

func TestService_SnapshotTwiceSameDay(t *testing.T) {
	fake := markettest.New(t)
	now := time.Date(2025, 1, 2, 15, 50, 0, 0, time.UTC)
	svc := newService(t, fake.Config(false).XRPLRPCURL, &now)
	ctx := context.Background()

	first, err := svc.TakeSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-02", first.Date)

	now = now.Add(3 * time.Hour)
	second, err := svc.TakeSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-02", second.Date)
	assert.True(t, second.TakenAt.After(first.TakenAt))

	count, err := svc.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "same date overwrites")
	assert.Equal(t, 2, svc.Task().Status().Runs)
}

func TestService_Trend(t *testing.T) {
	fake := markettest.New(t)
	now := time.Date(2025, 1, 2, 15, 50, 0, 0, time.UTC)
	svc := newService(t, fake.Config(false).XRPLRPCURL, &now)
	ctx := context.Background()

	require.NoError(t, svc.store.Upsert(ctx, snapshot("2024-12-30", 2_900_000)))
	require.NoError(t, svc.store.Upsert(ctx, snapshot("2024-12-31", 3_100_000)))
	_, err := svc.TakeSnapshot(ctx)
	require.NoError(t, err)

	trend, err := svc.Trend(ctx, 7)
	require.NoError(t, err)
	require.Len(t, trend.Points, 3)
	assert.Equal(t, "0", trend.Points[0].Change.String())
	assert.Equal(t, "200000", trend.Points[1].Change.String())
	assert.Equal(t, "-100000", trend.Points[2].Change.String())
	assert.Equal(t, "100000", trend.TotalChange.String())

	last2, err := svc.Trend(ctx, 2)
	require.NoError(t, err)
	require.Len(t, last2.Points, 2)
	assert.Equal(t, "2024-12-31", last2.Points[0].Date)
}

func TestService_SnapshotRejectsOverlap(t *testing.T) {
	arrived := make(chan struct{}, 8)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arrived <- struct{}{}
		<-release
		fmt.Fprintf(w, `{"result":{"account_data":{"Account":"rX","Balance":"%s"},"status":"success"}}`, markettest.AccountDrops)
	}))
	defer srv.Close()

	now := time.Date(2025, 1, 2, 15, 50, 0, 0, time.UTC)
	svc := newService(t, srv.URL, &now)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.TakeSnapshot(ctx)
		done <- err
	}()
	<-arrived

	_, err := svc.TakeSnapshot(ctx)
	assert.ErrorIs(t, err, scheduler.ErrTaskRunning)
	assert.True(t, svc.Task().Running())

	close(release)
	require.NoError(t, <-done)
	assert.False(t, svc.Task().Running())
}

func TestService_SnapshotFailsWhenWalletsDown(t *testing.T) {
	fake := markettest.New(t)
	fake.Fail(markettest.XRPL)
	now := time.Date(2025, 1, 2, 15, 50, 0, 0, time.UTC)
	svc := newService(t, fake.Config(false).XRPLRPCURL, &now)

	_, err := svc.TakeSnapshot(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, svc.Task().Status().Failures)

	count, err := svc.store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestService_FailedSnapshotKeepsStaleReading(t *testing.T) {
	fake := markettest.New(t)
	now := time.Date(2025, 1, 2, 15, 50, 0, 0, time.UTC)
	svc := newService(t, fake.Config(false).XRPLRPCURL, &now)
	ctx := context.Background()

	_, err := svc.Current(ctx, false)
	require.NoError(t, err)

	now = now.Add(config.ExchangeHoldingsTTL + time.Minute)
	fake.Fail(markettest.XRPL)

	_, err = svc.TakeSnapshot(ctx)
	require.Error(t, err)

	res, err := svc.Current(ctx, false)
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, "3000000", res.Value.Total.String())
}

func TestService_SnapshotRefreshesCachedReading(t *testing.T) {
	fake := markettest.New(t)
	now := time.Date(2025, 1, 2, 15, 50, 0, 0, time.UTC)
	svc := newService(t, fake.Config(false).XRPLRPCURL, &now)
	ctx := context.Background()

	_, err := svc.TakeSnapshot(ctx)
	require.NoError(t, err)
	hits := fake.Hits("xrpl:account_info")

	res, err := svc.Current(ctx, false)
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, "3000000", res.Value.Total.String())
	assert.Equal(t, hits, fake.Hits("xrpl:account_info"))
}

func TestService_PartialReadingDoesNotOverwriteSnapshot(t *testing.T) {
	fake := markettest.New(t)
	now := time.Date(2025, 1, 2, 15, 50, 0, 0, time.UTC)
	svc := newService(t, fake.Config(false).XRPLRPCURL, &now)
	ctx := context.Background()

	_, err := svc.TakeSnapshot(ctx)
	require.NoError(t, err)

	fake.FailAccount("rKraken")
	now = now.Add(3 * time.Hour)

	_, err = svc.TakeSnapshot(ctx)
	assert.ErrorIs(t, err, ErrIncomplete)
	assert.Equal(t, 1, svc.Task().Status().Failures)

	latest, ok, err := svc.Latest(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "3000000", latest.Total.String())
	assert.True(t, latest.TakenAt.Equal(time.Date(2025, 1, 2, 15, 50, 0, 0, time.UTC)))

	// the live reading still reflects what answered
	res, err := svc.Current(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "2000000", res.Value.Total.String())
	assert.Len(t, res.Value.Errors, 1)
}
