package holdings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"xrp_etf_backend/config"
	"xrp_etf_backend/models"
	"xrp_etf_backend/scheduler"
	"xrp_etf_backend/services/cache"
	"xrp_etf_backend/services/xrpl"
)

// KeyHoldings is the cache key of the live reading
const KeyHoldings = "exchange:holdings"

// ErrIncomplete is returned when some exchange wallets could not be read
var ErrIncomplete = errors.New("incomplete holdings")

// Pacific is the zone whose calendar date keys snapshots
var Pacific = mustLoadLocation("America/Los_Angeles")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("load location %s: %v", name, err))
	}
	return loc
}

// DateKey is the Pacific calendar date of t
func DateKey(t time.Time) string {
	return t.In(Pacific).Format(time.DateOnly)
}

// Service reads exchange balances and records daily snapshots
type Service struct {
	xrpl    *xrpl.Client
	wallets map[string][]string
	cache   *cache.Store
	store   *Store
	task    *scheduler.Task
	log     zerolog.Logger
	now     func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates the holdings service
func NewService(client *xrpl.Client, wallets map[string][]string, store *Store, cacheStore *cache.Store, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		xrpl:    client,
		wallets: wallets,
		cache:   cacheStore,
		store:   store,
		log:     log.With().Str("component", "holdings").Logger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.task = scheduler.NewTask(scheduler.JobExchangeSnapshot, s.takeSnapshot)
	return s
}

// Task is the guarded snapshot action, shared by the scheduler and the manual trigger
func (s *Service) Task() *scheduler.Task {
	return s.task
}

// Current returns the live reading, cached for ExchangeHoldingsTTL
func (s *Service) Current(ctx context.Context, refresh bool) (cache.Result[*models.ExchangeHoldings], error) {
	return cache.Get(ctx, s.cache, KeyHoldings, config.ExchangeHoldingsTTL, s.fetch, refresh)
}

func (s *Service) fetch(ctx context.Context) (*models.ExchangeHoldings, error) {
	balances, errs := s.xrpl.WalletBalances(ctx, s.wallets)
	if len(balances) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("exchange holdings: every wallet failed: %w", errs[0])
	}

	out := &models.ExchangeHoldings{
		Total:     xrpl.Total(balances),
		Exchanges: make([]models.ExchangeHolding, 0, len(balances)),
		FetchedAt: s.now().UTC(),
	}
	for _, b := range balances {
		out.Exchanges = append(out.Exchanges, models.ExchangeHolding{
			Exchange: b.Name,
			Balance:  b.Balance,
			Accounts: len(b.Accounts),
		})
	}
	for _, err := range errs {
		s.log.Warn().Err(err).Msg("Exchange wallet lookup failed")
		out.Errors = append(out.Errors, err.Error())
	}
	return out, nil
}

// TakeSnapshot records today's holdings. It fails with scheduler.ErrTaskRunning while
// another snapshot is in progress.
func (s *Service) TakeSnapshot(ctx context.Context) (*models.ExchangeHoldingsSnapshot, error) {
	if err := s.task.Run(ctx); err != nil {
		return nil, err
	}
	snap, _, err := s.store.Latest(ctx)
	return snap, err
}

func (s *Service) takeSnapshot(ctx context.Context) error {
	// always a fresh reading, never the stale fallback. A failure leaves the cached reading alone.
	current, err := s.fetch(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	s.cache.Set(KeyHoldings, current)

	// a partial total would overwrite a complete snapshot of the same day
	if len(current.Errors) > 0 {
		return fmt.Errorf("snapshot: %w: %d exchange lookups failed: %s",
			ErrIncomplete, len(current.Errors), strings.Join(current.Errors, "; "))
	}

	now := s.now()
	snap := models.ExchangeHoldingsSnapshot{
		Date:        DateKey(now),
		Total:       current.Total,
		PerExchange: current.PerExchange(),
		TakenAt:     now.UTC(),
	}
	if err := s.store.Upsert(ctx, snap); err != nil {
		return err
	}

	s.log.Info().
		Str("date", snap.Date).
		Str("total", snap.Total.StringFixed(0)).
		Int("exchanges", len(snap.PerExchange)).
		Msg("Exchange snapshot saved")
	return nil
}

// Trend returns the last days snapshots, oldest first, with day-over-day change
func (s *Service) Trend(ctx context.Context, days int) (*models.HoldingsTrend, error) {
	if days <= 0 || days > MaxSnapshots {
		days = MaxSnapshots
	}
	snaps, err := s.store.List(ctx, days)
	if err != nil {
		return nil, err
	}

	trend := &models.HoldingsTrend{
		Days:        days,
		Points:      make([]models.TrendPoint, 0, len(snaps)),
		TotalChange: decimal.Zero,
	}
	for i, snap := range snaps {
		point := models.TrendPoint{Date: snap.Date, Total: snap.Total, Change: decimal.Zero}
		if i > 0 {
			point.Change = snap.Total.Sub(snaps[i-1].Total)
		}
		trend.Points = append(trend.Points, point)
	}
	if len(snaps) > 1 {
		trend.TotalChange = snaps[len(snaps)-1].Total.Sub(snaps[0].Total)
	}
	return trend, nil
}

// Latest returns the most recent stored snapshot
func (s *Service) Latest(ctx context.Context) (*models.ExchangeHoldingsSnapshot, bool, error) {
	return s.store.Latest(ctx)
}
