package market

import (
	"context"

	"github.com/shopspring/decimal"

	"xrp_etf_backend/config"
	"xrp_etf_backend/models"
	"xrp_etf_backend/services/cache"
)

// Rich list page bounds
const (
	DefaultRichListLimit = 100
	MaxRichListLimit     = 1000
)

// RichTiers are the balance thresholds counted in the rich list, in XRP
var RichTiers = []int64{1_000_000_000, 100_000_000, 10_000_000, 1_000_000}

// RichList returns the top limit accounts. The full list is cached and sliced per request.
func (s *Service) RichList(ctx context.Context, limit int, refresh bool) (*models.RichList, cache.Result[[]models.RichAccount], error) {
	res, err := cache.Get(ctx, s.cache, KeyRichList, config.RichListTTL, s.fetchRichList, refresh)
	if err != nil {
		return nil, res, err
	}

	if limit <= 0 {
		limit = DefaultRichListLimit
	}
	limit = min(limit, MaxRichListLimit)

	all := res.Value
	out := &models.RichList{
		Accounts: all[:min(limit, len(all))],
		Total:    decimal.Zero,
		Tiers:    make([]models.RichTier, 0, len(RichTiers)),
	}
	for _, a := range out.Accounts {
		out.Total = out.Total.Add(a.Balance)
	}
	for _, floor := range RichTiers {
		threshold := decimal.NewFromInt(floor)
		count := 0
		for _, a := range all {
			if a.Balance.GreaterThanOrEqual(threshold) {
				count++
			}
		}
		out.Tiers = append(out.Tiers, models.RichTier{Min: floor, Count: count})
	}
	return out, res, nil
}

func (s *Service) fetchRichList(ctx context.Context) ([]models.RichAccount, error) {
	accounts, err := s.clients.XRPScan.RichList(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.RichAccount, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, models.RichAccount{
			Rank:     a.Rank,
			Account:  a.Account,
			Balance:  a.Balance,
			Name:     a.Name,
			Verified: a.Verified,
		})
	}
	return out, nil
}
