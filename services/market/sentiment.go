package market

import (
	"context"
	"fmt"
	"math"

	"xrp_etf_backend/config"
	"xrp_etf_backend/models"
	"xrp_etf_backend/services/cache"
)

// Signal weights. Missing sources drop out and the rest are renormalized.
const (
	weightMomentum  = 0.30
	weightTrend     = 0.20
	weightTurnover  = 0.15
	weightFearGreed = 0.35
	weightSocial    = 0.15
)

// Label maps a 0-100 score onto the fear and greed scale
func Label(score int) string {
	switch {
	case score < 25:
		return "Extreme Fear"
	case score < 45:
		return "Fear"
	case score < 55:
		return "Neutral"
	case score < 75:
		return "Greed"
	default:
		return "Extreme Greed"
	}
}

func clampScore(v float64) int {
	return int(math.Round(math.Max(0, math.Min(100, v))))
}

// Sentiment blends price action, the Fear & Greed index and optional social metrics
func (s *Service) Sentiment(ctx context.Context, refresh bool) (cache.Result[*models.Sentiment], error) {
	return cache.Get(ctx, s.cache, KeySentiment, config.SentimentTTL, s.fetchSentiment, refresh)
}

func (s *Service) fetchSentiment(ctx context.Context) (*models.Sentiment, error) {
	out := &models.Sentiment{UpdatedAt: s.now().UTC()}
	var failures []error

	if coin, err := s.CoinMarket(ctx, false); err != nil {
		failures = append(failures, err)
	} else {
		m := coin.Value
		out.PriceUSD = m.PriceUSD
		out.Change24h = m.Change24h
		out.Signals = append(out.Signals,
			models.Signal{
				Name:   "Momentum 24h",
				Value:  m.Change24h,
				Score:  clampScore(50 + m.Change24h*5),
				Weight: weightMomentum,
				Detail: fmt.Sprintf("%+.2f%% in 24h", m.Change24h),
			},
			models.Signal{
				Name:   "Trend 7d",
				Value:  m.Change7d,
				Score:  clampScore(50 + m.Change7d*2),
				Weight: weightTrend,
				Detail: fmt.Sprintf("%+.2f%% in 7d", m.Change7d),
			},
		)
		if m.MarketCapUSD > 0 {
			turnover := m.VolumeUSD / m.MarketCapUSD
			out.Signals = append(out.Signals, models.Signal{
				Name:   "Turnover",
				Value:  turnover,
				Score:  clampScore(turnover * 1000),
				Weight: weightTurnover,
				Detail: fmt.Sprintf("%.2f%% of market cap traded", turnover*100),
			})
		}
	}

	if fg, err := s.clients.FearGreed.Latest(ctx); err != nil {
		failures = append(failures, err)
	} else {
		out.Signals = append(out.Signals, models.Signal{
			Name:   "Fear & Greed",
			Value:  float64(fg.Value),
			Score:  fg.Value,
			Weight: weightFearGreed,
			Detail: fg.Classification,
		})
	}

	if s.clients.LunarCrush.Enabled() {
		if social, err := s.clients.LunarCrush.Coin(ctx, "xrp"); err != nil {
			s.log.Warn().Err(err).Msg("LunarCrush unavailable, scoring without social signal")
		} else {
			out.Signals = append(out.Signals, models.Signal{
				Name:   "Galaxy Score",
				Value:  social.GalaxyScore,
				Score:  clampScore(social.GalaxyScore),
				Weight: weightSocial,
				Detail: fmt.Sprintf("AltRank %d", social.AltRank),
			})
		}
	}

	if len(out.Signals) == 0 {
		return nil, fmt.Errorf("sentiment: no sources available: %v", failures)
	}
	for _, err := range failures {
		s.log.Warn().Err(err).Msg("Sentiment source failed")
	}

	var sum, weights float64
	for _, sig := range out.Signals {
		sum += float64(sig.Score) * sig.Weight
		weights += sig.Weight
	}
	out.Score = clampScore(sum / weights)
	out.Label = Label(out.Score)
	return out, nil
}
