// Package market assembles the dashboard payloads. Every read goes through the shared
// cache so each upstream is hit at most once per TTL window.
package market

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"xrp_etf_backend/config"
	"xrp_etf_backend/models"
	"xrp_etf_backend/services/ai"
	"xrp_etf_backend/services/cache"
	"xrp_etf_backend/services/coingecko"
	"xrp_etf_backend/services/datafetcher"
	"xrp_etf_backend/services/feargreed"
	"xrp_etf_backend/services/lunarcrush"
	"xrp_etf_backend/services/xrpl"
	"xrp_etf_backend/services/xrpscan"
	"xrp_etf_backend/services/yahoo"
)

// Cache keys
const (
	KeyETFData    = "etf-data"
	KeyCoinGecko  = "coingecko:" + coingecko.XRP
	KeySentiment  = "sentiment"
	KeyEscrow     = "onchain:escrow"
	KeyNetwork    = "onchain:network"
	KeyDEX        = "onchain:dex"
	KeyODL        = "onchain:odl"
	KeyRichList   = "richlist"
	keyHistorical = "historical:"
	keyAIInsights = "ai-insights:"
)

// Clients bundles the upstream adapters
type Clients struct {
	Yahoo      *yahoo.Client
	CoinGecko  *coingecko.Client
	XRPL       *xrpl.Client
	XRPScan    *xrpscan.Client
	FearGreed  *feargreed.Client
	LunarCrush *lunarcrush.Client
	AI         *ai.Client
}

// NewClients builds every upstream adapter from cfg, sharing one HTTP fetcher
func NewClients(cfg *config.Config, log zerolog.Logger) Clients {
	fetcher := datafetcher.NewDataFetcher(cfg.UpstreamTimeout, log)
	return Clients{
		Yahoo:      yahoo.NewClient(fetcher, cfg.YahooURL, cfg.YahooRPS),
		CoinGecko:  coingecko.NewClient(fetcher, cfg.CoinGeckoURL, cfg.CoinGeckoAPIKey),
		XRPL:       xrpl.NewClient(fetcher, cfg.XRPLRPCURL),
		XRPScan:    xrpscan.NewClient(fetcher, cfg.XRPScanURL),
		FearGreed:  feargreed.NewClient(fetcher, cfg.FearGreedURL),
		LunarCrush: lunarcrush.NewClient(fetcher, cfg.LunarCrushURL, cfg.LunarCrushAPIKey),
		AI:         ai.NewClient(cfg.AnthropicAPIKey, cfg.AIBaseURL, cfg.AIModel, cfg.UpstreamTimeout, log),
	}
}

// Service serves market payloads
type Service struct {
	cache   *cache.Store
	clients Clients
	cfg     *config.Config
	log     zerolog.Logger
	now     func() time.Time

	mu        sync.RWMutex
	listeners []func(*models.ETFData)
}

// NewService creates the market service
func NewService(store *cache.Store, clients Clients, cfg *config.Config, log zerolog.Logger) *Service {
	return &Service{
		cache:   store,
		clients: clients,
		cfg:     cfg,
		log:     log.With().Str("component", "market").Logger(),
		now:     time.Now,
	}
}

// Cache exposes the underlying store for status and clear endpoints
func (s *Service) Cache() *cache.Store {
	return s.cache
}

// AIEnabled reports whether insights and chat are available
func (s *Service) AIEnabled() bool {
	return s.clients.AI.Enabled()
}

// OnETFUpdate registers fn to receive every freshly fetched ETF payload
func (s *Service) OnETFUpdate(fn func(*models.ETFData)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Service) publishETF(data *models.ETFData) {
	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(data)
	}
}

// CoinMarket returns the cached CoinGecko snapshot for XRP
func (s *Service) CoinMarket(ctx context.Context, refresh bool) (cache.Result[*coingecko.Market], error) {
	return cache.Get(ctx, s.cache, KeyCoinGecko, config.CoinGeckoTTL, func(ctx context.Context) (*coingecko.Market, error) {
		return s.clients.CoinGecko.Coin(ctx, coingecko.XRP)
	}, refresh)
}
