package market

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"xrp_etf_backend/config"
	"xrp_etf_backend/models"
	"xrp_etf_backend/services/cache"
	"xrp_etf_backend/services/xrpl"
)

const (
	upcomingEscrows = 12
	bookDepth       = 20
)

// Escrow sums XRP locked in escrow by the tracked accounts
func (s *Service) Escrow(ctx context.Context, refresh bool) (cache.Result[*models.EscrowData], error) {
	return cache.Get(ctx, s.cache, KeyEscrow, config.OnChainTTL, s.fetchEscrow, refresh)
}

func (s *Service) fetchEscrow(ctx context.Context) (*models.EscrowData, error) {
	now := s.now().UTC()
	out := &models.EscrowData{
		TotalLocked: decimal.Zero,
		Upcoming:    []models.EscrowUnlock{},
		Accounts:    s.cfg.EscrowAccounts,
	}

	for _, account := range s.cfg.EscrowAccounts {
		escrows, err := s.clients.XRPL.Escrows(ctx, account)
		if err != nil {
			return nil, err
		}
		for _, e := range escrows {
			out.TotalLocked = out.TotalLocked.Add(e.Amount)
			out.Count++
			if e.FinishAfter != nil && e.FinishAfter.After(now) {
				out.Upcoming = append(out.Upcoming, models.EscrowUnlock{
					Account:     e.Account,
					Amount:      e.Amount,
					FinishAfter: *e.FinishAfter,
				})
			}
		}
	}

	sort.Slice(out.Upcoming, func(i, j int) bool {
		return out.Upcoming[i].FinishAfter.Before(out.Upcoming[j].FinishAfter)
	})
	if len(out.Upcoming) > upcomingEscrows {
		out.Upcoming = out.Upcoming[:upcomingEscrows]
	}
	if len(out.Upcoming) > 0 {
		next := out.Upcoming[0]
		out.NextUnlock = &next
	}
	return out, nil
}

// Network reports ledger state from the configured rippled node
func (s *Service) Network(ctx context.Context, refresh bool) (cache.Result[*models.NetworkData], error) {
	return cache.Get(ctx, s.cache, KeyNetwork, config.OnChainTTL, func(ctx context.Context) (*models.NetworkData, error) {
		info, err := s.clients.XRPL.ServerInfo(ctx)
		if err != nil {
			return nil, err
		}
		return &models.NetworkData{
			ServerState:      info.ServerState,
			BuildVersion:     info.BuildVersion,
			LedgerIndex:      info.LedgerIndex,
			LedgerAgeSec:     info.LedgerAgeSec,
			Peers:            info.Peers,
			LoadFactor:       info.LoadFactor,
			ValidationQuorum: info.ValidationQuorum,
			BaseFeeXRP:       info.BaseFeeXRP,
			ReserveBaseXRP:   info.ReserveBaseXRP,
			ReserveIncXRP:    info.ReserveIncXRP,
		}, nil
	}, refresh)
}

// DEX summarizes the XRP order book against the configured issued currency
func (s *Service) DEX(ctx context.Context, refresh bool) (cache.Result[*models.DEXData], error) {
	return cache.Get(ctx, s.cache, KeyDEX, config.OnChainTTL, s.fetchDEX, refresh)
}

func (s *Service) fetchDEX(ctx context.Context) (*models.DEXData, error) {
	counter := xrpl.Currency{Currency: s.cfg.DEXCurrency, Issuer: s.cfg.DEXIssuer}

	// offers selling XRP
	askOffers, err := s.clients.XRPL.BookOffers(ctx, xrpl.XRPCurrency, counter, bookDepth)
	if err != nil {
		return nil, fmt.Errorf("dex asks: %w", err)
	}
	// offers buying XRP
	bidOffers, err := s.clients.XRPL.BookOffers(ctx, counter, xrpl.XRPCurrency, bookDepth)
	if err != nil {
		return nil, fmt.Errorf("dex bids: %w", err)
	}

	out := &models.DEXData{
		Pair:     "XRP/" + s.cfg.DEXCurrency,
		BidDepth: decimal.Zero,
		AskDepth: decimal.Zero,
		Asks:     []models.BookLevel{},
		Bids:     []models.BookLevel{},
	}
	for _, o := range askOffers {
		if o.TakerGets.Value.IsZero() {
			continue
		}
		price, _ := o.TakerPays.Value.Div(o.TakerGets.Value).Float64()
		out.Asks = append(out.Asks, models.BookLevel{Price: price, Amount: o.TakerGets.Value})
		out.AskDepth = out.AskDepth.Add(o.TakerGets.Value)
	}
	for _, o := range bidOffers {
		if o.TakerPays.Value.IsZero() {
			continue
		}
		price, _ := o.TakerGets.Value.Div(o.TakerPays.Value).Float64()
		out.Bids = append(out.Bids, models.BookLevel{Price: price, Amount: o.TakerPays.Value})
		out.BidDepth = out.BidDepth.Add(o.TakerPays.Value)
	}

	sort.Slice(out.Asks, func(i, j int) bool { return out.Asks[i].Price < out.Asks[j].Price })
	sort.Slice(out.Bids, func(i, j int) bool { return out.Bids[i].Price > out.Bids[j].Price })

	if len(out.Asks) > 0 {
		out.BestAsk = out.Asks[0].Price
	}
	if len(out.Bids) > 0 {
		out.BestBid = out.Bids[0].Price
	}
	if out.BestAsk > 0 && out.BestBid > 0 {
		out.MidPrice = (out.BestAsk + out.BestBid) / 2
		out.SpreadPct = (out.BestAsk - out.BestBid) / out.MidPrice * 100
	}
	return out, nil
}

// ODL reports XRP held by on-demand liquidity exchanges
func (s *Service) ODL(ctx context.Context, refresh bool) (cache.Result[*models.ODLData], error) {
	return cache.Get(ctx, s.cache, KeyODL, config.OnChainTTL, func(ctx context.Context) (*models.ODLData, error) {
		balances, errs := s.clients.XRPL.WalletBalances(ctx, s.cfg.ODLWallets)
		if len(balances) == 0 && len(errs) > 0 {
			return nil, fmt.Errorf("odl: every wallet failed: %w", errs[0])
		}

		out := &models.ODLData{
			Total:     xrpl.Total(balances),
			Corridors: make([]models.Corridor, 0, len(balances)),
		}
		for _, b := range balances {
			out.Corridors = append(out.Corridors, models.Corridor{Exchange: b.Name, Balance: b.Balance, Accounts: b.Accounts})
		}
		for _, err := range errs {
			out.Errors = append(out.Errors, err.Error())
		}
		return out, nil
	}, refresh)
}
