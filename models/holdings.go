package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeHolding is one exchange's XRP balance
type ExchangeHolding struct {
	Exchange string          `json:"exchange"`
	Balance  decimal.Decimal `json:"balance"`
	Accounts int             `json:"accounts"`
}

// ExchangeHoldings is a live reading across tracked exchanges
type ExchangeHoldings struct {
	Total     decimal.Decimal   `json:"total"`
	Exchanges []ExchangeHolding `json:"exchanges"`
	Errors    []string          `json:"errors,omitempty"`
	FetchedAt time.Time         `json:"fetchedAt"`
}

// PerExchange returns balances keyed by exchange name
func (h *ExchangeHoldings) PerExchange() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(h.Exchanges))
	for _, e := range h.Exchanges {
		out[e.Exchange] = e.Balance
	}
	return out
}

// ExchangeHoldingsSnapshot is the stored reading for one Pacific calendar date
type ExchangeHoldingsSnapshot struct {
	Date        string                     `json:"date"`
	Total       decimal.Decimal            `json:"total"`
	PerExchange map[string]decimal.Decimal `json:"perExchange"`
	TakenAt     time.Time                  `json:"takenAt"`
}

// TrendPoint is one snapshot with its change from the previous one
type TrendPoint struct {
	Date   string          `json:"date"`
	Total  decimal.Decimal `json:"total"`
	Change decimal.Decimal `json:"change"`
}

// HoldingsTrend is the payload of /api/exchange/trend
type HoldingsTrend struct {
	Days        int             `json:"days"`
	Points      []TrendPoint    `json:"points"`
	TotalChange decimal.Decimal `json:"totalChange"`
}
