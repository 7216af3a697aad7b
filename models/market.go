package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Signal is one input to the sentiment score
type Signal struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Score  int     `json:"score"`
	Weight float64 `json:"weight"`
	Detail string  `json:"detail"`
}

// Sentiment is the payload of /api/sentiment
type Sentiment struct {
	Score     int       `json:"score"`
	Label     string    `json:"label"`
	Signals   []Signal  `json:"signals"`
	PriceUSD  float64   `json:"priceUsd,omitempty"`
	Change24h float64   `json:"change24h"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EscrowUnlock is one scheduled escrow release
type EscrowUnlock struct {
	Account     string          `json:"account"`
	Amount      decimal.Decimal `json:"amount"`
	FinishAfter time.Time       `json:"finishAfter"`
}

// EscrowData summarizes XRP locked in escrow
type EscrowData struct {
	TotalLocked decimal.Decimal `json:"totalLocked"`
	Count       int             `json:"count"`
	NextUnlock  *EscrowUnlock   `json:"nextUnlock,omitempty"`
	Upcoming    []EscrowUnlock  `json:"upcoming"`
	Accounts    []string        `json:"accounts"`
}

// NetworkData is the ledger state from server_info
type NetworkData struct {
	ServerState      string          `json:"serverState"`
	BuildVersion     string          `json:"buildVersion"`
	LedgerIndex      int64           `json:"ledgerIndex"`
	LedgerAgeSec     int             `json:"ledgerAgeSeconds"`
	Peers            int             `json:"peers"`
	LoadFactor       float64         `json:"loadFactor"`
	ValidationQuorum int             `json:"validationQuorum"`
	BaseFeeXRP       decimal.Decimal `json:"baseFeeXrp"`
	ReserveBaseXRP   decimal.Decimal `json:"reserveBaseXrp"`
	ReserveIncXRP    decimal.Decimal `json:"reserveIncXrp"`
}

// BookLevel is one price level of the order book, price in counter currency per XRP
type BookLevel struct {
	Price  float64         `json:"price"`
	Amount decimal.Decimal `json:"amount"`
}

// DEXData summarizes the XRP order book on the ledger DEX
type DEXData struct {
	Pair      string          `json:"pair"`
	BestBid   float64         `json:"bestBid"`
	BestAsk   float64         `json:"bestAsk"`
	MidPrice  float64         `json:"midPrice"`
	SpreadPct float64         `json:"spreadPct"`
	BidDepth  decimal.Decimal `json:"bidDepthXrp"`
	AskDepth  decimal.Decimal `json:"askDepthXrp"`
	Bids      []BookLevel     `json:"bids"`
	Asks      []BookLevel     `json:"asks"`
}

// Corridor is one ODL exchange's balance
type Corridor struct {
	Exchange string          `json:"exchange"`
	Balance  decimal.Decimal `json:"balance"`
	Accounts []string        `json:"accounts"`
}

// ODLData summarizes XRP held by on-demand liquidity exchanges
type ODLData struct {
	Total     decimal.Decimal `json:"total"`
	Corridors []Corridor      `json:"corridors"`
	Errors    []string        `json:"errors,omitempty"`
}

// RichAccount is one rich-list entry
type RichAccount struct {
	Rank     int             `json:"rank"`
	Account  string          `json:"account"`
	Balance  decimal.Decimal `json:"balance"`
	Name     string          `json:"name,omitempty"`
	Verified bool            `json:"verified"`
}

// RichTier counts accounts holding at least Min XRP
type RichTier struct {
	Min   int64 `json:"min"`
	Count int   `json:"count"`
}

// RichList is the payload of /api/richlist
type RichList struct {
	Accounts []RichAccount  `json:"accounts"`
	Total    decimal.Decimal `json:"total"`
	Tiers    []RichTier      `json:"tiers"`
}

// XPost is a generated social post
type XPost struct {
	Text        string    `json:"text"`
	Length      int       `json:"length"`
	GeneratedAt time.Time `json:"generatedAt"`
}
