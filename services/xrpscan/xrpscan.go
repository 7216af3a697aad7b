// Package xrpscan reads the XRP rich list from the XRPScan REST API.
package xrpscan

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"xrp_etf_backend/services/datafetcher"
)

// Account is one rich-list entry
type Account struct {
	Rank     int             `json:"rank"`
	Account  string          `json:"account"`
	Balance  decimal.Decimal `json:"balance"`
	Name     string          `json:"name,omitempty"`
	Domain   string          `json:"domain,omitempty"`
	Verified bool            `json:"verified"`
}

type balanceEntry struct {
	Account string          `json:"account"`
	Balance decimal.Decimal `json:"balance"`
	Name    *struct {
		Name     string `json:"name"`
		Desc     string `json:"desc"`
		Domain   string `json:"domain"`
		Verified bool   `json:"verified"`
	} `json:"name"`
}

// Client talks to XRPScan
type Client struct {
	fetcher *datafetcher.DataFetcher
	baseURL string
}

// NewClient creates a new client
func NewClient(fetcher *datafetcher.DataFetcher, baseURL string) *Client {
	return &Client{fetcher: fetcher, baseURL: strings.TrimRight(baseURL, "/")}
}

// RichList returns accounts ordered by balance, largest first
func (c *Client) RichList(ctx context.Context) ([]Account, error) {
	var entries []balanceEntry
	if err := c.fetcher.GetJSON(ctx, c.baseURL+"/balances", nil, nil, &entries); err != nil {
		return nil, fmt.Errorf("xrpscan balances: %w", err)
	}
	if len(entries) == 0 {
		return nil, datafetcher.Malformed("xrpscan balances: empty list")
	}

	accounts := make([]Account, 0, len(entries))
	for i, e := range entries {
		if e.Account == "" {
			return nil, datafetcher.Malformed("xrpscan balances: entry %d has no account", i)
		}
		a := Account{
			Rank:    i + 1,
			Account: e.Account,
			Balance: e.Balance,
		}
		if e.Name != nil {
			a.Name = e.Name.Name
			a.Domain = e.Name.Domain
			a.Verified = e.Name.Verified
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}
