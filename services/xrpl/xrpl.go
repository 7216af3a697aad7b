// Package xrpl is a JSON-RPC client for rippled: account balances, escrows, server state
// and order books.
package xrpl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"xrp_etf_backend/services/datafetcher"
)

// DropsPerXRP is the number of drops in one XRP
const DropsPerXRP = 1_000_000

// rippleEpoch is 2000-01-01T00:00:00Z, the zero of ledger timestamps
const rippleEpoch = 946684800

var dropsPerXRP = decimal.NewFromInt(DropsPerXRP)

// DropsToXRP converts a drops string to XRP
func DropsToXRP(drops string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(drops)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad drops amount %q: %w", drops, err)
	}
	return d.Div(dropsPerXRP), nil
}

// RippleTime converts seconds since the ripple epoch to a time
func RippleTime(seconds int64) time.Time {
	return time.Unix(seconds+rippleEpoch, 0).UTC()
}

// Amount is either native XRP (sent as a drops string) or an issued currency object.
// Value is always in whole units (XRP, not drops).
type Amount struct {
	Currency string          `json:"currency"`
	Issuer   string          `json:"issuer,omitempty"`
	Value    decimal.Decimal `json:"value"`
}

// IsXRP reports whether the amount is native
func (a Amount) IsXRP() bool {
	return a.Currency == "XRP"
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var drops string
		if err := json.Unmarshal(b, &drops); err != nil {
			return err
		}
		value, err := DropsToXRP(drops)
		if err != nil {
			return err
		}
		*a = Amount{Currency: "XRP", Value: value}
		return nil
	}

	var issued struct {
		Currency string `json:"currency"`
		Issuer   string `json:"issuer"`
		Value    string `json:"value"`
	}
	if err := json.Unmarshal(b, &issued); err != nil {
		return err
	}
	value, err := decimal.NewFromString(issued.Value)
	if err != nil {
		return fmt.Errorf("bad amount value %q: %w", issued.Value, err)
	}
	*a = Amount{Currency: issued.Currency, Issuer: issued.Issuer, Value: value}
	return nil
}

// Currency identifies one side of an order book
type Currency struct {
	Currency string `json:"currency"`
	Issuer   string `json:"issuer,omitempty"`
}

// XRPCurrency is the native asset
var XRPCurrency = Currency{Currency: "XRP"}

// Client calls a rippled JSON-RPC endpoint
type Client struct {
	fetcher *datafetcher.DataFetcher
	url     string
}

// NewClient creates a new client
func NewClient(fetcher *datafetcher.DataFetcher, url string) *Client {
	return &Client{fetcher: fetcher, url: url}
}

type rpcRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
}

type rpcStatus struct {
	Status       string `json:"status"`
	Error        string `json:"error"`
	ErrorMessage string `json:"error_message"`
}

// RPCError is an error reported by rippled in the result object
type RPCError struct {
	Method  string
	Code    string
	Message string
}

func (e *RPCError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("xrpl %s: %s (%s)", e.Method, e.Code, e.Message)
	}
	return fmt.Sprintf("xrpl %s: %s", e.Method, e.Code)
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	var resp rpcResponse
	req := rpcRequest{Method: method, Params: []any{params}}
	if err := c.fetcher.PostJSON(ctx, c.url, req, &resp); err != nil {
		return fmt.Errorf("xrpl %s: %w", method, err)
	}
	if len(resp.Result) == 0 {
		return datafetcher.Malformed("xrpl %s: missing result", method)
	}

	var status rpcStatus
	if err := json.Unmarshal(resp.Result, &status); err != nil {
		return datafetcher.Malformed("xrpl %s: %v", method, err)
	}
	if status.Status != "success" {
		code := status.Error
		if code == "" {
			code = "status " + status.Status
		}
		return &RPCError{Method: method, Code: code, Message: status.ErrorMessage}
	}

	if err := json.Unmarshal(resp.Result, out); err != nil {
		return datafetcher.Malformed("xrpl %s: %v", method, err)
	}
	return nil
}
