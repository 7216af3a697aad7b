package xrpl

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"xrp_etf_backend/services/datafetcher"
)

// AccountInfo is the validated state of one account
type AccountInfo struct {
	Account     string          `json:"account"`
	Balance     decimal.Decimal `json:"balance"`
	OwnerCount  int             `json:"ownerCount"`
	Sequence    int64           `json:"sequence"`
	LedgerIndex int64           `json:"ledgerIndex"`
}

// AccountInfo fetches the validated balance of account
func (c *Client) AccountInfo(ctx context.Context, account string) (*AccountInfo, error) {
	var result struct {
		AccountData *struct {
			Account    string `json:"Account"`
			Balance    string `json:"Balance"`
			OwnerCount int    `json:"OwnerCount"`
			Sequence   int64  `json:"Sequence"`
		} `json:"account_data"`
		LedgerIndex int64 `json:"ledger_index"`
	}

	params := map[string]any{
		"account":      account,
		"ledger_index": "validated",
	}
	if err := c.call(ctx, "account_info", params, &result); err != nil {
		return nil, err
	}
	if result.AccountData == nil {
		return nil, datafetcher.Malformed("xrpl account_info %s: missing account_data", account)
	}

	balance, err := DropsToXRP(result.AccountData.Balance)
	if err != nil {
		return nil, datafetcher.Malformed("xrpl account_info %s: %v", account, err)
	}

	return &AccountInfo{
		Account:     result.AccountData.Account,
		Balance:     balance,
		OwnerCount:  result.AccountData.OwnerCount,
		Sequence:    result.AccountData.Sequence,
		LedgerIndex: result.LedgerIndex,
	}, nil
}

// Escrow is one escrow object held by an account
type Escrow struct {
	Account     string          `json:"account"`
	Destination string          `json:"destination"`
	Amount      decimal.Decimal `json:"amount"`
	FinishAfter *time.Time      `json:"finishAfter,omitempty"`
	CancelAfter *time.Time      `json:"cancelAfter,omitempty"`
}

// maxEscrowPages caps marker pagination of account_objects
const maxEscrowPages = 10

// Escrows lists the escrow objects owned by account
func (c *Client) Escrows(ctx context.Context, account string) ([]Escrow, error) {
	var escrows []Escrow
	var marker any

	for page := 0; page < maxEscrowPages; page++ {
		params := map[string]any{
			"account":      account,
			"type":         "escrow",
			"ledger_index": "validated",
			"limit":        400,
		}
		if marker != nil {
			params["marker"] = marker
		}

		var result struct {
			AccountObjects []struct {
				Account     string `json:"Account"`
				Destination string `json:"Destination"`
				Amount      Amount `json:"Amount"`
				FinishAfter int64  `json:"FinishAfter"`
				CancelAfter int64  `json:"CancelAfter"`
			} `json:"account_objects"`
			Marker any `json:"marker"`
		}
		if err := c.call(ctx, "account_objects", params, &result); err != nil {
			return nil, err
		}

		for _, obj := range result.AccountObjects {
			escrow := Escrow{
				Account:     obj.Account,
				Destination: obj.Destination,
				Amount:      obj.Amount.Value,
			}
			if obj.FinishAfter > 0 {
				t := RippleTime(obj.FinishAfter)
				escrow.FinishAfter = &t
			}
			if obj.CancelAfter > 0 {
				t := RippleTime(obj.CancelAfter)
				escrow.CancelAfter = &t
			}
			escrows = append(escrows, escrow)
		}

		if result.Marker == nil {
			break
		}
		marker = result.Marker
	}
	return escrows, nil
}

// ServerInfo is the network state reported by the node
type ServerInfo struct {
	BuildVersion     string          `json:"buildVersion"`
	ServerState      string          `json:"serverState"`
	CompleteLedgers  string          `json:"completeLedgers"`
	Peers            int             `json:"peers"`
	LoadFactor       float64         `json:"loadFactor"`
	ValidationQuorum int             `json:"validationQuorum"`
	LedgerIndex      int64           `json:"ledgerIndex"`
	LedgerHash       string          `json:"ledgerHash"`
	LedgerAgeSec     int             `json:"ledgerAgeSeconds"`
	BaseFeeXRP       decimal.Decimal `json:"baseFeeXrp"`
	ReserveBaseXRP   decimal.Decimal `json:"reserveBaseXrp"`
	ReserveIncXRP    decimal.Decimal `json:"reserveIncXrp"`
}

// ServerInfo fetches server_info
func (c *Client) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	var result struct {
		Info *struct {
			BuildVersion     string  `json:"build_version"`
			ServerState      string  `json:"server_state"`
			CompleteLedgers  string  `json:"complete_ledgers"`
			Peers            int     `json:"peers"`
			LoadFactor       float64 `json:"load_factor"`
			ValidationQuorum int     `json:"validation_quorum"`
			ValidatedLedger  *struct {
				Age            int             `json:"age"`
				BaseFeeXRP     decimal.Decimal `json:"base_fee_xrp"`
				Hash           string          `json:"hash"`
				ReserveBaseXRP decimal.Decimal `json:"reserve_base_xrp"`
				ReserveIncXRP  decimal.Decimal `json:"reserve_inc_xrp"`
				Seq            int64           `json:"seq"`
			} `json:"validated_ledger"`
		} `json:"info"`
	}
	if err := c.call(ctx, "server_info", map[string]any{}, &result); err != nil {
		return nil, err
	}
	if result.Info == nil || result.Info.ValidatedLedger == nil {
		return nil, datafetcher.Malformed("xrpl server_info: missing validated_ledger")
	}

	info := result.Info
	return &ServerInfo{
		BuildVersion:     info.BuildVersion,
		ServerState:      info.ServerState,
		CompleteLedgers:  info.CompleteLedgers,
		Peers:            info.Peers,
		LoadFactor:       info.LoadFactor,
		ValidationQuorum: info.ValidationQuorum,
		LedgerIndex:      info.ValidatedLedger.Seq,
		LedgerHash:       info.ValidatedLedger.Hash,
		LedgerAgeSec:     info.ValidatedLedger.Age,
		BaseFeeXRP:       info.ValidatedLedger.BaseFeeXRP,
		ReserveBaseXRP:   info.ValidatedLedger.ReserveBaseXRP,
		ReserveIncXRP:    info.ValidatedLedger.ReserveIncXRP,
	}, nil
}

// Offer is one resting order
type Offer struct {
	Account   string          `json:"account"`
	TakerGets Amount          `json:"takerGets"`
	TakerPays Amount          `json:"takerPays"`
	Quality   decimal.Decimal `json:"quality"`
}

// BookOffers lists offers that give takerGets in exchange for takerPays, best first
func (c *Client) BookOffers(ctx context.Context, takerGets, takerPays Currency, limit int) ([]Offer, error) {
	var result struct {
		Offers []struct {
			Account   string `json:"Account"`
			TakerGets Amount `json:"TakerGets"`
			TakerPays Amount `json:"TakerPays"`
			Quality   string `json:"quality"`
		} `json:"offers"`
	}

	params := map[string]any{
		"taker_gets":   takerGets,
		"taker_pays":   takerPays,
		"limit":        limit,
		"ledger_index": "validated",
	}
	if err := c.call(ctx, "book_offers", params, &result); err != nil {
		return nil, err
	}

	offers := make([]Offer, 0, len(result.Offers))
	for _, o := range result.Offers {
		quality, _ := decimal.NewFromString(o.Quality)
		offers = append(offers, Offer{
			Account:   o.Account,
			TakerGets: o.TakerGets,
			TakerPays: o.TakerPays,
			Quality:   quality,
		})
	}
	return offers, nil
}
