package xrpl

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// WalletBalance is the summed balance of one named group of accounts
type WalletBalance struct {
	Name     string
	Balance  decimal.Decimal
	Accounts []string
}

// maxConcurrentAccounts bounds parallel account_info calls
const maxConcurrentAccounts = 4

// WalletBalances sums account balances per named group. Groups whose accounts all fail are
// left out and reported in errs; a group with some failed accounts keeps the ones that answered.
func (c *Client) WalletBalances(ctx context.Context, wallets map[string][]string) (balances []WalletBalance, errs []error) {
	type result struct {
		name    string
		account string
		balance decimal.Decimal
		err     error
	}

	var (
		mu      sync.Mutex
		results []result
	)

	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentAccounts)
	for name, accounts := range wallets {
		for _, account := range accounts {
			g.Go(func() error {
				r := result{name: name, account: account}
				info, err := c.AccountInfo(ctx, account)
				if err != nil {
					r.err = err
				} else {
					r.balance = info.Balance
				}
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()

	byName := make(map[string]*WalletBalance)
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", r.name, r.account, r.err))
			continue
		}
		wb, ok := byName[r.name]
		if !ok {
			wb = &WalletBalance{Name: r.name}
			byName[r.name] = wb
		}
		wb.Balance = wb.Balance.Add(r.balance)
		wb.Accounts = append(wb.Accounts, r.account)
	}

	for _, wb := range byName {
		sort.Strings(wb.Accounts)
		balances = append(balances, *wb)
	}
	sort.Slice(balances, func(i, j int) bool {
		if !balances[i].Balance.Equal(balances[j].Balance) {
			return balances[i].Balance.GreaterThan(balances[j].Balance)
		}
		return balances[i].Name < balances[j].Name
	})
	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
	return balances, errs
}

// Total sums a set of wallet balances
func Total(balances []WalletBalance) decimal.Decimal {
	total := decimal.Zero
	for _, b := range balances {
		total = total.Add(b.Balance)
	}
	return total
}
