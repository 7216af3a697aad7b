package config

import (
	"os"
	"strings"
)

// Known exchange hot/cold wallets on the XRP Ledger, used for the holdings snapshot.
// Override with EXCHANGE_WALLETS="Name:addr1|addr2,Other:addr3".
var DefaultExchangeWallets = map[string][]string{
	"Binance":  {"rEb8TK3gBgk5auZkwc6sHnwrGVJH8DuaLh", "rJb5KsHsDHF1YS5B5DU6QCkH5NsPaKQTcy"},
	"Bitstamp": {"rvYAfWj5gh67oV6fW32ZzP3Aw4Eubs59B"},
	"Kraken":   {"rLHzPsX6oXkzU2qL12kHCH8G8cnZv1rBJh"},
	"Uphold":   {"rMdG3ju8pgyVh29ELPWaDuA74CpWW6Fxns"},
	"Coinbase": {"rw2ciyaNshpHe7bCHo4bRWq6pqqynnWKQg"},
}

// Exchanges known to act as ODL corridor endpoints
var DefaultODLWallets = map[string][]string{
	"Bitso":    {"rG6FZ31hDHN1K5Dkbma3PSB5uVCuVVRzfn"},
	"Coins.ph": {"rU2mEJSLqBRkYLVTv55rFTgQajkLTnT6mA"},
	"Bitstamp": {"rvYAfWj5gh67oV6fW32ZzP3Aw4Eubs59B"},
}

// Ripple escrow owner accounts
var DefaultEscrowAccounts = []string{
	"rB3WNZc45gxzW31zxfXdkx8HusAhoqscPn",
}

func walletsFromEnv(key string, defaults map[string][]string) map[string][]string {
	if v := os.Getenv(key); v != "" {
		if wallets := ParseWalletList(v); len(wallets) > 0 {
			return wallets
		}
	}
	return defaults
}

// ParseWalletList parses "Name:addr1|addr2,Other:addr3"
func ParseWalletList(value string) map[string][]string {
	wallets := make(map[string][]string)
	for _, entry := range splitList(value) {
		name, addrs, ok := strings.Cut(entry, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		for _, addr := range strings.Split(addrs, "|") {
			if addr = strings.TrimSpace(addr); addr != "" {
				wallets[name] = append(wallets[name], addr)
			}
		}
	}
	return wallets
}
