// Package markettest serves canned responses for every upstream the market service reads,
// from a single httptest server.
package markettest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"xrp_etf_backend/config"
	"xrp_etf_backend/services/cache"
	"xrp_etf_backend/services/market"
)

// Upstream names used by Hits and Fail
const (
	Yahoo     = "yahoo"
	CoinGecko = "coingecko"
	FearGreed = "fng"
	XRPL      = "xrpl"
	XRPScan   = "xrpscan"
	AI        = "ai"
)

// AIAnswer is the completion text returned by the fake model
const AIAnswer = "XRP ETFs saw steady inflows."

// AccountDrops is the balance every account_info call reports (1,000,000 XRP)
const AccountDrops = "1000000000000"

// Fake is a running fake upstream
type Fake struct {
	Server *httptest.Server

	mu          sync.Mutex
	hits        map[string]int
	failing     map[string]bool
	failSymbols map[string]bool
	failAccts   map[string]bool
	requests    []string
}

// New starts a fake and closes it when the test ends
func New(t testing.TB) *Fake {
	t.Helper()
	f := &Fake{
		hits:        make(map[string]int),
		failing:     make(map[string]bool),
		failSymbols: make(map[string]bool),
		failAccts:   make(map[string]bool),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// Hits returns how many requests reached upstream name
func (f *Fake) Hits(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[name]
}

// Fail makes upstream name answer 503 until Recover is called
func (f *Fake) Fail(name string) {
	f.mu.Lock()
	f.failing[name] = true
	f.mu.Unlock()
}

// Recover undoes Fail
func (f *Fake) Recover(name string) {
	f.mu.Lock()
	delete(f.failing, name)
	f.mu.Unlock()
}

// FailSymbol makes the chart of one ticker answer 404
func (f *Fake) FailSymbol(symbol string) {
	f.mu.Lock()
	f.failSymbols[symbol] = true
	f.mu.Unlock()
}

// FailAccount makes account_info of one account answer actNotFound
func (f *Fake) FailAccount(account string) {
	f.mu.Lock()
	f.failAccts[account] = true
	f.mu.Unlock()
}

// Config returns a config pointing every upstream at the fake. The AI key is set only when withAI is true.
func (f *Fake) Config(withAI bool) *config.Config {
	cfg := &config.Config{
		Port:              "0",
		Environment:       "test",
		LogLevel:          "disabled",
		CORSOrigins:       []string{"*"},
		AIModel:           "test-model",
		AIBaseURL:         f.Server.URL + "/ai",
		EmailSecret:       "s3cret",
		EmailHours:        []int{13, 21},
		SnapshotHour:      7,
		SnapshotMinute:    50,
		YahooURL:          f.Server.URL + "/yahoo",
		CoinGeckoURL:      f.Server.URL + "/coingecko",
		XRPLRPCURL:        f.Server.URL + "/xrpl",
		XRPScanURL:        f.Server.URL + "/xrpscan",
		FearGreedURL:      f.Server.URL + "/fng/",
		LunarCrushURL:     f.Server.URL + "/lunarcrush",
		UpstreamTimeout:   2 * time.Second,
		DEXCurrency:       "USD",
		DEXIssuer:         "rIssuer",
		RateLimitRequests: 10,
		RateLimitWindow:   time.Minute,
		ExchangeWallets: map[string][]string{
			"Binance": {"rBinance1", "rBinance2"},
			"Kraken":  {"rKraken"},
		},
		ODLWallets: map[string][]string{
			"Bitso":    {"rBitso"},
			"Coins.ph": {"rCoins"},
		},
		EscrowAccounts: []string{"rEscrow"},
	}
	if withAI {
		cfg.AnthropicAPIKey = "test-key"
	}
	return cfg
}

// Clients builds real upstream clients for cfg
func Clients(cfg *config.Config) market.Clients {
	return market.NewClients(cfg, zerolog.Nop())
}

// Service builds a market service with an empty cache reading from the fake
func (f *Fake) Service(withAI bool) *market.Service {
	cfg := f.Config(withAI)
	return market.NewService(cache.NewStore(), Clients(cfg), cfg, zerolog.Nop())
}

func (f *Fake) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	name, rest, _ := strings.Cut(path, "/")

	f.mu.Lock()
	f.hits[name]++
	failing := f.failing[name]
	f.mu.Unlock()

	if failing {
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch name {
	case Yahoo:
		f.chart(w, strings.TrimPrefix(rest, "v8/finance/chart/"))
	case CoinGecko:
		w.Write([]byte(coinJSON))
	case FearGreed:
		w.Write([]byte(`{"data":[{"value":"72","value_classification":"Greed","timestamp":"1735776000"}]}`))
	case XRPL:
		f.rpc(w, r)
	case XRPScan:
		w.Write([]byte(richListJSON))
	case AI:
		w.Write([]byte(completionJSON))
	default:
		http.NotFound(w, r)
	}
}

// ChartPrice is the quote the fake reports for symbol
func ChartPrice(symbol string) float64 {
	return 10 + float64(len(symbol))
}

func (f *Fake) chart(w http.ResponseWriter, symbol string) {
	f.mu.Lock()
	failing := f.failSymbols[symbol]
	f.mu.Unlock()
	if failing {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
		return
	}

	p := ChartPrice(symbol)
	fmt.Fprintf(w, `{"chart":{"result":[{
		"meta":{"symbol":%q,"currency":"USD","exchangeName":"PCX","regularMarketPrice":%g,"regularMarketVolume":1000,"previousClose":%g},
		"timestamp":[1735689600,1735776000,1735862400],
		"indicators":{"quote":[{"open":[%g,%g,%g],"high":[%g,%g,%g],"low":[%g,%g,%g],"close":[%g,%g,%g],"volume":[100,200,300]}]}
	}],"error":null}}`, symbol, p, p-1, p, p, p, p, p, p, p, p, p, p, p, p)
}

func (f *Fake) rpc(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string           `json:"method"`
		Params []map[string]any `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Params) == 0 {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	params := req.Params[0]

	f.mu.Lock()
	f.hits[XRPL+":"+req.Method]++
	missing := req.Method == "account_info" && f.failAccts[fmt.Sprint(params["account"])]
	f.mu.Unlock()

	if missing {
		w.Write([]byte(`{"result":{"error":"actNotFound","error_message":"Account not found.","status":"error"}}`))
		return
	}

	var result string
	switch req.Method {
	case "account_info":
		result = fmt.Sprintf(`{"account_data":{"Account":%q,"Balance":%q,"OwnerCount":1,"Sequence":7},"ledger_index":93000000,"status":"success"}`,
			params["account"], AccountDrops)
	case "account_objects":
		result = escrowJSON
	case "server_info":
		result = serverInfoJSON
	case "book_offers":
		gets, _ := params["taker_gets"].(map[string]any)
		if gets["currency"] == "XRP" {
			result = asksJSON
		} else {
			result = bidsJSON
		}
	default:
		result = `{"error":"unknownCmd","status":"error"}`
	}
	w.Write([]byte(`{"result":` + result + `}`))
}

const coinJSON = `{
	"id":"ripple","symbol":"xrp","name":"XRP","market_cap_rank":4,
	"market_data":{
		"current_price":{"usd":2.5},"market_cap":{"usd":140000000000},"total_volume":{"usd":4200000000},
		"high_24h":{"usd":2.6},"low_24h":{"usd":2.4},"ath":{"usd":3.84},
		"price_change_percentage_24h":2,"price_change_percentage_7d":5,"price_change_percentage_30d":10,
		"circulating_supply":58000000000,"total_supply":99986000000,"last_updated":"2025-01-02T10:00:00Z"
	}
}`

// one unlock in 2030, one already released in 2020
const escrowJSON = `{"account_objects":[
	{"Account":"rEscrow","Destination":"rEscrow","Amount":"1000000000000000","FinishAfter":946771200,"LedgerEntryType":"Escrow"},
	{"Account":"rEscrow","Destination":"rEscrow","Amount":"500000000000000","FinishAfter":631152000,"LedgerEntryType":"Escrow"}
],"status":"success"}`

const serverInfoJSON = `{"info":{"build_version":"2.3.0","server_state":"full","complete_ledgers":"32570-93000000","peers":21,"load_factor":1,"validation_quorum":28,
	"validated_ledger":{"age":2,"base_fee_xrp":0.00001,"hash":"ABC","reserve_base_xrp":1,"reserve_inc_xrp":0.2,"seq":93000000}},"status":"success"}`

const asksJSON = `{"offers":[
	{"Account":"rSeller2","TakerGets":"200000000","TakerPays":{"currency":"USD","issuer":"rIssuer","value":"504"},"quality":"0.00000252"},
	{"Account":"rSeller1","TakerGets":"100000000","TakerPays":{"currency":"USD","issuer":"rIssuer","value":"251"},"quality":"0.00000251"}
],"status":"success"}`

const bidsJSON = `{"offers":[
	{"Account":"rBuyer","TakerGets":{"currency":"USD","issuer":"rIssuer","value":"249"},"TakerPays":"100000000","quality":"401606.4257028112"}
],"status":"success"}`

const richListJSON = `[
	{"account":"rBig","balance":2000000000,"name":{"name":"Ripple","domain":"ripple.com","verified":true}},
	{"account":"rMid","balance":150000000},
	{"account":"rSmall","balance":5000000}
]`

const completionJSON = `{"id":"chatcmpl-1","object":"chat.completion","created":1735776000,"model":"test-model",
	"choices":[{"index":0,"message":{"role":"assistant","content":"  ` + AIAnswer + `  "},"finish_reason":"stop"}],
	"usage":{"prompt_tokens":10,"completion_tokens":8,"total_tokens":18}}`
