package models

import "github.com/shopspring/decimal"

// ETF groups in display order
var ETFGroups = []string{"Index ETFs", "Spot ETFs", "Futures ETFs", "Canada ETFs"}

// ETFSymbols lists the tracked tickers per group
var ETFSymbols = map[string][]string{
	"Index ETFs":   {"EZPZ", "GDLC", "NCIQ", "BITW"},
	"Spot ETFs":    {"GXRP", "XRP", "XRPC", "XRPZ", "TOXR", "XRPR"},
	"Futures ETFs": {"UXRP", "XRPI", "XRPM", "XRPT", "XXRP", "XRPK"},
	"Canada ETFs":  {"XRP.TO", "XRPP-B.TO", "XRPP-U.TO", "XRPP.TO", "XRPQ-U.TO", "XRPQ.TO", "XRP.NE", "XRPP.NE", "RPQ.NE"},
}

// ETFDescriptions maps ticker to issuer / fund name
var ETFDescriptions = map[string]string{
	"EZPZ":      "Franklin Templeton",
	"GDLC":      "Grayscale Digital Large Cap",
	"NCIQ":      "Hashdex Nasdaq Crypto Index",
	"BITW":      "Bitwise 10 Crypto Index",
	"GXRP":      "Grayscale",
	"XRP":       "Bitwise XRP",
	"XRPC":      "Canary Capital XRP",
	"XRPZ":      "Franklin XRP",
	"TOXR":      "21Shares",
	"UXRP":      "ProShares Ultra",
	"XRPI":      "Volatility Shares Trust",
	"XRPM":      "Amplify",
	"XRPR":      "REX-Osprey",
	"XRPK":      "T-REX 2X Long",
	"XRPT":      "Volatility Shares 2x",
	"XXRP":      "Teucrium 2x Long",
	"XRP.TO":    "Purpose",
	"XRPP-B.TO": "Purpose",
	"XRPP-U.TO": "Purpose USD Non-Hedged",
	"XRPP.TO":   "Purpose CAD Hedged",
	"XRPQ-U.TO": "3iQ USD",
	"XRPQ.TO":   "3iQ",
	"XRP.NE":    "Canada ETF",
	"XRPP.NE":   "Purpose NEO",
	"RPQ.NE":    "RPQ NEO",
}

// Volume is traded shares and their dollar value over a period
type Volume struct {
	Shares  int64 `json:"shares"`
	Dollars int64 `json:"dollars"`
}

// ETF is one fund's quote and traded volume
type ETF struct {
	Symbol      string  `json:"symbol"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Daily       Volume  `json:"daily"`
	Weekly      *Volume `json:"weekly,omitempty"`
	Monthly     *Volume `json:"monthly,omitempty"`
	Yearly      *Volume `json:"yearly,omitempty"`
}

// ETFData is the payload of /api/etf-data
type ETFData struct {
	Timestamp string           `json:"timestamp"`
	Groups    []string         `json:"groups"`
	Data      map[string][]ETF `json:"data"`
	Errors    []string         `json:"errors,omitempty"`
}

// TotalDailyDollars sums daily dollar volume over all funds
func (d *ETFData) TotalDailyDollars() int64 {
	var total int64
	for _, funds := range d.Data {
		for _, f := range funds {
			total += f.Daily.Dollars
		}
	}
	return total
}

// PricePoint is one daily close
type PricePoint struct {
	Date   string  `json:"date"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// HistoricalData is the payload of /api/historical
type HistoricalData struct {
	Period     string                  `json:"period"`
	Symbols    []string                `json:"symbols"`
	Data       map[string][]PricePoint `json:"data"`
	Indicators map[string]Indicators   `json:"indicators,omitempty"`
	Errors     []string                `json:"errors,omitempty"`
}

// MACD is the moving average convergence divergence reading
type MACD struct {
	Line      decimal.Decimal `json:"line"`
	Signal    decimal.Decimal `json:"signal"`
	Histogram decimal.Decimal `json:"histogram"`
}

// Bollinger holds the band values at the last close
type Bollinger struct {
	Upper  decimal.Decimal `json:"upper"`
	Middle decimal.Decimal `json:"middle"`
	Lower  decimal.Decimal `json:"lower"`
}

// Indicators are technical readings at the last close; nil fields lacked history
type Indicators struct {
	SMA20     *decimal.Decimal `json:"sma20,omitempty"`
	SMA50     *decimal.Decimal `json:"sma50,omitempty"`
	EMA12     *decimal.Decimal `json:"ema12,omitempty"`
	EMA26     *decimal.Decimal `json:"ema26,omitempty"`
	RSI14     *decimal.Decimal `json:"rsi14,omitempty"`
	MACD      *MACD            `json:"macd,omitempty"`
	Bollinger *Bollinger       `json:"bollinger,omitempty"`
}

// Empty reports whether no indicator could be computed
func (i Indicators) Empty() bool {
	return i.SMA20 == nil && i.EMA12 == nil && i.RSI14 == nil
}
