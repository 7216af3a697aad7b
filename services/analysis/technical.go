// Package analysis computes technical indicators from daily closes.
package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"xrp_etf_backend/models"
)

// ErrInsufficientData is returned when there are fewer closes than an indicator needs
var ErrInsufficientData = errors.New("insufficient data")

// Standard periods
const (
	MACDFast   = 12
	MACDSlow   = 26
	MACDSignal = 9
	RSIPeriod  = 14
	BandPeriod = 20
)

const indicatorPlaces = 4

var (
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

// Closes extracts closing prices in chronological order
func Closes(points []models.PricePoint) []decimal.Decimal {
	closes := make([]decimal.Decimal, 0, len(points))
	for _, p := range points {
		closes = append(closes, decimal.NewFromFloat(p.Close))
	}
	return closes
}

// SMA is the mean of the last period closes
func SMA(closes []decimal.Decimal, period int) (decimal.Decimal, error) {
	if period <= 0 || len(closes) < period {
		return decimal.Zero, fmt.Errorf("SMA%d: %w", period, ErrInsufficientData)
	}

	sum := decimal.Zero
	for _, c := range closes[len(closes)-period:] {
		sum = sum.Add(c)
	}
	return sum.Div(decimal.NewFromInt(int64(period))), nil
}

// emaSeries returns the EMA at every close, seeded with the first close
func emaSeries(closes []decimal.Decimal, period int) []decimal.Decimal {
	multiplier := two.Div(decimal.NewFromInt(int64(period + 1)))
	out := make([]decimal.Decimal, len(closes))
	ema := closes[0]
	out[0] = ema
	for i := 1; i < len(closes); i++ {
		ema = closes[i].Sub(ema).Mul(multiplier).Add(ema)
		out[i] = ema
	}
	return out
}

// EMA is the exponential moving average over the closes, using at most three periods of history
func EMA(closes []decimal.Decimal, period int) (decimal.Decimal, error) {
	if period <= 0 || len(closes) < period {
		return decimal.Zero, fmt.Errorf("EMA%d: %w", period, ErrInsufficientData)
	}
	if len(closes) > period*3 {
		closes = closes[len(closes)-period*3:]
	}
	series := emaSeries(closes, period)
	return series[len(series)-1], nil
}

// RSI is the relative strength index over the last period changes
func RSI(closes []decimal.Decimal, period int) (decimal.Decimal, error) {
	if period <= 0 || len(closes) < period+1 {
		return decimal.Zero, fmt.Errorf("RSI%d: %w", period, ErrInsufficientData)
	}

	window := closes[len(closes)-period-1:]
	gains := decimal.Zero
	losses := decimal.Zero
	for i := 1; i < len(window); i++ {
		change := window[i].Sub(window[i-1])
		if change.IsPositive() {
			gains = gains.Add(change)
		} else {
			losses = losses.Add(change.Abs())
		}
	}

	if losses.IsZero() {
		return hundred, nil
	}
	rs := gains.Div(losses)
	return hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs))), nil
}

// MACD is the 12/26 EMA spread with its 9-period signal line
func MACD(closes []decimal.Decimal) (*models.MACD, error) {
	if len(closes) < MACDSlow+MACDSignal {
		return nil, fmt.Errorf("MACD: %w", ErrInsufficientData)
	}

	fast := emaSeries(closes, MACDFast)
	slow := emaSeries(closes, MACDSlow)
	line := make([]decimal.Decimal, 0, len(closes)-MACDSlow+1)
	for i := MACDSlow - 1; i < len(closes); i++ {
		line = append(line, fast[i].Sub(slow[i]))
	}
	signal := emaSeries(line, MACDSignal)

	last := line[len(line)-1]
	sig := signal[len(signal)-1]
	return &models.MACD{
		Line:      last.Round(indicatorPlaces),
		Signal:    sig.Round(indicatorPlaces),
		Histogram: last.Sub(sig).Round(indicatorPlaces),
	}, nil
}

// BollingerBands are the period SMA plus and minus two standard deviations
func BollingerBands(closes []decimal.Decimal, period int) (*models.Bollinger, error) {
	sma, err := SMA(closes, period)
	if err != nil {
		return nil, err
	}

	mean := sma.InexactFloat64()
	var variance float64
	for _, c := range closes[len(closes)-period:] {
		diff := c.InexactFloat64() - mean
		variance += diff * diff
	}
	width := decimal.NewFromFloat(math.Sqrt(variance / float64(period))).Mul(two)

	return &models.Bollinger{
		Upper:  sma.Add(width).Round(indicatorPlaces),
		Middle: sma.Round(indicatorPlaces),
		Lower:  sma.Sub(width).Round(indicatorPlaces),
	}, nil
}

// Summarize computes every indicator the history is long enough for
func Summarize(points []models.PricePoint) models.Indicators {
	closes := Closes(points)
	var ind models.Indicators

	round := func(v decimal.Decimal, err error) *decimal.Decimal {
		if err != nil {
			return nil
		}
		v = v.Round(indicatorPlaces)
		return &v
	}

	ind.SMA20 = round(SMA(closes, 20))
	ind.SMA50 = round(SMA(closes, 50))
	ind.EMA12 = round(EMA(closes, MACDFast))
	ind.EMA26 = round(EMA(closes, MACDSlow))
	ind.RSI14 = round(RSI(closes, RSIPeriod))
	if macd, err := MACD(closes); err == nil {
		ind.MACD = macd
	}
	if bands, err := BollingerBands(closes, BandPeriod); err == nil {
		ind.Bollinger = bands
	}
	return ind
}
