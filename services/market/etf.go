package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"xrp_etf_backend/config"
	"xrp_etf_backend/models"
	"xrp_etf_backend/services/analysis"
	"xrp_etf_backend/services/cache"
	"xrp_etf_backend/services/yahoo"
)

// TimestampLayout is the wall-clock format of payload timestamps
const TimestampLayout = "2006-01-02 15:04:05"

// ErrInvalidPeriod is returned for an unsupported historical period
var ErrInvalidPeriod = errors.New("invalid period")

// Periods accepted by Historical
var Periods = []string{"1mo", "3mo", "6mo", "1y"}

// HistoricalExtraSymbols are charted next to the spot ETFs
var HistoricalExtraSymbols = []string{"XRP-USD"}

const (
	maxConcurrentSymbols = 4
	weekBars             = 5
)

// ETFData returns quotes and traded volume for every tracked fund
func (s *Service) ETFData(ctx context.Context, refresh bool) (cache.Result[*models.ETFData], error) {
	return cache.Get(ctx, s.cache, KeyETFData, config.ETFDataTTL, s.fetchETFData, refresh)
}

func (s *Service) fetchETFData(ctx context.Context) (*models.ETFData, error) {
	type slot struct {
		etf *models.ETF
		err error
	}

	slots := make(map[string][]slot, len(models.ETFGroups))
	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentSymbols)

	for _, group := range models.ETFGroups {
		symbols := models.ETFSymbols[group]
		results := make([]slot, len(symbols))
		slots[group] = results
		for i, symbol := range symbols {
			g.Go(func() error {
				// one year of daily bars covers every window
				chart, err := s.clients.Yahoo.Chart(ctx, symbol, "1y", "1d")
				if err != nil {
					results[i] = slot{err: err}
					return nil
				}
				etf := BuildETF(chart)
				results[i] = slot{etf: &etf}
				return nil
			})
		}
	}
	_ = g.Wait()

	data := &models.ETFData{
		Timestamp: s.now().UTC().Format(TimestampLayout),
		Groups:    models.ETFGroups,
		Data:      make(map[string][]models.ETF, len(models.ETFGroups)),
	}

	fetched := 0
	for _, group := range models.ETFGroups {
		data.Data[group] = []models.ETF{}
		for i, sl := range slots[group] {
			symbol := models.ETFSymbols[group][i]
			if sl.err != nil {
				s.log.Warn().Err(sl.err).Str("symbol", symbol).Msg("ETF fetch failed")
				data.Errors = append(data.Errors, fmt.Sprintf("%s: %v", symbol, sl.err))
				continue
			}
			data.Data[group] = append(data.Data[group], *sl.etf)
			fetched++
		}
	}

	if fetched == 0 {
		return nil, fmt.Errorf("etf data: all %d symbols failed", len(data.Errors))
	}

	s.log.Info().Int("fetched", fetched).Int("failed", len(data.Errors)).Msg("ETF data refreshed")
	s.publishETF(data)
	return data, nil
}

// BuildETF reshapes a one-year daily chart into the fund record
func BuildETF(chart *yahoo.Chart) models.ETF {
	etf := models.ETF{
		Symbol:      chart.Symbol,
		Description: models.ETFDescriptions[chart.Symbol],
		Price:       math.Round(chart.Price*100) / 100,
		Daily: models.Volume{
			Shares:  chart.Volume,
			Dollars: int64(chart.Price * float64(chart.Volume)),
		},
	}

	bars := chart.Bars
	if len(bars) == 0 {
		return etf
	}

	etf.Weekly = volumeOf(bars[max(len(bars)-weekBars, 0):])

	monthStart := bars[len(bars)-1].Time.AddDate(0, -1, 0)
	first := len(bars)
	for i, b := range bars {
		if b.Time.After(monthStart) {
			first = i
			break
		}
	}
	etf.Monthly = volumeOf(bars[first:])
	etf.Yearly = volumeOf(bars)
	return etf
}

func volumeOf(bars []yahoo.Bar) *models.Volume {
	if len(bars) == 0 {
		return nil
	}
	var v models.Volume
	var dollars float64
	for _, b := range bars {
		v.Shares += b.Volume
		dollars += b.Close * float64(b.Volume)
	}
	v.Dollars = int64(dollars)
	return &v
}

// ValidPeriod reports whether period is accepted by Historical
func ValidPeriod(period string) bool {
	for _, p := range Periods {
		if p == period {
			return true
		}
	}
	return false
}

// Historical returns daily closes of the spot ETFs and XRP over period
func (s *Service) Historical(ctx context.Context, period string) (cache.Result[*models.HistoricalData], error) {
	if period == "" {
		period = "1mo"
	}
	if !ValidPeriod(period) {
		return cache.Result[*models.HistoricalData]{}, fmt.Errorf("%w %q: use one of %v", ErrInvalidPeriod, period, Periods)
	}

	return cache.Get(ctx, s.cache, keyHistorical+period, config.HistoricalTTL, func(ctx context.Context) (*models.HistoricalData, error) {
		return s.fetchHistorical(ctx, period)
	}, false)
}

func (s *Service) fetchHistorical(ctx context.Context, period string) (*models.HistoricalData, error) {
	symbols := append(append([]string{}, models.ETFSymbols["Spot ETFs"]...), HistoricalExtraSymbols...)

	var mu sync.Mutex
	data := &models.HistoricalData{
		Period:     period,
		Symbols:    []string{},
		Data:       make(map[string][]models.PricePoint, len(symbols)),
		Indicators: make(map[string]models.Indicators),
	}
	failed := make(map[string]error)

	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentSymbols)
	for _, symbol := range symbols {
		g.Go(func() error {
			chart, err := s.clients.Yahoo.Chart(ctx, symbol, period, "1d")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[symbol] = err
				return nil
			}
			points := make([]models.PricePoint, 0, len(chart.Bars))
			for _, b := range chart.Bars {
				points = append(points, models.PricePoint{
					Date:   b.Time.Format(time.DateOnly),
					Close:  math.Round(b.Close*10000) / 10000,
					Volume: b.Volume,
				})
			}
			data.Data[symbol] = points
			if ind := analysis.Summarize(points); !ind.Empty() {
				data.Indicators[symbol] = ind
			}
			return nil
		})
	}
	_ = g.Wait()

	// keep the configured symbol order
	for _, symbol := range symbols {
		if err, ok := failed[symbol]; ok {
			data.Errors = append(data.Errors, fmt.Sprintf("%s: %v", symbol, err))
			continue
		}
		data.Symbols = append(data.Symbols, symbol)
	}
	if len(data.Symbols) == 0 {
		return nil, fmt.Errorf("historical %s: all symbols failed", period)
	}
	return data, nil
}

// SymbolProbe is the single-ticker debug payload
type SymbolProbe struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previousClose"`
	Volume        int64   `json:"volume"`
	Currency      string  `json:"currency"`
	Exchange      string  `json:"exchange"`
	Bars          int     `json:"bars"`
}

// ProbeSymbol fetches one ticker directly, bypassing the cache
func (s *Service) ProbeSymbol(ctx context.Context, symbol string) (*SymbolProbe, error) {
	chart, err := s.clients.Yahoo.Chart(ctx, symbol, "5d", "1d")
	if err != nil {
		return nil, err
	}
	return &SymbolProbe{
		Symbol:        chart.Symbol,
		Price:         chart.Price,
		PreviousClose: chart.PreviousClose,
		Volume:        chart.Volume,
		Currency:      chart.Currency,
		Exchange:      chart.Exchange,
		Bars:          len(chart.Bars),
	}, nil
}
