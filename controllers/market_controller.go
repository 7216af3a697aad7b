package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"xrp_etf_backend/services/market"
)

// DefaultProbeSymbol is charted by /api/test when no symbol is given
const DefaultProbeSymbol = "BITW"

// MarketController handles ETF, price and sentiment requests
type MarketController struct {
	market *market.Service
	log    zerolog.Logger
}

// NewMarketController creates a new market controller
func NewMarketController(svc *market.Service, log zerolog.Logger) *MarketController {
	return &MarketController{
		market: svc,
		log:    log.With().Str("component", "market_controller").Logger(),
	}
}

// GetETFData returns quotes and volumes for every tracked fund
// GET /api/etf-data?refresh=true
func (mc *MarketController) GetETFData(c *gin.Context) {
	res, err := mc.market.ETFData(c.Request.Context(), queryBool(c, "refresh"))
	if err != nil {
		respondError(c, mc.log, err, "Failed to fetch ETF data")
		return
	}

	body := gin.H{
		"data":      res.Value.Data,
		"groups":    res.Value.Groups,
		"timestamp": res.Value.Timestamp,
	}
	if len(res.Value.Errors) > 0 {
		body["errors"] = res.Value.Errors
	}
	c.JSON(http.StatusOK, cacheFields(body, res))
}

// GetHistorical returns daily closes of the spot funds and XRP
// GET /api/historical?period=1mo|3mo|6mo|1y
func (mc *MarketController) GetHistorical(c *gin.Context) {
	res, err := mc.market.Historical(c.Request.Context(), c.Query("period"))
	if err != nil {
		if errors.Is(err, market.ErrInvalidPeriod) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid period. Use one of: " + strings.Join(market.Periods, ", ")})
			return
		}
		respondError(c, mc.log, err, "Failed to fetch historical data")
		return
	}

	body := gin.H{
		"data":    res.Value.Data,
		"period":  res.Value.Period,
		"symbols": res.Value.Symbols,
	}
	if len(res.Value.Indicators) > 0 {
		body["indicators"] = res.Value.Indicators
	}
	if len(res.Value.Errors) > 0 {
		body["errors"] = res.Value.Errors
	}
	c.JSON(http.StatusOK, cacheFields(body, res))
}

// GetSentiment returns the composite sentiment score
// GET /api/sentiment?refresh=true
func (mc *MarketController) GetSentiment(c *gin.Context) {
	res, err := mc.market.Sentiment(c.Request.Context(), queryBool(c, "refresh"))
	if err != nil {
		respondError(c, mc.log, err, "Failed to compute sentiment")
		return
	}

	s := res.Value
	c.JSON(http.StatusOK, cacheFields(gin.H{
		"score":     s.Score,
		"label":     s.Label,
		"signals":   s.Signals,
		"priceUsd":  s.PriceUSD,
		"change24h": s.Change24h,
		"updatedAt": s.UpdatedAt,
	}, res))
}

// GetRichList returns the top XRP accounts
// GET /api/richlist?limit=100
func (mc *MarketController) GetRichList(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	list, res, err := mc.market.RichList(c.Request.Context(), limit, queryBool(c, "refresh"))
	if err != nil {
		respondError(c, mc.log, err, "Failed to fetch rich list")
		return
	}

	c.JSON(http.StatusOK, cacheFields(gin.H{
		"accounts": list.Accounts,
		"total":    list.Total,
		"tiers":    list.Tiers,
	}, res))
}

// GetXPost drafts a social post from current data
// GET /api/x-post
func (mc *MarketController) GetXPost(c *gin.Context) {
	post, err := mc.market.XPost(c.Request.Context())
	if err != nil {
		respondError(c, mc.log, err, "Failed to generate post")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": post})
}

// TestSymbol fetches one ticker directly, bypassing the cache
// GET /api/test?symbol=BITW
func (mc *MarketController) TestSymbol(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.DefaultQuery("symbol", DefaultProbeSymbol)))
	if symbol == "" {
		symbol = DefaultProbeSymbol
	}

	probe, err := mc.market.ProbeSymbol(c.Request.Context(), symbol)
	if err != nil {
		mc.log.Warn().Err(err).Str("symbol", symbol).Msg("Symbol probe failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"symbol":  symbol,
			"error":   "Failed to fetch symbol",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": probe})
}

// parseLimit reads ?limit=; it writes a 400 and returns false when the value is not a positive integer
func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return 0, false
	}
	return limit, true
}
