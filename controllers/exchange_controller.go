package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"xrp_etf_backend/services/holdings"
)

// DefaultTrendDays is used when /api/exchange/trend has no days parameter
const DefaultTrendDays = 30

// ExchangeController serves exchange wallet holdings and their daily snapshots
type ExchangeController struct {
	holdings *holdings.Service
	log      zerolog.Logger
}

// NewExchangeController creates a new exchange controller
func NewExchangeController(svc *holdings.Service, log zerolog.Logger) *ExchangeController {
	return &ExchangeController{
		holdings: svc,
		log:      log.With().Str("component", "exchange_controller").Logger(),
	}
}

// GetHoldings returns live exchange balances and the last stored snapshot
// GET /api/exchange/holdings?refresh=true
func (ec *ExchangeController) GetHoldings(c *gin.Context) {
	ctx := c.Request.Context()
	res, err := ec.holdings.Current(ctx, queryBool(c, "refresh"))
	if err != nil {
		respondError(c, ec.log, err, "Failed to fetch exchange holdings")
		return
	}

	body := gin.H{"success": true, "data": res.Value}
	latest, ok, err := ec.holdings.Latest(ctx)
	if err != nil {
		ec.log.Warn().Err(err).Msg("Failed to read latest snapshot")
	} else if ok {
		body["lastSnapshot"] = latest
	}
	c.JSON(http.StatusOK, cacheFields(body, res))
}

// GetTrend returns stored snapshots with day-over-day change
// GET /api/exchange/trend?days=30
func (ec *ExchangeController) GetTrend(c *gin.Context) {
	days := DefaultTrendDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
			return
		}
		days = n
	}

	trend, err := ec.holdings.Trend(c.Request.Context(), days)
	if err != nil {
		respondError(c, ec.log, err, "Failed to load holdings trend")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": trend})
}

// TakeSnapshot records today's holdings now
// POST /api/exchange/snapshot
func (ec *ExchangeController) TakeSnapshot(c *gin.Context) {
	snap, err := ec.holdings.TakeSnapshot(c.Request.Context())
	if err != nil {
		respondError(c, ec.log, err, "Failed to take snapshot")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": snap})
}
