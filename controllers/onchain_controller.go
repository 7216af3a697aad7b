package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"xrp_etf_backend/services/market"
)

// OnChainController serves XRP Ledger statistics
type OnChainController struct {
	market *market.Service
	log    zerolog.Logger
}

// NewOnChainController creates a new on-chain controller
func NewOnChainController(svc *market.Service, log zerolog.Logger) *OnChainController {
	return &OnChainController{
		market: svc,
		log:    log.With().Str("component", "onchain_controller").Logger(),
	}
}

func (oc *OnChainController) fail(c *gin.Context, err error, message string) {
	oc.log.Error().Err(err).Str("path", c.FullPath()).Msg(message)
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": message})
}

// GetEscrow returns XRP locked in escrow and upcoming releases
// GET /api/onchain/escrow
func (oc *OnChainController) GetEscrow(c *gin.Context) {
	res, err := oc.market.Escrow(c.Request.Context(), queryBool(c, "refresh"))
	if err != nil {
		oc.fail(c, err, "Failed to fetch escrow data")
		return
	}
	c.JSON(http.StatusOK, cacheFields(gin.H{"success": true, "data": res.Value}, res))
}

// GetNetwork returns ledger and server state
// GET /api/onchain/network
func (oc *OnChainController) GetNetwork(c *gin.Context) {
	res, err := oc.market.Network(c.Request.Context(), queryBool(c, "refresh"))
	if err != nil {
		oc.fail(c, err, "Failed to fetch network data")
		return
	}
	c.JSON(http.StatusOK, cacheFields(gin.H{"success": true, "data": res.Value}, res))
}

// GetDEX returns the XRP order book summary
// GET /api/onchain/dex
func (oc *OnChainController) GetDEX(c *gin.Context) {
	res, err := oc.market.DEX(c.Request.Context(), queryBool(c, "refresh"))
	if err != nil {
		oc.fail(c, err, "Failed to fetch DEX data")
		return
	}
	c.JSON(http.StatusOK, cacheFields(gin.H{"success": true, "data": res.Value}, res))
}

// GetODL returns balances of on-demand liquidity exchanges
// GET /api/onchain/odl
func (oc *OnChainController) GetODL(c *gin.Context) {
	res, err := oc.market.ODL(c.Request.Context(), queryBool(c, "refresh"))
	if err != nil {
		oc.fail(c, err, "Failed to fetch ODL data")
		return
	}
	c.JSON(http.StatusOK, cacheFields(gin.H{"success": true, "data": res.Value}, res))
}

// GetRichList returns the top accounts
// GET /api/onchain/rich-list?limit=100
func (oc *OnChainController) GetRichList(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	list, res, err := oc.market.RichList(c.Request.Context(), limit, queryBool(c, "refresh"))
	if err != nil {
		oc.fail(c, err, "Failed to fetch rich list")
		return
	}
	c.JSON(http.StatusOK, cacheFields(gin.H{"success": true, "data": list}, res))
}
