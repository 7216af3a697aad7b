package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"xrp_etf_backend/services/cache"
)

// Version is reported by / and /api/health
const Version = "2.0.0"

// Endpoints is the index served at /
var Endpoints = []string{
	"GET /api/health",
	"GET /api/etf-data",
	"GET /api/historical?period=1mo|3mo|6mo|1y",
	"GET /api/test?symbol=",
	"GET /api/sentiment",
	"POST /api/ai-insights",
	"POST /api/chat",
	"GET /api/onchain/{escrow,network,dex,odl,rich-list}",
	"GET /api/richlist",
	"GET /api/exchange/holdings",
	"GET /api/exchange/trend?days=",
	"POST /api/exchange/snapshot",
	"GET /api/x-post",
	"POST /api/send-email",
	"GET /api/email-status",
	"GET /api/cache/status",
	"POST /api/cache/clear",
	"GET /ws/prices",
}

// HealthInfo reports optional feature state for /api/health
type HealthInfo struct {
	AIEnabled     bool
	EmailEnabled  bool
	StreamClients func() int
}

// SystemController serves health, index and cache administration
type SystemController struct {
	cache   *cache.Store
	secret  string
	info    HealthInfo
	started time.Time
	log     zerolog.Logger
}

// NewSystemController creates a new system controller. secret guards cache clearing.
func NewSystemController(store *cache.Store, secret string, info HealthInfo, log zerolog.Logger) *SystemController {
	return &SystemController{
		cache:   store,
		secret:  secret,
		info:    info,
		started: time.Now(),
		log:     log.With().Str("component", "system_controller").Logger(),
	}
}

// Index lists the API
// GET /
func (sc *SystemController) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"message":   "XRP ETF Tracker API",
		"version":   Version,
		"endpoints": Endpoints,
	})
}

// Health reports liveness and feature flags
// GET /api/health
func (sc *SystemController) Health(c *gin.Context) {
	body := gin.H{
		"status":        "healthy",
		"version":       Version,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"uptimeSeconds": int64(time.Since(sc.started).Seconds()),
		"aiEnabled":     sc.info.AIEnabled,
		"emailEnabled":  sc.info.EmailEnabled,
		"cacheKeys":     len(sc.cache.Stats()),
	}
	if sc.info.StreamClients != nil {
		body["streamClients"] = sc.info.StreamClients()
	}
	c.JSON(http.StatusOK, body)
}

// CacheStatus lists populated cache slots and their age
// GET /api/cache/status
func (sc *SystemController) CacheStatus(c *gin.Context) {
	stats := sc.cache.Stats()
	c.JSON(http.StatusOK, gin.H{"count": len(stats), "keys": stats})
}

// ClearCache empties one slot, or every slot when no key is given
// POST /api/cache/clear
func (sc *SystemController) ClearCache(c *gin.Context) {
	var req secretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if !secretMatches(sc.secret, req.Secret) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid secret"})
		return
	}

	cleared := req.Key
	if cleared != "" {
		sc.cache.Clear(cleared)
	} else {
		sc.cache.ClearAll()
		cleared = "all"
	}
	sc.log.Info().Str("key", cleared).Msg("Cache cleared")
	c.JSON(http.StatusOK, gin.H{"success": true, "cleared": cleared})
}
