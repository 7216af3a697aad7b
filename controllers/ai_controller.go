package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"xrp_etf_backend/config"
	"xrp_etf_backend/services/market"
)

// AIController serves model-generated analysis
type AIController struct {
	market *market.Service
	log    zerolog.Logger
}

// NewAIController creates a new AI controller
func NewAIController(svc *market.Service, log zerolog.Logger) *AIController {
	return &AIController{
		market: svc,
		log:    log.With().Str("component", "ai_controller").Logger(),
	}
}

type insightsRequest struct {
	MarketData   map[string]any `json:"marketData"`
	ForceRefresh bool           `json:"forceRefresh"`
}

// chatRequest accepts both field spellings used by dashboard clients
type chatRequest struct {
	Message    string         `json:"message"`
	Question   string         `json:"question"`
	Context    map[string]any `json:"context"`
	MarketData map[string]any `json:"marketData"`
}

const aiNotConfigured = "AI analysis is not configured"

// RequireAI answers 503 when no model key is configured. It is mounted ahead of the rate limiter.
func (ac *AIController) RequireAI(c *gin.Context) {
	if !ac.market.AIEnabled() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": aiNotConfigured})
		return
	}
	c.Next()
}

// GetInsights returns an analysis of the posted market data
// POST /api/ai-insights
func (ac *AIController) GetInsights(c *gin.Context) {
	var req insightsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if len(req.MarketData) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "marketData is required"})
		return
	}

	res, err := ac.market.Insights(c.Request.Context(), req.MarketData, req.ForceRefresh)
	if err != nil {
		respondError(c, ac.log, err, "Failed to generate analysis")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"analysis": res.Value,
		"cached":   res.Cached,
	})
}

// Chat answers a question about the dashboard data
// POST /api/chat
func (ac *AIController) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	message := req.Message
	if message == "" {
		message = req.Question
	}
	marketContext := req.Context
	if marketContext == nil {
		marketContext = req.MarketData
	}

	reply, err := ac.market.Chat(c.Request.Context(), message, marketContext)
	if err != nil {
		if errors.Is(err, market.ErrEmptyQuestion) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
			return
		}
		if errors.Is(err, config.ErrNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": aiNotConfigured})
			return
		}
		respondError(c, ac.log, err, "Failed to answer")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"response": reply.Response,
		"reply":    reply.Response,
		"sources":  reply.Sources,
	})
}
