package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"xrp_etf_backend/config"
	"xrp_etf_backend/services/notifier"
)

// EmailController triggers and reports the summary email
type EmailController struct {
	notifier *notifier.Notifier
	secret   string
	log      zerolog.Logger
}

// NewEmailController creates a new email controller
func NewEmailController(n *notifier.Notifier, secret string, log zerolog.Logger) *EmailController {
	return &EmailController{
		notifier: n,
		secret:   secret,
		log:      log.With().Str("component", "email_controller").Logger(),
	}
}

type secretRequest struct {
	Secret string `json:"secret"`
	Key    string `json:"key"`
}

// SendEmail sends the summary email now
// POST /api/send-email
func (ec *EmailController) SendEmail(c *gin.Context) {
	var req secretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if ec.secret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Email trigger is not configured"})
		return
	}
	if !secretMatches(ec.secret, req.Secret) {
		ec.log.Warn().Str("ip", c.ClientIP()).Msg("Rejected email trigger with bad secret")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid secret"})
		return
	}

	id, err := ec.notifier.Send(c.Request.Context())
	if err != nil {
		if errors.Is(err, config.ErrNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Email is not configured"})
			return
		}
		respondError(c, ec.log, err, "Failed to send email")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": id})
}

// GetStatus reports delivery history and the next scheduled send
// GET /api/email-status
func (ec *EmailController) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, ec.notifier.Status())
}
