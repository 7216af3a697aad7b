// Package handler exposes the API as a serverless function. Scheduled jobs and the price
// stream poller do not run here.
package handler

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	zlog "github.com/rs/zerolog/log"

	"xrp_etf_backend/app"
	"xrp_etf_backend/config"
	"xrp_etf_backend/logger"
)

var (
	once     sync.Once
	router   http.Handler
	buildErr error
)

func build() {
	cfg, err := config.LoadConfig()
	if err != nil {
		buildErr = err
		return
	}

	gin.SetMode(gin.ReleaseMode)
	log := logger.New(logger.Config{Level: cfg.LogLevel})

	application, err := app.New(cfg, log)
	if err != nil {
		buildErr = err
		return
	}
	router = application.Router
}

// Handler is the serverless function entry point
func Handler(w http.ResponseWriter, r *http.Request) {
	once.Do(build)
	if buildErr != nil {
		zlog.Error().Err(buildErr).Msg("Handler init failed")
		http.Error(w, `{"error":"Service unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	router.ServeHTTP(w, r)
}
