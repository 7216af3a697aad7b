// Package app wires configuration, services and routes into one runnable server.
package app

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"xrp_etf_backend/config"
	"xrp_etf_backend/middleware"
	"xrp_etf_backend/routes"
	"xrp_etf_backend/scheduler"
	"xrp_etf_backend/services/cache"
	"xrp_etf_backend/services/email"
	"xrp_etf_backend/services/holdings"
	"xrp_etf_backend/services/market"
	"xrp_etf_backend/services/notifier"
	"xrp_etf_backend/services/stream"
)

// LimiterCleanupInterval is how often idle rate-limit buckets are dropped
const LimiterCleanupInterval = 5 * time.Minute

// App owns every long-lived component
type App struct {
	Config    *config.Config
	Router    *gin.Engine
	Market    *market.Service
	Holdings  *holdings.Service
	Notifier  *notifier.Notifier
	Hub       *stream.Hub
	Scheduler *scheduler.Scheduler
	Limiter   *middleware.RateLimiter

	store     *holdings.Store
	log       zerolog.Logger
	stop      chan struct{}
	closeOnce sync.Once
}

// New builds the application. Nothing runs in the background until Start.
func New(cfg *config.Config, log zerolog.Logger, schedulerOpts ...scheduler.Option) (*App, error) {
	store, err := holdings.NewStore()
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	sender := email.NewSender(cfg.ResendAPIKey, cfg.EmailFrom, cfg.EmailTo, log)
	if cfg.ResendURL != "" {
		base, err := url.Parse(strings.TrimRight(cfg.ResendURL, "/") + "/")
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("invalid RESEND_URL: %w", err)
		}
		sender.WithBaseURL(base)
	}

	cacheStore := cache.NewStore()
	clients := market.NewClients(cfg, log)
	marketSvc := market.NewService(cacheStore, clients, cfg, log)
	holdingsSvc := holdings.NewService(clients.XRPL, cfg.ExchangeWallets, store, cacheStore, log)
	n := notifier.New(marketSvc, holdingsSvc, sender, cfg, log)

	hub := stream.NewHub(log)
	marketSvc.OnETFUpdate(hub.PublishETF)

	sched := scheduler.NewScheduler(log, schedulerOpts...)
	n.UseScheduler(sched)

	a := &App{
		Config:    cfg,
		Market:    marketSvc,
		Holdings:  holdingsSvc,
		Notifier:  n,
		Hub:       hub,
		Scheduler: sched,
		Limiter:   middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		store:     store,
		log:       log,
		stop:      make(chan struct{}),
	}
	a.Router = a.router()
	return a, nil
}

func (a *App) router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(a.Config.CORSOrigins))
	router.Use(middleware.RequestLogger(a.log))

	routes.SetupRoutes(router, routes.Deps{
		Config:   a.Config,
		Market:   a.Market,
		Holdings: a.Holdings,
		Notifier: a.Notifier,
		Hub:      a.Hub,
		Limiter:  a.Limiter,
		Log:      a.log,
	})
	return router
}

// corsMiddleware allows every origin when the list is empty or contains "*"
func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, "Retry-After"},
		MaxAge:        24 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// Start registers the daily jobs and starts background work
func (a *App) Start() error {
	jobs := scheduler.Jobs{
		Snapshot:     a.Holdings.Task(),
		SnapshotTime: scheduler.TimeOfDay{Hour: a.Config.SnapshotHour, Minute: a.Config.SnapshotMinute},
	}
	if a.Notifier.Enabled() {
		jobs.Email = a.Notifier.Task()
		jobs.EmailHours = a.Config.EmailHours
	} else {
		a.log.Info().Msg("Email not configured, summary job disabled")
	}
	if err := a.Scheduler.RegisterJobs(jobs); err != nil {
		return err
	}
	a.Scheduler.Start()

	go a.Limiter.StartCleanup(LimiterCleanupInterval, a.stop)

	// a fresh ETF fetch reaches stream clients through OnETFUpdate
	if err := a.Hub.StartPolling(config.ETFDataTTL, func(ctx context.Context) error {
		_, err := a.Market.ETFData(ctx, false)
		return err
	}); err != nil {
		return err
	}

	a.log.Info().
		Str("snapshot", jobs.SnapshotTime.String()).
		Ints("email_hours", jobs.EmailHours).
		Bool("ai", a.Market.AIEnabled()).
		Str("anthropic_key", config.MaskSecret(a.Config.AnthropicAPIKey)).
		Str("resend_key", config.MaskSecret(a.Config.ResendAPIKey)).
		Msg("Background jobs started")
	return nil
}

// Close stops background work and releases the snapshot store
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.Scheduler.Stop()
		a.Hub.Shutdown()
		close(a.stop)
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close snapshot store")
		}
	})
}
