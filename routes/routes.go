package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"xrp_etf_backend/config"
	"xrp_etf_backend/controllers"
	"xrp_etf_backend/middleware"
	"xrp_etf_backend/services/holdings"
	"xrp_etf_backend/services/market"
	"xrp_etf_backend/services/notifier"
	"xrp_etf_backend/services/stream"
)

// Deps are the services the routes serve
type Deps struct {
	Config   *config.Config
	Market   *market.Service
	Holdings *holdings.Service
	Notifier *notifier.Notifier
	Hub      *stream.Hub
	Limiter  *middleware.RateLimiter
	Log      zerolog.Logger
}

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, deps Deps) {
	log := deps.Log

	marketController := controllers.NewMarketController(deps.Market, log)
	onChainController := controllers.NewOnChainController(deps.Market, log)
	aiController := controllers.NewAIController(deps.Market, log)
	exchangeController := controllers.NewExchangeController(deps.Holdings, log)
	emailController := controllers.NewEmailController(deps.Notifier, deps.Config.EmailSecret, log)

	info := controllers.HealthInfo{
		AIEnabled:    deps.Market.AIEnabled(),
		EmailEnabled: deps.Notifier.Enabled(),
	}
	if deps.Hub != nil {
		info.StreamClients = deps.Hub.ClientCount
	}
	systemController := controllers.NewSystemController(deps.Market.Cache(), deps.Config.EmailSecret, info, log)

	// expensive or side-effecting calls share one per-client quota
	limited := middleware.RateLimitMiddleware(deps.Limiter)

	router.GET("/", systemController.Index)

	api := router.Group("/api")
	{
		api.GET("/health", systemController.Health)
		api.GET("/test", marketController.TestSymbol)

		api.GET("/etf-data", marketController.GetETFData)
		api.GET("/historical", marketController.GetHistorical)
		api.GET("/sentiment", marketController.GetSentiment)
		api.GET("/richlist", marketController.GetRichList)
		api.GET("/x-post", marketController.GetXPost)

		api.POST("/ai-insights", aiController.RequireAI, limited, aiController.GetInsights)
		api.POST("/chat", aiController.RequireAI, limited, aiController.Chat)

		onchain := api.Group("/onchain")
		{
			onchain.GET("/escrow", onChainController.GetEscrow)
			onchain.GET("/network", onChainController.GetNetwork)
			onchain.GET("/dex", onChainController.GetDEX)
			onchain.GET("/odl", onChainController.GetODL)
			onchain.GET("/rich-list", onChainController.GetRichList)
		}

		exchange := api.Group("/exchange")
		{
			exchange.GET("/holdings", exchangeController.GetHoldings)
			exchange.GET("/trend", exchangeController.GetTrend)
			exchange.POST("/snapshot", limited, exchangeController.TakeSnapshot)
		}

		api.POST("/send-email", limited, emailController.SendEmail)
		api.GET("/email-status", emailController.GetStatus)

		cache := api.Group("/cache")
		{
			cache.GET("/status", systemController.CacheStatus)
			cache.POST("/clear", limited, systemController.ClearCache)
		}
	}

	if deps.Hub != nil {
		router.GET("/ws/prices", func(c *gin.Context) {
			deps.Hub.HandleWebSocket(c.Writer, c.Request)
		})
	}
}
