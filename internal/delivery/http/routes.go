package http

import (
	"github.com/gin-gonic/gin"
	"github.com/visualmatch/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = cfg.Image.MaxBytes

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/status", handler.Status)

		// Only search creation is rate limited
		searches := v1.Group("/searches")
		{
			searches.POST("", RateLimitMiddleware(cfg.RateLimit.PerIP, cfg.RateLimit.Burst), handler.CreateSearch)
			searches.GET("/:id", handler.GetResults)
			searches.DELETE("/:id", handler.DeleteSearch)
		}
	}

	return router
}
