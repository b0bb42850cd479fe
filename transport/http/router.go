package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/keyauth/service"
)

// RouterConfig holds transport settings
type RouterConfig struct {
	// CSRFHeader must be present on bearer token logins when set
	CSRFHeader string
}

// SetupRouter sets up the Gin router. The bearer token routes are only
// registered when bearerService is not nil.
func SetupRouter(cfg RouterConfig, challengeService, bearerService *service.AuthService, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if logger != nil {
		router.Use(LoggerMiddleware(logger.With("component", "http")))
	}

	// Create handlers
	handlers := NewAuthHandlers(challengeService, bearerService)

	router.GET("/healthz", handlers.Health)

	// Challenge routes
	challenge := router.Group("/challenge")
	challenge.Use(SessionMiddleware())
	{
		challenge.GET("", handlers.Challenge)
		challenge.POST("", handlers.Verify)
	}

	// Bearer token routes
	if bearerService != nil {
		auth := router.Group("/auth")
		{
			auth.GET("/token", handlers.Token)
			auth.POST("/token", CSRFMiddleware(cfg.CSRFHeader), handlers.TokenLogin)
			auth.GET("/token/inspect", handlers.InspectToken)
		}
	}

	return router
}
