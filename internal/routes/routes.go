package routes

import (
	"flulance/internal/handlers"
	"flulance/internal/logger"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts every handler under /api/v1.
func RegisterRoutes(ginRouter *gin.Engine, appHandlers *handlers.AppHandlers) {
	appHandlers.HealthHandler.RegisterRoutes(&ginRouter.RouterGroup)

	api := ginRouter.Group("/api/v1")
	{
		appHandlers.HealthHandler.RegisterRoutes(api)
		appHandlers.JobHandler.RegisterRoutes(api)
		appHandlers.ApplicationHandler.RegisterRoutes(api)
		appHandlers.MatchHandler.RegisterRoutes(api)
		appHandlers.ChatHandler.RegisterRoutes(api)
		appHandlers.NotificationHandler.RegisterRoutes(api)
		appHandlers.ReviewHandler.RegisterRoutes(api)
		appHandlers.ContactHandler.RegisterRoutes(api)
	}

	logger.Info("HTTP routes registered", "count", len(ginRouter.Routes()))
}
