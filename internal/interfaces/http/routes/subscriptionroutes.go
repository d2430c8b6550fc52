package routes

import (
	"github.com/gin-gonic/gin"

	"atelier/internal/interfaces/http/handlers"
)

// SubscriptionRouteConfig holds dependencies for subscription routes.
type SubscriptionRouteConfig struct {
	SubscriptionHandler *handlers.SubscriptionHandler
}

// SetupSubscriptionRoutes configures subscription lifecycle and access routes.
func SetupSubscriptionRoutes(engine *gin.Engine, cfg *SubscriptionRouteConfig) {
	subscriptions := engine.Group("/subscriptions")
	{
		subscriptions.POST("", cfg.SubscriptionHandler.Create)
		subscriptions.GET("", cfg.SubscriptionHandler.ListBySubscriber)
		subscriptions.GET("/:id", cfg.SubscriptionHandler.Get)
		subscriptions.POST("/:id/cancel", cfg.SubscriptionHandler.Cancel)
		subscriptions.POST("/:id/reactivate", cfg.SubscriptionHandler.Reactivate)
	}

	engine.GET("/access", cfg.SubscriptionHandler.CheckAccess)
}
