package routes

import (
	"github.com/gin-gonic/gin"

	"atelier/internal/interfaces/http/handlers"
)

// BillingRouteConfig holds dependencies for webhook and ledger routes.
type BillingRouteConfig struct {
	WebhookHandler *handlers.WebhookHandler
	LedgerHandler  *handlers.LedgerHandler
}

// SetupBillingRoutes configures the provider webhook endpoint and the ledger
// read/refund routes.
func SetupBillingRoutes(engine *gin.Engine, cfg *BillingRouteConfig) {
	engine.POST("/webhooks/billing", cfg.WebhookHandler.HandleBillingEvent)

	payments := engine.Group("/payments")
	{
		payments.POST("/:ref/refund", cfg.LedgerHandler.Refund)
	}

	engine.GET("/revenue/summary", cfg.LedgerHandler.RevenueSummary)
}
