package http

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	billingUsecases "atelier/internal/application/billing/usecases"
	subscriptionUsecases "atelier/internal/application/subscription/usecases"
	domainbilling "atelier/internal/domain/billing"
	infraBilling "atelier/internal/infrastructure/billing"
	"atelier/internal/infrastructure/cache"
	"atelier/internal/infrastructure/config"
	"atelier/internal/infrastructure/repository"
	"atelier/internal/interfaces/http/handlers"
	"atelier/internal/interfaces/http/middleware"
	"atelier/internal/interfaces/http/routes"
	"atelier/internal/shared/db"
	"atelier/internal/shared/logger"
)

// Router wires repositories, use cases, and handlers onto a gin engine.
type Router struct {
	engine *gin.Engine
	cfg    *config.Config
}

// NewRouter builds the full HTTP surface. The redis client is optional: with
// nil the dedup store runs directly against the database.
func NewRouter(gormDB *gorm.DB, redisClient *redis.Client, cfg *config.Config, log logger.Interface) *Router {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.Recovery())
	engine.Use(middleware.Logger(log))

	subscriptionRepo := repository.NewSubscriptionRepository(gormDB, log.Named("subscription-repo"))
	ledgerRepo := repository.NewLedgerEntryRepository(gormDB, log.Named("ledger-repo"))

	var dedupStore domainbilling.DedupStore = repository.NewDedupStore(gormDB, log.Named("dedup-store"))
	if redisClient != nil {
		dedupStore = cache.NewEventAckCache(dedupStore, redisClient, cfg.Billing.DedupWindow, log.Named("ack-cache"))
	}

	gateway := infraBilling.NewHTTPGateway(&cfg.Billing, log.Named("billing-gateway"))

	subscriptionHandler := handlers.NewSubscriptionHandler(
		subscriptionUsecases.NewCreateSubscriptionUseCase(subscriptionRepo, gateway, log),
		subscriptionUsecases.NewCancelSubscriptionUseCase(subscriptionRepo, gateway, log),
		subscriptionUsecases.NewReactivateSubscriptionUseCase(subscriptionRepo, gateway, log),
		subscriptionUsecases.NewGetSubscriptionUseCase(subscriptionRepo, log),
		subscriptionUsecases.NewListSubscriberSubscriptionsUseCase(subscriptionRepo, log),
		subscriptionUsecases.NewCheckAccessUseCase(subscriptionRepo, log),
		log.Named("subscription-handler"),
	)

	txManager := db.NewTransactionManager(gormDB)

	webhookHandler := handlers.NewWebhookHandler(
		billingUsecases.NewIngestProviderEventUseCase(dedupStore, subscriptionRepo, ledgerRepo, txManager, log),
		log.Named("webhook-handler"),
	)

	ledgerHandler := handlers.NewLedgerHandler(
		billingUsecases.NewRefundPaymentUseCase(ledgerRepo, gateway, log),
		billingUsecases.NewRevenueSummaryUseCase(ledgerRepo, log),
		log.Named("ledger-handler"),
	)

	routes.SetupSubscriptionRoutes(engine, &routes.SubscriptionRouteConfig{
		SubscriptionHandler: subscriptionHandler,
	})
	routes.SetupBillingRoutes(engine, &routes.BillingRouteConfig{
		WebhookHandler: webhookHandler,
		LedgerHandler:  ledgerHandler,
	})

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return &Router{
		engine: engine,
		cfg:    cfg,
	}
}

// Engine exposes the underlying gin engine, mainly for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Run starts the HTTP server on the configured address.
func (r *Router) Run() error {
	addr := fmt.Sprintf("%s:%d", r.cfg.Server.Host, r.cfg.Server.Port)
	return r.engine.Run(addr)
}
