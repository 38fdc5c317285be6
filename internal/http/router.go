package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/openclaw-gurusharan/ondc-seller/internal/config"
	"github.com/openclaw-gurusharan/ondc-seller/internal/http/handlers"
	"github.com/openclaw-gurusharan/ondc-seller/internal/metrics"
	"github.com/openclaw-gurusharan/ondc-seller/internal/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	m *metrics.Registry,
	authHandler *handlers.AuthHandler,
	escrowHandler *handlers.EscrowHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log, m))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if m != nil {
		app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	api := app.Group("/api/v1")

	// Public
	api.Post("/auth/challenge", authHandler.Challenge)
	api.Post("/auth/wallet", authHandler.WalletAuth)
	metaHandler := handlers.NewMetaHandler()
	api.Get("/meta/statuses", metaHandler.GetStatuses)

	// Protected endpoints, rate limited per wallet
	protected := api.Group("",
		middleware.AuthMiddleware(cfg.JWTSecret, log),
		middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute, log),
	)

	// Escrows; per-escrow routes are limited to its parties
	party := escrowHandler.RequireParty
	protected.Post("/escrows", escrowHandler.CreateEscrow)
	protected.Get("/escrows", escrowHandler.ListEscrows)
	protected.Get("/escrows/:id", party, escrowHandler.GetEscrow)
	protected.Get("/escrows/:id/transactions", party, escrowHandler.GetTransactions)
	protected.Get("/escrows/:id/audit", party, escrowHandler.GetAuditTrail)
	protected.Get("/escrows/:id/verify", party, escrowHandler.VerifyOnChainRecord)
	protected.Get("/escrows/:id/chain", party, escrowHandler.VerifyChain)
	protected.Post("/escrows/:id/fund", party, escrowHandler.FundEscrow)
	protected.Post("/escrows/:id/request-release", party, escrowHandler.RequestRelease)
	protected.Post("/escrows/:id/approve", party, escrowHandler.ApproveRelease)
	protected.Post("/escrows/:id/release", party, escrowHandler.ReleaseFunds)
	protected.Post("/escrows/:id/cancel", party, escrowHandler.CancelEscrow)
	protected.Post("/escrows/:id/dispute", party, escrowHandler.DisputeEscrow)

	// Notary
	protected.Get("/notarizations/:id", escrowHandler.GetNotarization)

	// WebSocket
	if wsHub != nil {
		app.Use("/ws", handlers.WSUpgradeMiddleware())
		app.Get("/ws", websocket.New(wsHub.HandleWS))
	}
}
