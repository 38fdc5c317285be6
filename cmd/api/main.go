package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/openclaw-gurusharan/ondc-seller/internal/auth"
	"github.com/openclaw-gurusharan/ondc-seller/internal/config"
	"github.com/openclaw-gurusharan/ondc-seller/internal/db"
	"github.com/openclaw-gurusharan/ondc-seller/internal/events"
	apphttp "github.com/openclaw-gurusharan/ondc-seller/internal/http"
	"github.com/openclaw-gurusharan/ondc-seller/internal/http/dto"
	"github.com/openclaw-gurusharan/ondc-seller/internal/http/handlers"
	"github.com/openclaw-gurusharan/ondc-seller/internal/logger"
	"github.com/openclaw-gurusharan/ondc-seller/internal/metrics"
	"github.com/openclaw-gurusharan/ondc-seller/internal/middleware"
	"github.com/openclaw-gurusharan/ondc-seller/internal/notary"
	"github.com/openclaw-gurusharan/ondc-seller/internal/repositories"
	"github.com/openclaw-gurusharan/ondc-seller/internal/services"
	"github.com/openclaw-gurusharan/ondc-seller/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(log); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	opts := []services.Option{
		services.WithMetrics(m),
		services.WithNotaryTimeout(cfg.NotaryTimeout),
	}

	// Store and notary. With Postgres both live in the shared database, so any number of
	// replicas can serve the same escrows; the memory store pairs with a local LevelDB notary.
	var (
		store     repositories.EscrowStore
		notarizer notary.Notarizer
	)
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
		if err != nil {
			log.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()

		if err := db.RunMigrations(ctx, pool, cfg.MigrationsDir, log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
		pg := repositories.NewPostgresStore(pool)
		store = pg
		notarizer = notary.NewPostgres(pool, log)
		opts = append(opts, services.WithLocker(pg))
	default:
		store = repositories.NewMemoryStore()
		ledger, err := notary.Open(cfg.NotaryPath, log)
		if err != nil {
			log.Fatal("failed to open notary", zap.Error(err))
		}
		defer ledger.Close()
		notarizer = ledger
	}

	// Events: Redis when reachable, in-process otherwise
	var (
		rdb        *redis.Client
		publisher  events.Publisher
		subscriber events.Subscriber
		nonces     auth.NonceStore
	)
	rdb, err = db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Warn("redis unavailable, using in-process events and no rate limiting", zap.Error(err))
		rdb = nil
		bus := events.NewLocalBus()
		publisher, subscriber = bus, bus
		nonces = auth.NewMemoryNonceStore(cfg.AuthNonceTTL)
	} else {
		defer rdb.Close()
		publisher = events.NewRedisPublisher(rdb, log)
		subscriber = events.NewRedisSubscriber(rdb, log)
		nonces = auth.NewRedisNonceStore(rdb, cfg.AuthNonceTTL)
	}
	opts = append(opts, services.WithListener(events.PublishingListener(publisher, log)))

	escrowService := services.NewEscrowService(store, notarizer, log, opts...)

	// Handlers
	authHandler := handlers.NewAuthHandler(cfg, nonces, log)
	escrowHandler := handlers.NewEscrowHandler(escrowService, log)
	wsHub := handlers.NewWSHub(cfg.JWTSecret, subscriber, log)

	if err := wsHub.Start(ctx); err != nil {
		log.Fatal("failed to start ws hub", zap.Error(err))
	}

	// Background jobs
	auditor := worker.NewChainAuditor(escrowService, cfg.ChainAuditInterval, m, log)
	go auditor.Run(ctx)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(dto.ErrorResponse{Error: err.Error(), RequestID: middleware.GetRequestID(c)})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, m, authHandler, escrowHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server",
		zap.String("addr", addr),
		zap.String("store", cfg.StoreDriver),
	)
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
