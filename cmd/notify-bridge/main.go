package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/openclaw-gurusharan/ondc-seller/internal/config"
	"github.com/openclaw-gurusharan/ondc-seller/internal/db"
	"github.com/openclaw-gurusharan/ondc-seller/internal/events"
	"github.com/openclaw-gurusharan/ondc-seller/internal/logger"
	"github.com/openclaw-gurusharan/ondc-seller/internal/notify"
	"go.uber.org/zap"
)

// Notify bridge: subscribes to escrow events in Redis and posts one notification per
// escrow party to WEBHOOK_URL.

func main() {
	cfg := config.Load()

	log, err := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.WebhookURL == "" {
		log.Fatal("WEBHOOK_URL is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	subscriber := events.NewRedisSubscriber(rdb, log)
	webhook := notify.NewWebhookClient(cfg.WebhookURL, cfg.WebhookTimeout, log)

	err = subscriber.Subscribe(ctx, events.EscrowChannel, func(event events.Event) {
		log.Info("forwarding escrow event",
			zap.String("type", event.Type),
			zap.Any("escrow_id", event.Payload["escrow_id"]),
		)
		_ = webhook.Forward(ctx, event)
	})
	if err != nil {
		log.Fatal("failed to subscribe", zap.Error(err))
	}

	log.Info("notify-bridge started", zap.String("channel", events.EscrowChannel))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down notify-bridge")
	cancel()
}
