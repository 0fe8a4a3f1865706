// retry-worker polls the order queue and re-attempts payment for deferred
// orders until they complete or exhaust their attempts.
// Run from the repo root: go run cmd/retry-worker/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/breaker"
	"github.com/jafarshop/retailapi/internal/config"
	"github.com/jafarshop/retailapi/internal/metrics"
	"github.com/jafarshop/retailapi/internal/payment"
	"github.com/jafarshop/retailapi/internal/repository/postgres"
	"github.com/jafarshop/retailapi/internal/service"
)

const claimBatchSize = 20

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var logger *zap.Logger
	if cfg.Environment == "production" {
		logger, _ = zap.NewProduction()
	} else {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	repos := postgres.NewRepositories(db, logger)

	registry := metrics.NewRegistry()
	cb := breaker.New(payment.GatewayService, cfg.Breaker.FailureThreshold, cfg.Breaker.Timeout, repos.BreakerState, registry, logger)
	gateway := payment.NewGateway(cb, cfg.Payment.DeclineProbability, cfg.Payment.RefundFailureProbability, logger)
	retry := service.NewRetryService(repos, gateway, registry, cfg.Queue.RetryBackoff, logger)

	logger.Info("Retry worker started",
		zap.Duration("poll_interval", cfg.Queue.PollInterval),
		zap.Duration("retry_backoff", cfg.Queue.RetryBackoff),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(cfg.Queue.PollInterval)
	defer ticker.Stop()

	for {
		processed, err := retry.ProcessDue(ctx, claimBatchSize)
		if err != nil {
			logger.Error("Queue pass failed", zap.Error(err))
		} else if processed > 0 {
			logger.Info("Processed queued orders", zap.Int("count", processed))
		}

		select {
		case <-ctx.Done():
			logger.Info("Retry worker exiting")
			return
		case <-ticker.C:
		}
	}
}
