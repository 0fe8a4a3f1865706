package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/api"
	"github.com/jafarshop/retailapi/internal/breaker"
	"github.com/jafarshop/retailapi/internal/config"
	"github.com/jafarshop/retailapi/internal/events"
	"github.com/jafarshop/retailapi/internal/metrics"
	"github.com/jafarshop/retailapi/internal/payment"
	"github.com/jafarshop/retailapi/internal/repository/postgres"
	"github.com/jafarshop/retailapi/internal/service"
	"github.com/jafarshop/retailapi/internal/throttle"
)

func main() {
	// Load .env if present; real env vars take precedence
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.Environment == "production" {
		logger, _ = zap.NewProduction()
	} else {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	logger.Info("Starting retail API server",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
	)

	// Initialize database
	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repositories
	repos := postgres.NewRepositories(db, logger)

	registry := metrics.NewRegistry()

	// Circuit breaker and simulated payment gateway
	cb := breaker.New(payment.GatewayService, cfg.Breaker.FailureThreshold, cfg.Breaker.Timeout, repos.BreakerState, registry, logger)
	gateway := payment.NewGateway(cb, cfg.Payment.DeclineProbability, cfg.Payment.RefundFailureProbability, logger)

	// Checkout throttle: Redis-backed sliding window, in-memory when no
	// Redis is configured
	var limiter throttle.Limiter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()
		limiter = throttle.NewRedisLimiter(rdb, cfg.Throttle.MaxRequests, cfg.Throttle.Window)
		logger.Info("Using Redis throttle", zap.String("addr", cfg.Redis.Addr))
	} else {
		limiter = throttle.NewMemoryLimiter(cfg.Throttle.MaxRequests, cfg.Throttle.Window)
		logger.Info("Using in-memory throttle")
	}

	// Event publisher: Kafka when brokers are configured
	var publisher events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.RMAStatusTopic, cfg.Kafka.InventoryTopic, logger)
		logger.Info("Using Kafka publisher", zap.Strings("brokers", cfg.Kafka.Brokers))
	} else {
		publisher = events.NewMemoryPublisher()
		logger.Info("Using in-memory publisher")
	}
	defer publisher.Close()

	svcs := service.NewServices(cfg, repos, gateway, limiter, publisher, registry, logger)

	// Initialize router
	router := api.NewRouter(cfg, repos, svcs, cb, registry, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started successfully", zap.String("address", srv.Addr))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
