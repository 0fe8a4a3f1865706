// reset-breaker returns the payment gateway circuit breaker to closed with
// zero failures. Use after resolving an upstream outage to resume checkouts
// without waiting for the timeout.
// Run from the repo root: go run cmd/reset-breaker/main.go
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/config"
	"github.com/jafarshop/retailapi/internal/payment"
	"github.com/jafarshop/retailapi/internal/repository/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.Close()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	repos := postgres.NewRepositories(db, logger)
	if err := repos.BreakerState.Reset(context.Background(), payment.GatewayService); err != nil {
		log.Fatalf("Failed to reset breaker: %v", err)
	}

	fmt.Printf("Circuit breaker %q reset to closed\n", payment.GatewayService)
}
