// create-user inserts a user and prints the generated API key. The key is
// only shown once; the database stores a bcrypt hash plus a SHA256 lookup.
// Run from the repo root: go run cmd/create-user/main.go <username> <email> [--admin]
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/jafarshop/retailapi/internal/api/middleware"
	"github.com/jafarshop/retailapi/internal/config"
	"github.com/jafarshop/retailapi/internal/domain"
	"github.com/jafarshop/retailapi/internal/repository/postgres"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 3 {
		fmt.Println("Usage: go run cmd/create-user/main.go <username> <email> [--admin]")
		os.Exit(1)
	}
	username := os.Args[1]
	email := os.Args[2]
	isAdmin := len(os.Args) > 3 && os.Args[3] == "--admin"

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

	apiKey := "rk_" + uuid.New().String()
	user := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		APIKeyHash:   middleware.HashAPIKey(apiKey),
		APIKeyLookup: middleware.LookupHash(cfg.API.KeyHashSalt, apiKey),
		IsAdmin:      isAdmin,
		CreatedAt:    time.Now(),
	}

	if err := repos.User.Create(context.Background(), user); err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	fmt.Printf("Created user %s (%s), admin=%v\n", username, user.ID, isAdmin)
	fmt.Printf("API key (save it now, it is not stored): %s\n", apiKey)
}
