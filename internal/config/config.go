package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Environment string
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Returns     ReturnsConfig
	Payment     PaymentConfig
	Breaker     BreakerConfig
	Throttle    ThrottleConfig
	Queue       QueueConfig
	API         APIConfig
	LogLevel    string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig drives the checkout throttle; empty Addr falls back to the
// in-memory limiter
type RedisConfig struct {
	Addr string
}

// KafkaConfig drives the notification/inventory event publisher; empty
// Brokers falls back to the in-memory publisher
type KafkaConfig struct {
	Brokers        []string
	RMAStatusTopic string
	InventoryTopic string
}

// ReturnsConfig holds the returns/refunds policy knobs
type ReturnsConfig struct {
	Enabled         bool
	WindowDays      int
	MaxItemQuantity int
	RequirePhotos   bool
	MaxPhotos       int
}

// PaymentConfig holds the simulated gateway behavior
type PaymentConfig struct {
	DeclineProbability       float64
	RefundFailureProbability float64
}

// BreakerConfig holds the circuit breaker defaults for the payment gateway
type BreakerConfig struct {
	FailureThreshold int
	Timeout          time.Duration
}

// ThrottleConfig holds the checkout sliding-window limiter settings
type ThrottleConfig struct {
	MaxRequests int
	Window      time.Duration
}

// QueueConfig holds the order retry queue settings
type QueueConfig struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	PollInterval time.Duration
}

type APIConfig struct {
	KeyHashSalt string
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("LOG_LEVEL", "info")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if .env doesn't exist, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Port:        getEnvOrViper("PORT", "8080"),
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		Database: DatabaseConfig{
			Host:     getEnvOrViper("DB_HOST", "localhost"),
			Port:     getEnvOrViper("DB_PORT", "5432"),
			User:     getEnvOrViper("DB_USER", "postgres"),
			Password: getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrViper("DB_NAME", "retailapi"),
			SSLMode:  getEnvOrViper("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr: strings.TrimSpace(getEnvOrViper("REDIS_ADDR", "")),
		},
		Kafka: KafkaConfig{
			Brokers:        splitCSV(getEnvOrViper("KAFKA_BROKERS", "")),
			RMAStatusTopic: getEnvOrViper("KAFKA_RMA_STATUS_TOPIC", "rma-status-changes"),
			InventoryTopic: getEnvOrViper("KAFKA_INVENTORY_TOPIC", "inventory-changes"),
		},
		Returns: ReturnsConfig{
			Enabled:         getBool("FEATURE_RETURNS_ENABLED", true),
			WindowDays:      getInt("RETURN_WINDOW_DAYS", 30),
			MaxItemQuantity: getInt("MAX_RETURN_ITEM_QUANTITY", 5),
			RequirePhotos:   getBool("RETURNS_REQUIRE_PHOTOS", false),
			MaxPhotos:       getInt("RETURNS_MAX_PHOTOS", 20),
		},
		Payment: PaymentConfig{
			DeclineProbability:       getFloat("PAYMENT_DECLINE_PROBABILITY", 0.5),
			RefundFailureProbability: getFloat("PAYMENT_REFUND_FAILURE_PROBABILITY", 0.1),
		},
		Breaker: BreakerConfig{
			FailureThreshold: getInt("BREAKER_FAILURE_THRESHOLD", 5),
			Timeout:          time.Duration(getInt("BREAKER_TIMEOUT_SECONDS", 60)) * time.Second,
		},
		Throttle: ThrottleConfig{
			MaxRequests: getInt("THROTTLING_MAX_RPS", 100),
			Window:      time.Duration(getInt("THROTTLING_WINDOW_SECONDS", 1)) * time.Second,
		},
		Queue: QueueConfig{
			MaxAttempts:  getInt("ORDER_QUEUE_MAX_ATTEMPTS", 3),
			RetryBackoff: time.Duration(getInt("ORDER_QUEUE_RETRY_BACKOFF_SECONDS", 30)) * time.Second,
			PollInterval: time.Duration(getInt("ORDER_QUEUE_POLL_INTERVAL_SECONDS", 10)) * time.Second,
		},
		API: APIConfig{
			KeyHashSalt: getEnvOrViper("API_KEY_HASH_SALT", "default-salt-change-in-production"),
		},
		LogLevel: getEnvOrViper("LOG_LEVEL", "info"),
	}

	// Validate policy knobs
	if cfg.Returns.WindowDays <= 0 {
		return nil, fmt.Errorf("RETURN_WINDOW_DAYS must be positive")
	}
	if cfg.Returns.MaxItemQuantity <= 0 {
		return nil, fmt.Errorf("MAX_RETURN_ITEM_QUANTITY must be positive")
	}
	if cfg.Breaker.FailureThreshold <= 0 {
		return nil, fmt.Errorf("BREAKER_FAILURE_THRESHOLD must be positive")
	}

	return cfg, nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	raw := getEnvOrViper(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return defaultValue
	}
	return v
}

func getFloat(key string, defaultValue float64) float64 {
	raw := getEnvOrViper(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getBool(key string, defaultValue bool) bool {
	raw := strings.ToLower(strings.TrimSpace(getEnvOrViper(key, "")))
	if raw == "" {
		return defaultValue
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
