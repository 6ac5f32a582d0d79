package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Environment
	Environment string

	// Server
	Port string

	// Database
	DatabaseURL      string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     string

	// Redis
	RedisURL      string
	RedisPassword string

	// Authentication
	JWTSecret string

	// Upstream casino platform
	PlatformAPIURL   string
	PlatformAgentKey string

	// Session lifecycle tuning
	LaunchTimeout       time.Duration
	TransferOutTimeout  time.Duration
	BalanceSettleDelay  time.Duration
	BalancePollInterval time.Duration
	CatalogCacheTTL     time.Duration
}

func Load() *Config {
	return &Config{
		// Environment
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),

		// Server
		Port: getEnvOrDefault("PORT", "8080"),

		// Database
		DatabaseURL:      getEnvOrDefault("DATABASE_URL", ""),
		PostgresDB:       getEnvOrDefault("POSTGRES_DB", "lobby_gateway"),
		PostgresUser:     getEnvOrDefault("POSTGRES_USER", "lobby_user"),
		PostgresPassword: getEnvOrDefault("POSTGRES_PASSWORD", "lobby_password"),
		PostgresHost:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvOrDefault("POSTGRES_PORT", "5432"),

		// Redis
		RedisURL:      getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),

		// Authentication
		JWTSecret: getEnvOrDefault("JWT_SECRET", "lobby-gateway-secret-change-in-production"),

		// Upstream casino platform
		PlatformAPIURL:   getEnvOrDefault("PLATFORM_API_URL", "http://localhost:3068"),
		PlatformAgentKey: getEnvOrDefault("PLATFORM_AGENT_KEY", ""),

		// The launch call is raced against LaunchTimeout. BalanceSettleDelay
		// covers the upstream settling the vendor deposit asynchronously
		// after a successful launch.
		LaunchTimeout:       getDurationOrDefault("LAUNCH_TIMEOUT", 30*time.Second),
		TransferOutTimeout:  getDurationOrDefault("TRANSFER_OUT_TIMEOUT", 10*time.Second),
		BalanceSettleDelay:  getDurationOrDefault("BALANCE_SETTLE_DELAY", 2*time.Second),
		BalancePollInterval: getDurationOrDefault("BALANCE_POLL_INTERVAL", 3300*time.Millisecond),
		CatalogCacheTTL:     getDurationOrDefault("CATALOG_CACHE_TTL", 10*time.Minute),
	}
}

func (c *Config) GetDatabaseURL() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.PostgresUser,
		c.PostgresPassword,
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresDB,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
