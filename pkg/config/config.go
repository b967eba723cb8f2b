package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv   string
	LogLevel string
	UserID   string

	// Local durable store
	SQLitePath string

	// Server-side durable store (optional)
	DatabaseURL string

	// Remote entitlement source (optional)
	RedisURL string

	// Event broker (optional)
	RabbitMQURL string

	// Connectivity
	ProbeAddr           string
	ConnectivityTimeout time.Duration
	WatchInterval       time.Duration

	// Durable store bounds
	StorageTimeout time.Duration

	// Remote sync bounds
	RemoteTimeout           time.Duration
	BreakerFailureThreshold int
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("MEDFOLIO_LOG_LEVEL", "info"),
		UserID:   getEnv("MEDFOLIO_USER_ID", ""),

		SQLitePath:  getEnv("MEDFOLIO_SQLITE_PATH", defaultSQLitePath()),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		ProbeAddr:           getEnv("MEDFOLIO_PROBE_ADDR", "api.medfolio.health:443"),
		ConnectivityTimeout: getDurationEnv("MEDFOLIO_CONNECTIVITY_TIMEOUT", time.Second),
		WatchInterval:       getDurationEnv("MEDFOLIO_WATCH_INTERVAL", 30*time.Second),

		StorageTimeout: getDurationEnv("MEDFOLIO_STORAGE_TIMEOUT", 100*time.Millisecond),

		RemoteTimeout:           getDurationEnv("MEDFOLIO_REMOTE_TIMEOUT", 3*time.Second),
		BreakerFailureThreshold: getIntEnv("MEDFOLIO_BREAKER_THRESHOLD", 5),
	}

	return cfg, nil
}

// Default returns a development configuration without consulting the
// environment.
func Default() *Config {
	return &Config{
		AppEnv:                  "development",
		LogLevel:                "info",
		SQLitePath:              defaultSQLitePath(),
		ProbeAddr:               "api.medfolio.health:443",
		ConnectivityTimeout:     time.Second,
		WatchInterval:           30 * time.Second,
		StorageTimeout:          100 * time.Millisecond,
		RemoteTimeout:           3 * time.Second,
		BreakerFailureThreshold: 5,
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".medfolio/entitlements.db"
	}
	return filepath.Join(home, ".medfolio", "entitlements.db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
