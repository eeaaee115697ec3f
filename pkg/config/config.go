// Package config provides environment-based configuration for the node synchronizer.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/narvanalabs/lnsync/pkg/logger"
)

// minSecretLength is the minimum accepted length of ADMIN_JWT_SECRET.
const minSecretLength = 32

// Config holds all configuration for the synchronizer and read API.
type Config struct {
	// Database configuration
	DatabaseDSN    string
	DBMaxOpenConns int
	AutoMigrate    bool

	// Server configuration
	APIPort int
	APIHost string

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration

	// Sync loop configuration
	Sync SyncConfig

	// Read API configuration
	API APIConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// SyncConfig holds synchronizer-specific configuration.
type SyncConfig struct {
	Interval       time.Duration
	FetchTimeout   time.Duration
	WriteTimeout   time.Duration
	FetchAttempts  int
	MempoolBaseURL string
}

// APIConfig holds read API configuration.
type APIConfig struct {
	ReadCacheTTL       time.Duration
	RateLimit          int
	CORSAllowedOrigins []string
	// AdminJWTSecret enables the manual sync endpoint when set.
	AdminJWTSecret string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present; real environment
// variables take precedence over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := LoadWithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithDefaults reads configuration without validating it.
func LoadWithDefaults() *Config {
	return &Config{
		DatabaseDSN:     getEnv("DATABASE_URL", ""),
		DBMaxOpenConns:  getIntEnv("DB_MAX_OPEN_CONNS", 50),
		AutoMigrate:     getBoolEnv("AUTO_MIGRATE", true),
		APIPort:         getIntEnv("PORT", getIntEnv("API_PORT", 8080)),
		APIHost:         getEnv("API_HOST", "0.0.0.0"),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		Sync: SyncConfig{
			Interval:       time.Duration(getIntEnv("SYNC_INTERVAL", 60)) * time.Second,
			FetchTimeout:   getDurationEnv("SYNC_FETCH_TIMEOUT", 30*time.Second),
			WriteTimeout:   getDurationEnv("SYNC_WRITE_TIMEOUT", 30*time.Second),
			FetchAttempts:  getIntEnv("SYNC_FETCH_ATTEMPTS", 3),
			MempoolBaseURL: getEnv("MEMPOOL_BASE_URL", "https://mempool.space"),
		},
		API: APIConfig{
			ReadCacheTTL:       getDurationEnv("READ_CACHE_TTL", 5*time.Second),
			RateLimit:          getIntEnv("API_RATE_LIMIT", 120),
			CORSAllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		},
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// Validate checks that required configuration values are set and in range.
func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.APIPort)
	}
	if c.DBMaxOpenConns <= 0 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be positive")
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be a positive number of seconds")
	}
	if c.Sync.FetchTimeout <= 0 {
		return fmt.Errorf("SYNC_FETCH_TIMEOUT must be positive")
	}
	if c.Sync.WriteTimeout <= 0 {
		return fmt.Errorf("SYNC_WRITE_TIMEOUT must be positive")
	}
	if c.Sync.FetchAttempts < 1 {
		return fmt.Errorf("SYNC_FETCH_ATTEMPTS must be at least 1")
	}
	if c.Sync.MempoolBaseURL == "" {
		return fmt.Errorf("MEMPOOL_BASE_URL must not be empty")
	}
	if c.API.ReadCacheTTL < 0 {
		return fmt.Errorf("READ_CACHE_TTL must not be negative")
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("API_RATE_LIMIT must not be negative")
	}
	if c.API.AdminJWTSecret != "" && len(c.API.AdminJWTSecret) < minSecretLength {
		return fmt.Errorf("ADMIN_JWT_SECRET must be at least %d characters", minSecretLength)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	return nil
}

// ListenAddr returns the host:port the API server binds to.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.APIHost, strconv.Itoa(c.APIPort))
}

// AdminEnabled reports whether the manual sync endpoint is mounted.
func (c *Config) AdminEnabled() bool {
	return c.API.AdminJWTSecret != ""
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

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
