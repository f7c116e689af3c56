// Package config loads application configuration from PLANWISE_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Audit    AuditConfig
	LogLevel string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MetricsPort     string
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// CacheConfig selects and tunes the snapshot backend
type CacheConfig struct {
	// Backend is "sql", "memory" or "redis"
	Backend       string
	TTL           time.Duration
	MemorySize    int
	RedisAddr     string
	RedisPassword string
	SweepInterval time.Duration
}

// AuditConfig controls audit logging
type AuditConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from the environment and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("PLANWISE_HOST", "0.0.0.0"),
			Port:            getEnv("PLANWISE_PORT", "8080"),
			ReadTimeout:     getEnvDuration("PLANWISE_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("PLANWISE_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("PLANWISE_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("PLANWISE_SHUTDOWN_TIMEOUT", 30*time.Second),
			MetricsPort:     getEnv("PLANWISE_METRICS_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:             getEnv("PLANWISE_POSTGRES_URL", ""),
			MaxOpenConns:    getEnvInt("PLANWISE_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns:    getEnvInt("PLANWISE_POSTGRES_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("PLANWISE_POSTGRES_CONN_LIFETIME", 30*time.Minute),
		},
		Cache: CacheConfig{
			Backend:       getEnv("PLANWISE_CACHE_BACKEND", "sql"),
			TTL:           getEnvDuration("PLANWISE_CACHE_TTL", 15*time.Minute),
			MemorySize:    getEnvInt("PLANWISE_CACHE_MEMORY_SIZE", 4096),
			RedisAddr:     getEnv("PLANWISE_REDIS_ADDR", ""),
			RedisPassword: getEnv("PLANWISE_REDIS_PASSWORD", ""),
			SweepInterval: getEnvDuration("PLANWISE_CACHE_SWEEP_INTERVAL", 5*time.Minute),
		},
		Audit: AuditConfig{
			Enabled: getEnvBool("PLANWISE_AUDIT_ENABLED", true),
			Path:    getEnv("PLANWISE_AUDIT_PATH", "planwise-audit.log"),
		},
		LogLevel: getEnv("PLANWISE_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("PLANWISE_POSTGRES_URL is required")
	}
	switch c.Cache.Backend {
	case "sql", "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("PLANWISE_REDIS_ADDR is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
