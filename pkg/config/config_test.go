package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PLANWISE_POSTGRES_URL", "postgres://localhost/planwise?sslmode=disable")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.MetricsPort)
	assert.Equal(t, "sql", cfg.Cache.Backend)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.Audit.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PLANWISE_POSTGRES_URL", "postgres://db/planwise")
	t.Setenv("PLANWISE_PORT", "9999")
	t.Setenv("PLANWISE_CACHE_BACKEND", "memory")
	t.Setenv("PLANWISE_CACHE_TTL", "5m")
	t.Setenv("PLANWISE_CACHE_MEMORY_SIZE", "128")
	t.Setenv("PLANWISE_AUDIT_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 128, cfg.Cache.MemorySize)
	assert.False(t, cfg.Audit.Enabled)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("PLANWISE_POSTGRES_URL", "postgres://db/planwise")
	t.Setenv("PLANWISE_CACHE_TTL", "not a duration")
	t.Setenv("PLANWISE_POSTGRES_MAX_CONNS", "many")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
}

func TestValidate(t *testing.T) {
	t.Setenv("PLANWISE_POSTGRES_URL", "")
	_, err := Load()
	assert.Error(t, err, "database URL is required")

	t.Setenv("PLANWISE_POSTGRES_URL", "postgres://db/planwise")
	t.Setenv("PLANWISE_CACHE_BACKEND", "redis")
	_, err = Load()
	assert.Error(t, err, "redis backend requires an address")

	t.Setenv("PLANWISE_REDIS_ADDR", "localhost:6379")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Cache.Backend)

	t.Setenv("PLANWISE_CACHE_BACKEND", "carrier-pigeon")
	_, err = Load()
	assert.Error(t, err)
}
