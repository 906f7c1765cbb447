package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "simulation-service", cfg.ServiceName)
	assert.True(t, cfg.DB.Enabled)
	assert.Equal(t, "localhost", cfg.DB.Host)
	assert.Equal(t, "5432", cfg.DB.Port)
	assert.Equal(t, "disable", cfg.DB.SSLMode)
	assert.Equal(t, time.Hour, cfg.DB.ConnMaxLifetime)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 24, cfg.JWT.ExpirationHours)
	assert.Equal(t, "simulation", cfg.Metrics.Prefix)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Cache.StatsTTL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVICE_NAME", "sim-staging")
	t.Setenv("DB_ENABLED", "false")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_MAX_OPEN_CONNS", "25")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("CACHE_STATS_TTL", "90s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sim-staging", cfg.ServiceName)
	assert.False(t, cfg.DB.Enabled)
	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.Equal(t, 25, cfg.DB.MaxOpenConns)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 90*time.Second, cfg.Cache.StatsTTL)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("DB_MAX_IDLE_CONNS", "lots")
	t.Setenv("DB_CONN_MAX_LIFETIME", "soon")
	t.Setenv("REDIS_ENABLED", "yep")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.DB.MaxIdleConns, "unparseable int falls back to the default")
	assert.Equal(t, time.Hour, cfg.DB.ConnMaxLifetime)
	assert.False(t, cfg.Cache.Enabled)
}

func TestGetDSN(t *testing.T) {
	cfg := &DBConfig{
		Host:     "db.internal",
		Port:     "5433",
		User:     "sim",
		Password: "secret",
		DBName:   "simulation",
		SSLMode:  "require",
	}
	dsn := cfg.GetDSN()
	assert.Contains(t, dsn, "host=db.internal")
	assert.Contains(t, dsn, "port=5433")
	assert.Contains(t, dsn, "dbname=simulation")
	assert.Contains(t, dsn, "sslmode=require")
}
