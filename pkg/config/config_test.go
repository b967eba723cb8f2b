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

	assert.Equal(t, "development", cfg.AppEnv)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "api.medfolio.health:443", cfg.ProbeAddr)
	assert.Equal(t, time.Second, cfg.ConnectivityTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.StorageTimeout)
	assert.Equal(t, 5, cfg.BreakerFailureThreshold)
	assert.NotEmpty(t, cfg.SQLitePath)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("MEDFOLIO_USER_ID", "u1")
	t.Setenv("MEDFOLIO_SQLITE_PATH", "/tmp/test.db")
	t.Setenv("MEDFOLIO_PROBE_ADDR", "probe.example.com:443")
	t.Setenv("MEDFOLIO_CONNECTIVITY_TIMEOUT", "500ms")
	t.Setenv("MEDFOLIO_WATCH_INTERVAL", "10s")
	t.Setenv("MEDFOLIO_BREAKER_THRESHOLD", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "u1", cfg.UserID)
	assert.Equal(t, "/tmp/test.db", cfg.SQLitePath)
	assert.Equal(t, "probe.example.com:443", cfg.ProbeAddr)
	assert.Equal(t, 500*time.Millisecond, cfg.ConnectivityTimeout)
	assert.Equal(t, 10*time.Second, cfg.WatchInterval)
	assert.Equal(t, 3, cfg.BreakerFailureThreshold)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("MEDFOLIO_CONNECTIVITY_TIMEOUT", "not-a-duration")
	t.Setenv("MEDFOLIO_BREAKER_THRESHOLD", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.ConnectivityTimeout)
	assert.Equal(t, 5, cfg.BreakerFailureThreshold)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, time.Second, cfg.ConnectivityTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.StorageTimeout)
}
