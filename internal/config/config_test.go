package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "https://api.example.com/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "https://api.example.com", cfg.Upstream.BaseURL)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 500, cfg.Cache.MaxEntries)
	assert.Zero(t, cfg.Cache.ReapInterval)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "lookup", cfg.Redis.KeyPrefix)
	assert.Empty(t, cfg.Admin.TokenHash)
	assert.Equal(t, "lookup_admin", cfg.Admin.CookieName)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "http://upstream")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("CACHE_MAX_ENTRIES", "25")
	t.Setenv("CACHE_REAP_INTERVAL", "10s")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 25, cfg.Cache.MaxEntries)
	assert.Equal(t, 10*time.Second, cfg.Cache.ReapInterval)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadRequiresUpstream(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "")

	_, err := Load()
	require.ErrorIs(t, err, ErrMissingVariable)
}

func TestLoadRejectsNonPositiveCacheBounds(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "http://upstream")
	t.Setenv("CACHE_MAX_ENTRIES", "0")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("CACHE_MAX_ENTRIES", "10")
	t.Setenv("CACHE_TTL", "-1s")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "http://upstream")
	t.Setenv("CACHE_MAX_ENTRIES", "abc")
	t.Setenv("CACHE_TTL", "soon")
	t.Setenv("REDIS_ENABLED", "maybe")

	_, err := Load()
	require.ErrorIs(t, err, ErrInvalidValue)
	for _, key := range []string{"CACHE_MAX_ENTRIES", "CACHE_TTL", "REDIS_ENABLED"} {
		assert.Contains(t, err.Error(), key)
	}
}
