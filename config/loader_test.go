package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	values, err := New().Load()
	require.NoError(t, err)

	assert.True(t, values.CacheEnabled)
	assert.Equal(t, 10_000, values.MaxCacheSize)
	assert.Equal(t, 30*time.Minute, values.IdleTimeout)
	assert.Equal(t, 5*time.Minute, values.EvictionScanInterval)
	assert.Equal(t, 30*time.Second, values.DeferredCleanupInterval)
	assert.EqualValues(t, 50_000, values.MaxSimultaneousCompiledPatterns)
	assert.EqualValues(t, 10_000, values.MaxMatchersPerPattern)
	assert.Equal(t, time.Second, values.EvictionProtection)
	assert.False(t, values.ValidateCachedPatterns)
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("REXCACHE_MAX_CACHE_SIZE", "123")
	t.Setenv("REXCACHE_IDLE_TIMEOUT_SECONDS", "60")
	t.Setenv("REXCACHE_VALIDATE_CACHED_PATTERNS", "true")

	values, err := New().Load()
	require.NoError(t, err)

	assert.Equal(t, 123, values.MaxCacheSize)
	assert.Equal(t, time.Minute, values.IdleTimeout)
	assert.True(t, values.ValidateCachedPatterns)
}

func TestFileOverridesDefaultsEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rexcache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"max_cache_size: 77\neviction_protection_ms: 2500\n",
	), 0o644))

	t.Setenv("REXCACHE_MAX_CACHE_SIZE", "88")

	values, err := New().WithFile(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 88, values.MaxCacheSize, "environment wins over the file")
	assert.Equal(t, 2500*time.Millisecond, values.EvictionProtection, "file wins over defaults")
}

func TestMissingFileFallsBackToDefaults(t *testing.T) {
	values, err := New().WithFile("/nonexistent/rexcache.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 10_000, values.MaxCacheSize)
}

func TestMalformedFileReportsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_cache_size: [unterminated"), 0o644))

	_, err := New().WithFile(path).Load()
	require.Error(t, err)
}
