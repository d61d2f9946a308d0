// Package config loads rexcache configuration from the environment and an
// optional YAML file via github.com/spf13/viper. Defaults mirror
// rexcache.DefaultConfig() exactly; every key maps 1:1 onto a rexcache
// option.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable this loader reads,
// e.g. REXCACHE_MAX_CACHE_SIZE for the max_cache_size key.
const EnvPrefix = "REXCACHE"

// Keys, flat and underscore-separated, so each maps directly onto its
// REXCACHE_-prefixed environment variable.
const (
	KeyCacheEnabled                    = "cache_enabled"
	KeyMaxCacheSize                    = "max_cache_size"
	KeyIdleTimeoutSeconds              = "idle_timeout_seconds"
	KeyEvictionScanIntervalSeconds     = "eviction_scan_interval_seconds"
	KeyDeferredCleanupIntervalSeconds  = "deferred_cleanup_interval_seconds"
	KeyMaxSimultaneousCompiledPatterns = "max_simultaneous_compiled_patterns"
	KeyMaxMatchersPerPattern           = "max_matchers_per_pattern"
	KeyEvictionProtectionMs            = "eviction_protection_ms"
	KeyValidateCachedPatterns          = "validate_cached_patterns"
)

// Loader wraps a *viper.Viper preloaded with rexcache's defaults.
type Loader struct {
	v *viper.Viper
}

// New returns a Loader seeded with rexcache.DefaultConfig()'s values so
// that any key the environment or file doesn't set falls back to the
// library's own defaults rather than Go's zero values.
func New() *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyCacheEnabled, true)
	v.SetDefault(KeyMaxCacheSize, 10_000)
	v.SetDefault(KeyIdleTimeoutSeconds, 1800)
	v.SetDefault(KeyEvictionScanIntervalSeconds, 300)
	v.SetDefault(KeyDeferredCleanupIntervalSeconds, 30)
	v.SetDefault(KeyMaxSimultaneousCompiledPatterns, 50_000)
	v.SetDefault(KeyMaxMatchersPerPattern, 10_000)
	v.SetDefault(KeyEvictionProtectionMs, 1000)
	v.SetDefault(KeyValidateCachedPatterns, false)

	return &Loader{v: v}
}

// WithFile points the loader at a YAML config file. Missing files are
// tolerated; a malformed file is reported at Load time.
func (l *Loader) WithFile(path string) *Loader {
	l.v.SetConfigFile(path)
	return l
}

// ConfigValues is the plain-data view of a loaded configuration. Kept
// independent of rexcache.Config/Option so this package stays a leaf:
// callers (cmd/rexcache) translate ConfigValues into rexcache.Option values
// themselves.
type ConfigValues struct {
	CacheEnabled bool

	MaxCacheSize int

	IdleTimeout             time.Duration
	EvictionScanInterval    time.Duration
	DeferredCleanupInterval time.Duration

	MaxSimultaneousCompiledPatterns int64
	MaxMatchersPerPattern           int64

	EvictionProtection time.Duration

	ValidateCachedPatterns bool
}

// Load reads the environment and, if WithFile was called and the file
// exists, the YAML file, merging them (file values take precedence over
// defaults, environment variables take precedence over the file, matching
// viper's own precedence order).
func (l *Loader) Load() (ConfigValues, error) {
	if l.v.ConfigFileUsed() != "" {
		if err := l.v.ReadInConfig(); err != nil {
			// An explicitly-set file that doesn't exist surfaces as a path
			// error rather than viper's own not-found type; both mean "fall
			// back to defaults and the environment".
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return ConfigValues{}, fmt.Errorf("config: reading file: %w", err)
			}
		}
	}

	return ConfigValues{
		CacheEnabled:                    l.v.GetBool(KeyCacheEnabled),
		MaxCacheSize:                    l.v.GetInt(KeyMaxCacheSize),
		IdleTimeout:                     time.Duration(l.v.GetInt64(KeyIdleTimeoutSeconds)) * time.Second,
		EvictionScanInterval:            time.Duration(l.v.GetInt64(KeyEvictionScanIntervalSeconds)) * time.Second,
		DeferredCleanupInterval:         time.Duration(l.v.GetInt64(KeyDeferredCleanupIntervalSeconds)) * time.Second,
		MaxSimultaneousCompiledPatterns: l.v.GetInt64(KeyMaxSimultaneousCompiledPatterns),
		MaxMatchersPerPattern:           l.v.GetInt64(KeyMaxMatchersPerPattern),
		EvictionProtection:              time.Duration(l.v.GetInt64(KeyEvictionProtectionMs)) * time.Millisecond,
		ValidateCachedPatterns:          l.v.GetBool(KeyValidateCachedPatterns),
	}, nil
}
