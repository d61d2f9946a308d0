package rexcache

import (
	"fmt"
	"time"

	"github.com/patterncache/rexcache/metrics"
)

// Config carries every tuning knob the Cache exposes. Option mutates a
// Config rather than the Cache directly, so validation (validate, below)
// runs once, after every option has been applied, before any background
// goroutine starts.
type Config struct {
	CacheEnabled bool

	MaxCacheSize int

	IdleTimeout             time.Duration
	EvictionScanInterval    time.Duration
	DeferredCleanupInterval time.Duration

	MaxSimultaneousCompiledPatterns int64
	MaxMatchersPerPattern           int64

	EvictionProtection time.Duration

	ValidateCachedPatterns bool

	MetricsSink metrics.Sink
}

// DefaultConfig returns the defaults a zero-option New builds with.
func DefaultConfig() Config {
	return Config{
		CacheEnabled:                    true,
		MaxCacheSize:                    10_000,
		IdleTimeout:                     30 * time.Minute,
		EvictionScanInterval:            5 * time.Minute,
		DeferredCleanupInterval:         30 * time.Second,
		MaxSimultaneousCompiledPatterns: 50_000,
		MaxMatchersPerPattern:           10_000,
		EvictionProtection:              1 * time.Second,
		ValidateCachedPatterns:          false,
		MetricsSink:                     metrics.Noop{},
	}
}

// Option is a functional option over the Config value New builds from.
type Option func(*Config)

func WithCacheEnabled(enabled bool) Option {
	return func(c *Config) { c.CacheEnabled = enabled }
}

func WithMaxCacheSize(n int) Option {
	return func(c *Config) { c.MaxCacheSize = n }
}

func WithIdleTimeout(d time.Duration) Option {
	return func(c *Config) { c.IdleTimeout = d }
}

func WithEvictionScanInterval(d time.Duration) Option {
	return func(c *Config) { c.EvictionScanInterval = d }
}

func WithDeferredCleanupInterval(d time.Duration) Option {
	return func(c *Config) { c.DeferredCleanupInterval = d }
}

func WithMaxSimultaneousCompiledPatterns(n int64) Option {
	return func(c *Config) { c.MaxSimultaneousCompiledPatterns = n }
}

func WithMaxMatchersPerPattern(n int64) Option {
	return func(c *Config) { c.MaxMatchersPerPattern = n }
}

func WithEvictionProtection(d time.Duration) Option {
	return func(c *Config) { c.EvictionProtection = d }
}

func WithValidateCachedPatterns(validate bool) Option {
	return func(c *Config) { c.ValidateCachedPatterns = validate }
}

func WithMetricsSink(s metrics.Sink) Option {
	return func(c *Config) {
		if s != nil {
			c.MetricsSink = s
		}
	}
}

// validate enforces the cross-field rules: MaxCacheSize must not exceed
// MaxSimultaneousCompiledPatterns (a map bigger than the allocation ceiling
// could never fill), and the interval trio must be ordered
// DeferredCleanupInterval <= EvictionScanInterval <= IdleTimeout.
func (c Config) validate() error {
	if c.MaxCacheSize <= 0 {
		return fmt.Errorf("rexcache: MaxCacheSize must be positive, got %d", c.MaxCacheSize)
	}
	if c.MaxSimultaneousCompiledPatterns > 0 && int64(c.MaxCacheSize) > c.MaxSimultaneousCompiledPatterns {
		return fmt.Errorf("rexcache: MaxCacheSize (%d) must not exceed MaxSimultaneousCompiledPatterns (%d)",
			c.MaxCacheSize, c.MaxSimultaneousCompiledPatterns)
	}
	if c.DeferredCleanupInterval <= 0 || c.EvictionScanInterval <= 0 {
		return fmt.Errorf("rexcache: DeferredCleanupInterval and EvictionScanInterval must be positive")
	}
	if c.DeferredCleanupInterval > c.EvictionScanInterval {
		return fmt.Errorf("rexcache: DeferredCleanupInterval (%s) must not exceed EvictionScanInterval (%s)",
			c.DeferredCleanupInterval, c.EvictionScanInterval)
	}
	if c.IdleTimeout > 0 && c.EvictionScanInterval > c.IdleTimeout {
		return fmt.Errorf("rexcache: EvictionScanInterval (%s) must not exceed IdleTimeout (%s)",
			c.EvictionScanInterval, c.IdleTimeout)
	}
	return nil
}
