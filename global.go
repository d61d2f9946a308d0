package rexcache

import (
	"sync"

	"github.com/patterncache/rexcache/internal/engine"
)

// The package-level Compile/ClearCache/ResetCache/GetCacheStatistics
// surface is backed by a single, lazily-initialized Cache instance.
// globalMu guards swapping it out, which SetGlobalCache exists solely to
// support: tests swap in an isolated instance and restore the previous one
// afterward.
var (
	globalMu   sync.Mutex
	globalOnce sync.Once
	globalC    *Cache
)

func defaultGlobalCache() *Cache {
	globalOnce.Do(func() {
		c, err := New()
		if err != nil {
			// DefaultConfig() always validates; New() can only fail here if
			// that invariant is broken, which is a programming error in
			// this package, not a condition a caller can recover from.
			panic("rexcache: default configuration failed to validate: " + err.Error())
		}
		globalC = c
	})
	return globalC
}

// GetGlobalCache returns the process-wide Cache used by the package-level
// Compile/ClearCache/ResetCache/GetCacheStatistics functions, initializing
// it on first use.
func GetGlobalCache() *Cache {
	globalMu.Lock()
	defer globalMu.Unlock()
	return defaultGlobalCache()
}

// SetGlobalCache replaces the process-wide Cache, returning the previous
// one so a test can restore it afterward:
//
//	prev := rexcache.SetGlobalCache(isolated)
//	defer rexcache.SetGlobalCache(prev)
func SetGlobalCache(c *Cache) *Cache {
	globalMu.Lock()
	defer globalMu.Unlock()
	prev := defaultGlobalCache()
	globalC = c
	return prev
}

// Compile compiles text against the global cache, returning a cached
// Pattern. caseSensitive defaults to true when omitted.
func Compile(text string, caseSensitive ...bool) (*Pattern, error) {
	cs := true
	if len(caseSensitive) > 0 {
		cs = caseSensitive[0]
	}
	return CompileIn(GetGlobalCache(), text, cs)
}

// CompileIn compiles text against an explicit Cache instance, the
// dependency-injected form of Compile that tests use to avoid touching
// global state.
func CompileIn(c *Cache, text string, caseSensitive bool) (*Pattern, error) {
	key := Key{Text: text, CaseSensitive: caseSensitive}
	e, err := c.getOrCompile(key, func() (*engine.Handle, error) {
		return engine.Compile(key.Text, key.CaseSensitive)
	})
	if err != nil {
		return nil, err
	}
	return newPattern(c, e), nil
}

// CompileWithoutCache compiles text into a Pattern that bypasses the cache
// entirely: the resulting handle is never inserted into any store, is
// still subject to
// maxSimultaneousCompiledPatterns, and is destroyed as soon as the returned
// Pattern is no longer reachable.
func CompileWithoutCache(c *Cache, text string, caseSensitive bool) (*Pattern, error) {
	key := Key{Text: text, CaseSensitive: caseSensitive}
	e, err := c.compileStandalone(key, func() (*engine.Handle, error) {
		return engine.Compile(key.Text, key.CaseSensitive)
	})
	if err != nil {
		return nil, err
	}
	return newPattern(c, e), nil
}

// ClearCache removes every entry from the global cache.
func ClearCache() { GetGlobalCache().clear() }

// ResetCache clears the global cache and zeroes its statistics. Testing
// only.
func ResetCache() { GetGlobalCache().reset() }

// GetCacheStatistics returns a snapshot of the global cache's statistics.
func GetCacheStatistics() Statistics { return GetGlobalCache().statistics() }
