// Package metrics defines the small capability interface the cache reports
// events through, plus its two implementations: a no-op sink and an
// adapter over github.com/prometheus/client_golang.
package metrics

// Sink is the full set of observability operations the cache needs. It is
// expressed as an interface — not a base struct with overridable methods —
// so that a no-op implementation costs one indirect call on the hot path
// and nothing else.
type Sink interface {
	// IncrementCounter bumps the named monotonic counter by delta (delta
	// defaults to 1 via IncrementCounter1 for callers that don't care).
	IncrementCounter(name string, delta float64)
	// RecordTimer records a duration, in nanoseconds, against the named
	// timer/histogram.
	RecordTimer(name string, nanos int64)
	// RegisterGauge wires a named gauge to a read function that is sampled
	// on export. read must be cheap and non-blocking.
	RegisterGauge(name string, read func() float64)
}

// IncrementCounter1 is a convenience for the common delta=1 case.
func IncrementCounter1(s Sink, name string) { s.IncrementCounter(name, 1) }

// Metric names, stable and dot-separated. A host applies its own prefix
// (see NewAdapter's namespace argument); these are the suffixes.
const (
	CounterPatternsCompiled      = "patterns.compiled.total.count"
	CounterCacheHits             = "patterns.cache.hits.total.count"
	CounterCacheMisses           = "patterns.cache.misses.total.count"
	CounterMatchOps              = "matching.operations.total.count"
	CounterMatchBulkOps          = "matching.bulk.operations.total.count"
	CounterMatchBulkItems        = "matching.bulk.items.total.count"
	CounterCaptureOps            = "capture.operations.total.count"
	CounterCaptureBulkOps        = "capture.bulk.operations.total.count"
	CounterCaptureBulkItems      = "capture.bulk.items.total.count"
	CounterCaptureFindAllMatches = "capture.findall.matches.total.count"
	CounterReplaceOps            = "replace.operations.total.count"
	CounterReplaceBulkOps        = "replace.bulk.operations.total.count"
	CounterReplaceBulkItems      = "replace.bulk.items.total.count"
	CounterEvictionsLRU          = "cache.evictions.lru.total.count"
	CounterEvictionsIdle         = "cache.evictions.idle.total.count"
	CounterEvictionsDeferred     = "cache.evictions.deferred.total.count"
	CounterPatternsFreed         = "resources.patterns.freed.total.count"
	CounterMatchersFreed         = "resources.matchers.freed.total.count"
	CounterCompileErrors         = "errors.compilation.failed.total.count"
	CounterResourceExhausted     = "errors.resource.exhausted.total.count"
	CounterInvalidRecompilations = "patterns.invalid_recompilations.total.count"

	TimerCompilation  = "patterns.compilation.latency"
	TimerFullMatch    = "matching.full_match.latency"
	TimerPartialMatch = "matching.partial_match.latency"
	TimerCapture      = "capture.latency"
	TimerReplace      = "replace.latency"

	GaugeCacheCurrentSize      = "cache.patterns.current.count"
	GaugeNativeMemoryCurrent   = "cache.native_memory.current.bytes"
	GaugeNativeMemoryPeak      = "cache.native_memory.peak.bytes"
	GaugeDeferredCurrentCount  = "cache.deferred.patterns.current.count"
	GaugeDeferredPeakCount     = "cache.deferred.patterns.peak.count"
	GaugeDeferredNativeCurrent = "cache.deferred.native_memory.current.bytes"
	GaugeDeferredNativePeak    = "cache.deferred.native_memory.peak.bytes"
	GaugeActivePatterns        = "resources.patterns.active.current.count"
	GaugeActiveMatchers        = "resources.matchers.active.current.count"
)
