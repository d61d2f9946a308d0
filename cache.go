package rexcache

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/sync/singleflight"

	"github.com/patterncache/rexcache/internal/engine"
	"github.com/patterncache/rexcache/internal/resource"
	rxlog "github.com/patterncache/rexcache/log"
	"github.com/patterncache/rexcache/metrics"
)

// shutdownGrace bounds how long Shutdown waits for the eviction worker to
// exit before proceeding regardless.
const shutdownGrace = 5 * time.Second

// CompileFunc produces a freshly compiled engine.Handle for the pattern
// text a Key carries. It is supplied by the caller (via Compile /
// CompileWithoutCache) rather than baked into the Cache, so the cache core
// stays ignorant of how patterns are actually compiled.
type CompileFunc func() (*engine.Handle, error)

// Cache is a concurrent map from Key to cached entry, the get-or-compile
// entry point, and the memory accounting that drives the async LRU evictor.
// See doc.go for the locking rationale.
type Cache struct {
	cfg Config

	mu    sync.RWMutex
	store *lru.LRU[Key, *entry]

	tracker   *resource.Tracker
	deferredQ *deferredQueue
	group     singleflight.Group

	hits, misses                                   uint64
	evictionsLRU, evictionsIdle, evictionsDeferred uint64
	invalidRecompilations                          uint64

	currentNativeBytes int64
	peakNativeBytes    int64

	lruTasks chan lruTask
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New builds a Cache, applying opts to the default configuration,
// validating the result, and starting the background eviction worker.
// The underlying simplelru.LRU is given an effectively unbounded capacity:
// per DESIGN.md, its built-in size-eviction is never exercised — the Cache
// drives eviction itself, asynchronously, so that it can apply idle-time,
// eviction-protection and deferred-queue semantics simplelru knows nothing
// about. simplelru here is purely an ordered key→entry store.
func New(opts ...Option) (*Cache, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	store, err := lru.NewLRU[Key, *entry](math.MaxInt32, nil)
	if err != nil {
		return nil, fmt.Errorf("rexcache: building store: %w", err)
	}

	c := &Cache{
		cfg:       cfg,
		store:     store,
		tracker:   resource.New(),
		deferredQ: newDeferredQueue(),
		lruTasks:  make(chan lruTask, 64),
		stopCh:    make(chan struct{}),
	}
	c.registerGauges()
	c.startWorkers()
	return c, nil
}

// registerGauges wires every gauge metric name to a read function over
// this Cache's own counters, once, at construction.
func (c *Cache) registerGauges() {
	s := c.cfg.MetricsSink
	s.RegisterGauge(metrics.GaugeCacheCurrentSize, func() float64 {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return float64(c.store.Len())
	})
	s.RegisterGauge(metrics.GaugeNativeMemoryCurrent, func() float64 {
		return float64(atomic.LoadInt64(&c.currentNativeBytes))
	})
	s.RegisterGauge(metrics.GaugeNativeMemoryPeak, func() float64 {
		return float64(atomic.LoadInt64(&c.peakNativeBytes))
	})
	s.RegisterGauge(metrics.GaugeDeferredCurrentCount, func() float64 {
		return float64(c.deferredQ.currentSize())
	})
	s.RegisterGauge(metrics.GaugeDeferredPeakCount, func() float64 {
		return float64(c.deferredQ.peakSize())
	})
	s.RegisterGauge(metrics.GaugeDeferredNativeCurrent, func() float64 {
		return float64(c.deferredQ.currentBytes())
	})
	s.RegisterGauge(metrics.GaugeDeferredNativePeak, func() float64 {
		return float64(c.deferredQ.peakBytesVal())
	})
	s.RegisterGauge(metrics.GaugeActivePatterns, func() float64 {
		return float64(c.tracker.Snapshot().ActivePatterns)
	})
	s.RegisterGauge(metrics.GaugeActiveMatchers, func() float64 {
		return float64(c.tracker.Snapshot().ActiveMatchers)
	})
}

// getOrCompile is the hit-path/miss-path dispatcher. The returned entry
// carries one reference the caller must eventually release
// via releaseEntry (wrapped by Matcher.Close and Pattern's finalizer).
func (c *Cache) getOrCompile(key Key, compile CompileFunc) (*entry, error) {
	if !c.cfg.CacheEnabled {
		return c.compileStandalone(key, compile)
	}

	if e, ok := c.lookupAndRetain(key); ok {
		atomic.AddUint64(&c.hits, 1)
		metrics.IncrementCounter1(c.cfg.MetricsSink, metrics.CounterCacheHits)
		return e, nil
	}

	return c.compileMiss(key, compile)
}

// lookupAndRetain is the hit path: the refcount increment happens while
// the map lookup still guarantees reachability — here, that guarantee is
// the cache's mutex, held for the entire call. This is the single most
// important correctness rule in the system: a design that released the
// lock before retaining would let a concurrent eviction destroy the entry
// in between.
func (c *Cache) lookupAndRetain(key Key) (*entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}

	if c.cfg.ValidateCachedPatterns && !e.handle.IsValid() {
		c.store.Remove(key)
		atomic.AddUint64(&c.invalidRecompilations, 1)
		metrics.IncrementCounter1(c.cfg.MetricsSink, metrics.CounterInvalidRecompilations)
		c.retireFromMapLocked(e)
		return nil, false
	}

	e.retain()
	e.touch()
	return e, true
}

// peek looks up key without retaining. Used only from inside the
// singleflight closure in compileMiss, where the eventual retain is applied
// once per caller after Do returns rather than once per flight.
func (c *Cache) peek(key Key) (*entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Get(key)
}

// compileMiss runs the miss path through a singleflight group keyed by
// key.cacheKey(), guaranteeing exactly-once compilation per key. ran is
// set only inside the closure actually invoked by Do, and only when that
// closure goes on to compile — for a key with concurrent callers, exactly
// one goroutine's closure runs (the others never invoke their own fn
// argument at all), and a closure whose flight starts after an earlier one
// already inserted the entry finds it by peek and compiles nothing. ran
// therefore distinguishes "this call triggered the compile" from "this
// call rode another goroutine's work". N concurrent compiles of one
// pattern therefore count 1 miss and N-1 hits.
func (c *Cache) compileMiss(key Key, compile CompileFunc) (*entry, error) {
	ran := false
	v, err, _ := c.group.Do(key.cacheKey(), func() (any, error) {
		if e, ok := c.peek(key); ok {
			return e, nil
		}
		ran = true
		return c.runCompile(key, compile)
	})
	if err != nil {
		return nil, err
	}

	e := v.(*entry)
	e.retain()
	e.touch()

	if ran {
		atomic.AddUint64(&c.misses, 1)
		metrics.IncrementCounter1(c.cfg.MetricsSink, metrics.CounterCacheMisses)
	} else {
		atomic.AddUint64(&c.hits, 1)
		metrics.IncrementCounter1(c.cfg.MetricsSink, metrics.CounterCacheHits)
	}
	return e, nil
}

// runCompile is the body of the singleflight critical section: acquire the
// resource tracker slot, compile, account for size, and insert. It never
// holds c.mu across the call into compile, so hits are never blocked
// behind a slow native compile.
func (c *Cache) runCompile(key Key, compile CompileFunc) (*entry, error) {
	if e, ok := c.peek(key); ok {
		// Another flight for this key already completed and was cleared
		// from the singleflight group before this one started.
		return e, nil
	}

	if err := c.tracker.AcquirePattern(c.cfg.MaxSimultaneousCompiledPatterns); err != nil {
		metrics.IncrementCounter1(c.cfg.MetricsSink, metrics.CounterResourceExhausted)
		return nil, ErrResourceExhausted
	}

	start := time.Now()
	h, err := compile()
	if err != nil {
		c.tracker.ReleasePattern()
		metrics.IncrementCounter1(c.cfg.MetricsSink, metrics.CounterCompileErrors)
		return nil, &CompileError{Pattern: key.Text, Err: err}
	}
	c.cfg.MetricsSink.RecordTimer(metrics.TimerCompilation, time.Since(start).Nanoseconds())

	size := int64(h.ProgramSizeBytes())
	newTotal := atomic.AddInt64(&c.currentNativeBytes, size)
	casMaxInt64(&c.peakNativeBytes, newTotal)

	e := newEntry(key, h, c.cfg.MaxMatchersPerPattern)

	c.mu.Lock()
	if existing, ok := c.store.Get(key); ok {
		// Lost the race: another path (e.g. a prior flight for this exact
		// key resolved between our peek above and taking the lock here)
		// already holds the entry for this key. Destroy the redundant
		// handle and hand back the one that's actually in the map.
		c.mu.Unlock()
		atomic.AddInt64(&c.currentNativeBytes, -size)
		c.tracker.ReleasePattern()
		if derr := h.Destroy(); derr != nil {
			rxlog.Logger().WithError(derr).Warn("rexcache: destroy failed for redundant compile")
		}
		return existing, nil
	}
	c.store.Add(key, e)
	overflow := c.store.Len() - c.cfg.MaxCacheSize
	c.mu.Unlock()

	metrics.IncrementCounter1(c.cfg.MetricsSink, metrics.CounterPatternsCompiled)
	if overflow > 0 {
		c.enqueueLRUEviction(overflow)
	}
	return e, nil
}

// compileStandalone backs both CompileWithoutCache and the cacheEnabled=false
// fallback of getOrCompile: a handle allocated outside the store, still
// subject to the simultaneous-pattern limit, owned exclusively by whoever
// receives the returned entry.
func (c *Cache) compileStandalone(key Key, compile CompileFunc) (*entry, error) {
	if err := c.tracker.AcquirePattern(c.cfg.MaxSimultaneousCompiledPatterns); err != nil {
		metrics.IncrementCounter1(c.cfg.MetricsSink, metrics.CounterResourceExhausted)
		return nil, ErrResourceExhausted
	}

	start := time.Now()
	h, err := compile()
	if err != nil {
		c.tracker.ReleasePattern()
		metrics.IncrementCounter1(c.cfg.MetricsSink, metrics.CounterCompileErrors)
		return nil, &CompileError{Pattern: key.Text, Err: err}
	}
	c.cfg.MetricsSink.RecordTimer(metrics.TimerCompilation, time.Since(start).Nanoseconds())
	metrics.IncrementCounter1(c.cfg.MetricsSink, metrics.CounterPatternsCompiled)

	return newUncachedEntry(key, h, c.cfg.MaxMatchersPerPattern), nil
}

// retireFromMapLocked performs the bookkeeping for an entry that the caller
// has *just* removed from c.store. It takes no lock itself, so it may run
// with or without c.mu held. It must never be called for an entry still
// reachable from the store.
func (c *Cache) retireFromMapLocked(e *entry) (deferred bool) {
	atomic.AddInt64(&c.currentNativeBytes, -e.size)
	if n := e.release(); n == 0 {
		if err := e.handle.Destroy(); err != nil {
			rxlog.Logger().WithError(err).Warn("rexcache: destroy failed for evicted entry")
		}
		c.tracker.ReleasePattern()
		metrics.IncrementCounter1(c.cfg.MetricsSink, metrics.CounterPatternsFreed)
		return false
	}
	c.deferredQ.push(e)
	return true
}

// retireFromMap is retireFromMapLocked for callers that don't already hold
// c.mu (the common case: eviction.go removes under lock, then retires after
// unlocking, so the destroy call — which may be slow — never happens while
// other goroutines are blocked on the cache mutex).
func (c *Cache) retireFromMap(e *entry) (deferred bool) {
	return c.retireFromMapLocked(e)
}

// releaseEntry drops one reference on e. It is the release half of every
// acquisition this package hands out: Matcher.Close, Pattern's finalizer,
// and the bypass path's owner. A cached entry reaching refCount==0 here
// only ever happens once it has already left the store (the store itself
// always holds a virtual +1) — at that point it's either already in the
// deferred queue, which sweeps it on its own schedule, or mid-eviction; this
// function never destroys a cached entry's handle directly, to avoid racing
// the deferred sweep.
func (c *Cache) releaseEntry(e *entry) {
	n := e.release()
	if n < 0 {
		rxlog.Logger().Error("rexcache: refcount underflow, clamped to zero")
		return
	}
	if n == 0 && e.uncached {
		c.tracker.ReleasePattern()
		metrics.IncrementCounter1(c.cfg.MetricsSink, metrics.CounterPatternsFreed)
		if err := e.handle.Destroy(); err != nil {
			rxlog.Logger().WithError(err).Warn("rexcache: destroy failed for uncached pattern")
		}
	}
}

// clear removes every entry from the store. In-use entries move to the
// deferred queue; idle ones are destroyed immediately.
func (c *Cache) clear() {
	c.mu.Lock()
	keys := c.store.Keys()
	entries := make([]*entry, 0, len(keys))
	for _, k := range keys {
		if e, ok := c.store.Peek(k); ok {
			entries = append(entries, e)
		}
	}
	for _, k := range keys {
		c.store.Remove(k)
	}
	c.mu.Unlock()

	for _, e := range entries {
		deferred := c.retireFromMap(e)
		if deferred {
			atomic.AddUint64(&c.evictionsDeferred, 1)
			metrics.IncrementCounter1(c.cfg.MetricsSink, metrics.CounterEvictionsDeferred)
		}
	}
}

// reset is clear() plus zeroing every statistic. Testing only.
func (c *Cache) reset() {
	c.clear()
	atomic.StoreUint64(&c.hits, 0)
	atomic.StoreUint64(&c.misses, 0)
	atomic.StoreUint64(&c.evictionsLRU, 0)
	atomic.StoreUint64(&c.evictionsIdle, 0)
	atomic.StoreUint64(&c.evictionsDeferred, 0)
	atomic.StoreUint64(&c.invalidRecompilations, 0)
	atomic.StoreInt64(&c.currentNativeBytes, 0)
	atomic.StoreInt64(&c.peakNativeBytes, 0)
	c.tracker.Reset()
}

// statistics returns an immutable snapshot. Each field is read atomically;
// the snapshot as a whole is only eventually consistent.
func (c *Cache) statistics() Statistics {
	c.mu.RLock()
	size := c.store.Len()
	c.mu.RUnlock()

	return Statistics{
		Hits:                         atomic.LoadUint64(&c.hits),
		Misses:                       atomic.LoadUint64(&c.misses),
		EvictionsLRU:                 atomic.LoadUint64(&c.evictionsLRU),
		EvictionsIdle:                atomic.LoadUint64(&c.evictionsIdle),
		EvictionsDeferred:            atomic.LoadUint64(&c.evictionsDeferred),
		CurrentSize:                  size,
		MaxSize:                      c.cfg.MaxCacheSize,
		DeferredSize:                 c.deferredQ.currentSize(),
		NativeMemoryBytes:            atomic.LoadInt64(&c.currentNativeBytes),
		PeakNativeMemoryBytes:        atomic.LoadInt64(&c.peakNativeBytes),
		InvalidPatternRecompilations: atomic.LoadUint64(&c.invalidRecompilations),
	}
}

// shutdown stops the background worker, removes every entry from the store
// and destroys every entry, cached or deferred, that no longer has a
// reference. Entries still referenced stay in the deferred queue and are
// not destroyed by shutdown. Safe to call more than once; only the first
// call does anything.
func (c *Cache) shutdown() {
	c.stopOnce.Do(func() {
		close(c.stopCh)

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(shutdownGrace):
			rxlog.Logger().Warn("rexcache: eviction worker did not exit within shutdown grace period")
		}

		c.clear()
		c.runDeferredSweep()
	})
}

// Compile compiles text against this Cache, returning a cached Pattern.
// This is the instance-method form of the package-level Compile function,
// for callers that built their own Cache via New instead of using the
// global one.
func (c *Cache) Compile(text string, caseSensitive bool) (*Pattern, error) {
	return CompileIn(c, text, caseSensitive)
}

// Clear removes every entry from the cache. In-use entries are destroyed
// once their last reference drops.
func (c *Cache) Clear() { c.clear() }

// Reset is Clear plus zeroing every statistic. Testing only.
func (c *Cache) Reset() { c.reset() }

// Statistics returns a point-in-time snapshot of the cache's counters.
func (c *Cache) Statistics() Statistics { return c.statistics() }

// Shutdown stops the background eviction worker and destroys every
// remaining entry that is no longer referenced; referenced entries stay in
// the deferred queue. Safe to call more than once.
func (c *Cache) Shutdown() { c.shutdown() }

// recordMatchOp and recordCaptureOp are called by matcher.go on every
// FullMatch/PartialMatch and ExtractGroups/FindAll respectively; they own
// the global matching.operations.total.count / capture.operations.total.count
// counters plus the per-kind latency timer. Matcher touches the metrics
// sink's counter API directly only for findAll's match-count bump, the
// matchers-freed count on Close and the rejection count when a matcher
// acquisition is refused.
func (c *Cache) recordMatchOp(timerName string, start time.Time) {
	metrics.IncrementCounter1(c.cfg.MetricsSink, metrics.CounterMatchOps)
	c.cfg.MetricsSink.RecordTimer(timerName, time.Since(start).Nanoseconds())
}

func (c *Cache) recordCaptureOp(start time.Time) {
	metrics.IncrementCounter1(c.cfg.MetricsSink, metrics.CounterCaptureOps)
	c.cfg.MetricsSink.RecordTimer(metrics.TimerCapture, time.Since(start).Nanoseconds())
}

func (c *Cache) recordReplaceOp(start time.Time) {
	metrics.IncrementCounter1(c.cfg.MetricsSink, metrics.CounterReplaceOps)
	c.cfg.MetricsSink.RecordTimer(metrics.TimerReplace, time.Since(start).Nanoseconds())
}

// recordBulk increments opCounter once and itemCounter by n: bulk array
// operations count one bulk call plus one increment per item.
func (c *Cache) recordBulk(opCounter, itemCounter string, n int) {
	metrics.IncrementCounter1(c.cfg.MetricsSink, opCounter)
	if n > 0 {
		c.cfg.MetricsSink.IncrementCounter(itemCounter, float64(n))
	}
}
