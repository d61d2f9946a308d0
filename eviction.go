package rexcache

/*
eviction.go holds the two eviction mechanisms: the periodic idle-timeout
scan plus deferred-queue sweep, and the overflow-triggered, sampling-based
async LRU evictor. Both run on a single goroutine driven by one select
loop rather than on two separate threads; one worker with a task channel
satisfies the same ordering guarantees with less machinery.

The sweep never runs more often than the idle scan within the same cycle
(they share a tick when both fire), but the loop also self-schedules a
faster sweep-only cycle on deferredCleanupInterval so that entries freed by
a burst of matcher Close() calls between full scans don't wait a full
evictionScanInterval to be destroyed.
*/

import (
	"sort"
	"sync/atomic"
	"time"

	rxlog "github.com/patterncache/rexcache/log"
	"github.com/patterncache/rexcache/metrics"
)

// maxLRUSampleSize bounds the async evictor's per-run work.
const maxLRUSampleSize = 500

// lruTask asks the eviction worker to evict roughly n entries via the
// sampling algorithm below. It's "roughly" because by the time the worker
// gets to it, the store may have changed shape; runLRUEviction re-derives
// how much protection and contention allow it to actually evict.
type lruTask struct{ n int }

// startWorkers launches the single background goroutine that drives idle
// eviction, deferred sweeps, and async LRU eviction.
func (c *Cache) startWorkers() {
	c.wg.Add(1)
	go c.evictionLoop()
}

// enqueueLRUEviction schedules an async LRU pass for roughly n entries. If
// the task buffer is full, this is a no-op: each queued task caps its n at
// the overflow it reads from the live store length when it runs, and later
// inserts enqueue again, so nothing is lost by dropping this one.
func (c *Cache) enqueueLRUEviction(n int) {
	select {
	case c.lruTasks <- lruTask{n: n}:
	default:
	}
}

func (c *Cache) evictionLoop() {
	defer c.wg.Done()

	scanInterval := c.cfg.EvictionScanInterval
	if scanInterval <= 0 {
		scanInterval = time.Hour
	}
	sweepInterval := c.cfg.DeferredCleanupInterval
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}

	scanTicker := time.NewTicker(scanInterval)
	defer scanTicker.Stop()
	sweepTicker := time.NewTicker(sweepInterval)
	defer sweepTicker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case task := <-c.lruTasks:
			c.runLRUEviction(task.n)
		case <-scanTicker.C:
			c.runIdleScan()
			c.runDeferredSweep()
		case <-sweepTicker.C:
			c.runDeferredSweep()
		}
	}
}

// runIdleScan removes every entry whose last-access time is older than
// idleTimeout, ignoring EvictionProtection (idle eviction is a hard
// time-based policy, unlike LRU eviction's soft age guard).
func (c *Cache) runIdleScan() {
	if c.cfg.IdleTimeout <= 0 {
		return
	}
	now := time.Now()

	c.mu.Lock()
	var expired []*entry
	for _, k := range c.store.Keys() {
		e, ok := c.store.Peek(k)
		if !ok {
			continue
		}
		if now.Sub(e.lastAccess()) <= c.cfg.IdleTimeout {
			continue
		}
		cur, ok := c.store.Peek(e.key)
		if !ok || cur != e {
			continue
		}
		c.store.Remove(e.key)
		expired = append(expired, e)
	}
	c.mu.Unlock()

	for _, e := range expired {
		c.finishEviction(e, metrics.CounterEvictionsIdle, &c.evictionsIdle)
	}
}

// runDeferredSweep drives the deferred queue's sweep, reporting how many
// handles it destroyed as resources.patterns.freed. Each
// destroyed entry also gives back its simultaneous-pattern slot here — the
// eviction that deferred it deliberately did not, so that activePatterns
// keeps counting the still-live native program until it is actually freed.
func (c *Cache) runDeferredSweep() {
	n := c.deferredQ.sweep(func(err error) {
		rxlog.Logger().WithError(err).Warn("rexcache: destroy failed during deferred sweep")
	})
	for i := 0; i < n; i++ {
		c.tracker.ReleasePattern()
	}
	if n > 0 {
		c.cfg.MetricsSink.IncrementCounter(metrics.CounterPatternsFreed, float64(n))
	}
}

// runLRUEviction samples up to maxLRUSampleSize entries, sorts them by
// ascending last-access-time, and compare-and-removes the n oldest that
// have aged past EvictionProtection. Sampling trades exact LRU ordering
// for bounded work; any order among equal timestamps is acceptable.
func (c *Cache) runLRUEviction(n int) {
	c.mu.RLock()
	overflow := c.store.Len() - c.cfg.MaxCacheSize
	keys := c.store.Keys()
	c.mu.RUnlock()

	// The store may have shrunk since the task was enqueued (a coalesced
	// task, an idle scan, a clear); never evict past the live overflow.
	if overflow < n {
		n = overflow
	}
	if n <= 0 {
		return
	}

	sampleSize := len(keys)
	if sampleSize > maxLRUSampleSize {
		sampleSize = maxLRUSampleSize
		keys = keys[:sampleSize]
	}
	if sampleSize == 0 {
		return
	}

	c.mu.RLock()
	sample := make([]*entry, 0, sampleSize)
	for _, k := range keys {
		if e, ok := c.store.Peek(k); ok {
			sample = append(sample, e)
		}
	}
	c.mu.RUnlock()

	sort.Slice(sample, func(i, j int) bool {
		return sample[i].lastAccess().Before(sample[j].lastAccess())
	})

	now := time.Now()
	evicted := 0
	for _, e := range sample {
		if evicted >= n {
			break
		}
		if e.ageSince(now) < c.cfg.EvictionProtection {
			continue
		}

		c.mu.Lock()
		cur, ok := c.store.Peek(e.key)
		if ok && cur == e {
			c.store.Remove(e.key)
		} else {
			ok = false
		}
		c.mu.Unlock()
		if !ok {
			continue // another evictor or a re-compile already claimed this key
		}

		c.finishEviction(e, metrics.CounterEvictionsLRU, &c.evictionsLRU)
		evicted++
	}
}

// finishEviction runs the shared tail of every eviction path: retire the
// entry's bookkeeping, then attribute the outcome to either the deferred
// counter or the reason-specific one the caller supplies.
func (c *Cache) finishEviction(e *entry, counter string, stat *uint64) {
	deferred := c.retireFromMap(e)
	if deferred {
		atomic.AddUint64(&c.evictionsDeferred, 1)
		metrics.IncrementCounter1(c.cfg.MetricsSink, metrics.CounterEvictionsDeferred)
		return
	}
	atomic.AddUint64(stat, 1)
	metrics.IncrementCounter1(c.cfg.MetricsSink, counter)
}
