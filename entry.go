package rexcache

import (
	"sync/atomic"
	"time"

	"github.com/patterncache/rexcache/internal/engine"
)

// entry is the unit of caching: a (handle, last-access-time, size,
// refcount) tuple. Map membership itself contributes a virtual +1 to
// refCount — an entry freshly inserted into the cache's store starts at
// refCount==1 purely because the map holds it, before any caller has ever
// touched it. That +1 is removed exactly once, when the entry leaves the
// map (evicted or cleared), by eviction.go / cache.go. This way a brand new
// entry can never be destroyed out from under the goroutine that is about
// to return it, even though that goroutine hasn't yet recorded its own
// reference.
//
// key and matcherLimit are immutable after construction. lastAccessNano,
// refCount and liveMatchers are the only fields ever mutated, and only via
// atomics — entry carries no mutex of its own.
type entry struct {
	key    Key
	handle *engine.Handle
	size   int64 // ProgramSizeBytes(), fixed at compile time

	lastAccessNano int64 // atomic, time.Now().UnixNano(), never moves backward
	insertedAtNano int64 // atomic write-once, used for evictionProtectionMs

	refCount int64 // atomic, invariant: never negative (see release)

	matcherLimit int64
	liveMatchers int64 // atomic, bounded by matcherLimit

	// uncached marks an entry built by the cache-bypass compile path:
	// it is never reachable from the store or the deferred queue, so its
	// initial refCount==1 represents the caller's own exclusive ownership
	// rather than the map's virtual count. releaseEntry (cache.go) uses
	// this flag to decide whether reaching refCount==0 means "destroy now"
	// (uncached) or "leave it for the deferred sweep" (cached).
	uncached bool
}

func newEntry(key Key, h *engine.Handle, matcherLimit int64) *entry {
	now := time.Now().UnixNano()
	e := &entry{
		key:            key,
		handle:         h,
		size:           int64(h.ProgramSizeBytes()),
		lastAccessNano: now,
		insertedAtNano: now,
		refCount:       1, // virtual count for map membership
		matcherLimit:   matcherLimit,
	}
	return e
}

// newUncachedEntry builds an entry for compileWithoutCache: it is never
// inserted into the store, so its refCount starts at 1 to represent the
// caller's own hold rather than map membership.
func newUncachedEntry(key Key, h *engine.Handle, matcherLimit int64) *entry {
	e := newEntry(key, h, matcherLimit)
	e.uncached = true
	return e
}

func (e *entry) touch() {
	casMaxInt64(&e.lastAccessNano, time.Now().UnixNano())
}

func (e *entry) lastAccess() time.Time {
	return time.Unix(0, atomic.LoadInt64(&e.lastAccessNano))
}

func (e *entry) ageSince(t time.Time) time.Duration {
	return t.Sub(time.Unix(0, atomic.LoadInt64(&e.insertedAtNano)))
}

// retain increments refCount. Used both by the hit path (one per returned
// reference) and by matcher acquisition.
func (e *entry) retain() { atomic.AddInt64(&e.refCount, 1) }

// release decrements refCount and reports the value after decrementing. A
// negative result is a defect (refcount underflow): the stored value is
// clamped back to zero here, but the raw negative is returned so the caller
// can tell underflow apart from a legitimate drop to zero and log it
// (cache.go owns the logging, since it has the context to report).
func (e *entry) release() int64 {
	n := atomic.AddInt64(&e.refCount, -1)
	if n < 0 {
		atomic.CompareAndSwapInt64(&e.refCount, n, 0)
	}
	return n
}

func (e *entry) currentRefCount() int64 { return atomic.LoadInt64(&e.refCount) }

// acquireMatcherSlot enforces the per-entry maxMatchersPerPattern ceiling,
// rolling back on breach so the caller sees no side effect.
func (e *entry) acquireMatcherSlot() bool {
	n := atomic.AddInt64(&e.liveMatchers, 1)
	if e.matcherLimit > 0 && n > e.matcherLimit {
		atomic.AddInt64(&e.liveMatchers, -1)
		return false
	}
	return true
}

func (e *entry) releaseMatcherSlot() {
	atomic.AddInt64(&e.liveMatchers, -1)
}
