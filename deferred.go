package rexcache

import (
	"sync"
	"sync/atomic"
)

// deferredQueue holds entries that were removed from the cache's store
// while still referenced (refCount > 0 after the map's own virtual count
// was removed). Entries leave only via sweep, once their refCount has since
// fallen to zero. push is lock-free (a sync.Map insert); sweep is the only
// place that ever destroys a handle belonging to this queue, and it only
// does so for entries it has itself just observed at refCount==0 — that
// ordering is what makes concurrent push/sweep race-free without a shared
// mutex.
type deferredQueue struct {
	entries sync.Map // *entry -> struct{}

	size      int64 // atomic, current count
	peak      int64 // atomic, high-water mark of size
	bytes     int64 // atomic, sum of sizes of queued entries
	peakBytes int64 // atomic, high-water mark of bytes
}

func newDeferredQueue() *deferredQueue { return &deferredQueue{} }

// push adds e to the queue. Callers must have already removed e from the
// cache's store; push does not do that itself.
func (q *deferredQueue) push(e *entry) {
	q.entries.Store(e, struct{}{})
	n := atomic.AddInt64(&q.size, 1)
	casMaxInt64(&q.peak, n)
	b := atomic.AddInt64(&q.bytes, e.size)
	casMaxInt64(&q.peakBytes, b)
}

// sweep destroys every queued entry whose refCount has reached zero and
// removes it from the queue, returning how many were destroyed. destroy
// errors from the native engine are passed to onDestroyErr so the caller
// can log and continue; nil is safe to pass when the caller doesn't care.
func (q *deferredQueue) sweep(onDestroyErr func(error)) int {
	destroyed := 0
	q.entries.Range(func(key, _ any) bool {
		e := key.(*entry)
		if e.currentRefCount() != 0 {
			return true
		}
		q.entries.Delete(e)
		atomic.AddInt64(&q.size, -1)
		atomic.AddInt64(&q.bytes, -e.size)
		if err := e.handle.Destroy(); err != nil && onDestroyErr != nil {
			onDestroyErr(err)
		}
		destroyed++
		return true
	})
	return destroyed
}

func (q *deferredQueue) currentSize() int64  { return atomic.LoadInt64(&q.size) }
func (q *deferredQueue) peakSize() int64     { return atomic.LoadInt64(&q.peak) }
func (q *deferredQueue) currentBytes() int64 { return atomic.LoadInt64(&q.bytes) }
func (q *deferredQueue) peakBytesVal() int64 { return atomic.LoadInt64(&q.peakBytes) }

// casMaxInt64 atomically sets *addr to v if v is greater than the current
// value, retrying under contention. Used for the peak/high-water-mark
// counters shared across entry.go, cache.go and this file.
func casMaxInt64(addr *int64, v int64) {
	for {
		cur := atomic.LoadInt64(addr)
		if v <= cur {
			return
		}
		if atomic.CompareAndSwapInt64(addr, cur, v) {
			return
		}
	}
}
