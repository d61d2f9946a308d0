/*
Package rexcache is a high-throughput, thread-safe cache of compiled
regular-expression programs backed by a native RE2-style matching engine.

Compiling a pattern is expensive — tens to hundreds of microseconds — and the
compiled program holds memory outside the Go heap, owned by the native
engine. rexcache amortizes that cost across repeated calls for the same
pattern, bounds how many compiled programs can exist at once, and guarantees
that a compiled program is never released while a match against it is still
in flight.

================================================================================
ARCHITECTURAL OVERVIEW
================================================================================

rexcache is built from nine cooperating pieces, leaves first:

 1. internal/engine  — an owning handle around one native compiled program.
 2. internal/resource — process-wide counters enforcing simultaneous-
    allocation limits, lock-free via atomics.
 3. metrics           — a three-method Sink interface (counter, timer,
    gauge), with a no-op and a Prometheus-backed variant.
 4. Entry             — a (handle, last-access-time, size, refcount) tuple,
    the unit of caching.
 5. deferredQueue     — holds entries evicted while still referenced, until
    their refcount drops to zero.
 6. Cache             — the concurrent map from Key to Entry; the
    get-or-compile entry point and memory accounting live here.
 7/8. evictionLoop     — a periodic idle-timeout scan, deferred-queue sweep,
    and an async LRU evictor triggered on overflow.
 9. Matcher           — a per-operation handle that pins an Entry alive for
    the duration of one query.

================================================================================
CONCURRENCY MODEL
================================================================================

Two kinds of goroutine touch shared state concurrently: caller goroutines
(the runtime's finalizer goroutine among them, when it releases a
collected Pattern's reference) and the background eviction worker — the
deferred sweep runs on the same worker goroutine as the idle scan (see
eviction.go). A single
RWMutex-free* design was considered and rejected: because hits must update
LRU recency (see cache.go), every lookup — hit or miss — holds the cache's
single mutex for the duration of the lookup. The mutex is never held across
a call into the native engine's compile step; that step runs under a
per-key singleflight critical section instead (see cache.go's miss path).

* "free" in the sense of lock-free reads; "RWMutex" is still the name of the
field, used here in its write-mostly mode. See cache.go for why.
*/
package rexcache
