// Package resource implements process-wide, lock-free resource accounting:
// simultaneous-allocation limits for compiled patterns, plus cumulative and
// gauge-style tallies for matchers.
package resource

import (
	"errors"
	"sync/atomic"
)

// ErrExhausted is returned by AcquirePattern when accepting the request
// would push the active-pattern count past its configured limit.
var ErrExhausted = errors.New("resource: simultaneous pattern limit exhausted")

// Tracker holds current simultaneous allocation counts plus cumulative
// compiled/closed tallies and rejection counts.
// Every field is touched only through atomic operations — there is no
// mutex, and AcquirePattern's compare-then-maybe-rollback sequence is the
// only place contention can cause extra work (a rolled-back increment),
// never a blocked goroutine.
type Tracker struct {
	activePatterns int64
	activeMatchers int64

	cumulativeCompiled int64
	cumulativeClosed   int64

	cumulativeMatchersCreated int64
	cumulativeMatchersClosed  int64

	patternLimitRejections int64
	matcherLimitRejections int64
}

// New returns a zeroed Tracker.
func New() *Tracker { return &Tracker{} }

// AcquirePattern atomically increments the active-pattern count, subject to
// maxSimultaneous. On breach it rolls the increment back before returning
// ErrExhausted, so the caller sees no side effects. Ties at the limit are
// broken by whichever goroutine's post-increment value is first observed to
// satisfy post<=limit; every later goroutine rolls back. There is no
// waiting or retrying here — that's the caller's decision to make, if any.
func (t *Tracker) AcquirePattern(maxSimultaneous int64) error {
	post := atomic.AddInt64(&t.activePatterns, 1)
	if maxSimultaneous > 0 && post > maxSimultaneous {
		atomic.AddInt64(&t.activePatterns, -1)
		atomic.AddInt64(&t.patternLimitRejections, 1)
		return ErrExhausted
	}
	atomic.AddInt64(&t.cumulativeCompiled, 1)
	return nil
}

// ReleasePattern decrements the active-pattern count. It always succeeds.
func (t *Tracker) ReleasePattern() {
	atomic.AddInt64(&t.activePatterns, -1)
	atomic.AddInt64(&t.cumulativeClosed, 1)
}

// AcquireMatcher increments the global active-matcher gauge. Unlike
// AcquirePattern, this carries no simultaneous limit of its own — the
// per-entry ceiling (maxMatchersPerPattern) is enforced by the Entry that
// owns the matcher, not by this global tracker.
func (t *Tracker) AcquireMatcher() {
	atomic.AddInt64(&t.activeMatchers, 1)
	atomic.AddInt64(&t.cumulativeMatchersCreated, 1)
}

// ReleaseMatcher decrements the global active-matcher gauge. Always succeeds.
func (t *Tracker) ReleaseMatcher() {
	atomic.AddInt64(&t.activeMatchers, -1)
	atomic.AddInt64(&t.cumulativeMatchersClosed, 1)
}

// RecordMatcherLimitRejection bumps the rejection counter surfaced via the
// errors.resource.exhausted.total.count metric when a matcher acquisition
// fails the per-entry ceiling. Exported because the ceiling check itself
// lives on Entry, not Tracker.
func (t *Tracker) RecordMatcherLimitRejection() {
	atomic.AddInt64(&t.matcherLimitRejections, 1)
}

// Snapshot is an eventually-consistent, field-atomic read of every counter.
type Snapshot struct {
	ActivePatterns            int64
	ActiveMatchers            int64
	CumulativeCompiled        int64
	CumulativeClosed          int64
	CumulativeMatchersCreated int64
	CumulativeMatchersClosed  int64
	PatternLimitRejections    int64
	MatcherLimitRejections    int64
}

// Snapshot reads every counter. Each field is read atomically but the
// Snapshot as a whole is not a point-in-time transaction across fields.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		ActivePatterns:            atomic.LoadInt64(&t.activePatterns),
		ActiveMatchers:            atomic.LoadInt64(&t.activeMatchers),
		CumulativeCompiled:        atomic.LoadInt64(&t.cumulativeCompiled),
		CumulativeClosed:          atomic.LoadInt64(&t.cumulativeClosed),
		CumulativeMatchersCreated: atomic.LoadInt64(&t.cumulativeMatchersCreated),
		CumulativeMatchersClosed:  atomic.LoadInt64(&t.cumulativeMatchersClosed),
		PatternLimitRejections:    atomic.LoadInt64(&t.patternLimitRejections),
		MatcherLimitRejections:    atomic.LoadInt64(&t.matcherLimitRejections),
	}
}

// Reset zeroes every counter. Testing only.
func (t *Tracker) Reset() {
	atomic.StoreInt64(&t.activePatterns, 0)
	atomic.StoreInt64(&t.activeMatchers, 0)
	atomic.StoreInt64(&t.cumulativeCompiled, 0)
	atomic.StoreInt64(&t.cumulativeClosed, 0)
	atomic.StoreInt64(&t.cumulativeMatchersCreated, 0)
	atomic.StoreInt64(&t.cumulativeMatchersClosed, 0)
	atomic.StoreInt64(&t.patternLimitRejections, 0)
	atomic.StoreInt64(&t.matcherLimitRejections, 0)
}
