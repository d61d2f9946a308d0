package rexcache

import (
	"sync/atomic"
	"time"

	"github.com/patterncache/rexcache/internal/engine"
	"github.com/patterncache/rexcache/metrics"
)

// Matcher is a per-operation handle tied to one cache entry. Acquiring one
// bumps the entry's refcount (subject to maxMatchersPerPattern); Close
// releases it. A Matcher is not safe for concurrent use by multiple
// goroutines — create one per goroutine per query. The compiled entry
// underneath is shareable; the Matcher wrapping it is not.
type Matcher struct {
	c      *Cache
	e      *entry
	closed atomic.Bool
}

// newMatcher acquires a matcher slot on e, incrementing both the entry's
// per-pattern matcher count and the global resource tracker's gauge. It
// returns ErrResourceExhausted if maxMatchersPerPattern has been reached,
// with no side effects.
func newMatcher(c *Cache, e *entry) (*Matcher, error) {
	if !e.acquireMatcherSlot() {
		c.tracker.RecordMatcherLimitRejection()
		metrics.IncrementCounter1(c.cfg.MetricsSink, metrics.CounterResourceExhausted)
		return nil, ErrResourceExhausted
	}
	e.retain()
	c.tracker.AcquireMatcher()
	return &Matcher{c: c, e: e}, nil
}

func (m *Matcher) checkOpen() error {
	if m.closed.Load() {
		return ErrInvalidState
	}
	return nil
}

// FullMatch reports whether input matches the pattern in its entirety.
func (m *Matcher) FullMatch(input []byte) (bool, error) {
	if err := m.checkOpen(); err != nil {
		return false, err
	}
	start := time.Now()
	ok := m.e.handle.FullMatch(input)
	m.c.recordMatchOp(metrics.TimerFullMatch, start)
	return ok, nil
}

// PartialMatch reports whether input contains a match anywhere.
func (m *Matcher) PartialMatch(input []byte) (bool, error) {
	if err := m.checkOpen(); err != nil {
		return false, err
	}
	start := time.Now()
	ok := m.e.handle.PartialMatch(input)
	m.c.recordMatchOp(metrics.TimerPartialMatch, start)
	return ok, nil
}

// ExtractGroups returns the capture groups of the first match.
func (m *Matcher) ExtractGroups(input []byte) ([]engine.Capture, bool, error) {
	if err := m.checkOpen(); err != nil {
		return nil, false, err
	}
	start := time.Now()
	groups, ok := m.e.handle.ExtractGroups(input)
	m.c.recordCaptureOp(start)
	return groups, ok, nil
}

// FindAll returns the capture groups of every non-overlapping match.
func (m *Matcher) FindAll(input []byte) ([][]engine.Capture, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	start := time.Now()
	all := m.e.handle.FindAll(input)
	m.c.recordCaptureOp(start)
	if n := len(all); n > 0 {
		m.c.cfg.MetricsSink.IncrementCounter(metrics.CounterCaptureFindAllMatches, float64(n))
	}
	return all, nil
}

// Close releases this Matcher's hold on the underlying entry. Idempotent:
// a second Close is a no-op. Every method but Close returns ErrInvalidState
// once closed.
func (m *Matcher) Close() {
	if !m.closed.CompareAndSwap(false, true) {
		return
	}
	m.e.releaseMatcherSlot()
	m.c.tracker.ReleaseMatcher()
	metrics.IncrementCounter1(m.c.cfg.MetricsSink, metrics.CounterMatchersFreed)
	m.c.releaseEntry(m.e)
}
