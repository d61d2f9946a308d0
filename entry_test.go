package rexcache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patterncache/rexcache/internal/engine"
)

func mustCompile(t *testing.T, text string, caseSensitive bool) *engine.Handle {
	t.Helper()
	h, err := engine.Compile(text, caseSensitive)
	require.NoError(t, err)
	return h
}

func TestEntryRetainReleaseReturnsToStartingRefCount(t *testing.T) {
	h := mustCompile(t, "abc", true)
	e := newEntry(Key{Text: "abc", CaseSensitive: true}, h, 10)

	start := e.currentRefCount()
	for i := 0; i < 5; i++ {
		e.retain()
	}
	for i := 0; i < 5; i++ {
		e.release()
	}
	assert.Equal(t, start, e.currentRefCount())
}

func TestEntryReleaseClampsNegativeToZero(t *testing.T) {
	h := mustCompile(t, "abc", true)
	e := newEntry(Key{Text: "abc", CaseSensitive: true}, h, 10)
	e.release() // drop the virtual map count to 0
	n := e.release()
	assert.Negative(t, n, "underflow must be visible to the caller for defect logging")
	assert.Equal(t, int64(0), e.currentRefCount(), "stored refcount must be clamped back to zero")
}

func TestEntryAcquireMatcherSlotRespectsCeiling(t *testing.T) {
	h := mustCompile(t, "abc", true)
	e := newEntry(Key{Text: "abc", CaseSensitive: true}, h, 2)

	assert.True(t, e.acquireMatcherSlot())
	assert.True(t, e.acquireMatcherSlot())
	assert.False(t, e.acquireMatcherSlot(), "third acquisition should breach the ceiling of 2")

	e.releaseMatcherSlot()
	e.releaseMatcherSlot()
	assert.True(t, e.acquireMatcherSlot(), "slots freed by release should become available again")
}

func TestEntryTouchAdvancesLastAccessMonotonically(t *testing.T) {
	h := mustCompile(t, "abc", true)
	e := newEntry(Key{Text: "abc", CaseSensitive: true}, h, 10)

	first := e.lastAccess()
	e.touch()
	second := e.lastAccess()
	assert.False(t, second.Before(first))
}

func TestEntryConcurrentRetainReleaseNeverGoesNegative(t *testing.T) {
	h := mustCompile(t, "abc", true)
	e := newEntry(Key{Text: "abc", CaseSensitive: true}, h, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.retain()
			e.release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), e.currentRefCount(), "virtual map count should be the only survivor")
}
