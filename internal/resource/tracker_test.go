package resource

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquirePatternWithinLimit(t *testing.T) {
	tr := New()
	for i := 0; i < 10; i++ {
		require.NoError(t, tr.AcquirePattern(10))
	}
	assert.Equal(t, int64(10), tr.Snapshot().ActivePatterns)
}

func TestAcquirePatternRejectsOnBreachWithoutSideEffects(t *testing.T) {
	tr := New()
	for i := 0; i < 10; i++ {
		require.NoError(t, tr.AcquirePattern(10))
	}

	err := tr.AcquirePattern(10)
	require.ErrorIs(t, err, ErrExhausted)

	snap := tr.Snapshot()
	assert.Equal(t, int64(10), snap.ActivePatterns)
	assert.Equal(t, int64(10), snap.CumulativeCompiled)
	assert.Equal(t, int64(1), snap.PatternLimitRejections)
}

func TestReleasePatternAlwaysSucceeds(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AcquirePattern(1))
	tr.ReleasePattern()
	tr.ReleasePattern() // double release: tracker itself never rejects
	assert.Equal(t, int64(-1), tr.Snapshot().ActivePatterns)
}

func TestConcurrentAcquirePatternRespectsLimit(t *testing.T) {
	tr := New()
	const limit = 50
	const attempts = 500

	var wg sync.WaitGroup
	var accepted, rejected int64
	var mu sync.Mutex

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tr.AcquirePattern(limit); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			} else {
				mu.Lock()
				rejected++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, limit, accepted)
	assert.EqualValues(t, attempts-limit, rejected)
	assert.Equal(t, int64(limit), tr.Snapshot().ActivePatterns)
}

func TestMatcherCounters(t *testing.T) {
	tr := New()
	tr.AcquireMatcher()
	tr.AcquireMatcher()
	tr.ReleaseMatcher()
	tr.RecordMatcherLimitRejection()

	snap := tr.Snapshot()
	assert.Equal(t, int64(1), snap.ActiveMatchers)
	assert.Equal(t, int64(2), snap.CumulativeMatchersCreated)
	assert.Equal(t, int64(1), snap.CumulativeMatchersClosed)
	assert.Equal(t, int64(1), snap.MatcherLimitRejections)
}

func TestReset(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AcquirePattern(10))
	tr.AcquireMatcher()
	tr.Reset()
	assert.Equal(t, Snapshot{}, tr.Snapshot())
}
