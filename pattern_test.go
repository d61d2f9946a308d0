package rexcache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patterncache/rexcache/metrics"
)

// recordingSink captures counter increments so tests can assert on the
// metric shapes of bulk and findall operations without standing up a
// Prometheus registry.
type recordingSink struct {
	mu       sync.Mutex
	counters map[string]float64
}

func newRecordingSink() *recordingSink {
	return &recordingSink{counters: make(map[string]float64)}
}

func (s *recordingSink) IncrementCounter(name string, delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name] += delta
}

func (s *recordingSink) RecordTimer(string, int64)            {}
func (s *recordingSink) RegisterGauge(string, func() float64) {}

func (s *recordingSink) counter(name string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[name]
}

// (\d+) over "a1b22c333" yields three matches with group texts "1", "22"
// and "333", and the findall-matches counter moves by exactly 3.
func TestFindAllExtractsEveryNumberRun(t *testing.T) {
	sink := newRecordingSink()
	c := newTestCache(t, WithMetricsSink(sink))

	p, err := c.Compile(`(\d+)`, true)
	require.NoError(t, err)

	all, err := p.FindAll([]byte("a1b22c333"))
	require.NoError(t, err)
	require.Len(t, all, 3)

	want := []string{"1", "22", "333"}
	for i, groups := range all {
		require.Len(t, groups, 2, "whole match plus one capture group")
		assert.Equal(t, want[i], string(groups[1].Text))
		assert.Equal(t, want[i], string(groups[0].Text))
	}

	assert.Equal(t, 3.0, sink.counter(metrics.CounterCaptureFindAllMatches))
}

func TestFindAllNoMatchLeavesFindAllCounterUntouched(t *testing.T) {
	sink := newRecordingSink()
	c := newTestCache(t, WithMetricsSink(sink))

	p, err := c.Compile(`\d+`, true)
	require.NoError(t, err)

	all, err := p.FindAll([]byte("no digits here"))
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, 0.0, sink.counter(metrics.CounterCaptureFindAllMatches))
}

func TestMatchesIsAnchoredFindIsNot(t *testing.T) {
	c := newTestCache(t)

	p, err := c.Compile(`\d+`, true)
	require.NoError(t, err)

	full, err := p.Matches([]byte("123"))
	require.NoError(t, err)
	assert.True(t, full)

	full, err = p.Matches([]byte("a123"))
	require.NoError(t, err)
	assert.False(t, full)

	partial, err := p.Find([]byte("a123"))
	require.NoError(t, err)
	assert.True(t, partial)
}

func TestMatchReturnsFirstMatchGroups(t *testing.T) {
	c := newTestCache(t)

	p, err := c.Compile(`(a+)(b+)`, true)
	require.NoError(t, err)

	res, err := p.Match([]byte("xxaabbbyy"))
	require.NoError(t, err)
	require.True(t, res.Matched)
	require.Len(t, res.Groups, 3)
	assert.Equal(t, "aabbb", string(res.Groups[0].Text))
	assert.Equal(t, "aa", string(res.Groups[1].Text))
	assert.Equal(t, "bbb", string(res.Groups[2].Text))

	res, err = p.Match([]byte("nothing"))
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestCaseInsensitiveCompileMatchesBothCases(t *testing.T) {
	c := newTestCache(t)

	p, err := c.Compile("abc", false)
	require.NoError(t, err)

	for _, in := range []string{"abc", "ABC", "aBc"} {
		ok, err := p.Matches([]byte(in))
		require.NoError(t, err)
		assert.True(t, ok, "case-insensitive pattern should match %q", in)
	}
}

func TestReplaceFirstAndReplaceAll(t *testing.T) {
	c := newTestCache(t)

	p, err := c.Compile(`\d+`, true)
	require.NoError(t, err)

	out, err := p.ReplaceFirst([]byte("a1b22c333"), []byte("#"))
	require.NoError(t, err)
	assert.Equal(t, "a#b22c333", string(out))

	out, err = p.ReplaceAll([]byte("a1b22c333"), []byte("#"))
	require.NoError(t, err)
	assert.Equal(t, "a#b#c#", string(out))
}

func TestReplaceWithNoMatchReturnsInputCopy(t *testing.T) {
	c := newTestCache(t)

	p, err := c.Compile(`\d+`, true)
	require.NoError(t, err)

	in := []byte("letters only")
	out, err := p.ReplaceAll(in, []byte("#"))
	require.NoError(t, err)
	assert.Equal(t, string(in), string(out))
	// The returned slice must be independent of the input.
	out[0] = 'X'
	assert.Equal(t, byte('l'), in[0])
}

func TestBulkMatchAllCountsOnceBulkNPerItem(t *testing.T) {
	sink := newRecordingSink()
	c := newTestCache(t, WithMetricsSink(sink))

	p, err := c.Compile(`\d+`, true)
	require.NoError(t, err)

	inputs := [][]byte{[]byte("1"), []byte("two"), []byte("33")}
	out, err := p.MatchAll(inputs)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, out)

	assert.Equal(t, 1.0, sink.counter(metrics.CounterMatchBulkOps))
	assert.Equal(t, 3.0, sink.counter(metrics.CounterMatchBulkItems))
}

func TestBulkMatchAllWithGroups(t *testing.T) {
	sink := newRecordingSink()
	c := newTestCache(t, WithMetricsSink(sink))

	p, err := c.Compile(`(\d+)`, true)
	require.NoError(t, err)

	inputs := [][]byte{[]byte("x9"), []byte("none")}
	out, err := p.MatchAllWithGroups(inputs)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.True(t, out[0].Matched)
	assert.Equal(t, "9", string(out[0].Groups[1].Text))
	assert.False(t, out[1].Matched)

	assert.Equal(t, 1.0, sink.counter(metrics.CounterCaptureBulkOps))
	assert.Equal(t, 2.0, sink.counter(metrics.CounterCaptureBulkItems))
}

func TestBulkReplaceAllInputs(t *testing.T) {
	sink := newRecordingSink()
	c := newTestCache(t, WithMetricsSink(sink))

	p, err := c.Compile(`\d+`, true)
	require.NoError(t, err)

	inputs := [][]byte{[]byte("a1"), []byte("b22c3"), []byte("none")}
	out, err := p.ReplaceAllInputs(inputs, []byte("_"))
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "a_", string(out[0]))
	assert.Equal(t, "b_c_", string(out[1]))
	assert.Equal(t, "none", string(out[2]))

	assert.Equal(t, 1.0, sink.counter(metrics.CounterReplaceBulkOps))
	assert.Equal(t, 3.0, sink.counter(metrics.CounterReplaceBulkItems))
}
