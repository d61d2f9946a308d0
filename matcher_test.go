package rexcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcherCloseIsIdempotent(t *testing.T) {
	c := newTestCache(t)

	p, err := c.Compile("abc", true)
	require.NoError(t, err)

	m, err := p.Matcher()
	require.NoError(t, err)

	before := p.e.currentRefCount()
	m.Close()
	m.Close() // double close is a no-op
	assert.Equal(t, before-1, p.e.currentRefCount())

	snap := c.tracker.Snapshot()
	assert.EqualValues(t, 0, snap.ActiveMatchers)
	assert.EqualValues(t, 1, snap.CumulativeMatchersCreated)
	assert.EqualValues(t, 1, snap.CumulativeMatchersClosed)
}

func TestMatcherOperationsAfterCloseReturnInvalidState(t *testing.T) {
	c := newTestCache(t)

	p, err := c.Compile("abc", true)
	require.NoError(t, err)

	m, err := p.Matcher()
	require.NoError(t, err)
	m.Close()

	_, err = m.FullMatch([]byte("abc"))
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = m.PartialMatch([]byte("abc"))
	assert.ErrorIs(t, err, ErrInvalidState)
	_, _, err = m.ExtractGroups([]byte("abc"))
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = m.FindAll([]byte("abc"))
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestMatcherRefCountReturnsToStartAfterAcquireReleaseSequence(t *testing.T) {
	c := newTestCache(t)

	p, err := c.Compile("abc", true)
	require.NoError(t, err)
	start := p.e.currentRefCount()

	var matchers []*Matcher
	for i := 0; i < 20; i++ {
		m, err := p.Matcher()
		require.NoError(t, err)
		matchers = append(matchers, m)
	}
	assert.Equal(t, start+20, p.e.currentRefCount())

	for _, m := range matchers {
		m.Close()
	}
	assert.Equal(t, start, p.e.currentRefCount())
}
