package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileRejectsInvalidPattern(t *testing.T) {
	_, err := Compile("(unclosed", true)
	require.Error(t, err)
}

func TestFullMatchIsAnchoredPartialMatchIsNot(t *testing.T) {
	h, err := Compile(`\d+`, true)
	require.NoError(t, err)
	defer h.Destroy()

	assert.True(t, h.FullMatch([]byte("123")))
	assert.False(t, h.FullMatch([]byte("a123")))
	assert.True(t, h.PartialMatch([]byte("a123")))
	assert.False(t, h.PartialMatch([]byte("abc")))
}

func TestEmptyPatternFullMatchesEmptyInput(t *testing.T) {
	h, err := Compile("", true)
	require.NoError(t, err)
	defer h.Destroy()

	assert.True(t, h.FullMatch([]byte("")))
	assert.False(t, h.FullMatch([]byte("x")))
}

func TestCaseInsensitiveCompile(t *testing.T) {
	h, err := Compile("abc", false)
	require.NoError(t, err)
	defer h.Destroy()

	assert.True(t, h.FullMatch([]byte("ABC")))
	assert.True(t, h.PartialMatch([]byte("xAbCx")))
}

func TestExtractGroupsReportsOffsetsAndText(t *testing.T) {
	h, err := Compile(`(a+)(b+)`, true)
	require.NoError(t, err)
	defer h.Destroy()

	groups, ok := h.ExtractGroups([]byte("xxaabbbyy"))
	require.True(t, ok)
	require.Len(t, groups, 3)

	assert.Equal(t, "aabbb", string(groups[0].Text))
	assert.Equal(t, 2, groups[0].Start)
	assert.Equal(t, 7, groups[0].End)
	assert.Equal(t, "aa", string(groups[1].Text))
	assert.Equal(t, "bbb", string(groups[2].Text))

	_, ok = h.ExtractGroups([]byte("nothing"))
	assert.False(t, ok)
}

func TestFindAllReturnsNonOverlappingMatchesInOrder(t *testing.T) {
	h, err := Compile(`(\d+)`, true)
	require.NoError(t, err)
	defer h.Destroy()

	all := h.FindAll([]byte("a1b22c333"))
	require.Len(t, all, 3)

	want := []string{"1", "22", "333"}
	for i, groups := range all {
		assert.Equal(t, want[i], string(groups[1].Text))
	}
	assert.Equal(t, 1, all[0][0].Start)
	assert.Equal(t, 3, all[1][0].Start)
	assert.Equal(t, 6, all[2][0].Start)
}

func TestFindAllTerminatesOnEmptyMatches(t *testing.T) {
	h, err := Compile(`a*`, true)
	require.NoError(t, err)
	defer h.Destroy()

	all := h.FindAll([]byte("bab"))
	assert.NotEmpty(t, all)
}

func TestProgramSizeIsNonZeroAndGrowsWithPattern(t *testing.T) {
	small, err := Compile("a", true)
	require.NoError(t, err)
	defer small.Destroy()

	large, err := Compile("alpha|beta|gamma|delta|epsilon|zeta|eta|theta", true)
	require.NoError(t, err)
	defer large.Destroy()

	assert.Greater(t, small.ProgramSizeBytes(), 0)
	assert.Greater(t, large.ProgramSizeBytes(), small.ProgramSizeBytes())
}

func TestDestroyIsIdempotentAndInvalidates(t *testing.T) {
	h, err := Compile("abc", true)
	require.NoError(t, err)

	assert.True(t, h.IsValid())
	require.NoError(t, h.Destroy())
	assert.False(t, h.IsValid())
	require.NoError(t, h.Destroy())

	assert.False(t, h.FullMatch([]byte("abc")))
	_, ok := h.ExtractGroups([]byte("abc"))
	assert.False(t, ok)
	assert.Nil(t, h.FindAll([]byte("abc")))
}
