package vlanrange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Any(t *testing.T) {
	for _, s := range []string{"any", "ANY", "", "  "} {
		r, err := Parse(s)
		require.NoError(t, err)
		assert.True(t, r.Equal(Any()), "input %q should parse to Any()", s)
	}
}

func TestParse_CommaDashList(t *testing.T) {
	r, err := Parse("100-103,200")
	require.NoError(t, err)

	assert.True(t, r.Contains(100))
	assert.True(t, r.Contains(103))
	assert.True(t, r.Contains(200))
	assert.False(t, r.Contains(104))
	assert.Equal(t, 5, r.Len())
	assert.Equal(t, "100-103,200", r.String())
}

func TestParse_RejectsOutOfRange(t *testing.T) {
	cases := []string{"0", "4095", "5000", "100-5000", "not-a-number"}
	for _, c := range cases {
		_, err := Parse(c)
		assert.Error(t, err, "expected parse error for %q", c)
	}
}

func TestString_CanonicalRuns(t *testing.T) {
	r := FromSlice([]int{5, 3, 4, 1, 10})
	assert.Equal(t, "1,3-5,10", r.String())
}

func TestString_Empty(t *testing.T) {
	assert.Equal(t, "", Empty().String())
}

func TestSetOperations(t *testing.T) {
	a := FromSlice([]int{1, 2, 3, 4})
	b := FromSlice([]int{3, 4, 5, 6})

	assert.Equal(t, "1-6", a.Union(b).String())
	assert.Equal(t, "3-4", a.Intersect(b).String())
	assert.Equal(t, "1-2", a.Diff(b).String())
	assert.Equal(t, "5-6", b.Diff(a).String())
}

func TestIsSubsetOf(t *testing.T) {
	sub := FromSlice([]int{2, 3})
	super := FromSlice([]int{1, 2, 3, 4})

	assert.True(t, sub.IsSubsetOf(super))
	assert.False(t, super.IsSubsetOf(sub))
	assert.True(t, Empty().IsSubsetOf(sub))
}

func TestSingleValue(t *testing.T) {
	single := Single(102)
	v, ok := single.SingleValue()
	require.True(t, ok)
	assert.Equal(t, 102, v)

	_, ok = FromSlice([]int{1, 2}).SingleValue()
	assert.False(t, ok)

	_, ok = Empty().SingleValue()
	assert.False(t, ok)
}

func TestCopy_Independent(t *testing.T) {
	a := FromSlice([]int{1, 2, 3})
	b := a.Copy()
	c := a.Diff(Single(2))

	assert.True(t, a.Contains(2))
	assert.True(t, b.Contains(2))
	assert.False(t, c.Contains(2))
}

func TestEmptinessAndEquality(t *testing.T) {
	assert.True(t, Empty().IsEmpty())
	assert.False(t, Any().IsEmpty())
	assert.True(t, FromSlice([]int{1, 2}).Equal(FromSlice([]int{2, 1})))
}
