package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	assert.False(t, r.IsKnown(4))
	assert.True(t, r.Register(4))
	assert.False(t, r.Register(4), "second registration is not a first sighting")
	assert.True(t, r.Register(12))
	assert.True(t, r.Register(1))

	assert.True(t, r.IsKnown(4))
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []int{1, 4, 12}, r.Sorted())
	assert.Equal(t, []int{4, 12, 1}, r.InOrder())

	r.Reset()
	assert.Equal(t, 0, r.Len())
	assert.False(t, r.IsKnown(4))
}

func TestFormatLabel(t *testing.T) {
	testCases := []struct {
		ms   int64
		want string
	}{
		{0, "0:00"},
		{999, "0:00"},
		{1000, "0:01"},
		{59999, "0:59"},
		{61234, "1:01"},
		{3600000, "60:00"},
		{-500, "-1:59"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, FormatLabel(tc.ms), "ms=%d", tc.ms)
	}
}
