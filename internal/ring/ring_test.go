package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPopRoundTrip(t *testing.T) {
	b := New(16)

	n := b.Push([]byte("hello"))
	require.Equal(t, 5, n)
	assert.Equal(t, 5, b.Occupancy())
	assert.Equal(t, 11, b.FreeSpace())

	dst := make([]byte, 5)
	got := b.Pop(dst)
	require.Equal(t, 5, got)
	assert.Equal(t, "hello", string(dst))
	assert.Equal(t, 0, b.Occupancy())
}

func TestPushNeverExceedsFreeSpace(t *testing.T) {
	b := New(4)

	n := b.Push([]byte("abcdefgh"))
	assert.Equal(t, 4, n)
	assert.Equal(t, 4, b.Occupancy())
	assert.Equal(t, 0, b.Push([]byte("x")))
}

func TestPopNeverExceedsOccupancy(t *testing.T) {
	b := New(8)
	b.Push([]byte("ab"))

	dst := make([]byte, 8)
	n := b.Pop(dst)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, b.Pop(dst))
}

func TestWrapAroundSplitsAcrossTwoSegments(t *testing.T) {
	b := New(8)

	require.Equal(t, 6, b.Push([]byte("abcdef")))
	popped := make([]byte, 4)
	require.Equal(t, 4, b.Pop(popped))
	assert.Equal(t, "abcd", string(popped))

	// write cursor is now at 6, read at 4; pushing 6 more bytes must wrap.
	require.Equal(t, 6, b.Push([]byte("ghijkl")))

	rest := make([]byte, 8)
	n := b.Pop(rest)
	require.Equal(t, 8, n)
	assert.Equal(t, "efghijkl", string(rest[:n]))
}

func TestClearResetsPositionsAndZeroesStorage(t *testing.T) {
	b := New(8)
	b.Push([]byte("abcdefgh"))

	b.Clear()
	assert.Equal(t, 0, b.Occupancy())
	assert.Equal(t, 8, b.FreeSpace())
	assert.Equal(t, make([]byte, 8), b.buf)

	dst := make([]byte, 8)
	n := b.Push(dst)
	assert.Equal(t, 8, n)
}

func TestOccupancyNeverExceedsCapacity(t *testing.T) {
	b := New(16)
	for i := 0; i < 100; i++ {
		b.Push([]byte("0123456789"))
		require.LessOrEqual(t, b.Occupancy(), b.Capacity())
		dst := make([]byte, 3)
		b.Pop(dst)
	}
}
