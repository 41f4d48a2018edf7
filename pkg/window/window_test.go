package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlock_EmitsCompletedWindows(t *testing.T) {
	b := NewBlock(3)

	_, _, ok := b.Push(1)
	assert.False(t, ok)
	_, _, ok = b.Push(2)
	assert.False(t, ok)
	assert.Equal(t, 2, b.Len())

	win, id, ok := b.Push(3)
	require.True(t, ok)
	assert.Equal(t, uint64(1), id)
	assert.Equal(t, []float64{1, 2, 3}, win)
	assert.Equal(t, 0, b.Len())

	// Windows do not overlap and ids keep counting.
	for _, v := range []float64{4, 5} {
		_, _, ok = b.Push(v)
		assert.False(t, ok)
	}
	win2, id, ok := b.Push(6)
	require.True(t, ok)
	assert.Equal(t, uint64(2), id)
	assert.Equal(t, []float64{4, 5, 6}, win2)

	// The emitted window is a copy, not a view into the buffer.
	win2[0] = 99
	_, _, _ = b.Push(7)
	_, _, _ = b.Push(8)
	win3, _, ok := b.Push(9)
	require.True(t, ok)
	assert.Equal(t, []float64{7, 8, 9}, win3)
}

func TestNewBlock_ClampsSize(t *testing.T) {
	b := NewBlock(0)
	assert.Equal(t, 1, b.Size())

	win, id, ok := b.Push(5)
	require.True(t, ok)
	assert.Equal(t, uint64(1), id)
	assert.Equal(t, []float64{5}, win)
}

func TestRing_FillsThenWraps(t *testing.T) {
	r := NewRing(4)
	require.Equal(t, 4, r.Size())

	assert.False(t, r.Filled())
	assert.Equal(t, 0, r.Len())

	r.Push(1)
	r.Push(2)
	assert.False(t, r.Filled())
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []float64{1, 2}, r.Snapshot(nil))

	r.Push(3)
	r.Push(4)
	assert.True(t, r.Filled())
	assert.Equal(t, 4, r.Len())
	assert.Equal(t, []float64{1, 2, 3, 4}, r.Snapshot(nil))

	// Overwrites drop the oldest values first.
	r.Push(5)
	assert.Equal(t, []float64{2, 3, 4, 5}, r.Snapshot(nil))
	r.Push(6)
	r.Push(7)
	assert.Equal(t, []float64{4, 5, 6, 7}, r.Snapshot(nil))
	assert.Equal(t, 4, r.Len())
}

func TestRing_SnapshotReusesDst(t *testing.T) {
	r := NewRing(3)
	r.Push(1)
	r.Push(2)
	r.Push(3)

	dst := make([]float64, 0, 8)
	got := r.Snapshot(dst)
	require.Equal(t, []float64{1, 2, 3}, got)
	assert.Equal(t, 8, cap(got))
}

func TestNewRing_ClampsSize(t *testing.T) {
	r := NewRing(-1)
	assert.Equal(t, 1, r.Size())

	r.Push(1)
	r.Push(2)
	assert.Equal(t, []float64{2}, r.Snapshot(nil))
}
