package exfs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dargueta/extentfs"
)

func newBitset(bits uint32) bitset {
	return bitset{data: make([]byte, (bits+7)/8), bits: bits}
}

func TestBitsetIsMSBFirst(t *testing.T) {
	b := newBitset(16)

	b.set(0)
	assert.EqualValues(t, 0x80, b.data[0], "bit 0 must be the MSB of byte 0")

	b.set(7)
	assert.EqualValues(t, 0x81, b.data[0])

	b.set(8)
	assert.EqualValues(t, 0x80, b.data[1])

	b.clear(0)
	assert.EqualValues(t, 0x01, b.data[0])
}

func TestBitsetAllocateScansInOrder(t *testing.T) {
	b := newBitset(12)

	for expected := uint32(0); expected < 12; expected++ {
		index, err := b.allocate()
		require.NoError(t, err)
		assert.Equal(t, expected, index)
	}

	_, err := b.allocate()
	assert.True(t, errors.Is(err, extentfs.ErrNoSpaceOnDevice))
}

func TestBitsetAllocateSkipsAllocated(t *testing.T) {
	b := newBitset(12)
	b.set(0)
	b.set(1)
	b.set(3)

	index, err := b.allocate()
	require.NoError(t, err)
	assert.EqualValues(t, 2, index)
}

func TestBitsetRangeOperations(t *testing.T) {
	b := newBitset(64)

	assert.True(t, b.isRangeClear(10, 20))
	b.setRange(12, 5)
	assert.False(t, b.isRangeClear(10, 20))
	assert.True(t, b.isRangeClear(17, 10))
	for i := uint32(12); i < 17; i++ {
		assert.True(t, b.isSet(i))
	}
	assert.False(t, b.isSet(11))
	assert.False(t, b.isSet(17))

	// A range running past the last valid bit is never clear.
	assert.False(t, b.isRangeClear(60, 5))
}

func TestFindContiguousDistinguishesFailures(t *testing.T) {
	b := newBitset(8)

	// Occupy every other bit: four bits remain free but no two are adjacent.
	for i := uint32(0); i < 8; i += 2 {
		b.set(i)
	}

	_, err := b.findContiguous(0, 2, 4)
	assert.True(t, errors.Is(err, extentfs.ErrNotFound),
		"fragmented-but-sufficient space must be NotFound")

	_, err = b.findContiguous(0, 5, 4)
	assert.True(t, errors.Is(err, extentfs.ErrNoSpaceOnDevice),
		"free count below the request must be NoSpace")

	index, err := b.findContiguous(0, 1, 4)
	require.NoError(t, err)
	assert.EqualValues(t, 1, index)
}

func TestFindContiguousWrapsAround(t *testing.T) {
	b := newBitset(16)

	// Free space at [0, 4); everything from 4 on is taken.
	b.setRange(4, 12)

	index, err := b.findContiguous(10, 3, 4)
	require.NoError(t, err)
	assert.EqualValues(t, 0, index,
		"the search must wrap around to the start of the bitmap")
}

func TestFindContiguousPrefersStartHint(t *testing.T) {
	b := newBitset(32)
	b.setRange(8, 4)

	index, err := b.findContiguous(6, 2, 28)
	require.NoError(t, err)
	assert.EqualValues(t, 6, index)

	index, err = b.findContiguous(7, 2, 28)
	require.NoError(t, err)
	assert.EqualValues(t, 12, index,
		"a run straddling allocated bits must be passed over")
}

func TestPopcount(t *testing.T) {
	b := newBitset(20)
	assert.EqualValues(t, 0, b.popcount())

	b.setRange(3, 7)
	assert.EqualValues(t, 7, b.popcount())

	b.clear(5)
	assert.EqualValues(t, 6, b.popcount())
}
