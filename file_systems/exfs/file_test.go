package exfs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dargueta/extentfs"
)

// newTestFS formats and mounts an in-memory image for white-box tests.
func newTestFS(t *testing.T, blocks int, inodes uint32) *FileSystem {
	t.Helper()

	image := newImage(blocks)
	require.NoError(t, Format(image, FormatOptions{InodeCount: inodes}))
	fs, err := Mount(image)
	require.NoError(t, err)
	return fs
}

func newTestFile(t *testing.T, fs *FileSystem) *Inode {
	t.Helper()

	node, err := fs.allocateInode(extentfs.S_IFREG|0o644, 1)
	require.NoError(t, err)
	return node
}

func TestExtendAllocatesLazily(t *testing.T) {
	fs := newTestFS(t, 64, 16)
	node := newTestFile(t, fs)

	require.NoError(t, fs.extendFile(node, 0))
	assert.False(t, node.HasExtentBlock(), "zero-byte extension must not allocate")

	require.NoError(t, fs.extendFile(node, 100))
	assert.True(t, node.HasExtentBlock())
	assert.EqualValues(t, 100, node.Size)
	assert.EqualValues(t, 1, node.ExtentsCount)
	assert.EqualValues(t, 2, node.UsedBlocks, "one data block plus the extent-pointer block")
}

func TestExtendFillsTailBlockWithoutAllocating(t *testing.T) {
	fs := newTestFS(t, 64, 16)
	node := newTestFile(t, fs)

	require.NoError(t, fs.extendFile(node, 100))
	usedBefore := node.UsedBlocks

	require.NoError(t, fs.extendFile(node, BlockSize-100))
	assert.EqualValues(t, BlockSize, node.Size)
	assert.Equal(t, usedBefore, node.UsedBlocks, "filling the tail block must not allocate")
	assert.EqualValues(t, 1, node.ExtentsCount)
}

func TestExtendAllocatesContiguousRunPastTail(t *testing.T) {
	fs := newTestFS(t, 64, 16)
	node := newTestFile(t, fs)

	require.NoError(t, fs.extendFile(node, 3*BlockSize))
	assert.EqualValues(t, 3*BlockSize, node.Size)
	assert.EqualValues(t, 1, node.ExtentsCount, "a single run must make a single extent")
	assert.EqualValues(t, 4, node.UsedBlocks)

	ext := fs.extentAt(node, 0)
	assert.EqualValues(t, uint32(node.ExtentBlock())+1, ext.Start,
		"the run should start right after the extent-pointer block")
	assert.EqualValues(t, 3, ext.Count)
}

func TestExtendFallsBackToSingleBlocks(t *testing.T) {
	fs := newTestFS(t, 64, 16)
	node := newTestFile(t, fs)

	require.NoError(t, fs.extendFile(node, 1))

	// Fragment the free space: claim every other remaining block so no two
	// free blocks are adjacent.
	claimed := uint32(0)
	for i := uint32(0); i < fs.dataBitmap.bits; i += 2 {
		if !fs.dataBitmap.isSet(i) {
			fs.dataBitmap.set(i)
			claimed++
		}
	}
	fs.sb.FreeDataBlocksCount -= claimed

	require.NoError(t, fs.extendFile(node, 2*BlockSize))
	assert.EqualValues(t, 2*BlockSize+1, node.Size)
	assert.EqualValues(t, 3, node.ExtentsCount,
		"fragmented space must produce one extent per block")
}

func TestExtendFailsAtExtentCap(t *testing.T) {
	fs := newTestFS(t, 64, 16)
	node := newTestFile(t, fs)

	require.NoError(t, fs.extendFile(node, BlockSize))
	node.ExtentsCount = ExtentsMax

	err := fs.extendFile(node, BlockSize)
	assert.True(t, errors.Is(err, extentfs.ErrNoSpaceOnDevice))
}

func TestExtendFailsWhenFull(t *testing.T) {
	fs := newTestFS(t, 8, 16)
	node := newTestFile(t, fs)

	// After a one-byte extension, ask for one block more than remains free.
	require.NoError(t, fs.extendFile(node, 1))
	err := fs.extendFile(node, uint64(fs.sb.FreeDataBlocksCount+1)*BlockSize)
	assert.True(t, errors.Is(err, extentfs.ErrNoSpaceOnDevice))
}

func TestShrinkReleasesTailBlocks(t *testing.T) {
	fs := newTestFS(t, 64, 16)
	node := newTestFile(t, fs)

	require.NoError(t, fs.extendFile(node, 3*BlockSize))
	freeAfterExtend := fs.sb.FreeDataBlocksCount

	// Dropping half a block empties nothing.
	require.NoError(t, fs.shrinkFile(node, BlockSize/2))
	assert.Equal(t, freeAfterExtend, fs.sb.FreeDataBlocksCount)
	assert.EqualValues(t, 1, node.ExtentsCount)

	// Dropping the rest of the tail block releases it.
	require.NoError(t, fs.shrinkFile(node, BlockSize/2))
	assert.Equal(t, freeAfterExtend+1, fs.sb.FreeDataBlocksCount)

	ext := fs.extentAt(node, 0)
	assert.EqualValues(t, 2, ext.Count, "the trailing extent must shrink")
}

func TestShrinkToZeroReleasesExtentBlock(t *testing.T) {
	fs := newTestFS(t, 64, 16)
	node := newTestFile(t, fs)
	freeBefore := fs.sb.FreeDataBlocksCount

	require.NoError(t, fs.extendFile(node, 2*BlockSize+17))
	require.NoError(t, fs.shrinkFile(node, 2*BlockSize+17))

	assert.EqualValues(t, 0, node.Size)
	assert.EqualValues(t, 0, node.ExtentsCount)
	assert.False(t, node.HasExtentBlock())
	assert.EqualValues(t, 0, node.UsedBlocks)
	assert.Equal(t, freeBefore, fs.sb.FreeDataBlocksCount)
}

func TestShrinkEmptyFileFails(t *testing.T) {
	fs := newTestFS(t, 64, 16)
	node := newTestFile(t, fs)

	err := fs.shrinkFile(node, 100)
	assert.True(t, errors.Is(err, extentfs.ErrNoSpaceOnDevice))
}

func TestPointerToOffsetBoundaries(t *testing.T) {
	fs := newTestFS(t, 64, 16)
	node := newTestFile(t, fs)

	require.NoError(t, fs.extendFile(node, 2*BlockSize))
	ext := fs.extentAt(node, 0)
	base := int64(ext.Start) * BlockSize

	assert.Equal(t, base, fs.pointerToOffset(node, 0))
	assert.Equal(t, base+100, fs.pointerToOffset(node, 100))

	// A block-boundary offset resolves to one past the end of the previous
	// block, so translating the file size always lands just past the last
	// byte.
	assert.Equal(t, base+BlockSize, fs.pointerToOffset(node, BlockSize))
	assert.Equal(t, base+2*BlockSize, fs.pointerToOffset(node, 2*BlockSize))

	assert.Equal(t, base+BlockSize, fs.byteLocation(node, BlockSize),
		"byteLocation resolves a boundary offset to the start of its block")
}
