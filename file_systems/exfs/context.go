package exfs

import (
	"fmt"

	"github.com/dargueta/extentfs"
)

// FileSystem is the runtime context of one mounted image: the mapped byte
// region plus derived views of the superblock, the two bitmaps, the inode
// table, and the data region. It owns no storage of its own; every mutation
// lands in the image.
//
// A FileSystem services one operation at a time under the dispatch of a
// single bridge thread, so it carries no locks.
type FileSystem struct {
	image []byte
	sb    RawSuperblock

	inodeBitmap bitset
	dataBitmap  bitset
	inodeTable  []byte
	dataRegion  []byte
}

// Mount builds a FileSystem over a mapped image region. It verifies the
// superblock magic and derives the metadata views; it allocates nothing and
// writes nothing. A nil, empty, or truncated image fails with
// [extentfs.ErrInvalidImage].
func Mount(image []byte) (*FileSystem, error) {
	if len(image) < BlockSize {
		return nil, extentfs.ErrInvalidImage.WithMessage(
			fmt.Sprintf("image is %d bytes, need at least one %d-byte block",
				len(image), BlockSize),
		)
	}

	fs := &FileSystem{image: image}
	decodeRecord(image, &fs.sb)
	if fs.sb.Magic != Magic {
		return nil, extentfs.ErrInvalidImage.WithMessage(
			fmt.Sprintf("superblock magic is %#x, want %#x", fs.sb.Magic, Magic),
		)
	}
	if uint64(len(image)) < uint64(fs.sb.BlocksCount)*BlockSize {
		return nil, extentfs.ErrInvalidImage.WithMessage(
			fmt.Sprintf("image is %d bytes but the superblock describes %d blocks",
				len(image), fs.sb.BlocksCount),
		)
	}

	fs.deriveViews()
	return fs, nil
}

// deriveViews points the bitmap, inode table, and data region views at their
// image ranges, using the layout pointers in the (already decoded)
// superblock.
func (fs *FileSystem) deriveViews() {
	sb := &fs.sb
	fs.inodeBitmap = bitset{
		data: fs.blockRange(sb.InodeBitmapBlk, sb.DataBitmapBlk-sb.InodeBitmapBlk),
		bits: sb.InodesCount,
	}
	fs.dataBitmap = bitset{
		data: fs.blockRange(sb.DataBitmapBlk, sb.InodeTableBlk-sb.DataBitmapBlk),
		bits: sb.DataBlocksCount,
	}
	fs.inodeTable = fs.blockRange(sb.InodeTableBlk, sb.FirstDataBlk-sb.InodeTableBlk)
	fs.dataRegion = fs.blockRange(sb.FirstDataBlk, sb.DataBlocksCount)
}

// blockRange returns the image bytes of `count` blocks starting at absolute
// block `start`.
func (fs *FileSystem) blockRange(start, count uint32) []byte {
	begin := int64(start) * BlockSize
	end := begin + int64(count)*BlockSize
	return fs.image[begin:end]
}

// commitSuperblock writes the in-memory superblock back to block 0. Mutating
// operations call this once before returning.
func (fs *FileSystem) commitSuperblock() {
	encodeRecord(fs.image[:BlockSize], &fs.sb)
}

// Statfs reports file system statistics from the superblock counters.
func (fs *FileSystem) Statfs() extentfs.FSStat {
	return extentfs.FSStat{
		BlockSize:       BlockSize,
		TotalBlocks:     uint64(fs.sb.BlocksCount),
		BlocksFree:      uint64(fs.sb.FreeDataBlocksCount),
		BlocksAvailable: uint64(fs.sb.FreeDataBlocksCount),
		Files:           uint64(fs.sb.InodesCount),
		FilesFree:       uint64(fs.sb.FreeInodesCount),
		FilesAvailable:  uint64(fs.sb.FreeInodesCount),
		MaxNameLength:   NameMax,
	}
}

// Superblock returns a copy of the mounted superblock.
func (fs *FileSystem) Superblock() RawSuperblock {
	return fs.sb
}

// Destroy detaches the context from the image. The owner of the mapping is
// responsible for flushing and unmapping it; after Destroy the FileSystem
// must not be used.
func (fs *FileSystem) Destroy() {
	fs.commitSuperblock()
	*fs = FileSystem{}
}
