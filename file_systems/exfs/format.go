package exfs

import (
	"fmt"
	"time"

	"github.com/dargueta/extentfs"
)

// FormatOptions controls image formatting.
type FormatOptions struct {
	// InodeCount is the number of inode slots to provision. Required and
	// positive.
	InodeCount uint32
	// Force permits overwriting an image that already bears the magic.
	Force bool
	// Zero wipes the whole image before writing metadata.
	Zero bool
}

// IsFormatted reports whether the image already bears the superblock magic.
func IsFormatted(image []byte) bool {
	if len(image) < BlockSize {
		return false
	}
	var sb RawSuperblock
	decodeRecord(image, &sb)
	return sb.Magic == Magic
}

// blocksFor returns the number of whole blocks needed to hold `bytes` bytes.
func blocksFor(bytes uint64) uint32 {
	return uint32((bytes + BlockSize - 1) / BlockSize)
}

// Format writes a fresh file system onto the image: superblock, cleared
// bitmaps, cleared inode table, and an allocated root directory inode. It
// refuses images that are already formatted (without Force) and images too
// small to hold the metadata plus at least one data block.
func Format(image []byte, opts FormatOptions) error {
	if opts.InodeCount == 0 {
		return extentfs.ErrInvalidArgument.WithMessage(
			"inode count must be positive")
	}
	if len(image) < BlockSize || len(image)%BlockSize != 0 {
		return extentfs.ErrInvalidImage.WithMessage(
			fmt.Sprintf("image size %d is not a nonzero multiple of the %d-byte block size",
				len(image), BlockSize),
		)
	}
	if IsFormatted(image) && !opts.Force {
		return extentfs.ErrExists.WithMessage(
			"image already contains a file system; use force to overwrite")
	}

	if opts.Zero {
		for i := range image {
			image[i] = 0
		}
	}

	size := uint64(len(image))
	totalBlocks := blocksFor(size)
	inodeBitmapBlocks := blocksFor(uint64(opts.InodeCount+7) / 8)
	inodeTableBlocks := blocksFor(uint64(opts.InodeCount) * InodeSize)

	// Blocks left once the superblock, inode bitmap, and inode table are
	// carved off; the data bitmap and the data region share them.
	remaining := int64(totalBlocks) - 1 - int64(inodeBitmapBlocks) - int64(inodeTableBlocks)
	if remaining <= 1 {
		return extentfs.ErrNoSpaceOnDevice.WithMessage(
			fmt.Sprintf("%d blocks leave no room for data after metadata",
				totalBlocks),
		)
	}
	dataBitmapBlocks := blocksFor(uint64(remaining+7) / 8)
	dataBlocks := remaining - int64(dataBitmapBlocks)
	if dataBlocks <= 0 {
		return extentfs.ErrNoSpaceOnDevice.WithMessage(
			"data bitmap leaves no data blocks")
	}

	sb := RawSuperblock{
		Magic:               Magic,
		Size:                size,
		InodesCount:         opts.InodeCount,
		BlocksCount:         totalBlocks,
		FreeInodesCount:     opts.InodeCount - 1, // inode 0 is the root
		UsedDirsCount:       1,
		InodeSize:           InodeSize,
		InodeBitmapBlk:      1,
		DataBitmapBlk:       1 + inodeBitmapBlocks,
		InodeTableBlk:       1 + inodeBitmapBlocks + dataBitmapBlocks,
		FirstDataBlk:        1 + inodeBitmapBlocks + dataBitmapBlocks + inodeTableBlocks,
	}
	sb.DataBlocksCount = totalBlocks - sb.FirstDataBlk
	sb.FreeDataBlocksCount = sb.DataBlocksCount

	encodeRecord(image[:BlockSize], &sb)

	fs := &FileSystem{image: image, sb: sb}
	fs.deriveViews()

	// Clear both bitmaps and the inode table, then claim inode 0 for the
	// root directory.
	clearBytes(fs.inodeBitmap.data)
	clearBytes(fs.dataBitmap.data)
	clearBytes(fs.inodeTable)
	fs.inodeBitmap.set(uint32(RootInumber))

	root := &Inode{
		Num:        RootInumber,
		Mode:       extentfs.S_IFDIR | 0o777,
		Links:      2,
		Mtime:      time.Now(),
		ExtentsBlk: NoExtentBlock,
	}
	fs.writeInode(root)
	return nil
}

func clearBytes(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
