package exfs

import (
	"errors"
	"time"

	"github.com/dargueta/extentfs"
)

// extendFile grows the file's logical size by `additional` bytes over
// zero-initialized storage. It never writes caller data; the write operation
// copies bytes into the room reserved here.
//
// Whole-block growth allocates a contiguous run sized for all remaining
// bytes, searching from the block right after the file's tail (wrapping
// around the data region) to keep files contiguous. When free space is
// sufficient but fragmented, allocation falls back to one block at a time:
// fragmentation is preferable to failure. Growth fails with
// [extentfs.ErrNoSpaceOnDevice] once the file would exceed ExtentsMax
// extents.
func (fs *FileSystem) extendFile(node *Inode, additional uint64) error {
	if additional == 0 {
		return nil
	}

	err := fs.ensureExtentBlock(node)
	if err != nil {
		return err
	}

	for additional > 0 {
		var added uint64

		if node.Size%BlockSize == 0 {
			// The tail block is full or absent; a new data run is needed.
			need := uint32((additional + BlockSize - 1) / BlockSize)
			searchStart := uint32(fs.lastDataBlock(node)) + 1

			start, err := fs.dataBitmap.findContiguous(
				searchStart, need, fs.sb.FreeDataBlocksCount)
			if errors.Is(err, extentfs.ErrNotFound) {
				// Enough free blocks exist but not contiguously; take them
				// one at a time.
				need = 1
				start, err = fs.dataBitmap.findContiguous(
					searchStart, 1, fs.sb.FreeDataBlocksCount)
			}
			if err != nil {
				return err
			}

			if node.ExtentsCount >= ExtentsMax {
				return extentfs.ErrNoSpaceOnDevice.WithMessage(
					"file reached the extent cap")
			}

			fs.initializeRange(node, BlockNumber(start), need)
			fs.appendExtent(node, BlockNumber(start), need)

			added = uint64(need) * BlockSize
			if added > additional {
				added = additional
			}
		} else {
			// The tail block has room; the new bytes land in its
			// zero-initialized remainder with no allocation.
			leftover := BlockSize - node.Size%BlockSize
			added = leftover
			if added > additional {
				added = additional
			}
		}

		node.Size += added
		additional -= added
	}

	node.Mtime = time.Now()
	return nil
}

// shrinkFile removes `unwanted` bytes from the end of the file, releasing
// each tail block as it empties and trimming the extent list (and the
// extent-pointer block once no extents remain).
//
// Shrinking a file with no extents or size zero fails with
// [extentfs.ErrNoSpaceOnDevice]. The errno is surprising for this condition
// but is retained for compatibility with existing images' tooling.
func (fs *FileSystem) shrinkFile(node *Inode, unwanted uint64) error {
	if !node.HasExtentBlock() || node.ExtentsCount == 0 || node.Size == 0 {
		return extentfs.ErrNoSpaceOnDevice.WithMessage(
			"cannot shrink an empty file")
	}

	for unwanted > 0 {
		tail := node.Size % BlockSize
		if tail == 0 {
			tail = BlockSize
		}
		drop := tail
		if drop > unwanted {
			drop = unwanted
		}
		node.Size -= drop
		unwanted -= drop

		if node.Size%BlockSize == 0 {
			// The tail block emptied.
			fs.freeDataBlock(node, fs.lastDataBlock(node))
			fs.shrinkTailExtent(node)
		}
	}

	node.Mtime = time.Now()
	return nil
}
