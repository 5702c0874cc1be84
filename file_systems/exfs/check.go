package exfs

import (
	"fmt"

	bitmap "github.com/boljen/go-bitmap"
	"github.com/hashicorp/go-multierror"
)

// Check validates the mounted image against the format's invariants and
// returns every violation found, not just the first:
//
//   - superblock free counters agree with the bitmap popcounts;
//   - each allocated inode's used-block count equals its extent blocks plus
//     one for the extent-pointer block when present;
//   - extent lists stay within the extent cap and reference only blocks
//     marked allocated in the data bitmap;
//   - no two live extents (or extent-pointer blocks) overlap;
//   - directory sizes are whole multiples of the dentry size;
//   - non-empty files fit their block charge.
//
// A nil result means the image is consistent.
func (fs *FileSystem) Check() error {
	var result *multierror.Error

	freeInodes := fs.sb.InodesCount - fs.inodeBitmap.popcount()
	if freeInodes != fs.sb.FreeInodesCount {
		result = multierror.Append(result, fmt.Errorf(
			"free inode counter is %d but the bitmap says %d",
			fs.sb.FreeInodesCount, freeInodes))
	}
	freeData := fs.sb.DataBlocksCount - fs.dataBitmap.popcount()
	if freeData != fs.sb.FreeDataBlocksCount {
		result = multierror.Append(result, fmt.Errorf(
			"free data block counter is %d but the bitmap says %d",
			fs.sb.FreeDataBlocksCount, freeData))
	}

	// referenced tracks which data blocks are claimed by some inode, to
	// catch extents that overlap each other.
	referenced := bitmap.New(int(fs.sb.DataBlocksCount))

	claim := func(owner Inumber, bn uint32) {
		if bn >= fs.sb.DataBlocksCount {
			result = multierror.Append(result, fmt.Errorf(
				"inode %d references data block %d beyond the data region",
				owner, bn))
			return
		}
		if referenced.Get(int(bn)) {
			result = multierror.Append(result, fmt.Errorf(
				"data block %d is claimed by more than one extent (inode %d)",
				bn, owner))
		}
		referenced.Set(int(bn), true)
		if !fs.dataBitmap.isSet(bn) {
			result = multierror.Append(result, fmt.Errorf(
				"inode %d references data block %d, which is free in the bitmap",
				owner, bn))
		}
	}

	for num := uint32(0); num < fs.sb.InodesCount; num++ {
		if !fs.inodeBitmap.isSet(num) {
			continue
		}
		node := fs.readInode(Inumber(num))

		bodyBlocks := uint32(0)
		if node.HasExtentBlock() {
			claim(node.Num, uint32(node.ExtentBlock()))
			if node.ExtentsCount > ExtentsMax {
				result = multierror.Append(result, fmt.Errorf(
					"inode %d has %d extents, over the cap of %d",
					num, node.ExtentsCount, ExtentsMax))
				continue
			}
			for _, ext := range fs.Extents(node) {
				for j := uint32(0); j < ext.Count; j++ {
					claim(node.Num, ext.Start+j)
				}
				bodyBlocks += ext.Count
			}
		} else if node.ExtentsCount != 0 {
			result = multierror.Append(result, fmt.Errorf(
				"inode %d has %d extents but no extent-pointer block",
				num, node.ExtentsCount))
		}

		charged := bodyBlocks
		if node.HasExtentBlock() {
			charged++
		}
		if node.UsedBlocks != charged {
			result = multierror.Append(result, fmt.Errorf(
				"inode %d charges %d blocks but owns %d",
				num, node.UsedBlocks, charged))
		}

		if node.IsDir() {
			if node.Size%DentrySize != 0 {
				result = multierror.Append(result, fmt.Errorf(
					"directory inode %d has size %d, not a dentry multiple",
					num, node.Size))
			}
		}
		if node.Size > uint64(bodyBlocks)*BlockSize {
			result = multierror.Append(result, fmt.Errorf(
				"inode %d has size %d but only %d body blocks",
				num, node.Size, bodyBlocks))
		}
	}

	if !fs.inodeBitmap.isSet(uint32(RootInumber)) {
		result = multierror.Append(result,
			fmt.Errorf("root inode is not allocated"))
	} else if root := fs.readInode(RootInumber); !root.IsDir() || root.Links < 2 {
		result = multierror.Append(result,
			fmt.Errorf("root inode is not a directory with at least two links"))
	}

	return result.ErrorOrNil()
}
