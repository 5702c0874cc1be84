package exfs

import (
	"github.com/dargueta/extentfs"
)

// extentSlot returns the bytes of extent `index` inside the inode's
// extent-pointer block.
func (fs *FileSystem) extentSlot(node *Inode, index uint32) []byte {
	block := fs.dataBlock(node.ExtentBlock())
	offset := index * ExtentSize
	return block[offset : offset+ExtentSize]
}

// extentAt decodes extent `index` of the inode.
func (fs *FileSystem) extentAt(node *Inode, index uint32) RawExtent {
	var ext RawExtent
	decodeRecord(fs.extentSlot(node, index), &ext)
	return ext
}

// Extents returns a copy of the inode's extent list, in on-disk order.
func (fs *FileSystem) Extents(node *Inode) []RawExtent {
	if !node.HasExtentBlock() {
		return nil
	}
	extents := make([]RawExtent, node.ExtentsCount)
	for i := uint32(0); i < node.ExtentsCount; i++ {
		extents[i] = fs.extentAt(node, i)
	}
	return extents
}

// ensureExtentBlock lazily allocates the inode's extent-pointer block. The
// block is charged to the inode like any other and zeroed so every extent
// slot starts empty. No-op when the block already exists.
func (fs *FileSystem) ensureExtentBlock(node *Inode) error {
	if node.HasExtentBlock() {
		return nil
	}
	if fs.sb.FreeDataBlocksCount < 1 {
		return extentfs.ErrNoSpaceOnDevice.WithMessage(
			"no free block for an extent-pointer block")
	}

	index, err := fs.dataBitmap.allocate()
	if err != nil {
		return err
	}
	node.ExtentsBlk = int32(index)
	node.UsedBlocks++
	fs.sb.FreeDataBlocksCount--

	block := fs.dataBlock(BlockNumber(index))
	for i := range block {
		block[i] = 0
	}
	return nil
}

// appendExtent records a new extent at the tail of the inode's extent list.
// The caller must have verified that the list is below ExtentsMax.
func (fs *FileSystem) appendExtent(node *Inode, start BlockNumber, count uint32) {
	ext := RawExtent{Start: uint32(start), Count: count}
	encodeRecord(fs.extentSlot(node, node.ExtentsCount), &ext)
	node.ExtentsCount++
}

// shrinkTailExtent drops one block from the trailing extent, removing the
// extent when it empties. When the last extent goes away the extent-pointer
// block is released too and the inode reverts to the no-extent-block state.
// Callers invoke this after freeing the trailing extent's last data block.
func (fs *FileSystem) shrinkTailExtent(node *Inode) {
	slot := fs.extentSlot(node, node.ExtentsCount-1)
	var ext RawExtent
	decodeRecord(slot, &ext)

	if ext.Count == 1 {
		node.ExtentsCount--
	} else {
		ext.Count--
		encodeRecord(slot, &ext)
	}

	if node.ExtentsCount == 0 {
		fs.freeDataBlock(node, node.ExtentBlock())
		node.ExtentsBlk = NoExtentBlock
	}
}

// releaseBody frees every data block the inode owns: all extents, then the
// extent-pointer block itself. The inode's size field is left to the caller.
func (fs *FileSystem) releaseBody(node *Inode) {
	if !node.HasExtentBlock() {
		return
	}
	for i := uint32(0); i < node.ExtentsCount; i++ {
		ext := fs.extentAt(node, i)
		for j := uint32(0); j < ext.Count; j++ {
			fs.freeDataBlock(node, BlockNumber(ext.Start+j))
		}
	}
	fs.freeDataBlock(node, node.ExtentBlock())
	node.ExtentsBlk = NoExtentBlock
	node.ExtentsCount = 0
}
