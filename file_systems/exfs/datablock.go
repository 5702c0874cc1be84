package exfs

// dataBlock returns the image bytes of data block `bn`. Block numbers index
// the data region, not the image.
func (fs *FileSystem) dataBlock(bn BlockNumber) []byte {
	offset := int64(bn) * BlockSize
	return fs.dataRegion[offset : offset+BlockSize]
}

// initializeRange claims `count` contiguous data blocks starting at `start`,
// charges them to the inode, and zeroes their contents.
func (fs *FileSystem) initializeRange(node *Inode, start BlockNumber, count uint32) {
	fs.dataBitmap.setRange(uint32(start), count)
	node.UsedBlocks += count
	fs.sb.FreeDataBlocksCount -= count
	for i := uint32(0); i < count; i++ {
		block := fs.dataBlock(start + BlockNumber(i))
		for j := range block {
			block[j] = 0
		}
	}
}

// freeDataBlock releases a single data block charged to the inode.
func (fs *FileSystem) freeDataBlock(node *Inode, bn BlockNumber) {
	fs.dataBitmap.clear(uint32(bn))
	node.UsedBlocks--
	fs.sb.FreeDataBlocksCount++
}

// lastDataBlock returns the number of the last data block of the inode's
// body. For an empty body it returns the extent-pointer block number by
// convention; extension searches start one past this block, so the
// convention seeds the search right after the inode's newest metadata.
// Only valid when the inode owns an extent-pointer block.
func (fs *FileSystem) lastDataBlock(node *Inode) BlockNumber {
	if node.ExtentsCount == 0 {
		return node.ExtentBlock()
	}
	last := fs.extentAt(node, node.ExtentsCount-1)
	return BlockNumber(last.Start + last.Count - 1)
}

// pointerToOffset translates a byte offset in the file to an absolute offset
// into the data region by walking the inode's extents.
//
// When `offset` sits exactly on a block boundary, the returned position is
// one past the end of block offset/B − 1 rather than the start of block
// offset/B. The file engine relies on this: translating offset == size
// yields the past-the-end position of the file's last byte.
func (fs *FileSystem) pointerToOffset(node *Inode, offset uint64) int64 {
	if offset == 0 {
		first := fs.extentAt(node, 0)
		return int64(first.Start) * BlockSize
	}

	// The number of body blocks to walk past to reach the byte.
	blocksToWalk := offset / BlockSize
	if offset%BlockSize != 0 {
		blocksToWalk++
	}

	walked := uint64(0)
	for i := uint32(0); i < node.ExtentsCount; i++ {
		ext := fs.extentAt(node, i)
		if walked+uint64(ext.Count) < blocksToWalk {
			walked += uint64(ext.Count)
			continue
		}
		bn := BlockNumber(ext.Start + uint32(blocksToWalk-walked) - 1)
		inBlock := offset % BlockSize
		if inBlock == 0 {
			inBlock = BlockSize
		}
		return int64(bn)*BlockSize + int64(inBlock)
	}

	// Unreachable for offsets within the file body; the callers bound
	// `offset` by the file size.
	return int64(fs.lastDataBlock(node))*BlockSize + BlockSize
}

// byteLocation returns the absolute data-region offset of the byte at
// `offset`, without the past-the-end boundary convention of
// pointerToOffset. `offset` must be strictly inside the file body.
func (fs *FileSystem) byteLocation(node *Inode, offset uint64) int64 {
	blockIndex := offset / BlockSize
	walked := uint64(0)
	for i := uint32(0); i < node.ExtentsCount; i++ {
		ext := fs.extentAt(node, i)
		if walked+uint64(ext.Count) <= blockIndex {
			walked += uint64(ext.Count)
			continue
		}
		bn := BlockNumber(ext.Start + uint32(blockIndex-walked))
		return int64(bn)*BlockSize + int64(offset%BlockSize)
	}
	return int64(fs.lastDataBlock(node)) * BlockSize
}
