package exfs

import (
	"fmt"

	"github.com/dargueta/extentfs"
)

// A directory body is a dense packed array of fixed-size dentries. The entry
// count is size / DentrySize, slots fill front to back with no holes, and
// removal compacts by swapping the victim with the last entry.

// dentrySlot returns the bytes of dentry slot `slot` inside data block `bn`.
func (fs *FileSystem) dentrySlot(bn BlockNumber, slot uint32) []byte {
	block := fs.dataBlock(bn)
	offset := slot * DentrySize
	return block[offset : offset+DentrySize]
}

// bodyBlock resolves body block `index` (the index-th block of the
// directory's content, in extent order) to its data-region block number.
func (fs *FileSystem) bodyBlock(node *Inode, index uint32) BlockNumber {
	walked := uint32(0)
	for i := uint32(0); i < node.ExtentsCount; i++ {
		ext := fs.extentAt(node, i)
		if walked+ext.Count <= index {
			walked += ext.Count
			continue
		}
		return BlockNumber(ext.Start + (index - walked))
	}
	panic(fmt.Sprintf("directory body block %d out of range", index))
}

// appendDentry writes a new entry for `ino` into the next free slot, which
// lives in data block `db`, and grows the directory by one entry. The name
// is stored NUL-terminated and truncated to the on-disk field.
func (fs *FileSystem) appendDentry(parent *Inode, db BlockNumber, ino Inumber, name string) {
	slot := uint32(parent.Size%BlockSize) / DentrySize
	raw := RawDentry{Ino: uint32(ino)}
	copy(raw.Name[:NameMax-1], name)
	encodeRecord(fs.dentrySlot(db, slot), &raw)
	parent.Size += DentrySize
}

// insertDentry adds an entry to the directory, allocating the extent-pointer
// block and/or a fresh data block when the current tail block is full. New
// blocks are claimed as close past the directory's tail as possible.
func (fs *FileSystem) insertDentry(parent *Inode, ino Inumber, name string) error {
	err := fs.ensureExtentBlock(parent)
	if err != nil {
		return err
	}

	if parent.Size%BlockSize == 0 {
		// The tail block is full (or the directory is empty): claim a new
		// block right after the tail to keep the body contiguous.
		searchStart := uint32(fs.lastDataBlock(parent)) + 1
		db, err := fs.dataBitmap.findContiguous(searchStart, 1, fs.sb.FreeDataBlocksCount)
		if err != nil {
			return err
		}
		if parent.ExtentsCount >= ExtentsMax {
			return extentfs.ErrNoSpaceOnDevice.WithMessage(
				"directory reached the extent cap")
		}
		fs.initializeRange(parent, BlockNumber(db), 1)
		fs.appendDentry(parent, BlockNumber(db), ino, name)
		fs.appendExtent(parent, BlockNumber(db), 1)
		return nil
	}

	fs.appendDentry(parent, fs.lastDataBlock(parent), ino, name)
	return nil
}

// forEachDentry visits the directory's populated dentry slots in body order:
// at most DentriesPerBlock per block and size/DentrySize in total. The visit
// callback receives the slot's bytes; returning false stops the walk early.
func (fs *FileSystem) forEachDentry(node *Inode, visit func(slot []byte) bool) bool {
	remaining := uint32(node.Size / DentrySize)
	if remaining == 0 || !node.HasExtentBlock() {
		return true
	}

	for i := uint32(0); i < node.ExtentsCount; i++ {
		ext := fs.extentAt(node, i)
		for j := uint32(0); j < ext.Count; j++ {
			inThisBlock := remaining
			if inThisBlock > DentriesPerBlock {
				inThisBlock = DentriesPerBlock
			}
			for slot := uint32(0); slot < inThisBlock; slot++ {
				if !visit(fs.dentrySlot(BlockNumber(ext.Start+j), slot)) {
					return false
				}
			}
			remaining -= inThisBlock
			if remaining == 0 {
				return true
			}
		}
	}
	return true
}

// iterateNames invokes `fill` with each entry name in the directory. When
// the filler rejects a name its buffer is full, and the iteration stops with
// [extentfs.ErrOutOfMemory].
func (fs *FileSystem) iterateNames(node *Inode, fill extentfs.DirFiller) error {
	completed := fs.forEachDentry(node, func(slot []byte) bool {
		var entry RawDentry
		decodeRecord(slot, &entry)
		return fill(NameFromBytes(entry.Name[:]))
	})
	if !completed {
		return extentfs.ErrOutOfMemory.WithMessage("readdir buffer is full")
	}
	return nil
}

// lookupDentry finds the entry named `name` and returns its inode number.
// Searching a non-directory fails with [extentfs.ErrNotADirectory]; an
// absent name fails with [extentfs.ErrNotFound].
func (fs *FileSystem) lookupDentry(node *Inode, name string) (Inumber, error) {
	if !node.IsDir() {
		return 0, extentfs.ErrNotADirectory.WithMessage(
			fmt.Sprintf("inode %d is not a directory", node.Num))
	}
	if !node.HasExtentBlock() {
		return 0, extentfs.ErrNotFound.WithMessage(
			fmt.Sprintf("no dentry named %q", name))
	}

	found := Inumber(0)
	matched := false
	fs.forEachDentry(node, func(slot []byte) bool {
		var entry RawDentry
		decodeRecord(slot, &entry)
		if NameFromBytes(entry.Name[:]) == name {
			found = Inumber(entry.Ino)
			matched = true
			return false
		}
		return true
	})

	if !matched {
		return 0, extentfs.ErrNotFound.WithMessage(
			fmt.Sprintf("no dentry named %q", name))
	}
	return found, nil
}

// lastDentrySlot returns the bytes of the directory's final populated slot.
func (fs *FileSystem) lastDentrySlot(node *Inode) []byte {
	inLastBlock := node.Size % BlockSize
	if inLastBlock == 0 {
		inLastBlock = BlockSize
	}
	lastSlot := uint32(inLastBlock/DentrySize) - 1
	return fs.dentrySlot(fs.lastDataBlock(node), lastSlot)
}

// removeDentry deletes the entry named `name` by overwriting it with the
// directory's last entry and shrinking the size by one slot, preserving the
// dense-array invariant without a free list. The directory is untouched if
// the name is absent.
func (fs *FileSystem) removeDentry(node *Inode, name string) error {
	var victim []byte
	fs.forEachDentry(node, func(slot []byte) bool {
		var entry RawDentry
		decodeRecord(slot, &entry)
		if NameFromBytes(entry.Name[:]) == name {
			victim = slot
			return false
		}
		return true
	})
	if victim == nil {
		return extentfs.ErrNotFound.WithMessage(
			fmt.Sprintf("no dentry named %q", name))
	}

	copy(victim, fs.lastDentrySlot(node))
	node.Size -= DentrySize
	return nil
}

// removeDentryAndTrim removes an entry and, when that empties the trailing
// block, releases the block and shrinks the extent list.
func (fs *FileSystem) removeDentryAndTrim(parent *Inode, name string) error {
	releaseTail := parent.Size%BlockSize == DentrySize

	err := fs.removeDentry(parent, name)
	if err != nil {
		return err
	}
	if releaseTail {
		fs.freeDataBlock(parent, fs.lastDataBlock(parent))
		fs.shrinkTailExtent(parent)
	}
	return nil
}
