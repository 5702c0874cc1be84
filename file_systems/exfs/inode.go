package exfs

import (
	"time"

	"github.com/dargueta/extentfs"
)

// Inode is the in-memory form of one inode record. Engines mutate it freely;
// the owning operation writes it back with writeInode exactly once.
type Inode struct {
	Num   Inumber
	Mode  uint32
	Links uint32
	Size  uint64
	Mtime time.Time
	// UsedBlocks counts every data block charged to this inode, including
	// its extent-pointer block when present.
	UsedBlocks   uint32
	ExtentsBlk   int32
	ExtentsCount uint32
}

// HasExtentBlock reports whether the inode owns an extent-pointer block.
func (node *Inode) HasExtentBlock() bool {
	return node.ExtentsBlk != NoExtentBlock
}

// ExtentBlock returns the data-region block number of the inode's
// extent-pointer block. Only valid when HasExtentBlock is true.
func (node *Inode) ExtentBlock() BlockNumber {
	return BlockNumber(node.ExtentsBlk)
}

// IsDir reports whether the inode describes a directory.
func (node *Inode) IsDir() bool {
	return node.Mode&extentfs.S_IFMT == extentfs.S_IFDIR
}

// Stat fills a bridge-facing stat record from the inode.
func (node *Inode) Stat() extentfs.FileStat {
	return extentfs.FileStat{
		InodeNumber:  uint64(node.Num),
		Nlinks:       uint64(node.Links),
		ModeFlags:    node.Mode,
		Size:         int64(node.Size),
		BlockSize:    BlockSize,
		NumBlocks:    int64(node.UsedBlocks) * (BlockSize / 512),
		LastModified: node.Mtime,
	}
}

// inodeSlot returns the inode-table bytes backing inode `num`.
func (fs *FileSystem) inodeSlot(num Inumber) []byte {
	offset := int64(num) * InodeSize
	return fs.inodeTable[offset : offset+InodeSize]
}

// readInode decodes inode `num` from the inode table.
func (fs *FileSystem) readInode(num Inumber) *Inode {
	var raw RawInode
	decodeRecord(fs.inodeSlot(num), &raw)
	return &Inode{
		Num:          Inumber(raw.Index),
		Mode:         raw.Mode,
		Links:        raw.Links,
		Size:         raw.Size,
		Mtime:        time.Unix(raw.MtimeSec, int64(raw.MtimeNsec)),
		UsedBlocks:   raw.UsedBlocks,
		ExtentsBlk:   raw.ExtentsBlk,
		ExtentsCount: raw.ExtentsCount,
	}
}

// writeInode encodes the inode back into its inode-table slot.
func (fs *FileSystem) writeInode(node *Inode) {
	raw := RawInode{
		Mode:         node.Mode,
		Links:        node.Links,
		Size:         node.Size,
		MtimeSec:     node.Mtime.Unix(),
		MtimeNsec:    uint32(node.Mtime.Nanosecond()),
		Index:        uint32(node.Num),
		UsedBlocks:   node.UsedBlocks,
		ExtentsBlk:   node.ExtentsBlk,
		ExtentsCount: node.ExtentsCount,
	}
	encodeRecord(fs.inodeSlot(node.Num), &raw)
}

// allocateInode claims a free inode slot, initializes it with the given mode
// and link count, and writes it out. Fails with [extentfs.ErrNoSpaceOnDevice]
// when every slot is taken.
func (fs *FileSystem) allocateInode(mode uint32, links uint32) (*Inode, error) {
	if fs.sb.FreeInodesCount < 1 {
		return nil, extentfs.ErrNoSpaceOnDevice.WithMessage("no free inodes")
	}

	index, err := fs.inodeBitmap.allocate()
	if err != nil {
		return nil, err
	}

	node := &Inode{
		Num:        Inumber(index),
		Mode:       mode,
		Links:      links,
		Size:       0,
		Mtime:      time.Now(),
		UsedBlocks: 0,
		ExtentsBlk: NoExtentBlock,
	}
	fs.writeInode(node)
	fs.sb.FreeInodesCount--
	return node, nil
}

// freeInode releases the inode's bitmap bit. The caller must already have
// released every data block the inode owned.
func (fs *FileSystem) freeInode(num Inumber) {
	fs.inodeBitmap.clear(uint32(num))
	fs.sb.FreeInodesCount++
}
