package exfs

import (
	"bytes"
	"encoding/binary"

	"github.com/noxer/bytewriter"
)

// BlockSize is the unit of space allocation, in bytes. Every metadata
// partition (superblock, bitmaps, inode table) occupies an integral number
// of blocks.
const BlockSize = 4096

// Magic identifies a formatted image. It occupies the first eight bytes of
// the superblock.
const Magic uint64 = 0xC5C369A1C5C369A1

// NameMax is the maximum length of a path component, including the NUL
// terminator that pads the on-disk record.
const NameMax = 252

// PathMax is the maximum length of a path accepted by the driver.
const PathMax = 4096

// ExtentsMax is the maximum number of extents a single inode may own. An
// extent-pointer block has room for exactly BlockSize / ExtentSize = 512
// entries, so the cap and the block capacity coincide.
const ExtentsMax = 512

// InodeSize is the size of one on-disk inode record. A block holds an
// integral number of inodes.
const InodeSize = 64

// DentrySize is the size of one on-disk directory entry.
const DentrySize = 256

// DentriesPerBlock is the number of directory entries a data block can hold.
const DentriesPerBlock = BlockSize / DentrySize

// ExtentSize is the size of one on-disk extent record.
const ExtentSize = 8

// NoExtentBlock is the on-disk sentinel for "this inode owns no
// extent-pointer block".
const NoExtentBlock int32 = -1

// BlockNumber indexes a block within the data region (block 0 is the first
// data block, not the superblock).
type BlockNumber uint32

// Inumber indexes an inode in the inode table. The root directory is always
// inode 0.
type Inumber uint32

// RootInumber is the inode number of the root directory.
const RootInumber Inumber = 0

// RawSuperblock is the on-disk superblock record, stored little-endian at
// the start of block 0. All layout pointers are absolute block numbers so
// the format is self-describing.
type RawSuperblock struct {
	Magic               uint64
	Size                uint64
	InodesCount         uint32
	BlocksCount         uint32
	DataBlocksCount     uint32
	FreeInodesCount     uint32
	FreeDataBlocksCount uint32
	InodeBitmapBlk      uint32
	DataBitmapBlk       uint32
	InodeTableBlk       uint32
	FirstDataBlk        uint32
	InodeSize           uint64
	UsedDirsCount       uint32
}

// RawInode is the on-disk inode record. Exactly InodeSize bytes; a block
// holds an integral number of these.
type RawInode struct {
	Mode         uint32
	Links        uint32
	Size         uint64
	MtimeSec     int64
	MtimeNsec    uint32
	Index        uint32
	UsedBlocks   uint32
	ExtentsBlk   int32
	ExtentsCount uint32
	Padding      [20]byte
}

// RawExtent is a contiguous run of data blocks: `Count` blocks beginning at
// data block `Start`.
type RawExtent struct {
	Start uint32
	Count uint32
}

// RawDentry is the fixed-size on-disk directory entry: an inode number
// followed by a NUL-terminated name.
type RawDentry struct {
	Ino  uint32
	Name [NameMax]byte
}

// decodeRecord reads a little-endian record from the start of `data`.
func decodeRecord(data []byte, record any) {
	binary.Read(bytes.NewReader(data), binary.LittleEndian, record)
}

// encodeRecord writes a little-endian record into `buf`. The buffer is sized
// by the on-disk layout, so an encoding that would overflow it indicates a
// record/layout mismatch and panics rather than corrupting a neighbor.
func encodeRecord(buf []byte, record any) {
	writer := bytewriter.New(buf)
	err := binary.Write(writer, binary.LittleEndian, record)
	if err != nil {
		panic("on-disk record does not fit its layout slot: " + err.Error())
	}
}

// NameFromBytes converts an on-disk NUL-padded name to a string.
func NameFromBytes(raw []byte) string {
	end := bytes.IndexByte(raw, 0)
	if end < 0 {
		end = len(raw)
	}
	return string(raw[:end])
}
