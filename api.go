// Package extentfs defines the platform-independent records and error surface
// shared by the exfs on-disk driver, the dispatch layer, and the command-line
// tools.
package extentfs

import (
	"time"
)

// FileStat is a platform-independent form of [syscall.Stat_t], reduced to the
// fields the file system actually stores. Fields the format has no room for
// (uid, gid, device numbers) are omitted rather than reported as zeroes.
type FileStat struct {
	InodeNumber uint64
	Nlinks      uint64
	// ModeFlags holds the raw POSIX mode bits (S_IFDIR/S_IFREG plus the
	// permission bits) exactly as stored in the inode.
	ModeFlags uint32
	Size      int64
	// BlockSize is the I/O unit of the file system, always one block.
	BlockSize int64
	// NumBlocks is measured in 512-byte units, the way stat(2) reports
	// st_blocks. It includes metadata blocks charged to the inode.
	NumBlocks    int64
	LastModified time.Time
}

// IsDir reports whether the stat describes a directory.
func (stat *FileStat) IsDir() bool {
	return stat.ModeFlags&S_IFMT == S_IFDIR
}

// IsFile reports whether the stat describes a regular file.
func (stat *FileStat) IsFile() bool {
	return stat.ModeFlags&S_IFMT == S_IFREG
}

// FSStat is a platform-independent form of [syscall.Statfs_t].
type FSStat struct {
	// BlockSize is the size of a logical block on the file system, in bytes.
	BlockSize int64
	// TotalBlocks is the total number of blocks on the disk image.
	TotalBlocks uint64
	// BlocksFree is the number of unallocated data blocks on the image.
	BlocksFree uint64
	// BlocksAvailable is the number of blocks available for use by user data.
	// This file system reserves nothing for privileged users, so it always
	// equals BlocksFree.
	BlocksAvailable uint64
	// Files is the total number of inode slots on the file system.
	Files uint64
	// FilesFree is the number of unallocated inode slots.
	FilesFree uint64
	// FilesAvailable always equals FilesFree; see BlocksAvailable.
	FilesAvailable uint64
	// MaxNameLength is the longest possible name for a directory entry, in
	// bytes, including the terminator.
	MaxNameLength int64
}

// DirFiller receives one directory entry name per call during a Readdir
// operation. It returns false when its buffer is full, which makes the
// iteration stop with [ErrOutOfMemory], mirroring the readdir contract of
// the kernel bridge.
type DirFiller func(name string) bool

// UtimeNow is the nanoseconds sentinel meaning "use the current time" in a
// Utimens call, equivalent to UTIME_NOW in utimensat(2).
const UtimeNow = (1 << 30) - 1

// Timespec is a (seconds, nanoseconds) timestamp as passed by the bridge to
// Utimens.
type Timespec struct {
	Sec  int64
	Nsec int64
}

// Time converts the timespec to a [time.Time] on the real-time clock.
func (ts Timespec) Time() time.Time {
	return time.Unix(ts.Sec, ts.Nsec)
}
