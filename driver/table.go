package driver

import (
	"syscall"

	"github.com/dargueta/extentfs"
)

// OperationTable is the dispatch table the bridge installs its callbacks
// from: one entry per operation the file system serves. Entries the bridge
// does not recognize are ignored.
type OperationTable struct {
	Statfs   func() extentfs.FSStat
	Getattr  func(path string) (extentfs.FileStat, syscall.Errno)
	Readdir  func(path string, fill extentfs.DirFiller) syscall.Errno
	Mkdir    func(path string, mode uint32) syscall.Errno
	Rmdir    func(path string) syscall.Errno
	Create   func(path string, mode uint32) syscall.Errno
	Unlink   func(path string) syscall.Errno
	Utimens  func(path string, times [2]extentfs.Timespec) syscall.Errno
	Truncate func(path string, size int64) syscall.Errno
	Read     func(path string, buf []byte, offset int64) (int, syscall.Errno)
	Write    func(path string, buf []byte, offset int64) (int, syscall.Errno)
	Destroy  func() error
}

// Operations builds the dispatch table for this mount.
func (d *Dispatcher) Operations() OperationTable {
	return OperationTable{
		Statfs:   d.Statfs,
		Getattr:  d.Getattr,
		Readdir:  d.Readdir,
		Mkdir:    d.Mkdir,
		Rmdir:    d.Rmdir,
		Create:   d.Create,
		Unlink:   d.Unlink,
		Utimens:  d.Utimens,
		Truncate: d.Truncate,
		Read:     d.Read,
		Write:    d.Write,
		Destroy:  d.Destroy,
	}
}
