// Package driver exposes a mounted file system to the kernel bridge as a
// dispatch table of named operations, translating driver errors into errno
// values and logging each path-based call.
package driver

import (
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/dargueta/extentfs"
	"github.com/dargueta/extentfs/file_systems/exfs"
	"github.com/dargueta/extentfs/imagefile"
)

// Options configures a mount.
type Options struct {
	// ReadOnly rejects every mutating operation with EROFS.
	ReadOnly bool
	// Check validates the image's invariants before serving operations.
	Check bool
	// Logger receives per-operation debug logging. Nil uses the standard
	// logrus logger.
	Logger *logrus.Logger
}

// Dispatcher owns one mounted image and serves the bridge's operations
// against it, one at a time.
type Dispatcher struct {
	fs       *exfs.FileSystem
	image    *imagefile.Image
	readOnly bool
	log      *logrus.Logger
}

// Mount attaches an image and prepares the dispatch surface. The image must
// already be formatted; a bad superblock fails with
// [extentfs.ErrInvalidImage].
func Mount(image *imagefile.Image, opts Options) (*Dispatcher, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	fs, err := exfs.Mount(image.Data())
	if err != nil {
		return nil, err
	}

	if opts.Check {
		err = fs.Check()
		if err != nil {
			return nil, extentfs.ErrInvalidImage.WrapError(err)
		}
	}

	stat := fs.Statfs()
	log.WithFields(logrus.Fields{
		"blocks":      stat.TotalBlocks,
		"blocks_free": stat.BlocksFree,
		"inodes":      stat.Files,
		"inodes_free": stat.FilesFree,
		"read_only":   opts.ReadOnly,
	}).Info("mounted image")

	return &Dispatcher{
		fs:       fs,
		image:    image,
		readOnly: opts.ReadOnly,
		log:      log,
	}, nil
}

// Errno converts an operation error to the errno value reported to the
// kernel. A nil error is 0.
func Errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	return extentfs.ErrnoOf(err)
}

// finish logs the outcome of one operation and converts its error.
func (d *Dispatcher) finish(op, path string, err error) syscall.Errno {
	errno := Errno(err)
	entry := d.log.WithFields(logrus.Fields{"op": op, "path": path})
	if errno != 0 {
		entry.WithField("errno", int(errno)).Debug(err.Error())
	} else {
		entry.Debug("ok")
	}
	return errno
}

// Statfs reports the file system statistics.
func (d *Dispatcher) Statfs() extentfs.FSStat {
	return d.fs.Statfs()
}

// Getattr stats the object at `path`.
func (d *Dispatcher) Getattr(path string) (extentfs.FileStat, syscall.Errno) {
	stat, err := d.fs.Getattr(path)
	return stat, d.finish("getattr", path, err)
}

// Readdir streams the entry names of the directory at `path` into `fill`.
func (d *Dispatcher) Readdir(path string, fill extentfs.DirFiller) syscall.Errno {
	return d.finish("readdir", path, d.fs.Readdir(path, fill))
}

// Mkdir creates a directory.
func (d *Dispatcher) Mkdir(path string, mode uint32) syscall.Errno {
	if d.readOnly {
		return d.finish("mkdir", path, extentfs.ErrReadOnlyFileSystem)
	}
	return d.finish("mkdir", path, d.fs.Mkdir(path, mode))
}

// Rmdir removes an empty directory.
func (d *Dispatcher) Rmdir(path string) syscall.Errno {
	if d.readOnly {
		return d.finish("rmdir", path, extentfs.ErrReadOnlyFileSystem)
	}
	return d.finish("rmdir", path, d.fs.Rmdir(path))
}

// Create makes an empty regular file.
func (d *Dispatcher) Create(path string, mode uint32) syscall.Errno {
	if d.readOnly {
		return d.finish("create", path, extentfs.ErrReadOnlyFileSystem)
	}
	return d.finish("create", path, d.fs.Create(path, mode))
}

// Unlink removes a file.
func (d *Dispatcher) Unlink(path string) syscall.Errno {
	if d.readOnly {
		return d.finish("unlink", path, extentfs.ErrReadOnlyFileSystem)
	}
	return d.finish("unlink", path, d.fs.Unlink(path))
}

// Utimens sets the modification time of the object at `path`.
func (d *Dispatcher) Utimens(path string, times [2]extentfs.Timespec) syscall.Errno {
	if d.readOnly {
		return d.finish("utimens", path, extentfs.ErrReadOnlyFileSystem)
	}
	return d.finish("utimens", path, d.fs.Utimens(path, times))
}

// Truncate resizes the file at `path`.
func (d *Dispatcher) Truncate(path string, size int64) syscall.Errno {
	if d.readOnly {
		return d.finish("truncate", path, extentfs.ErrReadOnlyFileSystem)
	}
	return d.finish("truncate", path, d.fs.Truncate(path, size))
}

// Read copies file bytes into `buf` and returns the count read.
func (d *Dispatcher) Read(path string, buf []byte, offset int64) (int, syscall.Errno) {
	n, err := d.fs.Read(path, buf, offset)
	return n, d.finish("read", path, err)
}

// Write copies `buf` into the file and returns the count written.
func (d *Dispatcher) Write(path string, buf []byte, offset int64) (int, syscall.Errno) {
	if d.readOnly {
		return 0, d.finish("write", path, extentfs.ErrReadOnlyFileSystem)
	}
	n, err := d.fs.Write(path, buf, offset)
	return n, d.finish("write", path, err)
}

// Destroy detaches the file system and flushes and releases the image.
func (d *Dispatcher) Destroy() error {
	d.fs.Destroy()
	err := d.image.Close()
	if err != nil {
		d.log.WithError(err).Error("flushing image failed")
		return err
	}
	d.log.Info("unmounted image")
	return nil
}
