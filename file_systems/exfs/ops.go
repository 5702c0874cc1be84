package exfs

import (
	"time"

	"github.com/dargueta/extentfs"
)

// The operations in this file are the driver's public surface, dispatched by
// the kernel bridge. Each runs to completion before the next begins; a
// returned error is final. Failures partway through a mutation are not
// rolled back (see Write).

// Getattr fills a stat record for the file or directory at `path`.
func (fs *FileSystem) Getattr(path string) (extentfs.FileStat, error) {
	if len(path) >= PathMax {
		return extentfs.FileStat{}, extentfs.ErrNameTooLong.WithMessage(path[:64] + "...")
	}

	num, err := fs.resolvePath(path)
	if err != nil {
		return extentfs.FileStat{}, err
	}
	return fs.readInode(num).Stat(), nil
}

// Readdir emits every entry of the directory at `path` through `fill`. The
// "." and ".." entries are synthesized first; they have no on-disk dentries.
func (fs *FileSystem) Readdir(path string, fill extentfs.DirFiller) error {
	num, err := fs.resolvePath(path)
	if err != nil {
		return err
	}

	if !fill(".") || !fill("..") {
		return extentfs.ErrOutOfMemory.WithMessage("readdir buffer is full")
	}
	return fs.iterateNames(fs.readInode(num), fill)
}

// Mkdir creates a directory at `path`. The new inode starts with two links
// (its parent's dentry and its own "."); the parent gains a link for the
// child's "..".
func (fs *FileSystem) Mkdir(path string, mode uint32) error {
	defer fs.commitSuperblock()

	dir, err := fs.allocateInode(mode&extentfs.PermMask|extentfs.S_IFDIR, 2)
	if err != nil {
		return err
	}

	parentNum, err := fs.resolveParent(path)
	if err != nil {
		return err
	}
	parent := fs.readInode(parentNum)

	err = fs.insertDentry(parent, dir.Num, SplitLastComponent(path))
	if err != nil {
		return err
	}

	parent.Links++
	parent.Mtime = time.Now()
	fs.writeInode(parent)
	fs.sb.UsedDirsCount++
	return nil
}

// Rmdir removes the empty directory at `path`. A directory with entries
// fails with [extentfs.ErrDirectoryNotEmpty].
func (fs *FileSystem) Rmdir(path string) error {
	defer fs.commitSuperblock()

	dirNum, err := fs.resolvePath(path)
	if err != nil {
		return err
	}
	dir := fs.readInode(dirNum)
	if dir.Size != 0 {
		return extentfs.ErrDirectoryNotEmpty.WithMessage(path)
	}

	parentNum, err := fs.resolveParent(path)
	if err != nil {
		return err
	}
	parent := fs.readInode(parentNum)

	fs.releaseBody(dir)
	fs.writeInode(dir)
	fs.freeInode(dirNum)

	err = fs.removeDentryAndTrim(parent, SplitLastComponent(path))
	if err != nil {
		return err
	}

	parent.Links--
	parent.Mtime = time.Now()
	fs.writeInode(parent)
	fs.sb.UsedDirsCount--
	return nil
}

// Create makes an empty regular file at `path`.
func (fs *FileSystem) Create(path string, mode uint32) error {
	defer fs.commitSuperblock()

	file, err := fs.allocateInode(mode&extentfs.PermMask|extentfs.S_IFREG, 1)
	if err != nil {
		return err
	}

	parentNum, err := fs.resolveParent(path)
	if err != nil {
		return err
	}
	parent := fs.readInode(parentNum)

	err = fs.insertDentry(parent, file.Num, SplitLastComponent(path))
	if err != nil {
		return err
	}

	parent.Mtime = time.Now()
	fs.writeInode(parent)
	return nil
}

// Unlink removes the file at `path`, releasing its body and inode.
func (fs *FileSystem) Unlink(path string) error {
	defer fs.commitSuperblock()

	fileNum, err := fs.resolvePath(path)
	if err != nil {
		return err
	}
	file := fs.readInode(fileNum)

	parentNum, err := fs.resolveParent(path)
	if err != nil {
		return err
	}
	parent := fs.readInode(parentNum)

	fs.releaseBody(file)
	fs.writeInode(file)
	fs.freeInode(fileNum)

	err = fs.removeDentryAndTrim(parent, SplitLastComponent(path))
	if err != nil {
		return err
	}

	parent.Mtime = time.Now()
	fs.writeInode(parent)
	return nil
}

// Utimens sets the modification timestamp of the file or directory at
// `path`. A nanoseconds field of [extentfs.UtimeNow] means the current time.
// Only the second element of `times` (the modification time) is honored;
// the format does not store access times.
func (fs *FileSystem) Utimens(path string, times [2]extentfs.Timespec) error {
	num, err := fs.resolvePath(path)
	if err != nil {
		return err
	}

	node := fs.readInode(num)
	if times[1].Nsec == extentfs.UtimeNow {
		node.Mtime = time.Now()
	} else {
		node.Mtime = times[1].Time()
	}
	fs.writeInode(node)
	return nil
}

// Truncate sets the file at `path` to `size` bytes, extending over zeroes or
// shrinking and releasing blocks as needed. Setting the current size is a
// no-op.
func (fs *FileSystem) Truncate(path string, size int64) error {
	num, err := fs.resolvePath(path)
	if err != nil {
		return err
	}
	node := fs.readInode(num)

	newSize := uint64(size)
	if newSize == node.Size {
		return nil
	}

	if newSize > node.Size {
		err = fs.extendFile(node, newSize-node.Size)
	} else {
		err = fs.shrinkFile(node, node.Size-newSize)
	}

	// Block accounting changed even if the resize stopped early.
	fs.writeInode(node)
	fs.commitSuperblock()
	return err
}

// Read copies file content at `offset` into `buf` and returns the byte
// count. Reading at or past EOF, or from a file with no body, returns 0.
// The bridge guarantees the requested range lies within a single block.
func (fs *FileSystem) Read(path string, buf []byte, offset int64) (int, error) {
	num, err := fs.resolvePath(path)
	if err != nil {
		return 0, err
	}
	node := fs.readInode(num)

	if uint64(offset) > node.Size || node.Size == 0 ||
		!node.HasExtentBlock() || node.ExtentsCount == 0 {
		return 0, nil
	}

	eof := fs.pointerToOffset(node, node.Size)
	at := fs.pointerToOffset(node, uint64(offset))
	readable := eof - at
	if readable <= 0 {
		return 0, nil
	}
	if readable > int64(len(buf)) {
		readable = int64(len(buf))
	}

	copy(buf, fs.dataRegion[at:at+readable])
	return int(readable), nil
}

// Write copies `buf` into the file at `offset`, extending the file first
// when the offset is past EOF (the gap reads back as zeroes) and then by
// len(buf) to reserve room. The bridge guarantees the written range lies
// within a single block.
//
// There is no atomic feasibility check across the two extensions: when the
// second one fails with [extentfs.ErrNoSpaceOnDevice], the hole extension is
// not undone and the file remains larger than before with a zero-filled
// tail. Callers observe either the full write or none of the data.
func (fs *FileSystem) Write(path string, buf []byte, offset int64) (int, error) {
	num, err := fs.resolvePath(path)
	if err != nil {
		return 0, err
	}
	node := fs.readInode(num)

	defer fs.commitSuperblock()

	if uint64(offset) > node.Size {
		err = fs.extendFile(node, uint64(offset)-node.Size)
		if err != nil {
			fs.writeInode(node)
			return 0, err
		}
	}

	err = fs.extendFile(node, uint64(len(buf)))
	if err != nil {
		fs.writeInode(node)
		return 0, err
	}

	if len(buf) > 0 {
		at := fs.byteLocation(node, uint64(offset))
		copy(fs.dataRegion[at:], buf)
	}

	node.Mtime = time.Now()
	fs.writeInode(node)
	return len(buf), nil
}
