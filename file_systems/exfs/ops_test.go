package exfs_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dargueta/extentfs"
	"github.com/dargueta/extentfs/file_systems/exfs"
	dt "github.com/dargueta/extentfs/testing"
)

// listDir collects every name Readdir emits for a path.
func listDir(t *testing.T, fs *exfs.FileSystem, path string) []string {
	t.Helper()

	var names []string
	err := fs.Readdir(path, func(name string) bool {
		names = append(names, name)
		return true
	})
	require.NoError(t, err, "readdir %q failed", path)
	return names
}

func TestStatfsAfterFormat(t *testing.T) {
	fs := dt.MountFormatted(t, 256, 64) // 1 MiB image

	stat := fs.Statfs()
	assert.EqualValues(t, 4096, stat.BlockSize)
	assert.EqualValues(t, 256, stat.TotalBlocks)
	assert.EqualValues(t, 64, stat.Files)
	assert.EqualValues(t, 63, stat.FilesFree)
	assert.Equal(t, stat.BlocksFree, stat.BlocksAvailable)
	assert.EqualValues(t, 252, stat.MaxNameLength)
}

func TestMkdirAndReaddir(t *testing.T) {
	fs := dt.MountFormatted(t, 256, 64)

	require.NoError(t, fs.Mkdir("/a", 0o755))
	require.NoError(t, fs.Mkdir("/b", 0o755))
	require.NoError(t, fs.Mkdir("/a/c", 0o755))

	assert.Equal(t, []string{".", "..", "a", "b"}, listDir(t, fs, "/"))
	assert.Equal(t, []string{".", "..", "c"}, listDir(t, fs, "/a"))

	stat, err := fs.Getattr("/a")
	require.NoError(t, err)
	assert.True(t, stat.IsDir())
	assert.EqualValues(t, 3, stat.Nlinks, "two own links plus one from the subdirectory")

	rootStat, err := fs.Getattr("/")
	require.NoError(t, err)
	assert.True(t, rootStat.IsDir())
	assert.EqualValues(t, 4, rootStat.Nlinks)
}

func TestCreateWriteRead(t *testing.T) {
	fs := dt.MountFormatted(t, 256, 64)

	require.NoError(t, fs.Create("/f", 0o644))

	stat, err := fs.Getattr("/f")
	require.NoError(t, err)
	assert.True(t, stat.IsFile())
	assert.EqualValues(t, 0, stat.Size)
	assert.EqualValues(t, 1, stat.Nlinks)

	n, err := fs.Write("/f", []byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	out := make([]byte, 5)
	n, err = fs.Read("/f", out, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("hello"), out)

	stat, err = fs.Getattr("/f")
	require.NoError(t, err)
	assert.EqualValues(t, 5, stat.Size)
}

func TestWriteHoleZeroFills(t *testing.T) {
	fs := dt.MountFormatted(t, 256, 64)

	require.NoError(t, fs.Create("/g", 0o644))
	n, err := fs.Write("/g", []byte("Z"), 8192)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stat, err := fs.Getattr("/g")
	require.NoError(t, err)
	assert.EqualValues(t, 8193, stat.Size)

	// The hole reads back as zeros.
	out := make([]byte, 4096)
	n, err = fs.Read("/g", out, 0)
	require.NoError(t, err)
	assert.Equal(t, 4096, n)
	for i, b := range out {
		if b != 0 {
			t.Fatalf("hole byte %d is %#x, want 0", i, b)
		}
	}

	one := make([]byte, 1)
	n, err = fs.Read("/g", one, 8192)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.EqualValues(t, 'Z', one[0])
}

func TestReadPastEOFReturnsZero(t *testing.T) {
	fs := dt.MountFormatted(t, 256, 64)
	require.NoError(t, fs.Create("/f", 0o644))

	buf := make([]byte, 16)
	n, err := fs.Read("/f", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "reading an empty file returns no bytes")

	_, err = fs.Write("/f", []byte("data"), 0)
	require.NoError(t, err)

	n, err = fs.Read("/f", buf, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "reading past EOF returns no bytes")
}

func TestWriteAcrossBlockBoundaryAsTwoCalls(t *testing.T) {
	fs := dt.MountFormatted(t, 256, 64)
	require.NoError(t, fs.Create("/f", 0o644))
	require.NoError(t, fs.Truncate("/f", 4090))

	// The bridge splits a straddling write into per-block calls; each must
	// succeed on its own.
	n, err := fs.Write("/f", []byte("abcdef"), 4090)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	n, err = fs.Write("/f", []byte("ghijkl"), 4096)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	stat, err := fs.Getattr("/f")
	require.NoError(t, err)
	assert.EqualValues(t, 4102, stat.Size)

	out := make([]byte, 6)
	_, err = fs.Read("/f", out, 4090)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdef"), out)

	_, err = fs.Read("/f", out, 4096)
	require.NoError(t, err)
	assert.Equal(t, []byte("ghijkl"), out)
}

func TestTruncateAllocatesAndReleases(t *testing.T) {
	fs := dt.MountFormatted(t, 256, 64)

	require.NoError(t, fs.Create("/h", 0o644))
	freeAfterCreate := fs.Statfs().BlocksFree

	// Three data blocks plus the extent-pointer block.
	require.NoError(t, fs.Truncate("/h", 12288))
	assert.Equal(t, freeAfterCreate-4, fs.Statfs().BlocksFree)

	stat, err := fs.Getattr("/h")
	require.NoError(t, err)
	assert.EqualValues(t, 12288, stat.Size)
	assert.EqualValues(t, 4*8, stat.NumBlocks, "st_blocks counts 512-byte units")

	require.NoError(t, fs.Truncate("/h", 0))
	assert.Equal(t, freeAfterCreate, fs.Statfs().BlocksFree)

	stat, err = fs.Getattr("/h")
	require.NoError(t, err)
	assert.EqualValues(t, 0, stat.Size)
	assert.EqualValues(t, 0, stat.NumBlocks)
}

func TestTruncateIsIdempotent(t *testing.T) {
	fs := dt.MountFormatted(t, 256, 64)
	require.NoError(t, fs.Create("/f", 0o644))

	require.NoError(t, fs.Truncate("/f", 6000))
	statBefore := fs.Statfs()

	require.NoError(t, fs.Truncate("/f", 6000))
	assert.Equal(t, statBefore, fs.Statfs(), "repeating a truncate must change nothing")

	stat, err := fs.Getattr("/f")
	require.NoError(t, err)
	assert.EqualValues(t, 6000, stat.Size)
}

func TestMkdirRmdirRestoresCounters(t *testing.T) {
	fs := dt.MountFormatted(t, 256, 64)
	before := fs.Statfs()

	require.NoError(t, fs.Mkdir("/d", 0o755))
	require.NoError(t, fs.Rmdir("/d"))

	assert.Equal(t, before, fs.Statfs(),
		"mkdir followed by rmdir must restore every counter")

	_, err := fs.Getattr("/d")
	assert.True(t, errors.Is(err, extentfs.ErrNotFound))
}

func TestRmdirNonEmpty(t *testing.T) {
	fs := dt.MountFormatted(t, 256, 64)

	require.NoError(t, fs.Mkdir("/a", 0o755))
	require.NoError(t, fs.Mkdir("/a/c", 0o755))

	err := fs.Rmdir("/a")
	assert.True(t, errors.Is(err, extentfs.ErrDirectoryNotEmpty))

	// The refused removal must leave the tree untouched.
	_, err = fs.Getattr("/a/c")
	assert.NoError(t, err)

	require.NoError(t, fs.Rmdir("/a/c"))
	require.NoError(t, fs.Rmdir("/a"))
}

func TestUnlinkReleasesEverything(t *testing.T) {
	fs := dt.MountFormatted(t, 256, 64)

	require.NoError(t, fs.Create("/keep", 0o644))
	before := fs.Statfs()

	require.NoError(t, fs.Create("/f", 0o644))
	_, err := fs.Write("/f", []byte("payload"), 0)
	require.NoError(t, err)

	require.NoError(t, fs.Unlink("/f"))
	assert.Equal(t, before, fs.Statfs())

	_, err = fs.Getattr("/f")
	assert.True(t, errors.Is(err, extentfs.ErrNotFound))
}

func TestUtimens(t *testing.T) {
	fs := dt.MountFormatted(t, 256, 64)
	require.NoError(t, fs.Create("/f", 0o644))

	when := extentfs.Timespec{Sec: 1234567890, Nsec: 42}
	require.NoError(t, fs.Utimens("/f", [2]extentfs.Timespec{{}, when}))

	stat, err := fs.Getattr("/f")
	require.NoError(t, err)
	assert.True(t, stat.LastModified.Equal(time.Unix(1234567890, 42)))

	now := extentfs.Timespec{Nsec: extentfs.UtimeNow}
	require.NoError(t, fs.Utimens("/f", [2]extentfs.Timespec{{}, now}))

	stat, err = fs.Getattr("/f")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), stat.LastModified, 5*time.Second)
}

func TestDentryBlockFillAndRelease(t *testing.T) {
	fs := dt.MountFormatted(t, 256, 64)

	// Sixteen entries fill the root's first dentry block exactly.
	for i := 0; i < 16; i++ {
		require.NoError(t, fs.Mkdir(fmt.Sprintf("/d%02d", i), 0o755))
	}
	rootStat, err := fs.Getattr("/")
	require.NoError(t, err)
	assert.EqualValues(t, 16*256, rootStat.Size)
	assert.EqualValues(t, 2*8, rootStat.NumBlocks,
		"extent-pointer block plus one dentry block")

	// The seventeenth entry spills into a freshly allocated block.
	require.NoError(t, fs.Mkdir("/d16", 0o755))
	rootStat, err = fs.Getattr("/")
	require.NoError(t, err)
	assert.EqualValues(t, 17*256, rootStat.Size)
	assert.EqualValues(t, 3*8, rootStat.NumBlocks)

	// Removing the only entry in the trailing block releases the block.
	require.NoError(t, fs.Rmdir("/d16"))
	rootStat, err = fs.Getattr("/")
	require.NoError(t, err)
	assert.EqualValues(t, 16*256, rootStat.Size)
	assert.EqualValues(t, 2*8, rootStat.NumBlocks)
}

func TestRemoveCompactsBySwappingWithLast(t *testing.T) {
	fs := dt.MountFormatted(t, 256, 64)

	for _, name := range []string{"/a", "/b", "/c", "/d"} {
		require.NoError(t, fs.Create(name, 0o644))
	}
	require.NoError(t, fs.Unlink("/b"))

	// The last entry takes the vacated slot.
	assert.Equal(t, []string{".", "..", "a", "d", "c"}, listDir(t, fs, "/"))
}

func TestReaddirBufferFull(t *testing.T) {
	fs := dt.MountFormatted(t, 256, 64)
	require.NoError(t, fs.Mkdir("/a", 0o755))

	calls := 0
	err := fs.Readdir("/", func(name string) bool {
		calls++
		return calls < 3
	})
	assert.True(t, errors.Is(err, extentfs.ErrOutOfMemory))
}

func TestGetattrErrors(t *testing.T) {
	fs := dt.MountFormatted(t, 256, 64)

	_, err := fs.Getattr("/missing")
	assert.True(t, errors.Is(err, extentfs.ErrNotFound))

	require.NoError(t, fs.Create("/f", 0o644))
	_, err = fs.Getattr("/f/child")
	assert.True(t, errors.Is(err, extentfs.ErrNotADirectory))

	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'a'
	}
	_, err = fs.Getattr("/" + string(long))
	assert.True(t, errors.Is(err, extentfs.ErrNameTooLong))
}

func TestCheckAfterOperations(t *testing.T) {
	image := dt.NewFormattedImage(t, 256, 64)
	fs, err := exfs.Mount(image.Data())
	require.NoError(t, err)

	require.NoError(t, fs.Mkdir("/a", 0o755))
	require.NoError(t, fs.Create("/a/f", 0o644))
	_, err = fs.Write("/a/f", []byte("abc"), 9000)
	require.NoError(t, err)
	require.NoError(t, fs.Truncate("/a/f", 5000))

	assert.NoError(t, fs.Check(), "a healthy image must pass the checker")

	// Corrupt the free-inode counter in the on-disk superblock and remount:
	// the checker must notice the disagreement with the bitmap.
	image.Data()[28]++
	corrupted, err := exfs.Mount(image.Data())
	require.NoError(t, err)
	assert.Error(t, corrupted.Check())
}

func TestReopenAfterDestroyKeepsData(t *testing.T) {
	image := dt.NewFormattedImage(t, 256, 64)
	fs, err := exfs.Mount(image.Data())
	require.NoError(t, err)

	require.NoError(t, fs.Create("/f", 0o644))
	_, err = fs.Write("/f", []byte("persistent"), 0)
	require.NoError(t, err)
	fs.Destroy()

	reopened, err := exfs.Mount(image.Data())
	require.NoError(t, err)

	out := make([]byte, 10)
	n, err := reopened.Read("/f", out, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, []byte("persistent"), out)
}
