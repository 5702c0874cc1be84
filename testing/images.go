// Package testing provides helpers for building disk images in memory so
// driver tests never touch the host file system.
package testing

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/dargueta/extentfs/file_systems/exfs"
	"github.com/dargueta/extentfs/imagefile"
)

// NewBlankImage returns an attached, unformatted image of `totalBlocks`
// blocks backed by an in-memory stream. Flushing the image writes into
// `backing`, which the caller may inspect.
func NewBlankImage(t *testing.T, totalBlocks int) (*imagefile.Image, []byte) {
	t.Helper()

	backing := make([]byte, totalBlocks*exfs.BlockSize)
	image, err := imagefile.New(
		bytesextra.NewReadWriteSeeker(backing), exfs.BlockSize)
	require.NoError(t, err, "attaching the in-memory image failed")
	return image, backing
}

// NewFormattedImage returns an attached in-memory image of `totalBlocks`
// blocks, formatted with `inodes` inode slots.
func NewFormattedImage(t *testing.T, totalBlocks int, inodes uint32) *imagefile.Image {
	t.Helper()

	image, _ := NewBlankImage(t, totalBlocks)
	err := exfs.Format(image.Data(), exfs.FormatOptions{InodeCount: inodes})
	require.NoError(t, err, "formatting the image failed")
	return image
}

// MountFormatted formats an in-memory image and mounts it.
func MountFormatted(t *testing.T, totalBlocks int, inodes uint32) *exfs.FileSystem {
	t.Helper()

	image := NewFormattedImage(t, totalBlocks, inodes)
	fs, err := exfs.Mount(image.Data())
	require.NoError(t, err, "mounting failed")
	return fs
}
