// Package exfs implements an extent-based file system stored in a single
// fixed-size image file.
//
// The image is divided into 4096-byte blocks: a superblock, an inode bitmap,
// a data bitmap, a packed inode table, and a data region. Each file or
// directory owns at most one extent-pointer block holding up to 512
// (start, count) extents that name contiguous runs of data blocks. Directory
// bodies are dense arrays of fixed 256-byte entries.
//
// The driver operates on the image as a contiguous mutable byte region, the
// way the formatting tool and the mount helper map it. All mutations are in
// place; there is no journal.
package exfs
