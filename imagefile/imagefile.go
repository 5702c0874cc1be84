// Package imagefile gives the driver and the formatting tool a contiguous
// mutable byte region backed by a disk image. The whole image is resident in
// memory while attached; Flush writes it back to the backing stream in one
// pass, and Close flushes before releasing the backing file. This stands in
// for the platform memory mapping the file system was designed around.
package imagefile

import (
	"fmt"
	"io"
	"os"
)

// Image is an attached disk image.
type Image struct {
	data   []byte
	stream io.ReadWriteSeeker
	// file is non-nil when the image owns the backing file handle.
	file *os.File
}

// Open attaches the image file at `path` for reading and writing. The file
// size must be a nonzero multiple of `blockSize`.
func Open(path string, blockSize int64) (*Image, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	img, err := New(file, blockSize)
	if err != nil {
		file.Close()
		return nil, err
	}
	img.file = file
	return img, nil
}

// New reads a complete image out of `stream`. The stream size must be a
// nonzero multiple of `blockSize`.
func New(stream io.ReadWriteSeeker, blockSize int64) (*Image, error) {
	size, err := stream.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if size == 0 || size%blockSize != 0 {
		return nil, fmt.Errorf(
			"image size %d is not a nonzero multiple of the %d-byte block size",
			size, blockSize)
	}

	_, err = stream.Seek(0, io.SeekStart)
	if err != nil {
		return nil, err
	}

	data := make([]byte, size)
	_, err = io.ReadFull(stream, data)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}

	return &Image{data: data, stream: stream}, nil
}

// FromSlice wraps an in-memory image with no backing stream. Flush is a
// no-op; mutations act directly on `data`.
func FromSlice(data []byte) *Image {
	return &Image{data: data}
}

// Data returns the mutable image region. The slice stays valid until Close.
func (img *Image) Data() []byte {
	return img.data
}

// Size returns the image size in bytes.
func (img *Image) Size() int64 {
	return int64(len(img.data))
}

// Flush writes the image back to its backing stream, if it has one.
func (img *Image) Flush() error {
	if img.stream == nil {
		return nil
	}
	_, err := img.stream.Seek(0, io.SeekStart)
	if err != nil {
		return err
	}
	_, err = img.stream.Write(img.data)
	return err
}

// Close flushes the image and releases the backing file when the image owns
// one. The Data slice must not be used afterwards.
func (img *Image) Close() error {
	err := img.Flush()
	if img.file != nil {
		closeErr := img.file.Close()
		if err == nil {
			err = closeErr
		}
	}
	img.data = nil
	img.stream = nil
	img.file = nil
	return err
}
