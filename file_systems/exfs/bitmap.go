package exfs

import (
	"fmt"

	"github.com/dargueta/extentfs"
)

// bitset is a view over an on-disk allocation bitmap. The bit order within
// each byte is MSB first: bit index 0 is mask 0x80 of byte 0. This order is
// part of the image format and must not change.
type bitset struct {
	data []byte
	// bits is the number of valid bits; the trailing padding bits of the
	// last byte (and any trailing bitmap blocks) are never allocated.
	bits uint32
}

func (b bitset) isSet(index uint32) bool {
	return b.data[index/8]&(0x80>>(index%8)) != 0
}

// set marks a single bit as allocated.
func (b bitset) set(index uint32) {
	b.data[index/8] |= 0x80 >> (index % 8)
}

// clear marks a single bit as free.
func (b bitset) clear(index uint32) {
	b.data[index/8] &^= 0x80 >> (index % 8)
}

// setRange marks `count` consecutive bits as allocated.
func (b bitset) setRange(index, count uint32) {
	for i := index; i < index+count; i++ {
		b.set(i)
	}
}

// isRangeClear reports whether `count` consecutive bits starting at `index`
// are all free. Ranges extending past the valid bit count are never clear.
func (b bitset) isRangeClear(index, count uint32) bool {
	if index+count > b.bits {
		return false
	}
	for i := index; i < index+count; i++ {
		if b.isSet(i) {
			return false
		}
	}
	return true
}

// allocate finds the first free bit in MSB-first scan order, marks it
// allocated, and returns its index. Returns [extentfs.ErrNoSpaceOnDevice]
// when every valid bit is set.
func (b bitset) allocate() (uint32, error) {
	numBytes := (b.bits + 7) / 8
	for byteIndex := uint32(0); byteIndex < numBytes; byteIndex++ {
		if b.data[byteIndex] == 0xff {
			continue
		}
		for bit := uint32(0); bit < 8; bit++ {
			index := byteIndex*8 + bit
			if index >= b.bits {
				break
			}
			if !b.isSet(index) {
				b.set(index)
				return index, nil
			}
		}
	}
	return 0, extentfs.ErrNoSpaceOnDevice.WithMessage("bitmap is full")
}

// findContiguous locates the first run of `count` free bits, searching
// [start, bits) and then wrapping around to [0, start). It does not mark
// anything allocated.
//
// The search distinguishes two failures: [extentfs.ErrNoSpaceOnDevice] when
// `free`, the caller's free-bit count, is already below `count`, and
// [extentfs.ErrNotFound] when enough free bits exist but no run of `count`
// of them is contiguous. Callers extending a file use the second result to
// fall back to single-block allocation.
func (b bitset) findContiguous(start, count, free uint32) (uint32, error) {
	if free < count {
		return 0, extentfs.ErrNoSpaceOnDevice.WithMessage(
			fmt.Sprintf("need %d free blocks, have %d", count, free),
		)
	}
	if start >= b.bits {
		start = 0
	}

	for index := start; index < b.bits; index++ {
		if b.isRangeClear(index, count) {
			return index, nil
		}
	}
	for index := uint32(0); index < start; index++ {
		if b.isRangeClear(index, count) {
			return index, nil
		}
	}

	return 0, extentfs.ErrNotFound.WithMessage(
		fmt.Sprintf("no contiguous run of %d free blocks", count),
	)
}

// popcount returns the number of allocated bits.
func (b bitset) popcount() uint32 {
	total := uint32(0)
	for i := uint32(0); i < b.bits; i++ {
		if b.isSet(i) {
			total++
		}
	}
	return total
}
