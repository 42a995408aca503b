// Package mmap maps files into memory as shared, process-visible byte slices.
//
// Mappings are always MAP_SHARED (or the Windows equivalent): stores through
// a writable mapping are visible to every other process mapping the same
// file, which is what cross-process publication relies on.
package mmap

import (
	"errors"
	"fmt"
	"os"
)

type Options uint

const (
	// Writable maps the file read-write (otherwise, it's mapped read-only).
	// The file itself must be opened for writing.
	Writable Options = 1 << 0

	// SequentialAccess is a hint requesting aggressive read-ahead.
	// Incompatible with RandomAccess. Maps to MADV_SEQUENTIAL on Unix.
	SequentialAccess Options = 1 << 1

	// RandomAccess is a hint that read ahead is less useful than normally.
	// Incompatible with SequentialAccess. Maps to MADV_RANDOM on Unix.
	RandomAccess Options = 1 << 2

	// Prefault asks to populate the page tables up front, avoiding page
	// faults on first access. Maps to MAP_POPULATE on Linux, ignored elsewhere.
	Prefault Options = 1 << 3
)

var ErrInvalidSize = errors.New("invalid mapping size")

func (o Options) Has(v Options) bool {
	return o&v != 0
}

// Map maps the first size bytes of f. The file must already be at least size
// bytes long; Map never resizes it.
func Map(f *os.File, size int64, opt Options) ([]byte, error) {
	if size <= 0 || size > MaxSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if opt.Has(SequentialAccess) && opt.Has(RandomAccess) {
		return nil, fmt.Errorf("mmap: SequentialAccess and RandomAccess are mutually exclusive")
	}
	return mmap(f, int(size), opt)
}

// Unmap unmaps the given slice from memory. The slice must have been returned
// by Map, and must not be accessed afterwards.
func Unmap(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return munmap(b)
}
