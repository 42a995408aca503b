package mmap

import "os"

// Sync flushes a mapping (and the file behind it) to stable storage using the
// cheapest primitive the platform offers: msync on OpenBSD, where the page
// cache is not unified, fdatasync on Linux, fsync elsewhere.
//
// Sync is not needed for cross-process visibility; mapped stores are visible
// to other processes immediately. It only matters for surviving a crash of
// the whole machine.
//
// A failed Sync leaves the on-disk state unknown. Retrying does not help,
// because the kernel may have already marked the dirty pages clean.
func Sync(f *os.File, mapping []byte) error {
	return fdatasync(f, mapping)
}
