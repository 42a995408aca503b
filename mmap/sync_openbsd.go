package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

func fdatasync(f *os.File, mapping []byte) error {
	if len(mapping) == 0 {
		return f.Sync()
	}
	return os.NewSyscallError("msync", unix.Msync(mapping, unix.MS_SYNC|unix.MS_INVALIDATE))
}
