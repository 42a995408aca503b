package mmap

import (
	"os"
	"syscall"
)

func fdatasync(f *os.File, _ []byte) error {
	return os.NewSyscallError("fdatasync", syscall.Fdatasync(int(f.Fd())))
}
