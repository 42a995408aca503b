//go:build 386 || arm || ppc || mips || mipsle

package mmap

// MaxSize is the largest mapping Map accepts on this architecture (2GB).
const MaxSize = 0x7FFFFFFF
