//go:build mips64 || mips64le

package mmap

// MaxSize is the largest mapping Map accepts on this architecture (512GB).
const MaxSize = 0x8000000000
