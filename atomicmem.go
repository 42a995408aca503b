package snapmap

import (
	"sync/atomic"
	"unsafe"
)

// The helpers below access shared mapped memory. Mappings are page-aligned,
// so every 4- and 8-byte aligned offset is suitably aligned for atomics.
//
// Go has no 8-bit atomics, so slot flags are read and written through the
// aligned 32-bit word containing them. The other bytes of that word belong to
// the neighbouring slot and are only ever written by the single writer, which
// is also the only goroutine storing flags, so the CAS loop always settles.

func loadUint32(mem []byte, off int) uint32 {
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&mem[off])))
}

func storeUint32(mem []byte, off int, v uint32) {
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&mem[off])), v)
}

func loadUint64(mem []byte, off int) uint64 {
	return atomic.LoadUint64((*uint64)(unsafe.Pointer(&mem[off])))
}

func storeUint64(mem []byte, off int, v uint64) {
	atomic.StoreUint64((*uint64)(unsafe.Pointer(&mem[off])), v)
}

func loadFlag(mem []byte, off int) byte {
	w := loadUint32(mem, off&^3)
	return (*[4]byte)(unsafe.Pointer(&w))[off&3]
}

func storeFlag(mem []byte, off int, v byte) {
	p := (*uint32)(unsafe.Pointer(&mem[off&^3]))
	for {
		old := atomic.LoadUint32(p)
		upd := old
		(*[4]byte)(unsafe.Pointer(&upd))[off&3] = v
		if atomic.CompareAndSwapUint32(p, old, upd) {
			return
		}
	}
}

// loadBytes copies len(dst) bytes starting at mem[off] using atomic word
// loads, so that the copy is ordered before any atomic load that follows it.
// The last word may extend up to 3 bytes past len(mem); mappings are rounded
// up to whole pages, so those bytes are always mapped.
func loadBytes(dst []byte, mem []byte, off int) {
	end := off + len(dst)
	for w := off &^ 3; w < end; w += 4 {
		v := atomic.LoadUint32((*uint32)(unsafe.Pointer(&mem[w])))
		b := (*[4]byte)(unsafe.Pointer(&v))
		lo, hi := max(off, w), min(end, w+4)
		copy(dst[lo-off:hi-off], b[lo-w:hi-w])
	}
}
