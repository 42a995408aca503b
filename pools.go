package snapmap

import "sync"

// slotBufPool holds scratch buffers that readers copy a slot into before
// validating and decoding it. Buffers grow to the largest stride seen.
var slotBufPool = &sync.Pool{
	New: func() any {
		b := make([]byte, 0, 256)
		return &b
	},
}

func acquireSlotBuf(n int) *[]byte {
	bp := slotBufPool.Get().(*[]byte)
	if cap(*bp) < n {
		*bp = make([]byte, n)
	}
	*bp = (*bp)[:n]
	return bp
}

func releaseSlotBuf(bp *[]byte) {
	*bp = (*bp)[:0]
	slotBufPool.Put(bp)
}
