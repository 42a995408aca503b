// Package values contains ready-made snapmap values for common payloads.
package values

import (
	"encoding/binary"
	"math"
)

// DefaultTolerance is used by Pose.Equal. It absorbs floating point noise
// from upstream arithmetic; encoding itself is exact.
const DefaultTolerance = 1e-7

func putFloat64(dst []byte, off int, v float64) {
	binary.NativeEndian.PutUint64(dst[off:off+8], math.Float64bits(v))
}

func getFloat64(src []byte, off int) float64 {
	return math.Float64frombits(binary.NativeEndian.Uint64(src[off : off+8]))
}

func approxEqual(a, b, tolerance float64) bool {
	return a == b || math.Abs(a-b) <= tolerance
}
