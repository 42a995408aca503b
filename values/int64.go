package values

import "encoding/binary"

// Int64 is a single counter or measurement.
type Int64 int64

func (v *Int64) EncodedSize() int {
	return 8
}

func (v *Int64) Encode(dst []byte, off int) {
	binary.NativeEndian.PutUint64(dst[off:off+8], uint64(*v))
}

func (v *Int64) Decode(src []byte, off int) {
	*v = Int64(binary.NativeEndian.Uint64(src[off : off+8]))
}
