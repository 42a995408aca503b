package values

import "fmt"

// MouseSample is one raw PS/2-protocol packet as read from a Linux mouse
// device (/dev/input/mouseN): a button/sign byte and two movement deltas.
type MouseSample [3]byte

func (m *MouseSample) EncodedSize() int {
	return len(m)
}

func (m *MouseSample) Encode(dst []byte, off int) {
	copy(dst[off:off+len(m)], m[:])
}

func (m *MouseSample) Decode(src []byte, off int) {
	copy(m[:], src[off:off+len(m)])
}

func (m MouseSample) Left() bool   { return m[0]&0x01 != 0 }
func (m MouseSample) Right() bool  { return m[0]&0x02 != 0 }
func (m MouseSample) Middle() bool { return m[0]&0x04 != 0 }

// DX returns the signed horizontal movement.
func (m MouseSample) DX() int {
	return int(int8(m[1]))
}

// DY returns the signed vertical movement.
func (m MouseSample) DY() int {
	return int(int8(m[2]))
}

func (m MouseSample) String() string {
	return fmt.Sprintf("buttons=%03b dx=%d dy=%d", m[0]&0x07, m.DX(), m.DY())
}
