package values

import (
	"bytes"
	"math"
	"math/rand/v2"
	"testing"
)

// encodable matches snapmap.Value; redeclared to keep this package free of
// a dependency on snapmap.
type encodable interface {
	EncodedSize() int
	Encode(dst []byte, off int)
	Decode(src []byte, off int)
}

var (
	_ encodable = (*Pose)(nil)
	_ encodable = (*MouseSample)(nil)
	_ encodable = (*Int64)(nil)
)

func TestPose_roundTrip(t *testing.T) {
	rnd := rand.New(rand.NewPCG(1, 2))
	special := []float64{0, math.Copysign(0, -1), 1, -1, math.MaxFloat64, -math.MaxFloat64, math.SmallestNonzeroFloat64, math.Inf(1), math.Inf(-1)}

	var poses []Pose
	for _, v := range special {
		poses = append(poses, Pose{v, v, v, v, v, v})
	}
	for range 1000 {
		poses = append(poses, Pose{
			X:       rnd.NormFloat64() * 1000,
			Y:       rnd.NormFloat64() * 1000,
			Z:       rnd.NormFloat64() * 1000,
			Heading: rnd.Float64() * 360,
			Pitch:   rnd.Float64()*180 - 90,
			Roll:    rnd.Float64()*360 - 180,
		})
	}

	for _, p := range poses {
		var got Pose
		roundTrip(t, &p, &got, 5)
		if !got.Equal(p) {
			t.Fatalf("** got %v, wanted %v", got, p)
		}
		if got != p {
			t.Fatalf("** got %v, wanted bit-exact %v", got, p)
		}
	}
}

func TestPose_fieldOrder(t *testing.T) {
	p := Pose{X: 1, Y: 2, Z: 3, Heading: 4, Pitch: 5, Roll: 6}
	buf := make([]byte, p.EncodedSize())
	p.Encode(buf, 0)
	for i, want := range []float64{1, 2, 3, 4, 5, 6} {
		if got := getFloat64(buf, i*8); got != want {
			t.Errorf("field %d = %v, wanted %v", i, got, want)
		}
	}
}

func TestPose_tolerance(t *testing.T) {
	a := Pose{X: 1, Y: 2, Z: 3, Heading: 90, Pitch: 0, Roll: 0}

	b := a
	b.X += 1e-9
	if !a.Equal(b) {
		t.Errorf("poses differing by 1e-9 are not Equal")
	}

	b = a
	b.Heading += 1e-3
	if a.Equal(b) {
		t.Errorf("poses differing by 1e-3 in heading are Equal")
	}
	if !a.PositionWithin(b, 0) {
		t.Errorf("PositionWithin = false for identical positions")
	}
	if !a.EqualWithin(b, 1e-2) {
		t.Errorf("EqualWithin(1e-2) = false, wanted true")
	}
}

func TestMouseSample(t *testing.T) {
	for i := range 256 {
		m := MouseSample{byte(i), byte(255 - i), byte(i * 7)}
		var got MouseSample
		roundTrip(t, &m, &got, 3)
		if got != m {
			t.Fatalf("** got %v, wanted %v", got, m)
		}
	}

	m := MouseSample{0x05, 0xFE, 0x03}
	if !m.Left() || m.Right() || !m.Middle() {
		t.Errorf("buttons of %v decoded incorrectly", m)
	}
	if m.DX() != -2 || m.DY() != 3 {
		t.Errorf("DX, DY = %d, %d, wanted -2, 3", m.DX(), m.DY())
	}
}

func TestInt64(t *testing.T) {
	for _, v := range []Int64{0, 1, -1, 10, math.MaxInt64, math.MinInt64} {
		var got Int64
		roundTrip(t, &v, &got, 1)
		if got != v {
			t.Fatalf("** got %d, wanted %d", got, v)
		}
	}
}

// roundTrip encodes src at offset off into a window surrounded by guard
// bytes, checks that exactly EncodedSize bytes changed, and decodes into dst.
func roundTrip(t testing.TB, src, dst encodable, off int) {
	t.Helper()
	n := src.EncodedSize()
	if dst.EncodedSize() != n {
		t.Fatalf("EncodedSize mismatch: %d vs %d", n, dst.EncodedSize())
	}

	window := bytes.Repeat([]byte{0xA5}, off+n+4)
	src.Encode(window[:off+n], off)
	for i, b := range window {
		if (i < off || i >= off+n) && b != 0xA5 {
			t.Fatalf("Encode wrote outside its window at %d", i)
		}
	}

	before := bytes.Clone(window)
	dst.Decode(window, off)
	if !bytes.Equal(window, before) {
		t.Fatalf("Decode modified the window")
	}
}
