package values

import "fmt"

const poseSize = 6 * 8

// Pose is a robot position and attitude.
type Pose struct {
	X, Y, Z float64

	Heading float64
	Pitch   float64
	Roll    float64
}

func (p *Pose) EncodedSize() int {
	return poseSize
}

func (p *Pose) Encode(dst []byte, off int) {
	putFloat64(dst, off, p.X)
	putFloat64(dst, off+8, p.Y)
	putFloat64(dst, off+16, p.Z)
	putFloat64(dst, off+24, p.Heading)
	putFloat64(dst, off+32, p.Pitch)
	putFloat64(dst, off+40, p.Roll)
}

func (p *Pose) Decode(src []byte, off int) {
	p.X = getFloat64(src, off)
	p.Y = getFloat64(src, off+8)
	p.Z = getFloat64(src, off+16)
	p.Heading = getFloat64(src, off+24)
	p.Pitch = getFloat64(src, off+32)
	p.Roll = getFloat64(src, off+40)
}

// Equal compares two poses with DefaultTolerance.
func (p Pose) Equal(o Pose) bool {
	return p.EqualWithin(o, DefaultTolerance)
}

// EqualWithin reports whether every field of p is within tolerance of o.
func (p Pose) EqualWithin(o Pose, tolerance float64) bool {
	return p.PositionWithin(o, tolerance) && p.AttitudeWithin(o, tolerance)
}

// PositionWithin compares X, Y and Z only.
func (p Pose) PositionWithin(o Pose, tolerance float64) bool {
	return approxEqual(p.X, o.X, tolerance) &&
		approxEqual(p.Y, o.Y, tolerance) &&
		approxEqual(p.Z, o.Z, tolerance)
}

// AttitudeWithin compares heading, pitch and roll only.
func (p Pose) AttitudeWithin(o Pose, tolerance float64) bool {
	return approxEqual(p.Heading, o.Heading, tolerance) &&
		approxEqual(p.Pitch, o.Pitch, tolerance) &&
		approxEqual(p.Roll, o.Roll, tolerance)
}

func (p Pose) String() string {
	return fmt.Sprintf("(%g, %g, %g) hdg=%g pitch=%g roll=%g", p.X, p.Y, p.Z, p.Heading, p.Pitch, p.Roll)
}
