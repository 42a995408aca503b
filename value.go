package snapmap

// Value is a domain type with a fixed binary width that knows how to encode
// and decode itself. Implementations use pointer receivers so that Decode can
// fill the receiver in place.
//
// EncodedSize must be a constant of the type, never derived from instance
// data. Encode writes exactly EncodedSize() bytes at dst[off:] and must not
// read dst. Decode reads exactly EncodedSize() bytes at src[off:] and must not
// modify src. Decode(Encode(v)) must produce a value equal to v under the
// type's own notion of equality.
type Value interface {
	EncodedSize() int
	Encode(dst []byte, off int)
	Decode(src []byte, off int)
}
