package snapmap

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// HeaderSize is the fixed length of the file header; record 0 starts here.
const HeaderSize = 128

const (
	magic           = 0x50414e53 // "SNAP" as native-endian uint32 on little-endian hosts
	formatVersion1  = 1
	flagWidth       = 1
	timestampWidth  = 8
	recordOverhead  = flagWidth + timestampWidth
	checksummedSize = HeaderSize - 8
)

// Slot flag values. Only flagWritten marks a slot as readable.
const (
	flagEmpty   byte = 0
	flagWritten byte = 1
	flagBusy    byte = 2
)

// Offsets of header fields that are updated after creation. These are always
// accessed atomically through the mapping.
const (
	offCursor    = 8
	offMagic     = 12
	offCommitted = 16
	offClaimed   = 24
)

// fileHeader mirrors the first HeaderSize bytes of a store file. The mutable
// fields are only meaningful in a snapshot; live code reads them atomically.
type fileHeader struct {
	Capacity     uint32
	RecordStride uint32
	WriteCursor  uint32
	Magic        uint32
	Committed    uint64
	Claimed      uint64
	PayloadSize  uint32
	Version      uint16
	_            uint16
	CreatedMs    int64
	_            [9]uint64
	Checksum     uint64
}

// RecordStride returns the size of one record slot for a payload of the given
// size: flag byte, timestamp, payload.
func RecordStride(payloadSize int) int {
	return recordOverhead + payloadSize
}

// SlotOffset returns the file offset of the slot with the given index. All
// record addressing goes through this function.
func SlotOffset(headerLen, stride, index int) int {
	return headerLen + index*stride
}

// FileLength returns the total size of a store file.
func FileLength(payloadSize, capacity int) int64 {
	return int64(HeaderSize) + int64(RecordStride(payloadSize))*int64(capacity)
}

func newFileHeader(capacity, payloadSize int, createdMs int64) *fileHeader {
	return &fileHeader{
		Capacity:     uint32(capacity),
		RecordStride: uint32(RecordStride(payloadSize)),
		WriteCursor:  uint32(capacity - 1),
		PayloadSize:  uint32(payloadSize),
		Version:      formatVersion1,
		CreatedMs:    createdMs,
	}
}

// encodeHeader writes h into buf[:HeaderSize] with a fresh checksum. The magic
// field is left zero; the initializer publishes it separately, last.
func encodeHeader(buf []byte, h *fileHeader) {
	c := *h
	c.Magic = 0
	c.Checksum = 0
	n, err := binary.Encode(buf[:HeaderSize], binary.NativeEndian, &c)
	if err != nil {
		panic(err)
	}
	if n != HeaderSize {
		panic("internal header size mismatch")
	}
	h.Checksum = headerChecksum(buf)
	binary.NativeEndian.PutUint64(buf[checksummedSize:], h.Checksum)
}

// decodeHeader parses and validates a header snapshot. It returns
// ErrNotInitialized while the magic is not yet published.
func decodeHeader(buf []byte) (*fileHeader, error) {
	if len(buf) < HeaderSize {
		return nil, ErrNotInitialized
	}
	var h fileHeader
	n, err := binary.Decode(buf[:HeaderSize], binary.NativeEndian, &h)
	if err != nil {
		panic(err)
	}
	if n != HeaderSize {
		panic("internal header size mismatch")
	}
	if h.Magic == 0 {
		return nil, ErrNotInitialized
	}
	if h.Magic != magic {
		return nil, fmt.Errorf("%w: bad magic %08x", ErrCorruptHeader, h.Magic)
	}
	if sum := headerChecksum(buf); sum != h.Checksum {
		return nil, fmt.Errorf("%w: checksum %016x, computed %016x", ErrCorruptHeader, h.Checksum, sum)
	}
	if h.Version != formatVersion1 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if h.Capacity == 0 || h.PayloadSize == 0 || int(h.RecordStride) != RecordStride(int(h.PayloadSize)) {
		return nil, fmt.Errorf("%w: capacity=%d stride=%d payload=%d", ErrCorruptHeader, h.Capacity, h.RecordStride, h.PayloadSize)
	}
	return &h, nil
}

// headerChecksum hashes the immutable part of the header: the mutable fields
// are treated as zero.
func headerChecksum(buf []byte) uint64 {
	var tmp [checksummedSize]byte
	copy(tmp[:], buf[:checksummedSize])
	clear(tmp[offCursor : offCursor+4])
	clear(tmp[offMagic : offMagic+4])
	clear(tmp[offCommitted : offClaimed+8])
	return xxhash.Sum64(tmp[:])
}

func (h *fileHeader) fileLength() int64 {
	return FileLength(int(h.PayloadSize), int(h.Capacity))
}
