package snapmap

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/andreyvit/snapmap/mmap"
)

const (
	DefaultCapacity     = 90000
	DefaultInitTimeout  = 5 * time.Second
	DefaultPollInterval = time.Millisecond
)

type Options struct {
	Context context.Context

	// Capacity is the number of record slots of a newly created file. It is
	// ignored when joining an existing file, whose header is authoritative.
	Capacity int

	// ReadOnly maps the file read-only; Set fails with ErrReadOnly.
	ReadOnly bool

	// InitTimeout bounds how long a joiner waits for another process to
	// finish initializing the file.
	InitTimeout  time.Duration
	PollInterval time.Duration

	Perm     os.FileMode
	Prefault bool
	Now      func() time.Time

	// Name labels the store in logs, dumps and metrics; defaults to the
	// file's base name.
	Name       string
	Logger     *slog.Logger
	Registerer prometheus.Registerer
}

// Store publishes snapshots of a fixed-size value type through a
// memory-mapped ring of records. One process writes with Set; any number of
// processes read with Get and GetN.
//
// A Store is safe for concurrent use, except that Close must not race with
// other calls.
type Store[V Value] struct {
	m        *mapping
	path     string
	name     string
	readOnly bool
	capacity int
	stride   int
	payload  int
	now      func() time.Time
	closed   atomic.Bool

	registerer prometheus.Registerer
	collectors []prometheus.Collector

	SetCount      atomic.Uint64
	GetCount      atomic.Uint64
	NotReadyCount atomic.Uint64
	OverrunCount  atomic.Uint64
}

// Meta describes a record returned by a read.
type Meta struct {
	// Seq is the 1-based ordinal of the Set call that wrote the record.
	Seq    uint64
	Slot   int
	TimeMs int64
}

func (m Meta) Time() time.Time {
	return time.UnixMilli(m.TimeMs)
}

// Record is a raw record passed to Scan callbacks. Payload aliases a scratch
// buffer and is only valid during the callback.
type Record struct {
	Meta
	Payload []byte
}

// Open creates or joins the store file at path. proto is only consulted for
// its EncodedSize.
func Open[V Value](path string, proto V, opt Options) (*Store[V], error) {
	if opt.Context == nil {
		opt.Context = context.Background()
	}
	requested := opt.Capacity
	if opt.Capacity == 0 {
		opt.Capacity = DefaultCapacity
	}
	if opt.InitTimeout == 0 {
		opt.InitTimeout = DefaultInitTimeout
	}
	if opt.PollInterval == 0 {
		opt.PollInterval = DefaultPollInterval
	}
	if opt.Perm == 0 {
		opt.Perm = 0o666
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.Name == "" {
		opt.Name = filepath.Base(path)
	}

	payload := proto.EncodedSize()
	if payload <= 0 {
		return nil, initErrf(path, "open", fmt.Errorf("%w: encoded size %d", ErrShapeMismatch, payload))
	}
	if opt.Capacity < 0 || int64(opt.Capacity) > math.MaxUint32 || FileLength(payload, opt.Capacity) > mmap.MaxSize {
		return nil, initErrf(path, "open", fmt.Errorf("%w: capacity %d with %d-byte records", mmap.ErrInvalidSize, opt.Capacity, RecordStride(payload)))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, initErrf(path, "open", err)
	}
	key := mappingKey{path: abs, writable: !opt.ReadOnly}
	m, err := acquireMapping(key, func(m *mapping) error {
		return openMapping(m, payload, &opt)
	})
	if err != nil {
		return nil, err
	}

	h := m.header
	if stride := RecordStride(payload); int(h.RecordStride) != stride {
		m.release()
		return nil, &ShapeError{Path: abs, Want: int(h.RecordStride), Got: stride}
	}
	if requested != 0 && int(h.Capacity) != requested {
		opt.Logger.LogAttrs(opt.Context, slog.LevelWarn, "snapmap: joined file with a different capacity", slog.String("path", abs), slog.Int("capacity", int(h.Capacity)), slog.Int("requested", requested))
	}

	s := &Store[V]{
		m:          m,
		path:       abs,
		name:       opt.Name,
		readOnly:   opt.ReadOnly,
		capacity:   int(h.Capacity),
		stride:     int(h.RecordStride),
		payload:    int(h.PayloadSize),
		now:        opt.Now,
		registerer: opt.Registerer,
	}
	if err := s.registerMetrics(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store[V]) Path() string     { return s.path }
func (s *Store[V]) Name() string     { return s.name }
func (s *Store[V]) Capacity() int    { return s.capacity }
func (s *Store[V]) PayloadSize() int { return s.payload }
func (s *Store[V]) ReadOnly() bool   { return s.readOnly }

func (s *Store[V]) String() string {
	return s.name
}

// Set publishes v as the newest record, overwriting the oldest one once the
// ring is full.
//
// The slot is claimed in the header first, then marked busy, then the
// timestamp and payload are written, and only then is the flag set to
// written. Readers check the flag before and after copying a slot, so a
// reader never decodes a half-written record.
func (s *Store[V]) Set(v V) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if s.closed.Load() {
		return ErrClosed
	}
	if sz := v.EncodedSize(); sz != s.payload {
		return &ShapeError{Path: s.path, Want: s.stride, Got: RecordStride(sz)}
	}

	mem := s.m.data
	s.m.writeLock.Lock()
	defer s.m.writeLock.Unlock()

	// based on committed rather than claimed: if a previous writer died
	// mid-Set, its slot is simply written again
	seq := loadUint64(mem, offCommitted) + 1
	slot := int((seq - 1) % uint64(s.capacity))
	off := SlotOffset(HeaderSize, s.stride, slot)

	storeUint64(mem, offClaimed, seq)
	storeFlag(mem, off, flagBusy)
	binary.NativeEndian.PutUint64(mem[off+flagWidth:], uint64(s.now().UnixMilli()))
	v.Encode(mem[:off+s.stride], off+recordOverhead)
	storeFlag(mem, off, flagWritten)
	storeUint32(mem, offCursor, uint32(slot))
	storeUint64(mem, offCommitted, seq)

	s.SetCount.Add(1)
	return nil
}

// Get decodes the newest record into dst.
func (s *Store[V]) Get(dst V) (Meta, error) {
	return s.GetN(0, dst)
}

// GetN decodes the record n positions behind the newest one into dst. n may
// range from 0 to Capacity(); distances wrap around the ring, so n ==
// Capacity() addresses the newest record's slot again.
//
// Returns ErrNotReady if the slot has never been written, ErrOverrun if the
// writer overwrote it during the read, and ErrOutOfRange for invalid n. dst is
// left untouched on error.
func (s *Store[V]) GetN(n int, dst V) (Meta, error) {
	if s.closed.Load() {
		return Meta{}, ErrClosed
	}
	if n < 0 || n > s.capacity {
		return Meta{}, fmt.Errorf("%w: n=%d, capacity=%d", ErrOutOfRange, n, s.capacity)
	}
	if sz := dst.EncodedSize(); sz != s.payload {
		return Meta{}, &ShapeError{Path: s.path, Want: s.stride, Got: RecordStride(sz)}
	}
	s.GetCount.Add(1)

	bp := acquireSlotBuf(s.stride - flagWidth)
	defer releaseSlotBuf(bp)

	d := uint64(n % s.capacity)
	committed := loadUint64(s.m.data, offCommitted)
	if d >= committed {
		s.NotReadyCount.Add(1)
		return Meta{}, ErrNotReady
	}
	meta, err := s.readSeq(committed-d, *bp)
	if err != nil {
		return Meta{}, err
	}
	dst.Decode(*bp, timestampWidth)
	return meta, nil
}

// Latest returns the metadata of the newest record without decoding it. It
// reports false when nothing was written yet, and also when the newest record
// keeps being overwritten without the committed counter moving, which happens
// when a writer died in the middle of Set.
func (s *Store[V]) Latest() (Meta, bool) {
	if s.closed.Load() {
		return Meta{}, false
	}
	bp := acquireSlotBuf(s.stride - flagWidth)
	defer releaseSlotBuf(bp)
	var prev uint64
	for {
		committed := loadUint64(s.m.data, offCommitted)
		if committed == 0 || committed == prev {
			// an overrun without progress means the writer died mid-Set
			return Meta{}, false
		}
		meta, err := s.readSeq(committed, *bp)
		if err == nil {
			return meta, true
		} else if errors.Is(err, ErrNotReady) {
			return Meta{}, false
		}
		prev = committed
	}
}

// Committed returns the total number of records ever written to the file.
func (s *Store[V]) Committed() uint64 {
	return loadUint64(s.m.data, offCommitted)
}

// Scan calls fn for every record with Seq > after that is still in the ring,
// oldest first. Records overwritten while scanning are skipped. Scan stops
// and returns the first error returned by fn.
func (s *Store[V]) Scan(after uint64, fn func(rec Record) error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	bp := acquireSlotBuf(s.stride - flagWidth)
	defer releaseSlotBuf(bp)

	committed := loadUint64(s.m.data, offCommitted)
	first := after + 1
	if c := uint64(s.capacity); committed > c && first <= committed-c {
		first = committed - c + 1
	}
	for seq := first; seq <= committed; seq++ {
		meta, err := s.readSeq(seq, *bp)
		if err != nil {
			continue
		}
		err = fn(Record{Meta: meta, Payload: (*bp)[timestampWidth:]})
		if err != nil {
			return err
		}
	}
	return nil
}

// readSeq copies the record with the given sequence number into buf
// (timestamp followed by payload) and validates the copy.
func (s *Store[V]) readSeq(seq uint64, buf []byte) (Meta, error) {
	mem := s.m.data
	capacity := uint64(s.capacity)
	slot := int((seq - 1) % capacity)
	off := SlotOffset(HeaderSize, s.stride, slot)

	if loadFlag(mem, off) != flagWritten {
		if loadUint64(mem, offClaimed)-seq >= capacity {
			s.OverrunCount.Add(1)
			return Meta{}, ErrOverrun
		}
		s.NotReadyCount.Add(1)
		return Meta{}, ErrNotReady
	}
	loadBytes(buf, mem, off+flagWidth)
	if loadFlag(mem, off) != flagWritten || loadUint64(mem, offClaimed)-seq >= capacity {
		s.OverrunCount.Add(1)
		return Meta{}, ErrOverrun
	}

	return Meta{
		Seq:    seq,
		Slot:   slot,
		TimeMs: int64(binary.NativeEndian.Uint64(buf)),
	}, nil
}

// Sync flushes the mapping to disk. It is not needed for other processes to
// see new records, only for surviving a machine crash.
func (s *Store[V]) Sync() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.m.sync()
}

// Close releases this store's reference to the shared mapping. It is safe to
// call more than once.
func (s *Store[V]) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.unregisterMetrics()
	return s.m.release()
}
