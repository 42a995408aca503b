// Package archive keeps a durable copy of records published through snapmap
// stores.
//
// A store is a ring: once it wraps, old records are gone. An Archive pulls
// committed records out of one or more stores into a Bolt database, one
// bucket ("stream") per store, so that history outlives both the ring and the
// processes sharing it. Each entry is keyed by its 8-byte big-endian sequence
// number and encoded with msgpack.
//
// The archive is an ordinary reader of the store: it does not slow the writer
// down and does not change the store's own (non-)durability guarantees.
package archive

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/andreyvit/snapmap"
)

var (
	ErrNotFound       = errors.New("archive: record not found")
	ErrNoStream       = errors.New("archive: stream does not exist")
	ErrStreamMismatch = errors.New("archive: payload size does not match the stream")
)

var streamsBucket = []byte("_streams")

// Source is the part of a snapmap store the archive needs; every
// *snapmap.Store satisfies it.
type Source interface {
	Name() string
	PayloadSize() int
	Scan(after uint64, fn func(rec snapmap.Record) error) error
}

type Options struct {
	Context context.Context
	// Timeout bounds waiting for the database file lock held by another
	// process.
	Timeout time.Duration
	NoSync  bool
	Logger  *slog.Logger
}

// Entry is one archived record.
type Entry struct {
	Seq     uint64 `msgpack:"s"`
	TimeMs  int64  `msgpack:"t"`
	Payload []byte `msgpack:"p"`
}

func (e *Entry) Time() time.Time {
	return time.UnixMilli(e.TimeMs)
}

type streamMeta struct {
	PayloadSize int    `msgpack:"ps"`
	Source      string `msgpack:"src"`
	CreatedMs   int64  `msgpack:"c"`
}

// PullResult summarizes one Pull.
type PullResult struct {
	Copied int
	// Missed counts records that were overwritten in the ring before the
	// archive got to them.
	Missed uint64
	// Last is the sequence number of the newest archived record.
	Last uint64
}

type Archive struct {
	bdb    *bbolt.DB
	ctx    context.Context
	logger *slog.Logger
}

func Open(path string, opt Options) (*Archive, error) {
	if opt.Context == nil {
		opt.Context = context.Background()
	}
	if opt.Timeout == 0 {
		opt.Timeout = 10 * time.Second
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}

	bopt := *bbolt.DefaultOptions
	bopt.Timeout = opt.Timeout
	bopt.NoSync = opt.NoSync
	bopt.FreelistType = bbolt.FreelistMapType

	bdb, err := bbolt.Open(path, 0o666, &bopt)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	err = bdb.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(streamsBucket)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("archive: %w", err)
	}
	return &Archive{bdb: bdb, ctx: opt.Context, logger: opt.Logger}, nil
}

func (a *Archive) Close() error {
	return a.bdb.Close()
}

// Pull copies every record of src newer than the stream's last archived
// record. The stream is created on first use and bound to src's payload size.
func (a *Archive) Pull(src Source, stream string) (PullResult, error) {
	var res PullResult
	err := a.bdb.Update(func(tx *bbolt.Tx) error {
		b, err := prepareStream(tx, stream, src)
		if err != nil {
			return err
		}

		last := lastSeq(b)
		res.Last = last
		next := last + 1
		return src.Scan(last, func(rec snapmap.Record) error {
			if rec.Seq > next {
				res.Missed += rec.Seq - next
			}
			val, err := msgpack.Marshal(&Entry{Seq: rec.Seq, TimeMs: rec.TimeMs, Payload: rec.Payload})
			if err != nil {
				return err
			}
			if err := b.Put(seqKey(rec.Seq), val); err != nil {
				return err
			}
			next = rec.Seq + 1
			res.Last = rec.Seq
			res.Copied++
			return nil
		})
	})
	if err != nil {
		return PullResult{}, fmt.Errorf("archive: pull %s into %q: %w", src.Name(), stream, err)
	}
	if res.Missed > 0 {
		a.logger.LogAttrs(a.ctx, slog.LevelWarn, "archive: records lost to ring wraparound", slog.String("stream", stream), slog.String("source", src.Name()), slog.Uint64("missed", res.Missed), slog.Uint64("last", res.Last))
	}
	return res, nil
}

// Follow pulls from src every interval until ctx is done or a pull fails.
func (a *Archive) Follow(ctx context.Context, src Source, stream string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := a.Pull(src, stream); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (a *Archive) Get(stream string, seq uint64) (Entry, error) {
	var e Entry
	err := a.bdb.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(stream))
		if b == nil {
			return ErrNoStream
		}
		raw := b.Get(seqKey(seq))
		if raw == nil {
			return ErrNotFound
		}
		return msgpack.Unmarshal(raw, &e)
	})
	return e, err
}

// Last returns the sequence number of the newest archived record of the
// stream, or 0 if there is none.
func (a *Archive) Last(stream string) (uint64, error) {
	var last uint64
	err := a.bdb.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(stream))
		if b == nil {
			return ErrNoStream
		}
		last = lastSeq(b)
		return nil
	})
	return last, err
}

// Range calls fn for every archived record with Seq >= from, in order.
func (a *Archive) Range(stream string, from uint64, fn func(e Entry) error) error {
	return a.bdb.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(stream))
		if b == nil {
			return ErrNoStream
		}
		c := b.Cursor()
		for k, v := c.Seek(seqKey(from)); k != nil; k, v = c.Next() {
			var e Entry
			if err := msgpack.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("archive: %s/%d: %w", stream, binary.BigEndian.Uint64(k), err)
			}
			if err := fn(e); err != nil {
				return err
			}
		}
		return nil
	})
}

// Streams lists the archived streams.
func (a *Archive) Streams() ([]string, error) {
	var names []string
	err := a.bdb.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(streamsBucket).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}

// Decode decodes an archived payload into dst.
func Decode[V snapmap.Value](e Entry, dst V) error {
	if len(e.Payload) != dst.EncodedSize() {
		return fmt.Errorf("%w: entry #%d has %d bytes, value needs %d", snapmap.ErrShapeMismatch, e.Seq, len(e.Payload), dst.EncodedSize())
	}
	dst.Decode(e.Payload, 0)
	return nil
}

func prepareStream(tx *bbolt.Tx, stream string, src Source) (*bbolt.Bucket, error) {
	if stream == "" || stream == string(streamsBucket) {
		return nil, fmt.Errorf("invalid stream name %q", stream)
	}
	sb := tx.Bucket(streamsBucket)
	if raw := sb.Get([]byte(stream)); raw != nil {
		var meta streamMeta
		if err := msgpack.Unmarshal(raw, &meta); err != nil {
			return nil, err
		}
		if meta.PayloadSize != src.PayloadSize() {
			return nil, fmt.Errorf("%w: stream has %d bytes, %s has %d", ErrStreamMismatch, meta.PayloadSize, src.Name(), src.PayloadSize())
		}
		return tx.Bucket([]byte(stream)), nil
	}

	raw, err := msgpack.Marshal(&streamMeta{
		PayloadSize: src.PayloadSize(),
		Source:      src.Name(),
		CreatedMs:   time.Now().UnixMilli(),
	})
	if err != nil {
		return nil, err
	}
	if err := sb.Put([]byte(stream), raw); err != nil {
		return nil, err
	}
	return tx.CreateBucketIfNotExists([]byte(stream))
}

func lastSeq(b *bbolt.Bucket) uint64 {
	k, _ := b.Cursor().Last()
	if k == nil {
		return 0
	}
	return binary.BigEndian.Uint64(k)
}

func seqKey(seq uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], seq)
	return k[:]
}
