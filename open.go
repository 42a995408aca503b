package snapmap

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/andreyvit/snapmap/mmap"
)

// mapFunc is replaced in tests to simulate mapping failures.
var mapFunc = mmap.Map

// openMapping implements the creation race. Exactly one process manages to
// create the file exclusively and becomes the initializer; everybody else
// joins and waits for the initializer to publish the header.
func openMapping(m *mapping, payloadSize int, opt *Options) error {
	path := m.key.path
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, opt.Perm)
	if err == nil {
		opt.Logger.LogAttrs(opt.Context, slog.LevelDebug, "snapmap: initializing", slog.String("path", path), slog.Int("capacity", opt.Capacity), slog.Int("payload", payloadSize))
		return initializeFile(m, f, payloadSize, opt)
	} else if !errors.Is(err, fs.ErrExist) {
		return initErrf(path, "create", err)
	}

	opt.Logger.LogAttrs(opt.Context, slog.LevelDebug, "snapmap: joining", slog.String("path", path))
	flag := os.O_RDWR
	if !m.key.writable {
		flag = os.O_RDONLY
	}
	f, err = os.OpenFile(path, flag, 0)
	if err != nil {
		return initErrf(path, "open", err)
	}
	h, err := waitForHeader(opt.Context, f, opt.InitTimeout, opt.PollInterval)
	if err != nil {
		f.Close()
		return initErrf(path, "join", err)
	}
	return mapFile(m, f, h, opt)
}

func initializeFile(m *mapping, f *os.File, payloadSize int, opt *Options) (err error) {
	path := m.key.path
	defer func() {
		if err != nil {
			f.Close()
			// joiners are waiting for a header that will never come; let
			// the next process start over instead
			if rmErr := os.Remove(path); rmErr != nil {
				opt.Logger.LogAttrs(opt.Context, slog.LevelWarn, "snapmap: failed to remove half-initialized file", slog.String("path", path), slog.Any("err", rmErr))
			}
		}
	}()

	h := newFileHeader(opt.Capacity, payloadSize, opt.Now().UnixMilli())
	if err := f.Truncate(h.fileLength()); err != nil {
		return initErrf(path, "truncate", err)
	}

	var buf [HeaderSize]byte
	encodeHeader(buf[:], h)
	if _, err := f.WriteAt(buf[:], 0); err != nil {
		return initErrf(path, "write header", err)
	}

	// publishing the magic is what releases the joiners, so it goes last
	binary.NativeEndian.PutUint32(buf[:4], magic)
	if _, err := f.WriteAt(buf[:4], offMagic); err != nil {
		return initErrf(path, "write header", err)
	}
	h.Magic = magic

	return mapFile(m, f, h, opt)
}

// waitForHeader polls until the header is complete, the timeout expires or
// ctx is cancelled. It never spins without sleeping.
func waitForHeader(ctx context.Context, f *os.File, timeout, interval time.Duration) (*fileHeader, error) {
	deadline := time.Now().Add(timeout)
	var buf [HeaderSize]byte
	var timer *time.Timer
	for {
		h, err := readHeader(f, buf[:])
		if err == nil {
			return h, nil
		} else if !errors.Is(err, ErrNotInitialized) {
			return nil, err
		}

		wait := time.Until(deadline)
		if wait <= 0 {
			return nil, ErrInitTimeout
		}
		wait = min(wait, interval)
		if timer == nil {
			timer = time.NewTimer(wait)
			defer timer.Stop()
		} else {
			timer.Reset(wait)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func readHeader(f *os.File, buf []byte) (*fileHeader, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if st.Size() < HeaderSize {
		return nil, ErrNotInitialized
	}
	if _, err := f.ReadAt(buf[:HeaderSize], 0); err != nil {
		return nil, err
	}
	return decodeHeader(buf)
}

func mapFile(m *mapping, f *os.File, h *fileHeader, opt *Options) error {
	path := m.key.path
	size := h.fileLength()
	if size > mmap.MaxSize {
		f.Close()
		return initErrf(path, "map", mmap.ErrInvalidSize)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return initErrf(path, "stat", err)
	}
	if st.Size() < size {
		f.Close()
		return initErrf(path, "map", fmt.Errorf("%w: file is %d bytes, layout needs %d", ErrCorruptHeader, st.Size(), size))
	}

	var mopt mmap.Options
	if m.key.writable {
		mopt |= mmap.Writable
	}
	if opt.Prefault {
		mopt |= mmap.Prefault
	}
	data, err := mapFunc(f, size, mopt)
	if err != nil {
		f.Close()
		return initErrf(path, "map", err)
	}

	m.f = f
	m.data = data
	m.header = h
	return nil
}
