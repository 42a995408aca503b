package snapmap

import (
	"errors"
	"os"
	"sync"

	"github.com/andreyvit/snapmap/mmap"
)

// mapping is one process-wide mapping of a store file. Every Store opened on
// the same path with the same access mode shares it, so a process never maps
// a file twice.
type mapping struct {
	key    mappingKey
	f      *os.File
	data   []byte
	header *fileHeader

	// writeLock serializes Set calls of all stores sharing this mapping; the
	// file format itself supports only one writer.
	writeLock sync.Mutex

	refs     int
	initDone chan struct{}
	initErr  error
}

type mappingKey struct {
	path     string
	writable bool
}

var registry = struct {
	sync.Mutex
	m map[mappingKey]*mapping
}{m: make(map[mappingKey]*mapping)}

// acquireMapping returns the shared mapping for key, calling open to create it
// if this is the first reference. Concurrent callers for the same key wait for
// the first one to finish instead of mapping the file again.
func acquireMapping(key mappingKey, open func(m *mapping) error) (*mapping, error) {
	registry.Lock()
	m := registry.m[key]
	if m != nil {
		m.refs++
		registry.Unlock()
		<-m.initDone
		if m.initErr != nil {
			return nil, m.initErr
		}
		return m, nil
	}

	m = &mapping{key: key, refs: 1, initDone: make(chan struct{})}
	registry.m[key] = m
	registry.Unlock()

	m.initErr = open(m)
	if m.initErr != nil {
		registry.Lock()
		delete(registry.m, key)
		registry.Unlock()
	}
	close(m.initDone)
	if m.initErr != nil {
		return nil, m.initErr
	}
	return m, nil
}

// release drops one reference, unmapping and closing the file when the last
// one goes away.
func (m *mapping) release() error {
	registry.Lock()
	m.refs--
	last := m.refs == 0
	if last {
		delete(registry.m, m.key)
	}
	registry.Unlock()

	if !last {
		return nil
	}
	return errors.Join(mmap.Unmap(m.data), m.f.Close())
}

func (m *mapping) sync() error {
	return mmap.Sync(m.f, m.data)
}
