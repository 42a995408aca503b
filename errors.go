package snapmap

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady means the requested slot has not been written yet. Callers
	// may retry later or treat it as "no data yet".
	ErrNotReady = errors.New("snapmap: record not ready")

	// ErrOverrun means the writer overwrote the requested slot while it was
	// being read. Like ErrNotReady, it is safe to retry.
	ErrOverrun = errors.New("snapmap: record overwritten during read")

	ErrOutOfRange         = errors.New("snapmap: index out of range")
	ErrReadOnly           = errors.New("snapmap: store opened read-only")
	ErrClosed             = errors.New("snapmap: store closed")
	ErrInitTimeout        = errors.New("snapmap: timed out waiting for another process to initialize the file")
	ErrShapeMismatch      = errors.New("snapmap: record shape mismatch")
	ErrCorruptHeader      = errors.New("snapmap: corrupted header")
	ErrUnsupportedVersion = errors.New("snapmap: unsupported format version")

	// ErrNotInitialized is returned internally while a joiner polls a file
	// whose header has not been published yet.
	ErrNotInitialized = errors.New("snapmap: header not initialized")
)

// IsRetryable reports whether err is a transient read condition (ErrNotReady
// or ErrOverrun) rather than a failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNotReady) || errors.Is(err, ErrOverrun)
}

// InitError is returned by Open when the store cannot be created or joined.
type InitError struct {
	Path string
	Op   string
	Err  error
}

func initErrf(path, op string, err error) error {
	return &InitError{Path: path, Op: op, Err: err}
}

func (e *InitError) Unwrap() error {
	return e.Err
}

func (e *InitError) Error() string {
	return fmt.Sprintf("snapmap: %s %s: %v", e.Op, e.Path, e.Err)
}

// ShapeError reports a value whose encoded size does not match the record
// layout of the file, i.e. the file was created for a different value type.
type ShapeError struct {
	Path string
	// Want and Got are record strides (flag + timestamp + payload).
	Want int
	Got  int
}

func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s: file has record stride %d, value needs %d", ErrShapeMismatch.Error(), e.Path, e.Want, e.Got)
}
