package snapmap

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
)

func TestInitError(t *testing.T) {
	err := initErrf("/tmp/x.snap", "create", fs.ErrPermission)
	var ie *InitError
	if !errors.As(err, &ie) {
		t.Fatalf("err = %T, wanted *InitError", err)
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Fatalf("errors.Is(err, fs.ErrPermission) = false, wanted true")
	}
	if s := err.Error(); !strings.Contains(s, "create /tmp/x.snap") || !strings.Contains(s, "permission denied") {
		t.Fatalf("err.Error() = %q", s)
	}
}

func TestShapeError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &ShapeError{Path: "p", Want: 17, Got: 57})
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("errors.Is(err, ErrShapeMismatch) = false, wanted true")
	}
	if s := err.Error(); !strings.Contains(s, "stride 17") || !strings.Contains(s, "needs 57") {
		t.Fatalf("err.Error() = %q", s)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrNotReady, true},
		{ErrOverrun, true},
		{fmt.Errorf("x: %w", ErrNotReady), true},
		{ErrOutOfRange, false},
		{ErrClosed, false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, wanted %v", tt.err, got, tt.want)
		}
	}
}
