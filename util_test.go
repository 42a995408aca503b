package snapmap

import (
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/andreyvit/snapmap/values"
)

func init() {
	slog.SetLogLoggerLevel(slog.LevelDebug)
}

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func tempPath(t testing.TB) string {
	return filepath.Join(t.TempDir(), "state.snap")
}

func setup(t testing.TB, capacity int) *Store[*values.Int64] {
	t.Helper()
	return setupAt(t, tempPath(t), capacity, Options{})
}

func setupAt(t testing.TB, path string, capacity int, o Options) *Store[*values.Int64] {
	t.Helper()
	o.Capacity = capacity
	if o.Now == nil {
		o.Now = func() time.Time { return testStart }
	}
	s := must(Open(path, new(values.Int64), o))
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Error(err)
		}
	})
	return s
}

func set(t testing.TB, s *Store[*values.Int64], vals ...int64) {
	t.Helper()
	for _, v := range vals {
		iv := values.Int64(v)
		if err := s.Set(&iv); err != nil {
			t.Fatalf("Set(%d): %v", v, err)
		}
	}
}

func getN(t testing.TB, s *Store[*values.Int64], n int) (int64, error) {
	t.Helper()
	var v values.Int64
	_, err := s.GetN(n, &v)
	return int64(v), err
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}
