package archive_test

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/andreyvit/snapmap"
	"github.com/andreyvit/snapmap/archive"
	"github.com/andreyvit/snapmap/values"
)

func TestArchive_pull(t *testing.T) {
	s := openStore(t, 4)
	a := openArchive(t)

	setAll(t, s, 10, 20, 30)
	res := must(a.Pull(s, "counter"))
	deepEqual(t, res, archive.PullResult{Copied: 3, Last: 3})

	// nothing new
	res = must(a.Pull(s, "counter"))
	deepEqual(t, res, archive.PullResult{Copied: 0, Last: 3})

	setAll(t, s, 40, 50)
	res = must(a.Pull(s, "counter"))
	deepEqual(t, res, archive.PullResult{Copied: 2, Last: 5})

	deepEqual(t, must(a.Last("counter")), uint64(5))

	e := must(a.Get("counter", 2))
	var v values.Int64
	ensure(archive.Decode(e, &v))
	deepEqual(t, v, values.Int64(20))
	deepEqual(t, e.Seq, uint64(2))

	var got []values.Int64
	ensure(a.Range("counter", 3, func(e archive.Entry) error {
		var v values.Int64
		ensure(archive.Decode(e, &v))
		got = append(got, v)
		return nil
	}))
	deepEqual(t, got, []values.Int64{30, 40, 50})

	deepEqual(t, must(a.Streams()), []string{"counter"})
}

func TestArchive_missedRecords(t *testing.T) {
	s := openStore(t, 4)
	a := openArchive(t)

	setAll(t, s, 1, 2)
	must(a.Pull(s, "c"))

	// 7 more writes into a 4-slot ring: seqs 3..5 are gone before the pull
	setAll(t, s, 3, 4, 5, 6, 7, 8, 9)
	res := must(a.Pull(s, "c"))
	deepEqual(t, res, archive.PullResult{Copied: 4, Missed: 3, Last: 9})

	_, err := a.Get("c", 4)
	if !errors.Is(err, archive.ErrNotFound) {
		t.Fatalf("Get of a missed record: err = %v, wanted ErrNotFound", err)
	}
}

func TestArchive_streamMismatch(t *testing.T) {
	a := openArchive(t)
	s := openStore(t, 4)
	setAll(t, s, 1)
	must(a.Pull(s, "x"))

	ps := must(snapmap.Open(filepath.Join(t.TempDir(), "pose.snap"), new(values.Pose), snapmap.Options{Capacity: 4}))
	defer ps.Close()
	_, err := a.Pull(ps, "x")
	if !errors.Is(err, archive.ErrStreamMismatch) {
		t.Fatalf("Pull with a different payload size: err = %v, wanted ErrStreamMismatch", err)
	}
}

func TestArchive_unknownStream(t *testing.T) {
	a := openArchive(t)
	if _, err := a.Last("nope"); !errors.Is(err, archive.ErrNoStream) {
		t.Errorf("Last: err = %v, wanted ErrNoStream", err)
	}
	if _, err := a.Get("nope", 1); !errors.Is(err, archive.ErrNoStream) {
		t.Errorf("Get: err = %v, wanted ErrNoStream", err)
	}
}

func TestArchive_follow(t *testing.T) {
	s := openStore(t, 64)
	a := openArchive(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- a.Follow(ctx, s, "f", 5*time.Millisecond)
	}()

	setAll(t, s, 1, 2, 3)
	deadline := time.Now().Add(5 * time.Second)
	for {
		last, err := a.Last("f")
		if err == nil && last == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Follow did not catch up: last = %d, err = %v", last, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow = %v, wanted nil", err)
	}
}

func TestDecode_shapeMismatch(t *testing.T) {
	var p values.Pose
	err := archive.Decode(archive.Entry{Seq: 1, Payload: make([]byte, 8)}, &p)
	if !errors.Is(err, snapmap.ErrShapeMismatch) {
		t.Fatalf("err = %v, wanted ErrShapeMismatch", err)
	}
}

func openStore(t testing.TB, capacity int) *snapmap.Store[*values.Int64] {
	t.Helper()
	s := must(snapmap.Open(filepath.Join(t.TempDir(), "counter.snap"), new(values.Int64), snapmap.Options{Capacity: capacity}))
	t.Cleanup(func() { s.Close() })
	return s
}

func openArchive(t testing.TB) *archive.Archive {
	t.Helper()
	a := must(archive.Open(filepath.Join(t.TempDir(), "archive.db"), archive.Options{NoSync: true}))
	t.Cleanup(func() { a.Close() })
	return a
}

func setAll(t testing.TB, s *snapmap.Store[*values.Int64], vals ...int64) {
	t.Helper()
	for _, v := range vals {
		iv := values.Int64(v)
		ensure(s.Set(&iv))
	}
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
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
