package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/datapipe/errors"
)

// testSource yields ints 0..n-1 (or forever when n < 0). Positions listed in
// corrupt produce record errors, and failAt produces an unclassified error
// that ends the stream.
type testSource struct {
	n        int
	corrupt  map[int]bool
	failAt   int
	seekable bool

	opened atomic.Int64
	closed atomic.Int64
}

func newTestSource(n int) *testSource {
	return &testSource{n: n, failAt: -1, seekable: true}
}

func (s *testSource) Describe() string { return fmt.Sprintf("test(n=%d)", s.n) }

func (s *testSource) Open(context.Context) (SourceHandle, error) {
	s.opened.Add(1)
	h := &testHandle{src: s}
	if s.seekable {
		return &seekableTestHandle{h}, nil
	}
	return h, nil
}

func (s *testSource) openHandles() int64 { return s.opened.Load() - s.closed.Load() }

type testHandle struct {
	src    *testSource
	pos    int
	closed bool
}

func (h *testHandle) Next(ctx context.Context) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if h.src.n >= 0 && h.pos >= h.src.n {
		return nil, false, nil
	}
	pos := h.pos
	h.pos++
	if pos == h.src.failAt {
		return nil, false, fmt.Errorf("disk went away at %d", pos)
	}
	if h.src.corrupt[pos] {
		return nil, false, errors.RecordCorrupt("", errors.NoPosition, fmt.Errorf("bad bytes at %d", pos))
	}
	return pos, true, nil
}

func (h *testHandle) Close() error {
	if !h.closed {
		h.closed = true
		h.src.closed.Add(1)
	}
	return nil
}

type seekableTestHandle struct {
	*testHandle
}

func (h *seekableTestHandle) Position() ([]byte, error) {
	return []byte(fmt.Sprint(h.pos)), nil
}

func (h *seekableTestHandle) Seek(_ context.Context, token []byte) error {
	_, err := fmt.Sscan(string(token), &h.pos)
	return err
}

// drain pulls it to the end and renders every outcome, so sequences with
// record errors can be compared. A terminal error ends the output.
func drain(t *testing.T, it *Iterator) []string {
	t.Helper()
	var out []string
	ctx := context.Background()
	for i := 0; ; i++ {
		if i > 100000 {
			t.Fatal("iterator did not terminate")
		}
		r, ok, err := it.Next(ctx)
		switch {
		case errors.IsRecord(err):
			pe, _ := errors.AsPipelineError(err)
			out = append(out, fmt.Sprintf("err(%s@%d)", pe.Stage, pe.Position))
		case err != nil:
			out = append(out, "fatal("+string(errors.KindOf(err))+")")
			return out
		case !ok:
			return out
		default:
			out = append(out, fmt.Sprint(r))
		}
	}
}

// pull takes k outcomes from it, rendered like drain.
func pull(t *testing.T, it *Iterator, k int) []string {
	t.Helper()
	var out []string
	ctx := context.Background()
	for range k {
		r, ok, err := it.Next(ctx)
		switch {
		case errors.IsRecord(err):
			pe, _ := errors.AsPipelineError(err)
			out = append(out, fmt.Sprintf("err(%s@%d)", pe.Stage, pe.Position))
		case err != nil:
			out = append(out, "fatal("+string(errors.KindOf(err))+")")
			return out
		case !ok:
			return out
		default:
			out = append(out, fmt.Sprint(r))
		}
	}
	return out
}

func mustBuild(t *testing.T, b *Builder) *Pipeline {
	t.Helper()
	p, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return p
}

func ints(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func strs(vals ...int) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = fmt.Sprint(v)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		runtime.GC()
		time.Sleep(5 * time.Millisecond)
	}
}

var double = MapOf(func(_ context.Context, n int) (int, error) { return n * 2, nil })

var even = FilterOf(func(n int) bool { return n%2 == 0 })
