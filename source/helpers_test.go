package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kbukum/datapipe/errors"
	"github.com/kbukum/datapipe/pipeline"
)

func build(t *testing.T, src pipeline.RecordSource) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.FromSource(src).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return p
}

// drain pulls it to the end, collecting records and record errors. Any
// other error fails the test.
func drain(t *testing.T, it *pipeline.Iterator) ([]pipeline.Record, []error) {
	t.Helper()
	defer it.Close()
	var recs []pipeline.Record
	var errs []error
	for {
		r, ok, err := it.Next(context.Background())
		if err != nil {
			if errors.IsRecord(err) {
				errs = append(errs, err)
				continue
			}
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			return recs, errs
		}
		recs = append(recs, r)
	}
}

// resumeAfter pulls k records from a fresh iterator, checkpoints it through
// its JSON form and returns an iterator restored from that checkpoint.
func resumeAfter(t *testing.T, p *pipeline.Pipeline, k int) *pipeline.Iterator {
	t.Helper()
	ctx := context.Background()
	it := p.Iter(ctx)
	defer it.Close()
	for range k {
		if _, _, err := it.Next(ctx); err != nil && !errors.IsRecord(err) {
			t.Fatal(err)
		}
	}
	cp, err := p.StateOf(ctx, it)
	if err != nil {
		t.Fatal(err)
	}
	data, err := cp.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := pipeline.UnmarshalCheckpoint(data)
	if err != nil {
		t.Fatal(err)
	}
	restored, err := p.Restore(ctx, decoded)
	if err != nil {
		t.Fatal(err)
	}
	return restored
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}
