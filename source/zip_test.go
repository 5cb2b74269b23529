package source

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/kbukum/datapipe/errors"
	"github.com/kbukum/datapipe/pipeline"
)

type zipEntry struct {
	name   string
	data   string
	method uint16
}

func writeZip(t *testing.T, path string, entries []zipEntry) {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		f, err := w.CreateHeader(&zip.FileHeader{Name: e.name, Method: e.method})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(e.data)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	writeFile(t, path, buf.Bytes())
}

func strs(recs []pipeline.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = string(r.([]byte))
	}
	return out
}

func TestReadZippedRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shard-000.zip")
	writeZip(t, path, []zipEntry{
		{name: "0.bin", data: "zero", method: zip.Deflate},
		{name: "dir/", method: zip.Store},
		{name: "dir/1.bin", data: "one", method: zip.Store},
		{name: "2.bin", data: "", method: zip.Deflate},
		{name: "3.bin", data: "three", method: zip.Deflate},
	})
	recs, errs := drain(t, build(t, ReadZippedRecords(path)).Iter(t.Context()))
	if len(errs) != 0 {
		t.Fatalf("unexpected record errors: %v", errs)
	}
	if got := fmt.Sprint(strs(recs)); got != "[zero one  three]" {
		t.Errorf("unexpected records %s", got)
	}
}

func TestReadZippedRecords_CorruptEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.zip")
	writeZip(t, path, []zipEntry{
		{name: "a", data: "first", method: zip.Store},
		{name: "b", data: "hello world", method: zip.Store},
		{name: "c", data: "third", method: zip.Store},
	})
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, path, bytes.Replace(data, []byte("hello world"), []byte("HELLO world"), 1))

	recs, errs := drain(t, build(t, ReadZippedRecords(path)).Iter(t.Context()))
	if got := fmt.Sprint(strs(recs)); got != "[first third]" {
		t.Errorf("unexpected records %s", got)
	}
	if len(errs) != 1 {
		t.Fatalf("expected one record error, got %v", errs)
	}
	pe, _ := errors.AsPipelineError(errs[0])
	if pe.Code != errors.ErrCodeRecordCorrupt || pe.Position != 1 {
		t.Errorf("expected corrupt record at position 1, got %v", errs[0])
	}
	if !errors.Is(errs[0], zip.ErrChecksum) {
		t.Errorf("expected checksum cause, got %v", errs[0])
	}
}

func TestReadZippedRecords_NotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.zip")
	writeFile(t, path, []byte("this is not a zip archive"))
	p := build(t, ReadZippedRecords(path))
	it := p.Iter(t.Context())
	defer it.Close()
	if _, _, err := it.Next(t.Context()); !errors.IsStream(err) {
		t.Fatalf("expected stream error, got %v", err)
	}
	if _, _, err := it.Next(t.Context()); !errors.IsStream(err) {
		t.Errorf("expected the stream error to repeat, got %v", err)
	}
}

func TestReadZippedRecords_Invalid(t *testing.T) {
	dir := t.TempDir()
	for name, path := range map[string]string{
		"missing":   filepath.Join(dir, "missing.zip"),
		"directory": dir,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := pipeline.FromSource(ReadZippedRecords(path)).Build()
			if !errors.IsConfiguration(err) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestReadZippedRecords_Resume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.zip")
	var entries []zipEntry
	for i := range 7 {
		entries = append(entries, zipEntry{name: fmt.Sprintf("%d", i), data: fmt.Sprintf("record-%d", i), method: zip.Deflate})
	}
	writeZip(t, path, entries)

	p, err := pipeline.FromSource(ReadZippedRecords(path)).Prefetch(2).Batch(2, false).Build()
	if err != nil {
		t.Fatal(err)
	}
	full, _ := drain(t, p.Iter(t.Context()))
	for k := 0; k <= len(full); k++ {
		rest, _ := drain(t, resumeAfter(t, p, k))
		if fmt.Sprint(rest) != fmt.Sprint(full[k:]) {
			t.Errorf("k=%d: resumed %v, want %v", k, rest, full[k:])
		}
	}
}
