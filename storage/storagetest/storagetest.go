// Package storagetest holds a behavioural test suite every storage
// backend must pass.
package storagetest

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/kbukum/datapipe/storage"
)

// Run exercises s, which must start empty.
func Run(t *testing.T, s storage.Storage) {
	t.Helper()
	ctx := context.Background()

	t.Run("download missing", func(t *testing.T) {
		_, err := s.Download(ctx, "missing/object")
		if !storage.IsNotFound(err) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		ok, err := s.Exists(ctx, "missing/object")
		if err != nil || ok {
			t.Fatalf("Exists = %v, %v", ok, err)
		}
	})

	t.Run("upload and download", func(t *testing.T) {
		if err := s.Upload(ctx, "ckpt/a.json", strings.NewReader(`{"v":1}`)); err != nil {
			t.Fatalf("Upload: %v", err)
		}
		got := read(t, s, "ckpt/a.json")
		if got != `{"v":1}` {
			t.Errorf("got %q", got)
		}
		if ok, err := s.Exists(ctx, "ckpt/a.json"); err != nil || !ok {
			t.Errorf("Exists = %v, %v", ok, err)
		}
	})

	t.Run("upload replaces", func(t *testing.T) {
		if err := s.Upload(ctx, "ckpt/a.json", bytes.NewReader([]byte(`{"v":2}`))); err != nil {
			t.Fatal(err)
		}
		if got := read(t, s, "ckpt/a.json"); got != `{"v":2}` {
			t.Errorf("got %q", got)
		}
	})

	t.Run("list by prefix in order", func(t *testing.T) {
		for _, p := range []string{"ckpt/c.json", "ckpt/b.json", "other/x.bin"} {
			if err := s.Upload(ctx, p, strings.NewReader(p)); err != nil {
				t.Fatal(err)
			}
		}
		files, err := s.List(ctx, "ckpt/")
		if err != nil {
			t.Fatal(err)
		}
		var paths []string
		for _, f := range files {
			paths = append(paths, f.Path)
		}
		if strings.Join(paths, ",") != "ckpt/a.json,ckpt/b.json,ckpt/c.json" {
			t.Errorf("unexpected listing %v", paths)
		}
		if files[1].Size != int64(len("ckpt/b.json")) {
			t.Errorf("unexpected size %d", files[1].Size)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := s.Delete(ctx, "ckpt/b.json"); err != nil {
			t.Fatal(err)
		}
		if err := s.Delete(ctx, "ckpt/b.json"); err != nil {
			t.Errorf("deleting a missing object must succeed, got %v", err)
		}
		if ok, _ := s.Exists(ctx, "ckpt/b.json"); ok {
			t.Error("object still exists")
		}
	})
}

func read(t *testing.T, s storage.Storage, path string) string {
	t.Helper()
	rc, err := s.Download(context.Background(), path)
	if err != nil {
		t.Fatalf("Download(%s): %v", path, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
