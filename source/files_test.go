package source

import (
	"fmt"
	"path/filepath"
	"slices"
	"testing"

	"github.com/kbukum/datapipe/errors"
	"github.com/kbukum/datapipe/pipeline"
)

func fileTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, rel := range []string{"a/1.txt", "a/b/2.txt", "a/b/3.log", "c.txt", ".hidden/4.txt"} {
		writeFile(t, filepath.Join(root, rel), []byte(rel))
	}
	return root
}

func TestListFiles(t *testing.T) {
	root := fileTree(t)
	tests := []struct {
		name    string
		pattern string
		want    []string
	}{
		{"directory", root, []string{".hidden/4.txt", "a/1.txt", "a/b/2.txt", "a/b/3.log", "c.txt"}},
		{"single level", filepath.Join(root, "*.txt"), []string{"c.txt"}},
		{"recursive", filepath.Join(root, "**", "*.txt"), []string{".hidden/4.txt", "a/1.txt", "a/b/2.txt", "c.txt"}},
		{"trailing double star", filepath.Join(root, "a", "**"), []string{"a/1.txt", "a/b/2.txt", "a/b/3.log"}},
		{"inner wildcard", filepath.Join(root, "a", "*", "*.log"), []string{"a/b/3.log"}},
		{"alternation", filepath.Join(root, "a", "**", "*.{txt,log}"), []string{"a/1.txt", "a/b/2.txt", "a/b/3.log"}},
		{"single file", filepath.Join(root, "c.txt"), []string{"c.txt"}},
		{"no match", filepath.Join(root, "*.zip"), nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recs, errs := drain(t, build(t, ListFiles(tc.pattern)).Iter(t.Context()))
			if len(errs) != 0 {
				t.Fatalf("unexpected record errors: %v", errs)
			}
			var want []pipeline.Record
			for _, rel := range tc.want {
				want = append(want, filepath.Join(root, filepath.FromSlash(rel)))
			}
			if fmt.Sprint(recs) != fmt.Sprint(want) {
				t.Errorf("got %v, want %v", recs, want)
			}
		})
	}
}

func TestListFiles_Invalid(t *testing.T) {
	root := fileTree(t)
	tests := []struct {
		name    string
		pattern string
	}{
		{"empty", ""},
		{"missing root", filepath.Join(root, "missing", "*.txt")},
		{"malformed segment", filepath.Join(root, "[")},
		{"unclosed alternation", filepath.Join(root, "{a,b")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := pipeline.FromSource(ListFiles(tc.pattern)).Build()
			if !errors.IsConfiguration(err) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestListFiles_Resume(t *testing.T) {
	root := fileTree(t)
	p := build(t, ListFiles(filepath.Join(root, "**")))
	full, _ := drain(t, p.Iter(t.Context()))
	for k := 0; k <= len(full); k++ {
		rest, _ := drain(t, resumeAfter(t, p, k))
		if fmt.Sprint(rest) != fmt.Sprint(full[k:]) {
			t.Errorf("k=%d: resumed %v, want %v", k, rest, full[k:])
		}
	}
}

func TestListFiles_Shards(t *testing.T) {
	root := fileTree(t)
	src := ListFiles(filepath.Join(root, "**"))
	full, _ := drain(t, build(t, src).Iter(t.Context()))

	var union []string
	for i := range 2 {
		p, err := pipeline.FromSource(src).Shard(2, i).Build()
		if err != nil {
			t.Fatal(err)
		}
		recs, _ := drain(t, p.Iter(t.Context()))
		for _, r := range recs {
			union = append(union, r.(string))
		}
	}
	slices.Sort(union)
	if fmt.Sprint(union) != fmt.Sprint(full) {
		t.Errorf("shards cover %v, want %v", union, full)
	}
}

func TestSplitPattern(t *testing.T) {
	tests := []struct {
		pattern string
		root    string
		glob    string
	}{
		{"data/**/*.zip", "data", "**/*.zip"},
		{"*.txt", ".", "*.txt"},
		{"/srv/x/*.bin", "/srv/x", "*.bin"},
		{"/*.bin", "/", "*.bin"},
		{"data/{train,eval}/*.bin", "data", "{train,eval}/*.bin"},
		{"data/train/", "data/train", ""},
	}
	for _, tc := range tests {
		t.Run(tc.pattern, func(t *testing.T) {
			root, glob := splitPattern(tc.pattern)
			if root != filepath.FromSlash(tc.root) || glob != tc.glob {
				t.Errorf("splitPattern(%q) = %q, %q; want %q, %q", tc.pattern, root, glob, tc.root, tc.glob)
			}
		})
	}
}
