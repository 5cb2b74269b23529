package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kbukum/datapipe/errors"
	"github.com/kbukum/datapipe/pipeline"
)

// Files enumerates file-system paths matching a pattern.
//
// The pattern is a doublestar glob: "*", "?", "[...]" and "{a,b}" match
// within a path segment and "**" matches any number of directories. A
// pattern without wildcards names a directory, listed recursively, or a
// single file. Paths are yielded as strings in lexical order, which keeps
// sharding and checkpoints reproducible.
type Files struct {
	pattern string
	root    string
	glob    string
}

// ListFiles returns a source of the paths matching pattern.
func ListFiles(pattern string) *Files {
	root, glob := splitPattern(pattern)
	return &Files{pattern: pattern, root: root, glob: glob}
}

// Describe implements pipeline.RecordSource.
func (f *Files) Describe() string {
	return fmt.Sprintf("list_files(%s)", f.pattern)
}

// Validate reports a configuration error for a malformed pattern or a
// missing root.
func (f *Files) Validate() error {
	if f.pattern == "" {
		return errors.Configuration("list_files", "pattern must not be empty")
	}
	if f.glob != "" && !doublestar.ValidatePattern(f.glob) {
		return errors.Configuration("list_files", fmt.Sprintf("invalid pattern %q", f.glob))
	}
	if _, err := os.Stat(f.root); err != nil {
		return errors.Configuration("list_files", fmt.Sprintf("cannot read %q: %v", f.root, err))
	}
	return nil
}

// Open implements pipeline.RecordSource. The matching paths are listed
// once per handle.
func (f *Files) Open(ctx context.Context) (pipeline.SourceHandle, error) {
	paths, err := f.list(ctx)
	if err != nil {
		return nil, err
	}
	return &filesHandle{paths: paths}, nil
}

func (f *Files) list(ctx context.Context) ([]string, error) {
	var (
		paths []string
		err   error
	)
	if f.glob == "" {
		paths, err = f.walk(ctx)
	} else {
		paths, err = f.match(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", f.pattern, err)
	}
	slices.Sort(paths)
	return paths, nil
}

// walk lists every regular file under a literal root.
func (f *Files) walk(ctx context.Context) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.Type().IsRegular() {
			paths = append(paths, p)
		}
		return nil
	})
	return paths, err
}

// match lists the regular files under root that match the glob.
func (f *Files) match(ctx context.Context) ([]string, error) {
	var paths []string
	err := doublestar.GlobWalk(os.DirFS(f.root), f.glob, func(p string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.Type().IsRegular() {
			paths = append(paths, filepath.Join(f.root, filepath.FromSlash(p)))
		}
		return nil
	}, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
	return paths, err
}

type filesHandle struct {
	paths []string
	pos   int
}

func (h *filesHandle) Next(context.Context) (pipeline.Record, bool, error) {
	if h.pos >= len(h.paths) {
		return nil, false, nil
	}
	p := h.paths[h.pos]
	h.pos++
	return p, true, nil
}

func (h *filesHandle) Close() error { return nil }

func (h *filesHandle) Position() ([]byte, error) { return encodeIndex(int64(h.pos)), nil }

func (h *filesHandle) Seek(_ context.Context, token []byte) error {
	pos, err := decodeIndex(token, int64(len(h.paths)))
	if err != nil {
		return err
	}
	h.pos = int(pos)
	return nil
}

// splitPattern separates the literal directory prefix of a pattern from
// its glob. The glob is empty for a pattern without wildcards.
func splitPattern(pattern string) (string, string) {
	clean := filepath.ToSlash(filepath.Clean(pattern))
	if !strings.ContainsAny(clean, "*?[{") {
		return filepath.FromSlash(clean), ""
	}
	root, glob := doublestar.SplitPattern(clean)
	return filepath.FromSlash(root), glob
}
