package source

import (
	"archive/zip"
	"compress/flate"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/kbukum/datapipe/errors"
	"github.com/kbukum/datapipe/pipeline"
)

// Zipped reads one record per file entry of a zip archive, in the order of
// the central directory. Records are the uncompressed entry bytes.
type Zipped struct {
	path string
}

// ReadZippedRecords returns a source over the entries of the archive at
// path.
func ReadZippedRecords(path string) *Zipped {
	return &Zipped{path: path}
}

// Describe implements pipeline.RecordSource.
func (z *Zipped) Describe() string {
	return fmt.Sprintf("read_zipped_records(%s)", z.path)
}

// Validate reports a configuration error when the archive does not exist.
// A file that is not a valid archive fails on the first pull instead.
func (z *Zipped) Validate() error {
	fi, err := os.Stat(z.path)
	if err != nil {
		return errors.Configuration("read_zipped_records", fmt.Sprintf("cannot read %q: %v", z.path, err))
	}
	if fi.IsDir() {
		return errors.Configuration("read_zipped_records", fmt.Sprintf("%q is a directory", z.path))
	}
	return nil
}

// Open implements pipeline.RecordSource.
func (z *Zipped) Open(context.Context) (pipeline.SourceHandle, error) {
	r, err := zip.OpenReader(z.path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", z.path, err)
	}
	entries := make([]*zip.File, 0, len(r.File))
	for _, f := range r.File {
		if !f.FileInfo().IsDir() {
			entries = append(entries, f)
		}
	}
	return &zipHandle{r: r, entries: entries}, nil
}

type zipHandle struct {
	r       *zip.ReadCloser
	entries []*zip.File
	pos     int
}

func (h *zipHandle) Next(ctx context.Context) (pipeline.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if h.pos >= len(h.entries) {
		return nil, false, nil
	}
	f := h.entries[h.pos]
	h.pos++
	data, err := readEntry(f)
	if err != nil {
		if isCorruptEntry(err) {
			return nil, false, errors.RecordCorrupt("", errors.NoPosition, fmt.Errorf("entry %s: %w", f.Name, err))
		}
		return nil, false, fmt.Errorf("read entry %s: %w", f.Name, err)
	}
	return data, true, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// isCorruptEntry reports whether err describes bad entry bytes rather than
// a failing file.
func isCorruptEntry(err error) bool {
	var corrupt flate.CorruptInputError
	return errors.Is(err, zip.ErrChecksum) ||
		errors.Is(err, zip.ErrAlgorithm) ||
		errors.Is(err, zip.ErrFormat) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.As(err, &corrupt)
}

func (h *zipHandle) Close() error { return h.r.Close() }

func (h *zipHandle) Position() ([]byte, error) { return encodeIndex(int64(h.pos)), nil }

func (h *zipHandle) Seek(_ context.Context, token []byte) error {
	pos, err := decodeIndex(token, int64(len(h.entries)))
	if err != nil {
		return err
	}
	h.pos = int(pos)
	return nil
}
