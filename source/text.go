package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/kbukum/datapipe/errors"
	"github.com/kbukum/datapipe/pipeline"
)

// Text reads one string record per line of a UTF-8 text file. Line endings
// ("\n" or "\r\n") are stripped. Its position is the byte offset of the
// next line.
type Text struct {
	path    string
	maxLine int
}

// TextOption configures a Text source.
type TextOption func(*Text)

// WithMaxLineBytes bounds the length of one line. Longer lines are
// skipped with a record error.
func WithMaxLineBytes(n int) TextOption {
	return func(t *Text) { t.maxLine = n }
}

// WithConfig applies the shared source configuration.
func WithConfig(cfg Config) TextOption {
	return func(t *Text) {
		cfg.ApplyDefaults()
		t.maxLine = cfg.MaxLineBytes
	}
}

// ReadText returns a source over the lines of the file at path.
func ReadText(path string, opts ...TextOption) *Text {
	t := &Text{path: path, maxLine: DefaultMaxLineBytes}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Describe implements pipeline.RecordSource.
func (t *Text) Describe() string {
	return fmt.Sprintf("read_text(%s)", t.path)
}

// Validate reports a configuration error for a missing file or a
// non-positive line bound.
func (t *Text) Validate() error {
	if t.maxLine <= 0 {
		return errors.Configuration("read_text", "max line bytes must be positive")
	}
	fi, err := os.Stat(t.path)
	if err != nil {
		return errors.Configuration("read_text", fmt.Sprintf("cannot read %q: %v", t.path, err))
	}
	if fi.IsDir() {
		return errors.Configuration("read_text", fmt.Sprintf("%q is a directory", t.path))
	}
	return nil
}

// Open implements pipeline.RecordSource.
func (t *Text) Open(context.Context) (pipeline.SourceHandle, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, err
	}
	return &textHandle{f: f, r: bufio.NewReader(f), max: t.maxLine}, nil
}

type textHandle struct {
	f      *os.File
	r      *bufio.Reader
	max    int
	offset int64
}

func (h *textHandle) Next(ctx context.Context) (pipeline.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	start := h.offset
	line, tooLong, ok, err := h.readLine()
	if err != nil || !ok {
		return nil, false, err
	}
	if tooLong {
		return nil, false, errors.RecordCorrupt("", errors.NoPosition,
			fmt.Errorf("line at offset %d exceeds %d bytes", start, h.max))
	}
	if !utf8.Valid(line) {
		return nil, false, errors.RecordCorrupt("", errors.NoPosition,
			fmt.Errorf("line at offset %d is not valid UTF-8", start))
	}
	return string(line), true, nil
}

// readLine consumes one line and returns it without its line ending.
func (h *textHandle) readLine() (line []byte, tooLong, ok bool, err error) {
	for {
		chunk, err := h.r.ReadSlice('\n')
		h.offset += int64(len(chunk))
		if !tooLong {
			if len(line)+len(chunk) > h.max+2 {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		switch {
		case err == nil:
			return h.finish(line, tooLong)
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err == io.EOF:
			if len(line) == 0 && !tooLong {
				return nil, false, false, nil
			}
			return h.finish(line, tooLong)
		default:
			return nil, false, false, err
		}
	}
}

func (h *textHandle) finish(line []byte, tooLong bool) ([]byte, bool, bool, error) {
	line = trimEOL(line)
	if tooLong || len(line) > h.max {
		return nil, true, true, nil
	}
	return line, false, true, nil
}

func trimEOL(line []byte) []byte {
	n := len(line)
	if n > 0 && line[n-1] == '\n' {
		n--
		if n > 0 && line[n-1] == '\r' {
			n--
		}
	}
	return line[:n]
}

func (h *textHandle) Close() error { return h.f.Close() }

func (h *textHandle) Position() ([]byte, error) { return encodeIndex(h.offset), nil }

func (h *textHandle) Seek(_ context.Context, token []byte) error {
	fi, err := h.f.Stat()
	if err != nil {
		return err
	}
	off, err := decodeIndex(token, fi.Size())
	if err != nil {
		return err
	}
	if _, err := h.f.Seek(off, io.SeekStart); err != nil {
		return err
	}
	h.r.Reset(h.f)
	h.offset = off
	return nil
}
