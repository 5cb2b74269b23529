package pipeline

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/kbukum/datapipe/errors"
)

// RecordSource is an ordered producer of records from one origin.
// Open must return a handle positioned at the first record; a source may be
// opened any number of times.
type RecordSource interface {
	// Describe returns a stable descriptor used in diagnostics and in the
	// pipeline fingerprint.
	Describe() string
	Open(ctx context.Context) (SourceHandle, error)
}

// SourceHandle is one open cursor over a source.
//
// Next returns (nil, false, nil) at the end of the source. A record error
// (errors.IsRecord) consumes one position and leaves the handle usable; any
// other error ends iteration.
type SourceHandle interface {
	Next(ctx context.Context) (Record, bool, error)
	Close() error
}

// Seeker is implemented by handles that can save and restore their
// position directly. Handles without it are resumed by reopening and
// discarding the records already emitted.
type Seeker interface {
	Position() ([]byte, error)
	Seek(ctx context.Context, token []byte) error
}

// SourceValidator is implemented by sources that can cheaply check their
// descriptor when the pipeline is built.
type SourceValidator interface {
	Validate() error
}

// sourceToken is the resumption token of a source stage.
type sourceToken struct {
	Count     int64
	Exhausted bool
	Position  []byte
}

// sourceStage opens its source lazily on the first pull and closes the
// handle as soon as the source is exhausted.
type sourceStage struct {
	src  RecordSource
	name string

	h         SourceHandle
	count     int64
	exhausted bool
	resume    *sourceToken
}

func (s *sourceStage) next(ctx context.Context) (element, bool, error) {
	if s.exhausted {
		return element{}, false, nil
	}
	if s.h == nil {
		if err := s.open(ctx); err != nil {
			return element{}, false, err
		}
		if s.exhausted {
			return element{}, false, nil
		}
	}

	rec, ok, err := s.h.Next(ctx)
	if err != nil {
		if isContextErr(ctx, err) {
			return element{}, false, err
		}
		if errors.IsRecord(err) {
			pos := s.count
			s.count++
			return element{}, false, recordError(s.name, pos, err)
		}
		return element{}, false, streamError(s.name, err)
	}
	if !ok {
		s.exhausted = true
		if err := s.closeHandle(); err != nil {
			return element{}, false, streamError(s.name, err)
		}
		return element{}, false, nil
	}
	el := element{value: rec, index: s.count}
	s.count++
	return el, true, nil
}

func (s *sourceStage) open(ctx context.Context) error {
	tok := s.resume
	s.resume = nil
	if tok != nil && tok.Exhausted {
		s.count = tok.Count
		s.exhausted = true
		return nil
	}

	h, err := s.src.Open(ctx)
	if err != nil {
		if isContextErr(ctx, err) {
			return err
		}
		return streamError(s.name, err)
	}
	s.h = h
	if tok == nil || tok.Count == 0 {
		return nil
	}

	if seeker, ok := h.(Seeker); ok && tok.Position != nil {
		if err := seeker.Seek(ctx, tok.Position); err != nil {
			return streamError(s.name, fmt.Errorf("seek to checkpoint: %w", err))
		}
		s.count = tok.Count
		return nil
	}

	for s.count < tok.Count {
		_, ok, err := h.Next(ctx)
		if err != nil && !errors.IsRecord(err) {
			return streamError(s.name, fmt.Errorf("replay to record %d: %w", tok.Count, err))
		}
		if err == nil && !ok {
			return streamError(s.name, fmt.Errorf("source ended at record %d while replaying to %d", s.count, tok.Count))
		}
		s.count++
	}
	return nil
}

func (s *sourceStage) state() ([]byte, error) {
	if s.resume != nil {
		return encodeToken(s.resume)
	}
	tok := sourceToken{Count: s.count, Exhausted: s.exhausted}
	if seeker, ok := s.h.(Seeker); ok && !s.exhausted {
		pos, err := seeker.Position()
		if err != nil {
			return nil, fmt.Errorf("source %s position: %w", s.name, err)
		}
		tok.Position = pos
	}
	return encodeToken(tok)
}

func (s *sourceStage) restore(token []byte) error {
	var tok sourceToken
	if err := decodeToken(token, &tok); err != nil {
		return err
	}
	if tok.Count < 0 {
		return fmt.Errorf("negative record count %d", tok.Count)
	}
	s.resume = &tok
	return nil
}

func (s *sourceStage) close() error {
	return s.closeHandle()
}

func (s *sourceStage) closeHandle() error {
	if s.h == nil {
		return nil
	}
	h := s.h
	s.h = nil
	return h.Close()
}

// sequenceSource yields the items of an in-memory slice.
type sequenceSource struct {
	items []Record
}

func (s *sequenceSource) Describe() string {
	return fmt.Sprintf("sequence(len=%d)", len(s.items))
}

func (s *sequenceSource) Open(context.Context) (SourceHandle, error) {
	return &sequenceHandle{items: s.items}, nil
}

type sequenceHandle struct {
	items []Record
	pos   int
}

func (h *sequenceHandle) Next(context.Context) (Record, bool, error) {
	if h.pos >= len(h.items) {
		return nil, false, nil
	}
	r := h.items[h.pos]
	h.pos++
	return r, true, nil
}

func (h *sequenceHandle) Close() error { return nil }

func (h *sequenceHandle) Position() ([]byte, error) {
	return binary.BigEndian.AppendUint64(nil, uint64(h.pos)), nil
}

func (h *sequenceHandle) Seek(_ context.Context, token []byte) error {
	if len(token) != 8 {
		return fmt.Errorf("sequence position must be 8 bytes, got %d", len(token))
	}
	pos := binary.BigEndian.Uint64(token)
	if pos > uint64(len(h.items)) {
		return fmt.Errorf("sequence position %d beyond length %d", pos, len(h.items))
	}
	h.pos = int(pos)
	return nil
}
