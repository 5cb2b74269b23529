package pipeline

import (
	"context"
	"encoding/gob"
	stderrors "errors"
	"fmt"

	"github.com/kbukum/datapipe/errors"
)

// Record is one opaque unit of data flowing through a pipeline.
type Record = any

// MapFunc transforms one record. Returning ErrSkip drops the record.
type MapFunc func(ctx context.Context, r Record) (Record, error)

// FilterFunc reports whether a record should be kept.
type FilterFunc func(ctx context.Context, r Record) (bool, error)

// ErrSkip is returned by a MapFunc to drop the current record silently.
var ErrSkip = stderrors.New("pipeline: skip record")

// element is a record together with the index its source emitted it at.
type element struct {
	value Record
	index int64
}

func init() {
	gob.Register([]any{})
	gob.Register(map[string]any{})
	gob.Register([]string{})
	gob.Register([][]byte{})
}

// RegisterRecordType makes a custom record type storable in checkpoint
// tokens. Only records held in buffers (prefetch, batch, shuffle, zip,
// map_parallel) are stored, so types that never sit in a buffer need no
// registration.
func RegisterRecordType(value any) {
	gob.Register(value)
}

// recordError attaches stage and position to an error raised while
// processing one record. Unclassified errors become record errors; errors
// that already carry a kind keep it.
func recordError(stage string, position int64, err error) error {
	if pe, ok := errors.AsPipelineError(err); ok {
		c := pe.Clone()
		if c.Stage == "" {
			c.Stage = stage
		}
		if c.Position == errors.NoPosition {
			c.Position = position
		}
		return c
	}
	return errors.Record(stage, position, err)
}

// streamError classifies a non-record failure of a stage.
func streamError(stage string, err error) error {
	if _, ok := errors.AsPipelineError(err); ok {
		return err
	}
	return errors.Stream(stage, err)
}

// isContextErr reports whether err is the cancellation of ctx.
func isContextErr(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

// safeCall runs fn, turning a panic into an error.
func safeCall[T any](fn func() (T, error)) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
