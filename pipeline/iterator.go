package pipeline

import (
	"context"
	"runtime"
	"sync"

	"github.com/kbukum/datapipe/errors"
	"github.com/kbukum/datapipe/logger"
)

// Iterator is one live traversal of a Pipeline. It is driven by a single
// consumer and is not safe for concurrent use.
//
// After the end of the stream Next keeps returning (nil, false, nil).
// After a terminal error Next keeps returning that error.
type Iterator struct {
	id       string
	pipeline *Pipeline
	root     stage
	res      *resources
	opts     iterOptions
	log      *logger.Logger
	cleanup  runtime.Cleanup

	delivered int64
	done      bool
	closed    bool
	failure   error
}

// resources holds everything an iterator must release. It is kept apart
// from Iterator so a GC cleanup can release an abandoned iterator.
type resources struct {
	stages []stage
	cancel context.CancelFunc
	once   sync.Once
	err    error
}

// release stops background workers and closes all stages, downstream
// first so no worker pulls from a closed upstream.
func (r *resources) release() error {
	r.once.Do(func() {
		r.cancel()
		for i := len(r.stages) - 1; i >= 0; i-- {
			if err := r.stages[i].close(); err != nil && r.err == nil {
				r.err = err
			}
		}
	})
	return r.err
}

// ID returns the iterator's unique id, also stamped into its checkpoints.
func (it *Iterator) ID() string { return it.id }

// Delivered returns the number of records returned by Next so far.
func (it *Iterator) Delivered() int64 { return it.delivered }

// Next returns the next record, (nil, false, nil) at the end of the
// pipeline, or an error. Record errors leave the iterator usable. A
// cancelled ctx returns ctx.Err() without ending the iterator.
func (it *Iterator) Next(ctx context.Context) (Record, bool, error) {
	if it.failure != nil {
		return nil, false, it.failure
	}
	if it.closed {
		return nil, false, errors.StreamClosed()
	}
	if it.done {
		return nil, false, nil
	}

	for {
		el, ok, err := it.root.next(ctx)
		if err != nil {
			if isContextErr(ctx, err) {
				return nil, false, err
			}
			if errors.IsRecord(err) {
				if it.handleRecordError(ctx, err) {
					continue
				}
				return nil, false, err
			}
			return nil, false, it.fail(ctx, err)
		}
		if !ok {
			it.done = true
			it.log.Debug("iterator exhausted", it.fields())
			if err := it.res.release(); err != nil {
				it.log.Warn("failed to release iterator resources", logger.ErrorFields("release", err))
			}
			return nil, false, nil
		}
		it.delivered++
		it.opts.metrics.RecordDelivered(ctx, it.pipeline.root.name)
		return el.value, true, nil
	}
}

// handleRecordError reports whether the error was skipped.
func (it *Iterator) handleRecordError(ctx context.Context, err error) bool {
	pe, _ := errors.AsPipelineError(err)
	it.opts.metrics.RecordError(ctx, pe.Stage, string(pe.Code))
	if it.opts.policy != SkipPolicy {
		return false
	}
	it.opts.metrics.RecordSkipped(ctx, pe.Stage)
	it.log.Warn("record skipped", logger.Merge(it.fields(), errors.Fields(err)))
	return true
}

// fail moves the iterator into its permanent failure state.
func (it *Iterator) fail(ctx context.Context, err error) error {
	err = streamError("pipeline", err)
	it.failure = err
	if pe, ok := errors.AsPipelineError(err); ok {
		it.opts.metrics.StreamFailure(ctx, pe.Stage, string(pe.Code))
	}
	it.log.Error("iterator failed", logger.Merge(it.fields(), errors.Fields(err)))
	if rerr := it.res.release(); rerr != nil {
		it.log.Warn("failed to release iterator resources", logger.ErrorFields("release", rerr))
	}
	return err
}

// Close stops background workers and closes every open source handle.
// Close is idempotent; Next after Close returns a stream error.
func (it *Iterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.cleanup.Stop()
	err := it.res.release()
	it.log.Debug("iterator closed", it.fields())
	return err
}

func (it *Iterator) fields() map[string]interface{} {
	return logger.Fields("delivered", it.delivered, "stages", len(it.res.stages))
}
