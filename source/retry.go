package source

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/datapipe/errors"
	"github.com/kbukum/datapipe/logger"
	"github.com/kbukum/datapipe/pipeline"
	"github.com/kbukum/datapipe/resilience"
)

// retrying re-opens a source whose Open or Next fails with a stream error.
type retrying struct {
	src pipeline.RecordSource
	cfg resilience.RetryConfig
	log *logger.Logger
}

// WithRetry wraps src so that opening it is retried according to cfg.
// When the source's handles are seekable, a failed read is retried too: the
// handle is closed, the source re-opened and the new handle sought back to
// the record that failed. Record errors are never retried.
func WithRetry(src pipeline.RecordSource, cfg resilience.RetryConfig) pipeline.RecordSource {
	r := &retrying{src: src, cfg: cfg, log: logger.Get("source")}
	r.cfg.ApplyDefaults()
	if r.cfg.OnRetry == nil {
		r.cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
			r.log.Warn("retrying source", logger.Fields(
				logger.FieldSource, src.Describe(),
				"attempt", attempt,
				"backoff_ms", backoff.Milliseconds(),
				logger.FieldError, err.Error(),
			))
		}
	}
	return r
}

// Describe returns the wrapped source's descriptor, so wrapping does not
// change the pipeline fingerprint.
func (r *retrying) Describe() string { return r.src.Describe() }

// Validate delegates to the wrapped source.
func (r *retrying) Validate() error {
	if v, ok := r.src.(pipeline.SourceValidator); ok {
		return v.Validate()
	}
	return nil
}

func (r *retrying) Open(ctx context.Context) (pipeline.SourceHandle, error) {
	h, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := h.(pipeline.Seeker); !ok {
		return h, nil
	}
	return &retryHandle{src: r, h: h}, nil
}

func (r *retrying) open(ctx context.Context) (pipeline.SourceHandle, error) {
	return resilience.Retry(ctx, r.cfg, func() (pipeline.SourceHandle, error) {
		return r.src.Open(ctx)
	})
}

// retryHandle wraps a seekable handle and re-opens it after a failed read.
type retryHandle struct {
	src *retrying
	h   pipeline.SourceHandle
}

type readResult struct {
	rec pipeline.Record
	ok  bool
}

func (r *retryHandle) Next(ctx context.Context) (pipeline.Record, bool, error) {
	pos, err := r.Position()
	if err != nil {
		return nil, false, err
	}
	res, err := resilience.Retry(ctx, r.src.cfg, func() (readResult, error) {
		if r.h == nil {
			if err := r.reopen(ctx, pos); err != nil {
				return readResult{}, err
			}
		}
		rec, ok, err := r.h.Next(ctx)
		if err != nil && !errors.IsRecord(err) && ctx.Err() == nil {
			_ = r.h.Close()
			r.h = nil
		}
		return readResult{rec: rec, ok: ok}, err
	})
	return res.rec, res.ok, err
}

func (r *retryHandle) reopen(ctx context.Context, pos []byte) error {
	h, err := r.src.src.Open(ctx)
	if err != nil {
		return err
	}
	seeker, ok := h.(pipeline.Seeker)
	if !ok {
		_ = h.Close()
		return fmt.Errorf("re-opened %s is not seekable", r.src.Describe())
	}
	if err := seeker.Seek(ctx, pos); err != nil {
		_ = h.Close()
		return err
	}
	r.h = h
	return nil
}

func (r *retryHandle) Close() error {
	if r.h == nil {
		return nil
	}
	h := r.h
	r.h = nil
	return h.Close()
}

func (r *retryHandle) Position() ([]byte, error) {
	if r.h == nil {
		return nil, fmt.Errorf("%s: handle lost after a failed read", r.src.Describe())
	}
	return r.h.(pipeline.Seeker).Position()
}

func (r *retryHandle) Seek(ctx context.Context, token []byte) error {
	if r.h == nil {
		return r.reopen(ctx, token)
	}
	return r.h.(pipeline.Seeker).Seek(ctx, token)
}
