package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/datapipe/errors"
	"github.com/kbukum/datapipe/logger"
	"github.com/kbukum/datapipe/observability"
	"github.com/kbukum/datapipe/version"
)

// CheckpointVersion is the checkpoint format version written by StateOf.
const CheckpointVersion = 1

// Checkpoint is a serializable snapshot of an iterator's position.
// Stages maps stage index (the order of Fingerprint) to the opaque
// resumption token of every stateful stage.
type Checkpoint struct {
	Version        int            `json:"version"`
	ID             string         `json:"id"`
	IteratorID     string         `json:"iterator_id"`
	CreatedAt      time.Time      `json:"created_at"`
	LibraryVersion string         `json:"library_version"`
	Delivered      int64          `json:"delivered"`
	Fingerprint    []string       `json:"fingerprint"`
	Stages         map[int][]byte `json:"stages"`
}

// Marshal encodes the checkpoint as JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// UnmarshalCheckpoint decodes a checkpoint produced by Marshal.
func UnmarshalCheckpoint(data []byte) (*Checkpoint, error) {
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, errors.CheckpointCorrupt("invalid JSON", err)
	}
	if cp.Version != CheckpointVersion {
		return nil, errors.CheckpointVersion(cp.Version, CheckpointVersion)
	}
	if cp.ID == "" {
		return nil, errors.CheckpointCorrupt("missing id", nil)
	}
	return &cp, nil
}

// StateOf captures the position of it. Background workers are paused
// while the state is read and resume on the next pull, so the iterator
// stays usable. A failed iterator returns its failure.
func (p *Pipeline) StateOf(ctx context.Context, it *Iterator) (*Checkpoint, error) {
	if it == nil || it.pipeline != p {
		return nil, errors.CheckpointMismatch("the iterator was not created by this pipeline")
	}
	if it.failure != nil {
		return nil, it.failure
	}
	if it.closed {
		return nil, errors.StreamClosed()
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanCheckpointCapture)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrIteratorID, it.id)
	start := time.Now()

	stages := it.res.stages
	for i := len(stages) - 1; i >= 0; i-- {
		if ps, ok := stages[i].(pauser); ok {
			ps.pause()
		}
	}

	tokens := make(map[int][]byte)
	for i, st := range stages {
		tok, err := st.state()
		if err != nil {
			cerr := errors.CheckpointCorrupt(fmt.Sprintf("stage %d (%s) could not encode its state", i, p.specs[i].name), err)
			observability.SetSpanError(ctx, cerr)
			return nil, cerr
		}
		if tok != nil {
			tokens[i] = tok
		}
	}

	cp := &Checkpoint{
		Version:        CheckpointVersion,
		ID:             uuid.NewString(),
		IteratorID:     it.id,
		CreatedAt:      time.Now().UTC(),
		LibraryVersion: version.LibraryVersion(),
		Delivered:      it.delivered,
		Fingerprint:    p.Fingerprint(),
		Stages:         tokens,
	}
	observability.SetSpanAttribute(ctx, observability.AttrCheckpointID, cp.ID)
	observability.SetSpanAttribute(ctx, observability.AttrStages, len(tokens))
	it.opts.metrics.CheckpointSaved(ctx, len(tokens), time.Since(start))
	it.log.Info("checkpoint captured", logger.Merge(it.fields(), logger.Fields(
		logger.FieldCheckpointID, cp.ID,
		logger.FieldDuration, time.Since(start).Milliseconds(),
	)))
	return cp, nil
}

// Restore returns an iterator whose first Next yields the record that
// followed the checkpointed position. The checkpoint must come from a
// pipeline of the same shape.
func (p *Pipeline) Restore(ctx context.Context, cp *Checkpoint, opts ...Option) (*Iterator, error) {
	spanCtx, span := observability.StartSpan(ctx, observability.SpanCheckpointRestore)
	defer span.End()

	if err := p.checkCompatible(cp); err != nil {
		observability.SetSpanError(spanCtx, err)
		return nil, err
	}
	observability.SetSpanAttribute(spanCtx, observability.AttrCheckpointID, cp.ID)

	o := newIterOptions(opts)
	it := p.newIterator(ctx, o)
	for i, st := range it.res.stages {
		tok, ok := cp.Stages[i]
		if !ok {
			continue
		}
		if err := st.restore(tok); err != nil {
			_ = it.Close()
			if !errors.IsCheckpoint(err) {
				err = errors.CheckpointCorrupt(fmt.Sprintf("stage %d (%s) rejected its token", i, p.specs[i].name), err)
			}
			observability.SetSpanError(spanCtx, err)
			return nil, err
		}
	}
	it.delivered = cp.Delivered

	o.metrics.CheckpointRestored(spanCtx)
	it.log.Info("iterator restored", logger.Merge(it.fields(), logger.Fields(logger.FieldCheckpointID, cp.ID)))
	return it, nil
}

// checkCompatible verifies version, shape and token layout.
func (p *Pipeline) checkCompatible(cp *Checkpoint) error {
	if cp == nil {
		return errors.CheckpointCorrupt("checkpoint is nil", nil)
	}
	if cp.Version != CheckpointVersion {
		return errors.CheckpointVersion(cp.Version, CheckpointVersion)
	}
	if len(cp.Fingerprint) != len(p.fingerprint) {
		return errors.CheckpointMismatch(fmt.Sprintf("checkpoint has %d stages, pipeline has %d", len(cp.Fingerprint), len(p.fingerprint)))
	}
	for i, fp := range p.fingerprint {
		if cp.Fingerprint[i] != fp {
			return errors.CheckpointMismatch(fmt.Sprintf("stage %d is %s in the checkpoint but %s in the pipeline", i, cp.Fingerprint[i], fp))
		}
	}
	for i := range maps.Keys(cp.Stages) {
		if i < 0 || i >= len(p.specs) {
			return errors.CheckpointMismatch(fmt.Sprintf("token for unknown stage %d", i))
		}
		if s := p.specs[i]; !s.stateful() && !s.holdsPending() {
			return errors.CheckpointMismatch(fmt.Sprintf("token for stateless stage %d (%s)", i, p.specs[i].name))
		}
	}
	for i, s := range p.specs {
		if _, ok := cp.Stages[i]; s.stateful() && !ok {
			return errors.CheckpointMismatch(fmt.Sprintf("missing token for stage %d (%s)", i, s.name))
		}
	}
	return nil
}
