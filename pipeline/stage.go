package pipeline

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"

	"github.com/kbukum/datapipe/errors"
	"github.com/kbukum/datapipe/logger"
)

// stage is the live state of one operator inside an Iterator.
//
// next returns the next element, (element{}, false, nil) at the end of the
// stream, or an error. A record error leaves the stage usable; any other
// error is terminal for the iterator.
type stage interface {
	next(ctx context.Context) (element, bool, error)
	// state encodes the resumption token, or nil for stateless stages.
	state() ([]byte, error)
	// restore positions a fresh stage from a token returned by state.
	restore(token []byte) error
	close() error
}

// pauser is implemented by stages that run background work which must be
// quiesced before upstream state can be read consistently.
type pauser interface {
	pause()
}

// stateless provides the checkpoint methods for stages without state.
type stateless struct{}

func (stateless) state() ([]byte, error) { return nil, nil }
func (stateless) restore([]byte) error   { return nil }

// stageFactory instantiates the stage tree for one iterator.
type stageFactory struct {
	ctx    context.Context
	log    *logger.Logger
	stages []stage
}

// build creates the stages for spec and its upstreams in walk order and
// returns the stage for spec itself.
func (f *stageFactory) build(spec *OperatorSpec) stage {
	ups := make([]stage, len(spec.upstream))
	for i, u := range spec.upstream {
		ups[i] = f.build(u)
	}
	st := f.newStage(spec, ups)
	f.stages = append(f.stages, st)
	return st
}

func (f *stageFactory) newStage(spec *OperatorSpec, ups []stage) stage {
	switch spec.kind {
	case KindSource:
		return &sourceStage{src: spec.source, name: spec.name}
	case KindMap:
		return &mapStage{up: ups[0], name: spec.name, fn: spec.mapFn}
	case KindMapParallel:
		return &mapParallelStage{up: ups[0], name: spec.name, fn: spec.mapFn, workers: spec.count}
	case KindFilter:
		return &filterStage{up: ups[0], name: spec.name, fn: spec.filterFn}
	case KindTake:
		return &takeStage{up: ups[0], n: int64(spec.count)}
	case KindSkip:
		return &skipStage{up: ups[0], n: int64(spec.count)}
	case KindShard:
		return &shardStage{up: ups[0], shards: int64(spec.shards), index: int64(spec.index)}
	case KindPrefetch:
		if spec.count == 0 {
			return &passStage{up: ups[0]}
		}
		return newPrefetchStage(f.ctx, ups[0], spec.name, spec.count, f.log)
	case KindBatch:
		return &batchStage{up: ups[0], size: spec.count, drop: spec.drop}
	case KindShuffle:
		return newShuffleStage(ups[0], spec.count, spec.seed)
	case KindZip:
		return &zipStage{ups: ups, name: spec.name, strict: spec.strict, slots: make([]*element, len(ups))}
	default:
		panic(fmt.Sprintf("pipeline: unknown operator kind %s", spec.kind))
	}
}

// storedElement is the checkpoint form of a buffered element.
type storedElement struct {
	Value Record
	Index int64
}

func storeElements(els []element) []storedElement {
	out := make([]storedElement, len(els))
	for i, el := range els {
		out[i] = storedElement{Value: el.value, Index: el.index}
	}
	return out
}

func loadElements(stored []storedElement) []element {
	out := make([]element, len(stored))
	for i, s := range stored {
		out[i] = element{value: s.Value, index: s.Index}
	}
	return out
}

// storedError is the checkpoint form of a buffered error.
func storedError(stage string, err error) *errors.Diagnostic {
	if err == nil {
		return nil
	}
	pe, ok := errors.AsPipelineError(err)
	if !ok {
		pe = errors.Stream(stage, err)
	}
	d := pe.ToDiagnostic()
	d.Details = nil
	return &d
}

func loadError(d *errors.Diagnostic) error {
	if d == nil {
		return nil
	}
	return errors.FromDiagnostic(*d)
}

func encodeToken(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeToken(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// passStage forwards its upstream unchanged. A zero-size prefetch uses it.
type passStage struct {
	stateless
	up stage
}

func (s *passStage) next(ctx context.Context) (element, bool, error) { return s.up.next(ctx) }
func (s *passStage) close() error                                     { return nil }
