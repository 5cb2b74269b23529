package pipeline

import (
	"fmt"

	"github.com/kbukum/datapipe/errors"
	"github.com/kbukum/datapipe/validation"
)

// Builder accumulates operator specs. Nothing is opened or executed until
// an iterator pulls from the built Pipeline.
//
// Parameter errors are deferred: the first one is kept, later calls are
// ignored, and Build returns it. A builder is single-use; every call after
// Build records a configuration error.
type Builder struct {
	head  *OperatorSpec
	err   error
	built bool
}

// FromSource starts a pipeline reading from src.
func FromSource(src RecordSource) *Builder {
	b := &Builder{}
	if src == nil {
		b.err = errors.Configuration("source", "record source is nil")
		return b
	}
	b.head = &OperatorSpec{kind: KindSource, name: src.Describe(), source: src}
	return b
}

// FromSequence starts a pipeline reading the items of an in-memory slice.
// The slice is copied.
func FromSequence[T any](items []T) *Builder {
	records := make([]Record, len(items))
	for i, item := range items {
		records[i] = item
	}
	return FromSource(&sequenceSource{items: records})
}

// ZipPipelines starts a pipeline that combines the outputs of ps
// element-wise into []Record. It ends when the shortest input ends; with
// strict set, inputs of unequal length fail with a stream error instead.
func ZipPipelines(strict bool, ps ...*Pipeline) *Builder {
	b := &Builder{}
	v := validation.New().Min("zip.pipelines", len(ps), 1)
	ups := make([]*OperatorSpec, len(ps))
	for i, p := range ps {
		v.NotNil(fmt.Sprintf("zip.pipelines[%d]", i), p != nil)
		if p != nil {
			ups[i] = p.root
		}
	}
	if err := v.Validate(); err != nil {
		b.err = err
		return b
	}
	b.head = &OperatorSpec{kind: KindZip, name: "zip", upstream: ups, strict: strict}
	return b
}

// Err returns the first error recorded by the builder.
func (b *Builder) Err() error {
	return b.err
}

// push appends a spec on top of the current head after validating it.
func (b *Builder) push(method string, spec *OperatorSpec, v *validation.Validator) *Builder {
	if b.built {
		b.err = errors.BuilderFinalized(method)
		return b
	}
	if b.err != nil {
		return b
	}
	if v != nil {
		if err := v.Validate(); err != nil {
			b.err = err
			return b
		}
	}
	spec.upstream = []*OperatorSpec{b.head}
	if spec.name == "" {
		spec.name = spec.kind.String()
	}
	b.head = spec
	return b
}

// Map applies fn to every record.
func (b *Builder) Map(fn MapFunc) *Builder {
	return b.MapNamed("map", fn)
}

// MapNamed applies fn to every record; name identifies the stage in errors.
func (b *Builder) MapNamed(name string, fn MapFunc) *Builder {
	v := validation.New().Required("map.name", name).NotNil("map.fn", fn != nil)
	return b.push("Map", &OperatorSpec{kind: KindMap, name: name, mapFn: fn}, v)
}

// MapParallel applies fn to up to workers records concurrently. Output
// order matches input order.
func (b *Builder) MapParallel(fn MapFunc, workers int) *Builder {
	v := validation.New().NotNil("map_parallel.fn", fn != nil).Min("map_parallel.workers", workers, 1)
	return b.push("MapParallel", &OperatorSpec{kind: KindMapParallel, name: "map_parallel", mapFn: fn, count: workers}, v)
}

// Filter keeps the records for which fn returns true.
func (b *Builder) Filter(fn FilterFunc) *Builder {
	return b.FilterNamed("filter", fn)
}

// FilterNamed is Filter with a custom stage name.
func (b *Builder) FilterNamed(name string, fn FilterFunc) *Builder {
	v := validation.New().Required("filter.name", name).NotNil("filter.fn", fn != nil)
	return b.push("Filter", &OperatorSpec{kind: KindFilter, name: name, filterFn: fn}, v)
}

// Take yields at most n records.
func (b *Builder) Take(n int) *Builder {
	return b.push("Take", &OperatorSpec{kind: KindTake, count: n}, validation.New().Min("take.n", n, 0))
}

// Skip discards the first n records.
func (b *Builder) Skip(n int) *Builder {
	return b.push("Skip", &OperatorSpec{kind: KindSkip, count: n}, validation.New().Min("skip.n", n, 0))
}

// Shard keeps every shards-th record starting at index. The shards
// builders that share an upstream partition it exactly.
func (b *Builder) Shard(shards, index int) *Builder {
	v := validation.New().Min("shard.num_shards", shards, 1)
	if shards >= 1 {
		v.Range("shard.index", index, 0, shards-1)
	}
	return b.push("Shard", &OperatorSpec{kind: KindShard, shards: shards, index: index}, v)
}

// Prefetch buffers up to size records in a background worker. Size 0
// disables prefetching.
func (b *Builder) Prefetch(size int) *Builder {
	return b.push("Prefetch", &OperatorSpec{kind: KindPrefetch, count: size}, validation.New().Min("prefetch.size", size, 0))
}

// Batch groups size consecutive records into one []Record. A trailing
// partial group is yielded unless dropIncomplete is set.
func (b *Builder) Batch(size int, dropIncomplete bool) *Builder {
	return b.push("Batch", &OperatorSpec{kind: KindBatch, count: size, drop: dropIncomplete}, validation.New().Min("batch.size", size, 1))
}

// Shuffle emits records in random order from a buffer of bufferSize. Seed 0
// draws a random seed for every new iterator; restored iterators continue
// the captured sequence exactly.
func (b *Builder) Shuffle(bufferSize int, seed uint64) *Builder {
	return b.push("Shuffle", &OperatorSpec{kind: KindShuffle, count: bufferSize, seed: seed}, validation.New().Min("shuffle.buffer_size", bufferSize, 1))
}

// Build finalizes the chain into an immutable Pipeline. Sources that can
// check their descriptor cheaply are validated here.
func (b *Builder) Build() (*Pipeline, error) {
	if b.built {
		return nil, errors.BuilderFinalized("Build")
	}
	b.built = true
	if b.err != nil {
		return nil, b.err
	}
	if err := validateSources(b.head); err != nil {
		return nil, err
	}
	return newPipeline(b.head), nil
}

func validateSources(root *OperatorSpec) error {
	var first error
	root.walk(func(s *OperatorSpec) {
		if first != nil || s.kind != KindSource {
			return
		}
		sv, ok := s.source.(SourceValidator)
		if !ok {
			return
		}
		if err := sv.Validate(); err != nil {
			if errors.IsConfiguration(err) {
				first = err
				return
			}
			first = errors.SourceUnavailable(s.source.Describe(), err)
		}
	})
	return first
}
