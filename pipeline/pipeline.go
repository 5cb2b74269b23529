package pipeline

import (
	"context"
	"encoding/hex"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/kbukum/datapipe/logger"
)

// Pipeline is a finalized, immutable operator graph. It is safe for
// concurrent use; every Iter call returns an independent Iterator.
type Pipeline struct {
	root        *OperatorSpec
	specs       []*OperatorSpec
	fingerprint []string
}

func newPipeline(root *OperatorSpec) *Pipeline {
	p := &Pipeline{root: root}
	root.walk(func(s *OperatorSpec) {
		p.specs = append(p.specs, s)
		p.fingerprint = append(p.fingerprint, fingerprintEntry(s))
	})
	return p
}

// fingerprintEntry identifies one stage by kind and a hash of its
// parameters.
func fingerprintEntry(s *OperatorSpec) string {
	sum := blake2b.Sum256([]byte(s.kind.String() + "|" + s.Params()))
	return s.kind.String() + ":" + hex.EncodeToString(sum[:8])
}

// Fingerprint returns the shape fingerprint: one entry per stage, in
// checkpoint stage-index order.
func (p *Pipeline) Fingerprint() []string {
	return append([]string(nil), p.fingerprint...)
}

// Root returns the spec of the last operator in the chain.
func (p *Pipeline) Root() *OperatorSpec {
	return p.root
}

// Iter returns a fresh iterator positioned at the start of the pipeline.
// Cancelling ctx stops background workers; Close releases everything.
func (p *Pipeline) Iter(ctx context.Context, opts ...Option) *Iterator {
	it := p.newIterator(ctx, newIterOptions(opts))
	it.log.Debug("iterator created", it.fields())
	return it
}

func (p *Pipeline) newIterator(ctx context.Context, o iterOptions) *Iterator {
	base, cancel := context.WithCancel(ctx)
	f := &stageFactory{ctx: base, log: o.log}
	root := f.build(p.root)

	res := &resources{stages: f.stages, cancel: cancel}
	it := &Iterator{
		id:       uuid.NewString(),
		pipeline: p,
		root:     root,
		res:      res,
		opts:     o,
	}
	it.log = o.log.WithFields(logger.Fields(logger.FieldIteratorID, it.id))
	it.cleanup = runtime.AddCleanup(it, func(r *resources) { _ = r.release() }, res)
	return it
}
