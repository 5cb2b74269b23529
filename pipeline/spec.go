package pipeline

import "fmt"

// Kind enumerates the operator variants a pipeline can contain.
type Kind uint8

// Operator kinds.
const (
	KindSource Kind = iota + 1
	KindMap
	KindMapParallel
	KindFilter
	KindTake
	KindSkip
	KindShard
	KindPrefetch
	KindBatch
	KindShuffle
	KindZip
)

var kindNames = map[Kind]string{
	KindSource:      "source",
	KindMap:         "map",
	KindMapParallel: "map_parallel",
	KindFilter:      "filter",
	KindTake:        "take",
	KindSkip:        "skip",
	KindShard:       "shard",
	KindPrefetch:    "prefetch",
	KindBatch:       "batch",
	KindShuffle:     "shuffle",
	KindZip:         "zip",
}

// String returns the kind name used in fingerprints and logs.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// OperatorSpec is the immutable description of one pipeline step. Specs
// form a tree: every spec points at its upstream specs, and only zip has
// more than one.
type OperatorSpec struct {
	kind     Kind
	name     string
	upstream []*OperatorSpec

	source   RecordSource
	mapFn    MapFunc
	filterFn FilterFunc

	count  int // take, skip, prefetch and batch size, shuffle buffer, map_parallel workers
	shards int
	index  int
	drop   bool
	strict bool
	seed   uint64
}

// Kind returns the operator kind.
func (s *OperatorSpec) Kind() Kind { return s.kind }

// Name returns the stage name used in diagnostics.
func (s *OperatorSpec) Name() string { return s.name }

// Upstream returns the specs this step pulls from.
func (s *OperatorSpec) Upstream() []*OperatorSpec {
	return append([]*OperatorSpec(nil), s.upstream...)
}

// Params returns the canonical parameter string hashed into the pipeline
// fingerprint.
func (s *OperatorSpec) Params() string {
	switch s.kind {
	case KindSource:
		return s.source.Describe()
	case KindMap, KindFilter:
		return "name=" + s.name
	case KindMapParallel:
		return fmt.Sprintf("name=%s workers=%d", s.name, s.count)
	case KindTake, KindSkip:
		return fmt.Sprintf("n=%d", s.count)
	case KindShard:
		return fmt.Sprintf("shards=%d index=%d", s.shards, s.index)
	case KindPrefetch:
		return fmt.Sprintf("size=%d", s.count)
	case KindBatch:
		return fmt.Sprintf("size=%d drop_incomplete=%t", s.count, s.drop)
	case KindShuffle:
		return fmt.Sprintf("buffer=%d seed=%d", s.count, s.seed)
	case KindZip:
		return fmt.Sprintf("inputs=%d strict=%t", len(s.upstream), s.strict)
	default:
		return ""
	}
}

// holdsPending reports whether the step may contribute a token without
// requiring one: map and filter only store the element of a cancelled call.
func (s *OperatorSpec) holdsPending() bool {
	return s.kind == KindMap || s.kind == KindFilter
}

// stateful reports whether the step always contributes a resumption token.
func (s *OperatorSpec) stateful() bool {
	switch s.kind {
	case KindMap, KindFilter:
		return false
	case KindPrefetch:
		return s.count > 0
	default:
		return true
	}
}

// walk visits the tree depth-first, upstreams before the spec itself. The
// visit order defines the stage indices used by checkpoints.
func (s *OperatorSpec) walk(visit func(*OperatorSpec)) {
	for _, up := range s.upstream {
		up.walk(visit)
	}
	visit(s)
}
