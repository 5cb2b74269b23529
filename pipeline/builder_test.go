package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/kbukum/datapipe/errors"
)

func TestBuilder_InvalidParameters(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Builder
		field string
	}{
		{"negative take", func() *Builder { return FromSequence(ints(3)).Take(-1) }, "take.n"},
		{"negative skip", func() *Builder { return FromSequence(ints(3)).Skip(-2) }, "skip.n"},
		{"zero shards", func() *Builder { return FromSequence(ints(3)).Shard(0, 0) }, "shard.num_shards"},
		{"shard index too large", func() *Builder { return FromSequence(ints(3)).Shard(2, 2) }, "shard.index"},
		{"negative shard index", func() *Builder { return FromSequence(ints(3)).Shard(2, -1) }, "shard.index"},
		{"negative prefetch", func() *Builder { return FromSequence(ints(3)).Prefetch(-1) }, "prefetch.size"},
		{"zero batch", func() *Builder { return FromSequence(ints(3)).Batch(0, false) }, "batch.size"},
		{"zero shuffle buffer", func() *Builder { return FromSequence(ints(3)).Shuffle(0, 1) }, "shuffle.buffer_size"},
		{"nil map", func() *Builder { return FromSequence(ints(3)).Map(nil) }, "map.fn"},
		{"empty map name", func() *Builder { return FromSequence(ints(3)).MapNamed(" ", double) }, "map.name"},
		{"nil filter", func() *Builder { return FromSequence(ints(3)).Filter(nil) }, "filter.fn"},
		{"zero workers", func() *Builder { return FromSequence(ints(3)).MapParallel(double, 0) }, "map_parallel.workers"},
		{"nil source", func() *Builder { return FromSource(nil) }, "source"},
		{"empty zip", func() *Builder { return ZipPipelines(false) }, "zip.pipelines"},
		{"nil zip input", func() *Builder { return ZipPipelines(false, nil) }, "zip.pipelines[0]"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := tc.build().Build()
			if p != nil {
				t.Fatal("expected no pipeline")
			}
			if !errors.IsConfiguration(err) {
				t.Fatalf("expected configuration error, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Errorf("expected %q in %q", tc.field, err.Error())
			}
		})
	}
}

func TestBuilder_FirstErrorWins(t *testing.T) {
	b := FromSequence(ints(3)).Take(-1).Batch(0, false)
	if err := b.Err(); err == nil || !strings.Contains(err.Error(), "take.n") {
		t.Errorf("expected the take error to be kept, got %v", err)
	}
}

func TestBuilder_MutatorAfterBuild(t *testing.T) {
	mutators := map[string]func(*Builder){
		"Map":         func(b *Builder) { b.Map(double) },
		"Filter":      func(b *Builder) { b.Filter(even) },
		"Take":        func(b *Builder) { b.Take(1) },
		"Skip":        func(b *Builder) { b.Skip(1) },
		"Shard":       func(b *Builder) { b.Shard(2, 0) },
		"Prefetch":    func(b *Builder) { b.Prefetch(1) },
		"Batch":       func(b *Builder) { b.Batch(2, true) },
		"Shuffle":     func(b *Builder) { b.Shuffle(2, 1) },
		"MapParallel": func(b *Builder) { b.MapParallel(double, 2) },
	}
	for name, mutate := range mutators {
		t.Run(name, func(t *testing.T) {
			b := FromSequence(ints(4)).Map(double)
			p := mustBuild(t, b)
			mutate(b)
			err := b.Err()
			if !errors.IsConfiguration(err) {
				t.Fatalf("expected configuration error, got %v", err)
			}
			if !errors.Is(err, &errors.PipelineError{Code: errors.ErrCodeBuilderFinalized}) {
				t.Errorf("expected builder finalized, got %v", err)
			}
			if got := drain(t, p.Iter(context.Background())); !equal(got, strs(0, 2, 4, 6)) {
				t.Errorf("built pipeline must be unaffected, got %v", got)
			}
		})
	}
}

func TestBuilder_BuildTwice(t *testing.T) {
	b := FromSequence(ints(2))
	mustBuild(t, b)
	p, err := b.Build()
	if p != nil || !errors.IsConfiguration(err) {
		t.Fatalf("expected configuration error on second Build, got %v %v", p, err)
	}
}

type missingSource struct{ path string }

func (s missingSource) Describe() string { return "files:" + s.path }
func (s missingSource) Open(context.Context) (SourceHandle, error) {
	return nil, fmt.Errorf("open %s: no such file", s.path)
}
func (s missingSource) Validate() error { return fmt.Errorf("stat %s: no such file", s.path) }

func TestBuild_ValidatesSources(t *testing.T) {
	_, err := FromSource(missingSource{"/nope"}).Map(double).Build()
	pe, ok := errors.AsPipelineError(err)
	if !ok || pe.Code != errors.ErrCodeSourceUnavailable {
		t.Fatalf("expected source unavailable, got %v", err)
	}
	if !errors.IsConfiguration(err) {
		t.Error("source unavailable must be a configuration error")
	}
}

func TestBuild_ValidatesZipInputs(t *testing.T) {
	good := mustBuild(t, FromSequence(ints(2)))
	bad := newPipeline(&OperatorSpec{kind: KindSource, name: "files:/nope", source: missingSource{"/nope"}})
	if _, err := ZipPipelines(false, good, bad).Build(); !errors.IsConfiguration(err) {
		t.Errorf("expected configuration error for a zipped unavailable source, got %v", err)
	}
}

func TestSpecs_AreImmutableAcrossBuilds(t *testing.T) {
	base := mustBuild(t, FromSequence(ints(6)))
	a := mustBuild(t, ZipPipelines(false, base).Take(2))
	b := mustBuild(t, ZipPipelines(false, base).Take(4))
	if got := drain(t, a.Iter(context.Background())); len(got) != 2 {
		t.Errorf("a: got %v", got)
	}
	if got := drain(t, b.Iter(context.Background())); len(got) != 4 {
		t.Errorf("b: got %v", got)
	}
	if got := drain(t, base.Iter(context.Background())); len(got) != 6 {
		t.Errorf("base: got %v", got)
	}
}

func TestKindString(t *testing.T) {
	if KindMapParallel.String() != "map_parallel" || KindZip.String() != "zip" {
		t.Error("unexpected kind names")
	}
	if Kind(200).String() != "kind(200)" {
		t.Errorf("unexpected name for unknown kind: %s", Kind(200))
	}
}
