// Package pipeline provides a lazy, resumable, pull-based data pipeline for
// feeding training records to a consumer one element at a time.
//
// A Builder accumulates operator specs without doing any work. Build
// finalizes the chain into an immutable Pipeline, which can be iterated any
// number of times; every call to Iter returns an independent Iterator. Each
// Iterator.Next pulls depth-first through the operator chain down to the
// record source, only when it needs more input.
//
// # Operators
//
//   - Map, MapNamed, MapParallel: transform each record
//   - Filter, FilterNamed: keep records matching a predicate
//   - Take, Skip: bound or offset the stream
//   - Shard: deterministic round-robin partition across ranks
//   - Prefetch: bounded background buffer (the only concurrency boundary
//     besides MapParallel)
//   - Batch: group consecutive records into []Record
//   - Shuffle: seeded shuffle buffer
//   - ZipPipelines: combine N pipelines element-wise into []Record
//
// # Errors
//
// A record error (errors.IsRecord) surfaces on the Next call that touched
// the bad record and leaves the iterator usable. Under SkipPolicy it is
// logged and skipped instead. Any other error is terminal: the iterator
// releases its resources and keeps returning the same error.
//
// # Checkpoints
//
// Pipeline.StateOf captures every stage's resumption token into a
// Checkpoint, and Pipeline.Restore rebuilds an iterator positioned right
// after the captured record. Buffering stages store their in-flight
// records in the checkpoint. Checkpoints carry a shape fingerprint and are
// rejected by pipelines of another shape.
//
// # Usage
//
//	p, err := pipeline.FromSource(source.ReadZippedRecords("/data/shard-0.zip")).
//	    Map(decode).
//	    Shard(worldSize, rank).
//	    Batch(32, false).
//	    Prefetch(8).
//	    Build()
//
//	it := p.Iter(ctx, pipeline.WithErrorPolicy(pipeline.SkipPolicy))
//	defer it.Close()
//	for {
//	    rec, ok, err := it.Next(ctx)
//	    ...
//	}
//
//	cp, err := p.StateOf(ctx, it)
//	it2, err := p.Restore(ctx, cp)
package pipeline
