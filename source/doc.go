// Package source provides record sources backed by the file system, zip
// archives and object storage.
//
// Every source here is seekable: its handles implement pipeline.Seeker, so
// a restored pipeline jumps straight to the checkpointed position instead
// of re-reading the records before it.
//
//	p, err := pipeline.FromSource(source.ListFiles("data/**/*.zip")).
//		Shard(world, rank).
//		Map(loadShard).
//		Prefetch(4).
//		Build()
package source
