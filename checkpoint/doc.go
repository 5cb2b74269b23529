// Package checkpoint persists pipeline checkpoints to a storage backend.
//
// Checkpoints are written as JSON objects named
//
//	<prefix>/<created-at>_<id>.json
//
// so listing a prefix yields them oldest first. Store keeps at most Keep
// checkpoints and deletes older ones after every Save.
//
//	store := checkpoint.NewStore(backend, checkpoint.Config{Keep: 3})
//	it, err := store.Resume(ctx, p)
//	...
//	cp, _ := p.StateOf(ctx, it)
//	_ = store.Save(ctx, cp)
package checkpoint
