// Package errors defines the error taxonomy of the data pipeline engine.
//
// Every error the engine produces is a *PipelineError classified into exactly
// one Kind:
//
//   - KindRecord: a single record failed to decode or transform. The iterator
//     that surfaced it stays usable.
//   - KindStream: the source or the iterator itself became unusable. Terminal.
//   - KindConfiguration: the pipeline was assembled incorrectly. Raised by the
//     builder, never during iteration.
//   - KindCheckpoint: a checkpoint is corrupt or belongs to a different
//     pipeline shape. Raised by restore, never during iteration.
//
// # Usage
//
//	rec, ok, err := it.Next(ctx)
//	switch {
//	case errors.IsRecord(err):
//	    log.Warn("bad record", errors.Fields(err))
//	case err != nil:
//	    return err
//	}
package errors
