package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Kind classifies an error into one tier of the taxonomy.
type Kind string

// Error kinds.
const (
	KindRecord        Kind = "record"
	KindStream        Kind = "stream"
	KindConfiguration Kind = "configuration"
	KindCheckpoint    Kind = "checkpoint"
)

// Record errors (recoverable)
const (
	// ErrCodeRecordTransform indicates a map or filter function failed on a record.
	ErrCodeRecordTransform ErrorCode = "RECORD_TRANSFORM_FAILED"
	// ErrCodeRecordType indicates a record did not have the expected type or shape.
	ErrCodeRecordType ErrorCode = "RECORD_TYPE_MISMATCH"
	// ErrCodeRecordCorrupt indicates a source could not decode a single record.
	ErrCodeRecordCorrupt ErrorCode = "RECORD_CORRUPT"
)

// Stream errors (terminal)
const (
	// ErrCodeStreamRead indicates the underlying source failed.
	ErrCodeStreamRead ErrorCode = "STREAM_READ_FAILED"
	// ErrCodeStreamLength indicates zipped pipelines ended at different lengths.
	ErrCodeStreamLength ErrorCode = "STREAM_LENGTH_MISMATCH"
	// ErrCodeStreamClosed indicates the iterator was used after Close.
	ErrCodeStreamClosed ErrorCode = "STREAM_CLOSED"
)

// Configuration errors
const (
	// ErrCodeInvalidConfig indicates an invalid operator parameter or setting.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"
	// ErrCodeBuilderFinalized indicates a builder was used after Build.
	ErrCodeBuilderFinalized ErrorCode = "BUILDER_FINALIZED"
	// ErrCodeSourceUnavailable indicates a source descriptor failed its build-time check.
	ErrCodeSourceUnavailable ErrorCode = "SOURCE_UNAVAILABLE"
)

// Checkpoint errors
const (
	// ErrCodeCheckpointMismatch indicates the checkpoint belongs to another pipeline shape.
	ErrCodeCheckpointMismatch ErrorCode = "CHECKPOINT_SHAPE_MISMATCH"
	// ErrCodeCheckpointCorrupt indicates the checkpoint payload cannot be decoded.
	ErrCodeCheckpointCorrupt ErrorCode = "CHECKPOINT_CORRUPT"
	// ErrCodeCheckpointVersion indicates an unsupported checkpoint format version.
	ErrCodeCheckpointVersion ErrorCode = "CHECKPOINT_VERSION_UNSUPPORTED"
	// ErrCodeCheckpointNotFound indicates a stored checkpoint does not exist.
	ErrCodeCheckpointNotFound ErrorCode = "CHECKPOINT_NOT_FOUND"
)

var codeKinds = map[ErrorCode]Kind{
	ErrCodeRecordTransform:    KindRecord,
	ErrCodeRecordType:         KindRecord,
	ErrCodeRecordCorrupt:      KindRecord,
	ErrCodeStreamRead:         KindStream,
	ErrCodeStreamLength:       KindStream,
	ErrCodeStreamClosed:       KindStream,
	ErrCodeInvalidConfig:      KindConfiguration,
	ErrCodeBuilderFinalized:   KindConfiguration,
	ErrCodeSourceUnavailable:  KindConfiguration,
	ErrCodeCheckpointMismatch: KindCheckpoint,
	ErrCodeCheckpointCorrupt:  KindCheckpoint,
	ErrCodeCheckpointVersion:  KindCheckpoint,
	ErrCodeCheckpointNotFound: KindCheckpoint,
}

// KindOfCode returns the kind a code belongs to, or "" for unknown codes.
func KindOfCode(code ErrorCode) Kind {
	return codeKinds[code]
}
