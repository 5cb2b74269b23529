package errors

import (
	stderrors "errors"
	"fmt"
)

// NoPosition marks an error that is not tied to a record position.
const NoPosition int64 = -1

// PipelineError is the unified pipeline error type.
type PipelineError struct {
	// Kind is the taxonomy tier of the error.
	Kind Kind `json:"kind"`
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Stage is the name of the operator or source that raised the error.
	Stage string `json:"stage,omitempty"`
	// Position is the record index or byte offset, or NoPosition.
	Position int64 `json:"position"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *PipelineError) Error() string {
	where := ""
	switch {
	case e.Stage != "" && e.Position != NoPosition:
		where = fmt.Sprintf(" [stage=%s position=%d]", e.Stage, e.Position)
	case e.Stage != "":
		where = fmt.Sprintf(" [stage=%s]", e.Stage)
	case e.Position != NoPosition:
		where = fmt.Sprintf(" [position=%d]", e.Position)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s%s (cause: %v)", e.Code, e.Message, where, e.Cause)
	}
	return fmt.Sprintf("%s: %s%s", e.Code, e.Message, where)
}

// Unwrap returns the underlying cause of the error.
func (e *PipelineError) Unwrap() error { return e.Cause }

// Is reports whether target is a *PipelineError with the same code.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *PipelineError) WithCause(cause error) *PipelineError {
	e.Cause = cause
	return e
}

// WithStage sets the originating stage name and returns the receiver.
func (e *PipelineError) WithStage(stage string) *PipelineError {
	e.Stage = stage
	return e
}

// WithPosition sets the record position and returns the receiver.
func (e *PipelineError) WithPosition(pos int64) *PipelineError {
	e.Position = pos
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *PipelineError) WithDetail(key string, value any) *PipelineError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Clone returns a shallow copy with its own Details map.
func (e *PipelineError) Clone() *PipelineError {
	c := *e
	if e.Details != nil {
		c.Details = make(map[string]any, len(e.Details))
		for k, v := range e.Details {
			c.Details[k] = v
		}
	}
	return &c
}

// New creates a new PipelineError whose kind is derived from the code.
func New(code ErrorCode, message string) *PipelineError {
	return &PipelineError{
		Kind:     KindOfCode(code),
		Code:     code,
		Message:  message,
		Position: NoPosition,
	}
}

// --- Record errors ---

// Record creates a record error for a transform that failed on one record.
func Record(stage string, position int64, cause error) *PipelineError {
	return &PipelineError{
		Kind: KindRecord, Code: ErrCodeRecordTransform,
		Message: "The record could not be processed.",
		Stage:   stage, Position: position, Cause: cause,
	}
}

// RecordType creates a record error for a record of an unexpected type.
func RecordType(want, got string) *PipelineError {
	return &PipelineError{
		Kind: KindRecord, Code: ErrCodeRecordType,
		Message:  fmt.Sprintf("Expected a record of type %s, got %s.", want, got),
		Position: NoPosition,
		Details:  map[string]any{"want": want, "got": got},
	}
}

// RecordCorrupt creates a record error for a record a source failed to decode.
func RecordCorrupt(stage string, position int64, cause error) *PipelineError {
	return &PipelineError{
		Kind: KindRecord, Code: ErrCodeRecordCorrupt,
		Message: "The record is corrupt and cannot be decoded.",
		Stage:   stage, Position: position, Cause: cause,
	}
}

// --- Stream errors ---

// Stream creates a terminal error for a source or stage that became unusable.
func Stream(stage string, cause error) *PipelineError {
	return &PipelineError{
		Kind: KindStream, Code: ErrCodeStreamRead,
		Message: fmt.Sprintf("The data pipeline cannot read from '%s'.", stage),
		Stage:   stage, Position: NoPosition, Cause: cause,
	}
}

// StreamLengthMismatch creates a terminal error for strict zips of unequal length.
func StreamLengthMismatch(stage string, index int) *PipelineError {
	return &PipelineError{
		Kind: KindStream, Code: ErrCodeStreamLength,
		Message:  fmt.Sprintf("The zipped pipelines have unequal lengths; pipeline %d ended early or late.", index),
		Stage:    stage,
		Position: NoPosition,
		Details:  map[string]any{"pipeline": index},
	}
}

// StreamClosed creates a terminal error for an iterator used after Close.
func StreamClosed() *PipelineError {
	return &PipelineError{
		Kind: KindStream, Code: ErrCodeStreamClosed,
		Message: "The iterator has been closed.", Position: NoPosition,
	}
}

// --- Configuration errors ---

// Configuration creates an error for an invalid operator parameter or setting.
func Configuration(field, reason string) *PipelineError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &PipelineError{
		Kind: KindConfiguration, Code: ErrCodeInvalidConfig,
		Message: fmt.Sprintf("Invalid pipeline configuration: %s", reason),
		Stage:   field, Position: NoPosition, Details: details,
	}
}

// BuilderFinalized creates an error for a builder method called after Build.
func BuilderFinalized(method string) *PipelineError {
	return &PipelineError{
		Kind: KindConfiguration, Code: ErrCodeBuilderFinalized,
		Message:  fmt.Sprintf("The builder has already been finalized; %s is not allowed.", method),
		Position: NoPosition,
		Details:  map[string]any{"method": method},
	}
}

// SourceUnavailable creates an error for a source whose descriptor is unusable.
func SourceUnavailable(descriptor string, cause error) *PipelineError {
	return &PipelineError{
		Kind: KindConfiguration, Code: ErrCodeSourceUnavailable,
		Message: fmt.Sprintf("The record source '%s' is not available.", descriptor),
		Stage:   descriptor, Position: NoPosition, Cause: cause,
	}
}

// --- Checkpoint errors ---

// CheckpointMismatch creates an error for a checkpoint of another pipeline shape.
func CheckpointMismatch(reason string) *PipelineError {
	return &PipelineError{
		Kind: KindCheckpoint, Code: ErrCodeCheckpointMismatch,
		Message: fmt.Sprintf("The checkpoint does not match the pipeline: %s", reason), Position: NoPosition,
	}
}

// CheckpointCorrupt creates an error for a checkpoint that cannot be decoded.
func CheckpointCorrupt(reason string, cause error) *PipelineError {
	return &PipelineError{
		Kind: KindCheckpoint, Code: ErrCodeCheckpointCorrupt,
		Message: fmt.Sprintf("The checkpoint is corrupt: %s", reason), Position: NoPosition, Cause: cause,
	}
}

// CheckpointVersion creates an error for an unsupported checkpoint format version.
func CheckpointVersion(got, want int) *PipelineError {
	return &PipelineError{
		Kind: KindCheckpoint, Code: ErrCodeCheckpointVersion,
		Message:  fmt.Sprintf("Checkpoint format version %d is not supported (want %d).", got, want),
		Position: NoPosition,
		Details:  map[string]any{"got": got, "want": want},
	}
}

// CheckpointNotFound creates an error for a missing stored checkpoint.
func CheckpointNotFound(id string) *PipelineError {
	return &PipelineError{
		Kind: KindCheckpoint, Code: ErrCodeCheckpointNotFound,
		Message:  fmt.Sprintf("The checkpoint %q was not found.", id),
		Position: NoPosition,
		Details:  map[string]any{"id": id},
	}
}

// --- Classification ---

// AsPipelineError converts an error to a PipelineError if possible.
func AsPipelineError(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// KindOf returns the kind of err, or "" if err is nil or unclassified.
func KindOf(err error) Kind {
	if pe, ok := AsPipelineError(err); ok {
		return pe.Kind
	}
	return ""
}

// IsRecord reports whether err is a record error.
func IsRecord(err error) bool { return KindOf(err) == KindRecord }

// IsStream reports whether err is a stream error.
func IsStream(err error) bool { return KindOf(err) == KindStream }

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool { return KindOf(err) == KindConfiguration }

// IsCheckpoint reports whether err is a checkpoint error.
func IsCheckpoint(err error) bool { return KindOf(err) == KindCheckpoint }

// Is and As re-export the standard library helpers so callers importing this
// package under the name errors keep access to them.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }
