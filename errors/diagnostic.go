package errors

// Diagnostic is the flat, serializable form of an error used in logs and
// checkpoint payloads.
type Diagnostic struct {
	Kind     Kind           `json:"kind"`
	Code     ErrorCode      `json:"code"`
	Message  string         `json:"message"`
	Stage    string         `json:"stage,omitempty"`
	Position int64          `json:"position"`
	Cause    string         `json:"cause,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}

// ToDiagnostic converts a PipelineError to its flat form.
func (e *PipelineError) ToDiagnostic() Diagnostic {
	d := Diagnostic{
		Kind:     e.Kind,
		Code:     e.Code,
		Message:  e.Message,
		Stage:    e.Stage,
		Position: e.Position,
		Details:  e.Details,
	}
	if e.Cause != nil {
		d.Cause = e.Cause.Error()
	}
	return d
}

// FromDiagnostic rebuilds a PipelineError. The cause, if any, becomes an
// opaque error carrying the original message.
func FromDiagnostic(d Diagnostic) *PipelineError {
	e := &PipelineError{
		Kind:     d.Kind,
		Code:     d.Code,
		Message:  d.Message,
		Stage:    d.Stage,
		Position: d.Position,
		Details:  d.Details,
	}
	if d.Cause != "" {
		e.Cause = causeString(d.Cause)
	}
	return e
}

type causeString string

func (c causeString) Error() string { return string(c) }

// Fields returns structured log fields for err.
func Fields(err error) map[string]any {
	pe, ok := AsPipelineError(err)
	if !ok {
		if err == nil {
			return map[string]any{}
		}
		return map[string]any{"error": err.Error()}
	}
	f := map[string]any{
		"error":      pe.Message,
		"error_kind": string(pe.Kind),
		"error_code": string(pe.Code),
	}
	if pe.Stage != "" {
		f["stage"] = pe.Stage
	}
	if pe.Position != NoPosition {
		f["position"] = pe.Position
	}
	if pe.Cause != nil {
		f["cause"] = pe.Cause.Error()
	}
	return f
}
