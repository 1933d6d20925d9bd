package core

import "fmt"

// ErrorKind classifies a pipeline failure so callers (the executor,
// artifact writer, and run summary) can decide whether to retry,
// continue past a unit, or abort the run.
type ErrorKind string

const (
	ErrConfig     ErrorKind = "config"
	ErrConnector  ErrorKind = "connector"
	ErrProcessing ErrorKind = "processing"
	ErrInference  ErrorKind = "inference"
	ErrProvider   ErrorKind = "provider"
	ErrExport     ErrorKind = "export"
	ErrSecret     ErrorKind = "secret"
)

// PipelineError is the common error shape surfaced from every engine
// package: a classification, a message, and the unit/step that was
// being processed when the failure occurred, if any.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	UnitID  string
	StepID  string
	Cause   error
}

func (e *PipelineError) Error() string {
	switch {
	case e.UnitID != "" && e.StepID != "":
		return fmt.Sprintf("%s: %s (unit=%s step=%s)", e.Kind, e.Message, e.UnitID, e.StepID)
	case e.UnitID != "":
		return fmt.Sprintf("%s: %s (unit=%s)", e.Kind, e.Message, e.UnitID)
	case e.StepID != "":
		return fmt.Sprintf("%s: %s (step=%s)", e.Kind, e.Message, e.StepID)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *PipelineError) Unwrap() error { return e.Cause }

// NewError constructs a PipelineError of the given kind.
func NewError(kind ErrorKind, message string, cause error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Cause: cause}
}

// WithUnit returns a copy of e scoped to unitID.
func (e *PipelineError) WithUnit(unitID string) *PipelineError {
	cp := *e
	cp.UnitID = unitID
	return &cp
}

// WithStep returns a copy of e scoped to stepID.
func (e *PipelineError) WithStep(stepID string) *PipelineError {
	cp := *e
	cp.StepID = stepID
	return &cp
}

// IsRetryable reports whether errors of this kind are generally worth
// retrying: inference and provider failures (rate limits, transient
// network errors, 5xx responses) are; configuration and processing
// errors are not, since retrying them would reproduce the same failure.
func (e *PipelineError) IsRetryable() bool {
	switch e.Kind {
	case ErrInference, ErrProvider, ErrConnector:
		return true
	default:
		return false
	}
}
