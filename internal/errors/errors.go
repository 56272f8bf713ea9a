package errors

import (
	"errors"
	"fmt"
)

// Error type constants
const (
	PackagingError           = "PACKAGING_ERROR"
	CardinalityError         = "CARDINALITY_ERROR"
	UnknownActionKind        = "UNKNOWN_ACTION_KIND"
	ParameterValidationError = "PARAMETER_VALIDATION_ERROR"
	TemplateRenderError      = "TEMPLATE_RENDER_ERROR"
	DependencyResolution     = "DEPENDENCY_RESOLUTION_ERROR"
	FactsError               = "FACTS_ERROR"
	StorageError             = "STORAGE_ERROR"
	InternalError            = "INTERNAL_ERROR"
)

// CompileError is a structured error for compilation failures. Every CompileError is
// fatal to the compilation run that produced it.
type CompileError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Label   string `json:"label,omitempty"`
	Field   string `json:"field,omitempty"`
	Hint    string `json:"hint,omitempty"`
	Err     error  `json:"-"`
}

func (e *CompileError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field %s)", msg, e.Field)
	}
	if e.Label != "" {
		return fmt.Sprintf("[%s] action %s: %s", e.Type, e.Label, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Type, msg)
}

func (e *CompileError) Unwrap() error { return e.Err }

// TypeOf returns the CompileError type found in err's chain, or "" if there is none.
func TypeOf(err error) string {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Type
	}
	return ""
}

// From returns the CompileError in err's chain, or wraps err as an internal error.
func From(err error) *CompileError {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce
	}
	return &CompileError{Type: InternalError, Message: err.Error(), Err: err}
}

func isType(err error, t string) bool { return TypeOf(err) == t }

func IsPackaging(err error) bool            { return isType(err, PackagingError) }
func IsCardinality(err error) bool          { return isType(err, CardinalityError) }
func IsUnknownActionKind(err error) bool    { return isType(err, UnknownActionKind) }
func IsParameterValidation(err error) bool  { return isType(err, ParameterValidationError) }
func IsTemplateRender(err error) bool       { return isType(err, TemplateRenderError) }
func IsDependencyResolution(err error) bool { return isType(err, DependencyResolution) }
func IsFacts(err error) bool                { return isType(err, FactsError) }
func IsStorage(err error) bool              { return isType(err, StorageError) }

func NewPackagingError(msg string, err error) *CompileError {
	return &CompileError{Type: PackagingError, Message: msg, Err: err}
}

func NewCardinalityError(label, msg string) *CompileError {
	return &CompileError{
		Type:    CardinalityError,
		Label:   label,
		Message: msg,
		Hint:    "This action kind targets exactly one account and one region",
	}
}

func NewUnknownKindError(label, kind string, known []string) *CompileError {
	return &CompileError{
		Type:    UnknownActionKind,
		Label:   label,
		Message: fmt.Sprintf("unknown action kind %q", kind),
		Hint:    fmt.Sprintf("Known kinds: %v", known),
	}
}

func NewValidationError(label, field, msg string) *CompileError {
	return &CompileError{Type: ParameterValidationError, Label: label, Field: field, Message: msg}
}

func NewDependencyError(label, msg string) *CompileError {
	return &CompileError{Type: DependencyResolution, Label: label, Message: msg}
}

func NewFactsError(msg string, err error) *CompileError {
	return &CompileError{Type: FactsError, Message: msg, Err: err}
}

func NewStorageError(msg string, err error) *CompileError {
	return &CompileError{Type: StorageError, Message: msg, Err: err}
}
