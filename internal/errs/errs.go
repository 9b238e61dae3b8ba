// Package errs defines the two error kinds raised by docpipe's core logic and
// the normalizer that turns any failure into a uniform record for logging and
// propagation.
//
// Validation errors mean the input can never succeed (missing payload, missing
// fields, missing configuration). Parsing errors mean the content was
// malformed (bad JSON, unusable AI response). Both are permanent: the
// triggering event should be acknowledged rather than redelivered. Every other
// error is opaque and treated as transient.
package errs

import (
	"errors"
	"fmt"
)

// Kind discriminates the error categories known to docpipe.
type Kind string

const (
	// KindValidation marks missing or invalid-shape input.
	KindValidation Kind = "ValidationError"

	// KindParsing marks malformed content.
	KindParsing Kind = "ParsingError"

	// KindUnknown marks a failure that is not an error value at all.
	KindUnknown Kind = "UnknownError"

	// KindGeneric marks an error whose type has no exported name, such as
	// the values of errors.New and fmt.Errorf.
	KindGeneric Kind = "Error"
)

// Kinded is implemented by errors that carry an explicit Kind.
type Kinded interface {
	error
	Kind() Kind
}

// ValidationError reports missing or invalid input. Field, when set, names the
// single offending field.
type ValidationError struct {
	Message string
	Field   string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// Kind implements Kinded.
func (e *ValidationError) Kind() Kind {
	return KindValidation
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Message: message,
		Field:   field,
	}
}

// Validationf creates a ValidationError without an offending field.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ParsingError reports malformed content. Err is the underlying cause, if any.
type ParsingError struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ParsingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *ParsingError) Unwrap() error {
	return e.Err
}

// Kind implements Kinded.
func (e *ParsingError) Kind() Kind {
	return KindParsing
}

// NewParsingError creates a ParsingError wrapping err.
func NewParsingError(message string, err error) *ParsingError {
	return &ParsingError{
		Message: message,
		Err:     err,
	}
}

// KindOf returns the Kind of the first Kinded error in err's chain, or the
// empty Kind when err is nil or carries none.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return ""
}

// IsPermanent reports whether err is a validation or parsing failure, i.e. one
// that redelivering the same event cannot fix.
func IsPermanent(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindParsing:
		return true
	default:
		return false
	}
}
