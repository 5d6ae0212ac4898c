// Package apperr provides standardized error codes for the pipeline's
// error taxonomy. Provider failures are recovered locally and never carry
// a code; everything surfaced to a caller does.
package apperr

import (
	"errors"
	"fmt"
)

// Code represents a standardized internal error code.
type Code string

const (
	CodePreprocessing Code = "PREPROCESSING_ERROR"
	CodeEmbedding     Code = "EMBEDDING_ERROR"
	CodeStorage       Code = "STORAGE_ERROR"
	CodeSearch        Code = "SEARCH_ERROR"
	CodeAnswer        Code = "ANSWER_ERROR"
)

// Error is a structured application error. Retryable signals whether the
// next scheduled invocation may succeed without intervention.
type Error struct {
	Code      Code
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a typed error wrapping an underlying cause.
func New(code Code, message string, err error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: code == CodeStorage || code == CodeEmbedding,
		Err:       err,
	}
}

// CodeOf extracts the error code, or "" for untyped errors.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
