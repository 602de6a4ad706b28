package domain

import (
	"errors"
	"fmt"
)

// Code is a stable error code suitable for rendering user-facing messages.
type Code string

const (
	CodeUnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	CodeEmptyContent      Code = "EMPTY_CONTENT"
	CodeCorruptFile       Code = "CORRUPT_FILE"
	CodeEncodingError     Code = "ENCODING_ERROR"

	CodeChunkFailed       Code = "CHUNK_FAILED"
	CodeDimensionMismatch Code = "DIMENSION_MISMATCH"
	CodeStoreFailed       Code = "STORE_FAILED"
	CodeDocumentNotFound  Code = "DOCUMENT_NOT_FOUND"

	CodeNoResults       Code = "NO_RESULTS"
	CodeLLMUnavailable  Code = "LLM_UNAVAILABLE"
	CodeLLMTimeout      Code = "LLM_TIMEOUT"
	CodeInvalidParam    Code = "INVALID_PARAMETER"
	CodeMalformedStream Code = "MALFORMED_STREAM"

	CodeCancelled Code = "CANCELLED"
)

// Error is a typed error carrying a stable code and structured detail.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on code so errors.Is(err, &Error{Code: c}) works for sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// NewError builds a typed error with optional structured details.
func NewError(code Code, message string, details map[string]any) *Error {
	return &Error{Code: code, Message: message, Details: details}
}

// WrapError builds a typed error wrapping a cause.
func WrapError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the code from err, or empty when err is not typed.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCancelled reports whether err represents cooperative cancellation, the
// outcome distinguishable from both success and failure.
func IsCancelled(err error) bool {
	return CodeOf(err) == CodeCancelled
}
