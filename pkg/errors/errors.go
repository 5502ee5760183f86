// Package errors provides structured error types for BGF decoding and caching.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the decoder, the cache and the CLI
//   - Machine-readable error codes for programmatic handling
//   - Diagnostics that point at the failing container offset or graph
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Every failure the decoder can report maps onto one code:
//   - TRUNCATED_INPUT: a field declares more bytes than the source holds
//   - INVALID_ENCODING: a string field is not valid UTF-8
//   - CORRUPT_CONTAINER: a sanity bound or structural invariant failed
//   - INVALID_EDGE_INDEX: an edge endpoint is not a valid node id
//   - SOURCE_NOT_FOUND: the BGF file is missing and no cache exists
//   - INDEX_OUT_OF_RANGE: collection access past its bounds
//
// A wrong byte order or pointer width is by far the most common reason for
// CORRUPT_CONTAINER and TRUNCATED_INPUT; messages for those codes say so.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeCorruptContainer, "graph count %d out of range", n)
//	if errors.Is(err, errors.ErrCodeCorruptContainer) {
//	    // Suggest a different --byte-order / --pointer-width
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeTruncatedInput, io.ErrUnexpectedEOF, "read node count").AtOffset(128)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Decode errors
	ErrCodeTruncatedInput   Code = "TRUNCATED_INPUT"
	ErrCodeInvalidEncoding  Code = "INVALID_ENCODING"
	ErrCodeCorruptContainer Code = "CORRUPT_CONTAINER"
	ErrCodeInvalidEdgeIndex Code = "INVALID_EDGE_INDEX"

	// Dataset errors
	ErrCodeSourceNotFound Code = "SOURCE_NOT_FOUND"
	ErrCodeCorruptCache   Code = "CORRUPT_CACHE"

	// Access errors
	ErrCodeIndexOutOfRange Code = "INDEX_OUT_OF_RANGE"

	// Configuration errors
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// NoOffset marks an error that is not tied to a container position.
const NoOffset int64 = -1

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
	Offset  int64  // Container byte offset of the failing read, or NoOffset
	Graph   string // Name of the graph being decoded (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Graph != "" {
		msg += fmt.Sprintf(" (graph %q)", e.Graph)
	}
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" (offset %d)", e.Offset)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// AtOffset records the container offset at which the failure happened.
func (e *Error) AtOffset(off int64) *Error {
	e.Offset = off
	return e
}

// InGraph records the name of the graph that was being decoded.
// An already attached name is kept so the innermost context wins.
func (e *Error) InGraph(name string) *Error {
	if e.Graph == "" {
		e.Graph = name
	}
	return e
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Offset:  NoOffset,
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
		Offset:  NoOffset,
	}
}

// WithGraph attaches a graph name to err if it is an *Error, otherwise it
// wraps err as an internal error carrying the name.
func WithGraph(err error, name string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		e.InGraph(name)
		return err
	}
	return Wrap(ErrCodeInternal, err, "decode failed").InGraph(name)
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
