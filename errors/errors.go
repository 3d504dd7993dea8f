// Package errors provides error types and handling for upload operations.
package errors

import (
	"errors"
	"fmt"
)

// Error represents an upload operation error with context about the operation
// that failed. It wraps the underlying transport or protocol error with
// additional context for better debugging.
type Error struct {
	// Op is the operation that failed (e.g., "init", "chunk", "complete")
	Op string

	// UploadID is the server-issued session identifier (if known)
	UploadID string

	// File is the file name the operation concerned (if applicable)
	File string

	// Err is the underlying error
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.UploadID != "" && e.File != "" {
		return fmt.Sprintf("upload.%s %s/%s: %v", e.Op, e.UploadID, e.File, e.Err)
	}
	if e.UploadID != "" {
		return fmt.Sprintf("upload.%s session %s: %v", e.Op, e.UploadID, e.Err)
	}
	if e.File != "" {
		return fmt.Sprintf("upload.%s file %s: %v", e.Op, e.File, e.Err)
	}
	return fmt.Sprintf("upload.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithUploadID adds session context to an existing error.
func (e *Error) WithUploadID(id string) *Error {
	e.UploadID = id
	return e
}

// WithFile adds file context to an existing error.
func (e *Error) WithFile(file string) *Error {
	e.File = file
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// Sentinel errors forming the failure taxonomy of the upload protocol.
// These can be used with errors.Is() for error checking.
var (
	// ErrValidation indicates malformed input (bad file list, empty batch).
	// Never retried; surfaced immediately.
	ErrValidation = errors.New("upload: validation failed")

	// ErrPolicy indicates a quota or policy violation reported by the server.
	ErrPolicy = errors.New("upload: policy violation")

	// ErrNetwork indicates a transient transport failure. Retryable.
	ErrNetwork = errors.New("upload: network error")

	// ErrServer indicates a server-side storage failure. Retryable; fatal
	// once retries are exhausted.
	ErrServer = errors.New("upload: server error")

	// ErrNotFound indicates the upload session is unknown or expired.
	// Fatal; retrying cannot recover a lost session.
	ErrNotFound = errors.New("upload: session not found")

	// ErrIncomplete indicates finalization was requested before every chunk
	// landed. Fatal; indicates an ordering bug, not retried.
	ErrIncomplete = errors.New("upload: session incomplete")

	// ErrAborted indicates the session was cancelled before completion.
	ErrAborted = errors.New("upload: aborted")
)

// IsRetryable reports whether an error is transient and worth retrying.
// Only network and server errors qualify; everything else in the taxonomy
// is fatal for the unit of work that produced it.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrServer)
}

// IsValidation checks if an error indicates malformed input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound checks if an error indicates an unknown or expired session.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAborted checks if an error indicates a cancelled session.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}
