// Package errors provides the structured error type used across spall.
//
// Every failure that crosses an operation boundary carries a stable code
// string (e.g. "corpus.not_found") which the HTTP layer maps to a status
// and the CLI prints verbatim.
package errors

import (
	"errors"
	"fmt"
)

// Stable error codes. These strings are part of the wire contract.
const (
	CodeCorpusNotFound    = "corpus.not_found"
	CodeWorkspaceNotFound = "workspace.not_found"
	CodeQueryNotFound     = "query.not_found"
	CodeNoteNotFound      = "note.not_found"
	CodeDuplicateContent  = "note.duplicate_content"
	CodeNoteExists        = "note.already_exists"
	CodeCancelled         = "storage.cancelled"
	CodeInternal          = "error"
)

// Error is the structured error type for spall.
type Error struct {
	// Code is the stable error code (e.g. "note.duplicate_content").
	Code string

	// Message is the human-readable error message.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so errors.Is works across instances.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates an Error with the given code and message.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error from an existing error, preserving it as the cause.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: err.Error(), Cause: err}
}

// CorpusNotFound reports a missing corpus by name or id.
func CorpusNotFound(ref any) *Error {
	return Newf(CodeCorpusNotFound, "corpus not found: %v", ref)
}

// WorkspaceNotFound reports a missing workspace by name or id.
func WorkspaceNotFound(ref any) *Error {
	return Newf(CodeWorkspaceNotFound, "workspace not found: %v", ref)
}

// QueryNotFound reports a missing query id.
func QueryNotFound(id any) *Error {
	return Newf(CodeQueryNotFound, "query not found: %v", id)
}

// NoteNotFound reports a missing note.
func NoteNotFound(ref any) *Error {
	return Newf(CodeNoteNotFound, "note not found: %v", ref)
}

// DuplicateContent reports a content-hash collision without dupe=true.
func DuplicateContent(path string) *Error {
	return Newf(CodeDuplicateContent, "duplicate content for %q; pass dupe=true to allow", path)
}

// NoteExists reports a (corpus, path) collision on add.
func NoteExists(path string) *Error {
	return Newf(CodeNoteExists, "note already exists: %q", path)
}

// Cancelled reports cooperative cancellation of an in-flight operation.
func Cancelled() *Error {
	return New(CodeCancelled, "operation cancelled")
}

// Internal wraps an unexpected failure under the catch-all code.
func Internal(err error) *Error {
	return Wrap(CodeInternal, err)
}

// Code extracts the code from err, or "error" for foreign errors.
func Code(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeInternal
}

// IsNotFound reports whether err carries one of the not-found codes.
func IsNotFound(err error) bool {
	switch Code(err) {
	case CodeCorpusNotFound, CodeWorkspaceNotFound, CodeQueryNotFound, CodeNoteNotFound:
		return true
	}
	return false
}

// IsCancelled reports whether err is a cooperative cancellation.
func IsCancelled(err error) bool {
	return Code(err) == CodeCancelled
}

// HTTPStatus maps an error to the HTTP status the route layer returns.
func HTTPStatus(err error) int {
	if IsNotFound(err) {
		return 404
	}
	return 500
}
