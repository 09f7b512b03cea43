// Package apperr defines the error taxonomy shared by the storage, query,
// history and job layers.
//
// Every error that crosses a package boundary is an *Error carrying a Code.
// Callers branch on the code with Is or CodeOf (both use errors.As, so
// wrapped errors match), or with errors.Is against the exported sentinels:
//
//	if errors.Is(err, apperr.ErrWriteConflict) { ... }
package apperr

import (
	"errors"
	"fmt"
)

// Code categorizes errors.
type Code string

const (
	// CodeStoreNotFound indicates the environment path does not exist.
	CodeStoreNotFound Code = "STORE_NOT_FOUND"

	// CodePermissionDenied indicates the file or the open mode forbids the operation.
	CodePermissionDenied Code = "PERMISSION_DENIED"

	// CodeCorruptStore indicates the file is not a valid store.
	CodeCorruptStore Code = "CORRUPT_STORE"

	// CodeWriteConflict indicates a write transaction is already live, or a
	// token no longer owns it.
	CodeWriteConflict Code = "WRITE_CONFLICT"

	// CodeEmptyHistory indicates there is nothing to undo or redo.
	CodeEmptyHistory Code = "EMPTY_HISTORY"

	// CodeQuerySyntax indicates a malformed query expression.
	CodeQuerySyntax Code = "QUERY_SYNTAX"

	// CodeDecodeSkipped is informational: a value could not be decoded and
	// was skipped by a scan. It never fails an operation.
	CodeDecodeSkipped Code = "DECODE_SKIPPED"

	// CodeBusy indicates the environment cannot serve the request right now
	// (closing, lock held by another process, readers still in flight).
	CodeBusy Code = "BUSY"

	// CodeJobFailed wraps the cause of a failed background job.
	CodeJobFailed Code = "JOB_FAILED"

	// CodeNotFound indicates a missing database or key.
	CodeNotFound Code = "NOT_FOUND"

	// CodeInvalidArgument indicates a malformed request.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// CodeWriteAborted indicates a write transaction was force-aborted
	// after a fault.
	CodeWriteAborted Code = "WRITE_ABORTED"
)

// Sentinels for errors.Is matching. They match any *Error with the same code.
var (
	ErrStoreNotFound    = &Error{Code: CodeStoreNotFound}
	ErrPermissionDenied = &Error{Code: CodePermissionDenied}
	ErrCorruptStore     = &Error{Code: CodeCorruptStore}
	ErrWriteConflict    = &Error{Code: CodeWriteConflict}
	ErrEmptyHistory     = &Error{Code: CodeEmptyHistory}
	ErrQuerySyntax      = &Error{Code: CodeQuerySyntax}
	ErrBusy             = &Error{Code: CodeBusy}
	ErrJobFailed        = &Error{Code: CodeJobFailed}
	ErrNotFound         = &Error{Code: CodeNotFound}
	ErrInvalidArgument  = &Error{Code: CodeInvalidArgument}
	ErrWriteAborted     = &Error{Code: CodeWriteAborted}
)

// Error is a categorized error.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Op names the operation that failed (e.g. "open", "begin write").
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a bare sentinel with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Err == nil && t.Code == e.Code
}

// New creates an Error with a message.
func New(code Code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error around a cause.
func Wrap(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given code.
// Uses errors.As to handle wrapped errors.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsNotFound reports whether err is a missing store, database or key.
func IsNotFound(err error) bool {
	c := CodeOf(err)
	return c == CodeStoreNotFound || c == CodeNotFound
}

// JobFailed wraps the cause of a failed background job.
func JobFailed(jobID string, cause error) *Error {
	return &Error{Code: CodeJobFailed, Op: "job " + jobID, Err: cause}
}
