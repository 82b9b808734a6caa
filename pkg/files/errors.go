package files

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrorCode classifies a file operation failure.
type ErrorCode int

const (
	// NotFound indicates a missing file, or an empty path or user.
	NotFound ErrorCode = iota + 1

	// Forbidden indicates a path outside the sandbox root.
	Forbidden

	// Unauthorized indicates the caller does not own the file, or the OS
	// denied access.
	Unauthorized

	// Conflict indicates the operation clashes with the current state of
	// the tree, or an I/O failure.
	Conflict
)

// String returns a human-readable name for the error code.
func (c ErrorCode) String() string {
	switch c {
	case NotFound:
		return "NotFound"
	case Forbidden:
		return "Forbidden"
	case Unauthorized:
		return "Unauthorized"
	case Conflict:
		return "Conflict"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// Error is a failed file operation.
type Error struct {
	Code    ErrorCode
	Message string
	Path    string
	Err     error // underlying OS error, if any
}

// Sentinels for errors.Is: an *Error matches the sentinel with its Code.
var (
	ErrNotFound     = &Error{Code: NotFound}
	ErrForbidden    = &Error{Code: Forbidden}
	ErrUnauthorized = &Error{Code: Unauthorized}
	ErrConflict     = &Error{Code: Conflict}
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (path: %s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a sentinel with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == "" && t.Path == ""
}

// CodeOf returns the ErrorCode of err, or 0 if err is not an *Error.
func CodeOf(err error) ErrorCode {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return 0
}

// ============================================================================
// Factory Functions
// ============================================================================

// NewNotFoundError creates a NotFound error.
func NewNotFoundError(path, what string) *Error {
	return &Error{Code: NotFound, Message: what + " not found", Path: path}
}

// NewForbiddenError creates a Forbidden error.
func NewForbiddenError(path string) *Error {
	return &Error{Code: Forbidden, Message: "path outside sandbox", Path: path}
}

// NewUnauthorizedError creates an Unauthorized error.
func NewUnauthorizedError(path, reason string) *Error {
	return &Error{Code: Unauthorized, Message: reason, Path: path}
}

// NewConflictError creates a Conflict error.
func NewConflictError(path, reason string) *Error {
	return &Error{Code: Conflict, Message: reason, Path: path}
}

// fromOS maps an OS error: permission problems are Unauthorized, anything
// else is Conflict.
func fromOS(path, op string, err error) *Error {
	if errors.Is(err, fs.ErrPermission) {
		return &Error{Code: Unauthorized, Message: op + ": permission denied", Path: path, Err: err}
	}
	return &Error{Code: Conflict, Message: op + " failed", Path: path, Err: err}
}
