package client

import (
	"errors"
	"fmt"

	"github.com/marmos91/cntfs/pkg/protocol"
)

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("client closed")

// StatusError is a non-200 status returned by the server.
type StatusError struct {
	Op      string
	Code    int
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %d %s", e.Op, e.Code, protocol.StatusText(e.Code))
	}
	return fmt.Sprintf("%s: %d %s: %s", e.Op, e.Code, protocol.StatusText(e.Code), e.Message)
}

// IsNotFound returns true if the server answered 404.
func (e *StatusError) IsNotFound() bool { return e.Code == protocol.CodeNotFound }

// IsAuthError returns true if the server answered 401 or 403.
func (e *StatusError) IsAuthError() bool {
	return e.Code == protocol.CodeUnauthorized || e.Code == protocol.CodeForbidden
}

// IsConflict returns true if the server answered 409.
func (e *StatusError) IsConflict() bool { return e.Code == protocol.CodeConflict }

// StatusCode extracts the server status from err, or 0 if err is not a
// StatusError.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

func check(op string, code int, message string) error {
	if code == protocol.CodeOK {
		return nil
	}
	return &StatusError{Op: op, Code: code, Message: message}
}
