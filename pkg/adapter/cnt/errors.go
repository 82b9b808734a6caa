package cnt

import (
	"context"
	"errors"

	"github.com/marmos91/cntfs/pkg/adapter"
	"github.com/marmos91/cntfs/pkg/auth"
	"github.com/marmos91/cntfs/pkg/files"
	"github.com/marmos91/cntfs/pkg/protocol"
	"github.com/marmos91/cntfs/pkg/sandbox"
)

// errSessionDone ends the request loop after a clean close.
var errSessionDone = errors.New("session closed by client")

// ackError is a domain error translated into an Ack code.
type ackError struct {
	code    int
	message string
	err     error
}

func (e *ackError) Error() string {
	return protocol.StatusText(e.code) + ": " + e.message
}

func (e *ackError) Code() uint32    { return uint32(e.code) }
func (e *ackError) Message() string { return e.message }
func (e *ackError) Unwrap() error   { return e.err }

var _ adapter.ProtocolError = (*ackError)(nil)

// pathErrorText is the Ack text for any path rejected by the sandbox.
const pathErrorText = "invalid path"

// mapError translates err into an Ack. It returns nil for errors that are
// not the client's doing (cancellation, store outages), which the session
// handles itself.
func mapError(err error) *ackError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil
	case errors.Is(err, sandbox.ErrAbsolutePath), errors.Is(err, sandbox.ErrOutsideRoot):
		return &ackError{code: protocol.CodeForbidden, message: pathErrorText, err: err}
	case errors.Is(err, auth.ErrInvalidCredentials):
		return &ackError{code: protocol.CodeUnauthorized, message: err.Error(), err: err}
	}

	var fe *files.Error
	if !errors.As(err, &fe) {
		return nil
	}
	switch fe.Code {
	case files.NotFound:
		return &ackError{code: protocol.CodeNotFound, message: fe.Message, err: err}
	case files.Forbidden:
		return &ackError{code: protocol.CodeForbidden, message: pathErrorText, err: err}
	case files.Unauthorized:
		return &ackError{code: protocol.CodeUnauthorized, message: fe.Message, err: err}
	case files.Conflict:
		return &ackError{code: protocol.CodeConflict, message: fe.Message, err: err}
	}
	return nil
}
