package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrFrameTooLarge is returned when an encoded message does not fit in
	// one frame.
	ErrFrameTooLarge = errors.New("message exceeds frame size")

	// ErrDirectionMismatch is returned when a message is encoded in a
	// direction its variant does not support.
	ErrDirectionMismatch = errors.New("message not valid in this direction")
)

// DecodeError describes why a frame could not be turned into a Message.
// Decoding never panics on malformed input; every failure is a *DecodeError.
type DecodeError struct {
	Reason string
	Field  string // offending field, if any
	Err    error  // underlying JSON error, if any
}

func (e *DecodeError) Error() string {
	msg := "decode: " + e.Reason
	if e.Field != "" {
		msg += fmt.Sprintf(" (field %q)", e.Field)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is or wraps a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

func missingField(name string) error {
	return &DecodeError{Reason: "missing required field", Field: name}
}

func invalidField(name, detail string) error {
	return &DecodeError{Reason: "invalid value " + fmt.Sprintf("%q", detail), Field: name}
}
