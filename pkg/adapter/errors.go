package adapter

// ProtocolError is a domain error translated into a protocol status code.
//
// The cnt adapter maps files.ErrNotFound to 404, files.ErrForbidden and
// sandbox escapes to 403, and so on. Unwrap exposes the domain error so
// errors.Is still matches the original sentinel through the wrapper.
type ProtocolError interface {
	error

	// Code returns the numeric status sent on the wire.
	Code() uint32

	// Message returns the human-readable text sent with the code.
	Message() string

	// Unwrap returns the underlying domain error.
	Unwrap() error
}
