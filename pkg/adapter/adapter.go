// Package adapter holds the protocol-independent half of a cntfs server: the
// TCP accept loop, connection tracking and graceful shutdown. Protocol
// packages (pkg/adapter/cnt) embed BaseAdapter and supply a
// ConnectionFactory.
package adapter

import "context"

// Adapter is a protocol server managed by the cntfs process.
//
// Lifecycle:
//  1. Creation with protocol-specific configuration and dependencies
//  2. Serve() binds the listener and blocks until shutdown
//  3. Stop() (or cancelling Serve's context) shuts down gracefully
//
// Stop may be called concurrently with Serve and more than once.
type Adapter interface {
	// Serve starts the server and blocks until ctx is cancelled or the
	// listener cannot be created. It returns nil on graceful shutdown.
	Serve(ctx context.Context) error

	// Stop initiates graceful shutdown and waits for live sessions to end
	// or ctx to expire.
	Stop(ctx context.Context) error

	// Protocol returns the protocol name used in logs and metrics.
	Protocol() string

	// Port returns the configured TCP port.
	Port() int

	// MapError translates a domain error into a wire status. It returns nil
	// for errors the protocol has no status for.
	MapError(err error) ProtocolError
}
