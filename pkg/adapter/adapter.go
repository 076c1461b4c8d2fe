// Package adapter defines the lifecycle contract between the server core
// and protocol front ends.
package adapter

import (
	"context"

	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

// Adapter is a protocol front end managed by the daemon. All adapters share
// the same storage backend.
//
// Lifecycle: SetBackend is called exactly once, then Serve blocks until the
// context is cancelled or a fatal error occurs. Stop may be called
// concurrently with Serve and must be idempotent.
type Adapter interface {
	// Serve starts the listener and blocks. Cancellation of ctx triggers
	// graceful shutdown: stop accepting, let active connections drain up
	// to the configured timeout, then force-close the rest.
	Serve(ctx context.Context) error

	// SetBackend injects the shared storage backend before Serve.
	SetBackend(b backend.Backend)

	// Stop initiates graceful shutdown. The context bounds how long to
	// wait for active connections.
	Stop(ctx context.Context) error

	// Protocol returns the protocol name for logging and metrics.
	Protocol() string

	// Port returns the listen port, or 0 before Serve.
	Port() int
}
