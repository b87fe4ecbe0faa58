// Package transport provides the blocking message transport used by
// both the broker and the client dispatcher. A Transport delivers
// whole messages in order, with an independent terminal failure per
// direction: a Recv error does not imply Send has also failed, and
// vice versa.
package transport

import (
	"context"

	"github.com/aldrin-bus/aldrin/wire"
)

// Transport moves framed messages to and from one peer. Implementations
// must preserve message ordering and boundaries; partial messages are
// never observable to callers.
type Transport interface {
	// Recv blocks until a message arrives, ctx is canceled, or the
	// transport fails. A returned error is terminal: no further Recv
	// call will succeed.
	Recv(ctx context.Context) (wire.Message, error)

	// Send blocks until msg has been handed to the underlying medium
	// (not necessarily acknowledged by the peer), ctx is canceled, or
	// the transport fails. Backpressure is expressed by Send blocking,
	// rather than by a separate readiness check.
	Send(ctx context.Context, msg wire.Message) error

	// Close releases the transport's resources. Concurrent Recv/Send
	// calls unblock with an error. Close is idempotent.
	Close() error
}
