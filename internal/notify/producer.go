package notify

import "context"

// Producer hands messages to the delivery pipeline. Callers use it
// best-effort: log and ignore errors.
type Producer interface {
	// Send enqueues a single message. Implementations may block briefly; use
	// DispatchAsync from request paths.
	Send(ctx context.Context, msg *Message) error
	// Close releases resources (e.g. the Kafka writer). Safe to call if already closed.
	Close() error
}
