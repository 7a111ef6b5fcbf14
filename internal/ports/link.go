package ports

import "context"

// Link moves raw chunks between exactly two endpoints. Delivery is reliable
// and ordered; every call blocks until it completes or fails.
type Link interface {
	// Send transmits one chunk as a single underlying transfer.
	Send(ctx context.Context, chunk []byte) error

	// Recv returns exactly n bytes of the next transfer.
	// Fewer bytes is a short read and must be reported as an error.
	Recv(ctx context.Context, n int) ([]byte, error)

	// Close releases the link. Further calls fail.
	Close() error
}

// Conn is a framed connection to one peer.
type Conn interface {
	// Send transmits payload as a length header followed by bounded chunks.
	Send(ctx context.Context, payload []byte) error

	// Receive returns the next payload truncated to capacity bytes.
	Receive(ctx context.Context, capacity int) ([]byte, error)

	// IsConnected reports whether the connection is still usable.
	IsConnected() bool

	// Close releases the connection and its link.
	Close() error
}

// Transport is the process-wide lifecycle shared by every connection an
// adapter creates. Open and Close are idempotent.
type Transport interface {
	// Name identifies the adapter ("mem", "tcp", "nats").
	Name() string

	// Open prepares the transport. Calling it on an open transport is a no-op.
	Open(ctx context.Context) error

	// Close releases process-wide resources. Calling it twice is a no-op.
	Close() error

	// IsOpen reports whether Open succeeded and Close has not been called.
	IsOpen() bool
}
