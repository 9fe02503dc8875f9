package interfaces

import "context"

// CloseCodeUnauthorized is the reserved close code meaning "terminated by
// server as unauthorized, do not auto-reconnect".
const CloseCodeUnauthorized = 4003

// Transport opens bidirectional message connections to the session server.
// Implementations are dialers; each successful Dial yields an independent
// single-use Conn.
type Transport interface {
	// Dial opens a connection to the given endpoint URL. The context
	// bounds the handshake only, not the connection lifetime.
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// Conn is one live bidirectional message connection. Inbound frames are
// delivered in wire order on a single channel; the channel is closed when
// the connection dies. Send is safe for concurrent use.
type Conn interface {
	// Send writes one text frame. Returns an error if the connection is
	// closed or the write buffer is saturated.
	Send(data []byte) error

	// Inbound returns the ordered stream of received frames. Closed on
	// connection teardown.
	Inbound() <-chan []byte

	// Done is closed once the connection is fully torn down and CloseCode
	// is valid.
	Done() <-chan struct{}

	// CloseCode returns the close status observed when the connection
	// ended, or 0 if it ended without one (dial-side close, network
	// failure). Valid only after Done is closed.
	CloseCode() int

	// Close tears the connection down; idempotent.
	Close() error
}
