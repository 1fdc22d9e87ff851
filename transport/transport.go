// Package transport provides the request/response byte carrier the wire
// protocol rides on. Any reliable, in-order, byte-preserving carrier works:
// this package ships an in-process loopback pair for testing, a raw TCP
// carrier, and a WebSocket carrier, all satisfying the same interface.
package transport

import "errors"

// ErrClosed is returned by SendFrame/RecvFrame once the transport has been
// closed, including when the remote side is gone.
var ErrClosed = errors.New("transport: closed")

// Transport exchanges whole frames with the peer on the other end of the
// channel. A frame is an opaque byte string; framing (length delimiting)
// is the transport's concern, not the caller's. The protocol above this
// layer is strictly half-duplex — at most one frame is in flight in each
// direction at a time (§4.4, I7) — so Transport need not support
// concurrent SendFrame/RecvFrame pairs from multiple goroutines.
type Transport interface {
	// SendFrame writes one complete frame.
	SendFrame(data []byte) error
	// RecvFrame blocks for the next complete frame.
	RecvFrame() ([]byte, error)
	// Close releases the underlying carrier. Any blocked RecvFrame/SendFrame
	// calls must return ErrClosed.
	Close() error
}
