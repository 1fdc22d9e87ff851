package transport

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
)

// MaxFrameSize bounds a single frame to guard against a misbehaving peer
// claiming an unbounded length prefix.
const MaxFrameSize = 16 * 1024 * 1024

// tcpTransport frames an underlying net.Conn with a 4-byte big-endian
// length prefix per frame. This is the plain-network carrier named in the
// protocol's carrier-agnostic contract (§6): reliable, in-order,
// byte-preserving.
type tcpTransport struct {
	conn net.Conn
	r    *bufio.Reader

	mu     sync.Mutex
	closed bool
}

// NewTCPTransport wraps an already-connected net.Conn (from net.Dial or
// net.Listener.Accept) as a Transport.
func NewTCPTransport(conn net.Conn) Transport {
	return &tcpTransport{conn: conn, r: bufio.NewReader(conn)}
}

// DialTCP connects to addr and returns it wrapped as a Transport.
func DialTCP(addr string) (Transport, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewTCPTransport(conn), nil
}

func (t *tcpTransport) SendFrame(data []byte) error {
	if len(data) > MaxFrameSize {
		return fmt.Errorf("transport: frame of %d bytes exceeds MaxFrameSize", len(data))
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(data)))
	if _, err := t.conn.Write(hdr[:]); err != nil {
		return t.wrapErr(err)
	}
	if _, err := t.conn.Write(data); err != nil {
		return t.wrapErr(err)
	}
	return nil
}

func (t *tcpTransport) RecvFrame() ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(t.r, hdr[:]); err != nil {
		return nil, t.wrapErr(err)
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("transport: peer announced oversized frame of %d bytes", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(t.r, buf); err != nil {
		return nil, t.wrapErr(err)
	}
	return buf, nil
}

func (t *tcpTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return t.conn.Close()
}

func (t *tcpTransport) wrapErr(err error) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return err
}
