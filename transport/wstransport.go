package transport

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// errNonBinaryMessage is returned when the peer sends a text or control
// frame where a binary protocol frame was expected.
var errNonBinaryMessage = errors.New("transport: received non-binary websocket message")

// wsTransport frames each protocol frame as a single WebSocket binary
// message — gorilla/websocket already preserves message boundaries, so no
// extra length prefix is needed here, unlike the raw-TCP carrier.
type wsTransport struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

// NewWSTransport wraps an already-established *websocket.Conn as a
// Transport.
func NewWSTransport(conn *websocket.Conn) Transport {
	return &wsTransport{conn: conn}
}

var dialer = websocket.Dialer{}

// DialWS connects to a WebSocket endpoint (e.g. "ws://host:port/vanadium")
// and returns it wrapped as a Transport.
func DialWS(url string, header http.Header) (Transport, error) {
	conn, _, err := dialer.Dial(url, header)
	if err != nil {
		return nil, err
	}
	return NewWSTransport(conn), nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  MaxFrameSize,
	WriteBufferSize: MaxFrameSize,
}

// UpgradeWS promotes an incoming HTTP request to a WebSocket connection and
// returns it wrapped as a Transport, for use in an http.HandlerFunc serving
// the device (or host) endpoint.
func UpgradeWS(w http.ResponseWriter, r *http.Request) (Transport, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewWSTransport(conn), nil
}

func (t *wsTransport) SendFrame(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if err := t.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return err
	}
	return nil
}

func (t *wsTransport) RecvFrame() ([]byte, error) {
	kind, data, err := t.conn.ReadMessage()
	if err != nil {
		t.mu.Lock()
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return nil, ErrClosed
		}
		return nil, err
	}
	if kind != websocket.BinaryMessage {
		return nil, errNonBinaryMessage
	}
	return data, nil
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return t.conn.Close()
}
