package msgchannel

import (
	"errors"
	"fmt"

	"github.com/vanadium-project/vanadium-go/log"
	"github.com/vanadium-project/vanadium-go/metrics"
	"github.com/vanadium-project/vanadium-go/wire"
)

var hostLogger = log.Default().Module("msgchannel.host")

// ErrNoPendingMessage is returned when a SendBufferContinued frame arrives
// with no SendBuffer frame having started a message first.
var ErrNoPendingMessage = errors.New("msgchannel: continuation with no message in progress")

// ErrMessageInFlight is returned by Outbox.Enqueue when the previous
// to_app message has not yet been fully drained by the device.
var ErrMessageInFlight = errors.New("msgchannel: previous message not yet drained")

// ErrNoMessageQueued is returned when a ReceiveBuffer frame arrives with no
// to_app message queued to answer it with.
var ErrNoMessageQueued = errors.New("msgchannel: no message queued for xrecv")

// Inbox is the host side of xsend: it reassembles SendBuffer/
// SendBufferContinued fragments pushed by the device into complete
// buffers, invoking onComplete once each buffer is whole.
type Inbox struct {
	onComplete func(typ wire.BufferType, data []byte) error

	active    bool
	typ       wire.BufferType
	buf       []byte
	remaining uint32
}

// NewInbox builds an Inbox that calls onComplete with each fully
// reassembled buffer.
func NewInbox(onComplete func(typ wire.BufferType, data []byte) error) *Inbox {
	return &Inbox{onComplete: onComplete}
}

// HandleFrame processes one SendBuffer or SendBufferContinued frame and
// returns the empty acknowledgment the device's next frame is gated on.
func (ib *Inbox) HandleFrame(frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, wire.ErrInvalidDataLength
	}
	code, err := wire.ParseClientCommandCode(frame[0])
	if err != nil {
		return nil, err
	}
	switch code {
	case wire.SendBuffer:
		msg, err := wire.DecodeSendBufferMessage(frame)
		if err != nil {
			return nil, err
		}
		ib.active = true
		ib.typ = msg.Type
		ib.buf = append([]byte(nil), msg.Data...)
		ib.remaining = msg.TotalSize - uint32(len(msg.Data))
	case wire.SendBufferContinued:
		if !ib.active {
			return nil, ErrNoPendingMessage
		}
		msg, err := wire.DecodeSendBufferContinuedMessage(frame)
		if err != nil {
			return nil, err
		}
		if uint32(len(msg.Data)) > ib.remaining {
			return nil, wire.ErrInvalidDataLength
		}
		ib.buf = append(ib.buf, msg.Data...)
		ib.remaining -= uint32(len(msg.Data))
	default:
		return nil, fmt.Errorf("msgchannel: unexpected command %s in Inbox", code)
	}

	if ib.active && ib.remaining == 0 {
		typ, data := ib.typ, ib.buf
		ib.active = false
		ib.buf = nil
		metrics.MessagesReceived.Inc()
		hostLogger.Debug("reassembled buffer", "type", typ, "bytes", len(data))
		if err := ib.onComplete(typ, data); err != nil {
			return nil, err
		}
	}
	return []byte{}, nil
}

// Outbox is the host side of xrecv: it holds the next to_app message and
// serves it to the device's ReceiveBuffer requests, one chunk at a time.
type Outbox struct {
	chunkSize int

	active  bool
	pending []byte
}

// NewOutbox builds an Outbox. chunkSize of 0 selects wire.DefaultMaxChunkBytes.
func NewOutbox(chunkSize int) *Outbox {
	if chunkSize <= 0 {
		chunkSize = wire.DefaultMaxChunkBytes
	}
	return &Outbox{chunkSize: chunkSize}
}

// Enqueue sets the next message to drain. It must not be called again
// until the previous message has been fully served (I7: only one message
// cycle is ever in flight).
func (ob *Outbox) Enqueue(data []byte) error {
	if ob.active {
		return ErrMessageInFlight
	}
	ob.active = true
	ob.pending = append([]byte(nil), data...)
	return nil
}

// HandleFrame processes one ReceiveBuffer frame and returns the encoded
// ReceiveBufferResponse chunk.
func (ob *Outbox) HandleFrame(frame []byte) ([]byte, error) {
	if _, err := wire.DecodeReceiveBufferMessage(frame); err != nil {
		return nil, err
	}
	if !ob.active {
		return nil, ErrNoMessageQueued
	}
	n := ob.chunkSize
	if n > len(ob.pending) {
		n = len(ob.pending)
	}
	chunk := ob.pending[:n]
	ob.pending = ob.pending[n:]
	remaining := uint32(len(ob.pending))
	if remaining == 0 {
		ob.active = false
		ob.pending = nil
	}
	resp := wire.ReceiveBufferResponse{RemainingLength: remaining, Content: chunk}
	return resp.Encode(nil), nil
}
