// Package msgchannel implements the xsend/xrecv message protocol (§4.6): a
// V-App pushes an outbound buffer to the host with xsend and pulls an
// inbound one with xrecv, both fragmented across the same transport used
// for page faults. Sender/Receiver are the device side (driven by the
// riscv package's ECALL dispatch); Inbox/Outbox are the host side (driven
// by hostengine).
package msgchannel

import (
	"github.com/vanadium-project/vanadium-go/log"
	"github.com/vanadium-project/vanadium-go/metrics"
	"github.com/vanadium-project/vanadium-go/transport"
	"github.com/vanadium-project/vanadium-go/wire"
)

var deviceLogger = log.Default().Module("msgchannel.device")

// Sender pushes one xsend buffer to the host, fragmenting it into
// SendBuffer/SendBufferContinued frames no larger than chunkSize and
// draining the host's empty acknowledgment after each one. The buffer
// ordering invariant (I4) falls out of the transport's in-order delivery:
// frames are never reordered or interleaved with another exchange.
type Sender struct {
	conn      transport.Transport
	chunkSize int
}

// NewSender builds a Sender. chunkSize of 0 selects wire.DefaultMaxChunkBytes.
func NewSender(conn transport.Transport, chunkSize int) *Sender {
	if chunkSize <= 0 {
		chunkSize = wire.DefaultMaxChunkBytes
	}
	return &Sender{conn: conn, chunkSize: chunkSize}
}

// Send pushes data to the host as a buffer of the given type. Panic and
// print buffers reuse this same path, tagged by typ — they are not a
// separate wire command.
func (s *Sender) Send(typ wire.BufferType, data []byte) error {
	total := uint32(len(data))
	first := data
	if len(first) > s.chunkSize {
		first = first[:s.chunkSize]
	}
	if err := s.send(wire.SendBufferMessage{Type: typ, TotalSize: total, Data: first}); err != nil {
		return err
	}
	if _, err := s.conn.RecvFrame(); err != nil {
		return err
	}

	offset := len(first)
	for offset < len(data) {
		end := offset + s.chunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := s.send(wire.SendBufferContinuedMessage{Data: data[offset:end]}); err != nil {
			return err
		}
		if _, err := s.conn.RecvFrame(); err != nil {
			return err
		}
		offset = end
	}
	metrics.MessagesSent.Inc()
	metrics.MessageBytesSent.Add(int64(total))
	deviceLogger.Debug("sent buffer", "type", typ, "bytes", total)
	return nil
}

func (s *Sender) send(m wire.Message) error {
	return s.conn.SendFrame(m.Encode(nil))
}

// Receiver pulls one xrecv buffer from the host, issuing ReceiveBufferMessage
// requests until the host's RemainingLength reaches zero.
type Receiver struct {
	conn transport.Transport
}

// NewReceiver builds a Receiver.
func NewReceiver(conn transport.Transport) *Receiver {
	return &Receiver{conn: conn}
}

// Recv blocks for the host's next queued to_app message and returns its
// full, reassembled content.
func (r *Receiver) Recv() ([]byte, error) {
	if err := r.conn.SendFrame(wire.ReceiveBufferMessage{}.Encode(nil)); err != nil {
		return nil, err
	}
	var buf []byte
	for {
		frame, err := r.conn.RecvFrame()
		if err != nil {
			return nil, err
		}
		resp, err := wire.DecodeReceiveBufferResponse(frame)
		if err != nil {
			return nil, err
		}
		buf = append(buf, resp.Content...)
		if resp.RemainingLength == 0 {
			return buf, nil
		}
		if err := r.conn.SendFrame(wire.ReceiveBufferMessage{}.Encode(nil)); err != nil {
			return nil, err
		}
	}
}
