package transport

import (
	"encoding/binary"
	"errors"
)

// APDU is a Ledger-style smartcard command envelope: class, instruction,
// and two parameter bytes, wrapping a variable-length data field. Hardware
// secure elements speaking USB/HID (rather than a raw socket) expect
// commands framed this way; EncodeAPDU/DecodeAPDU let a Transport carrying
// raw frames (loopback, TCP, WebSocket) interoperate with that framing at
// the edges, without every carrier needing to know about it.
type APDU struct {
	CLA  byte
	INS  byte
	P1   byte
	P2   byte
	Data []byte
}

// ErrAPDUTooShort is returned when decoding a byte string shorter than the
// fixed 4-byte APDU header plus its declared data length.
var ErrAPDUTooShort = errors.New("transport: apdu frame too short")

// ErrAPDUDataTooLarge is returned when Data exceeds the 2-byte extended
// length field's range.
var ErrAPDUDataTooLarge = errors.New("transport: apdu data exceeds 65535 bytes")

// EncodeAPDU serializes a as CLA || INS || P1 || P2 || LC(2, big-endian) ||
// Data, an extended-length APDU layout (plain, non-chained single command).
func EncodeAPDU(a APDU) ([]byte, error) {
	if len(a.Data) > 0xFFFF {
		return nil, ErrAPDUDataTooLarge
	}
	out := make([]byte, 6+len(a.Data))
	out[0], out[1], out[2], out[3] = a.CLA, a.INS, a.P1, a.P2
	binary.BigEndian.PutUint16(out[4:6], uint16(len(a.Data)))
	copy(out[6:], a.Data)
	return out, nil
}

// DecodeAPDU parses the layout EncodeAPDU produces.
func DecodeAPDU(b []byte) (APDU, error) {
	if len(b) < 6 {
		return APDU{}, ErrAPDUTooShort
	}
	n := binary.BigEndian.Uint16(b[4:6])
	if len(b) < 6+int(n) {
		return APDU{}, ErrAPDUTooShort
	}
	return APDU{CLA: b[0], INS: b[1], P1: b[2], P2: b[3], Data: b[6 : 6+int(n)]}, nil
}
