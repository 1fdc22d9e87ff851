package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/vanadium-project/vanadium-go/accumulator"
)

// Message is implemented by every request/response type in this package.
// Encode appends the wire representation to dst and returns the result,
// following the append(dst, ...) convention so callers can build a frame
// without an intermediate buffer.
type Message interface {
	Encode(dst []byte) []byte
}

// ---------------------------------------------------------------------------
// GetPage
// ---------------------------------------------------------------------------

// GetPageMessage requests the content of page PageIndex within segment Kind.
type GetPageMessage struct {
	Kind      SectionKind
	PageIndex uint32
}

func (m GetPageMessage) Encode(dst []byte) []byte {
	dst = append(dst, byte(GetPage), byte(m.Kind))
	return appendUint32(dst, m.PageIndex)
}

// DecodeGetPageMessage parses a 6-byte GetPage request body.
func DecodeGetPageMessage(data []byte) (GetPageMessage, error) {
	if len(data) != 6 {
		return GetPageMessage{}, ErrInvalidDataLength
	}
	code, err := ParseClientCommandCode(data[0])
	if err != nil {
		return GetPageMessage{}, err
	}
	if code != GetPage {
		return GetPageMessage{}, ErrMismatchingClientCommandCode
	}
	kind, err := ParseSectionKind(data[1])
	if err != nil {
		return GetPageMessage{}, err
	}
	return GetPageMessage{Kind: kind, PageIndex: binary.BigEndian.Uint32(data[2:6])}, nil
}

// ---------------------------------------------------------------------------
// GetPageProof / GetPageProofContinued (device -> host requests)
// ---------------------------------------------------------------------------

// GetPageProofMessage asks for the inclusion proof of the page most recently
// requested with GetPage.
type GetPageProofMessage struct{}

func (GetPageProofMessage) Encode(dst []byte) []byte { return append(dst, byte(GetPageProof)) }

func DecodeGetPageProofMessage(data []byte) (GetPageProofMessage, error) {
	if err := expectTag(data, GetPageProof); err != nil {
		return GetPageProofMessage{}, err
	}
	return GetPageProofMessage{}, nil
}

// GetPageProofContinuedMessage asks for the next chunk of a proof in
// progress.
type GetPageProofContinuedMessage struct{}

func (GetPageProofContinuedMessage) Encode(dst []byte) []byte {
	return append(dst, byte(GetPageProofContinued))
}

func DecodeGetPageProofContinuedMessage(data []byte) (GetPageProofContinuedMessage, error) {
	if err := expectTag(data, GetPageProofContinued); err != nil {
		return GetPageProofContinuedMessage{}, err
	}
	return GetPageProofContinuedMessage{}, nil
}

// ---------------------------------------------------------------------------
// GetPageProofResponse / GetPageProofContinuedResponse (host -> device)
// ---------------------------------------------------------------------------

// GetPageProofResponse is the host's first reply to GetPageProofMessage. It
// carries the page's encryption metadata plus as many proof hashes as fit
// within the chunk budget.
type GetPageProofResponse struct {
	IsEncrypted bool
	Nonce       [12]byte
	N           uint8 // total number of hashes in the full proof
	Proof       []accumulator.Hash
}

func (m GetPageProofResponse) Encode(dst []byte) []byte {
	dst = append(dst, m.N, uint8(len(m.Proof)), boolByte(m.IsEncrypted))
	dst = append(dst, m.Nonce[:]...)
	for _, h := range m.Proof {
		dst = append(dst, h[:]...)
	}
	return dst
}

func DecodeGetPageProofResponse(data []byte) (GetPageProofResponse, error) {
	const head = 1 + 1 + 1 + 12
	if len(data) < head {
		return GetPageProofResponse{}, ErrInvalidDataLength
	}
	n := data[0]
	t := data[1]
	isEncrypted := data[2] == 1
	var nonce [12]byte
	copy(nonce[:], data[3:15])
	proof, err := decodeHashes(data[head:], int(t))
	if err != nil {
		return GetPageProofResponse{}, err
	}
	return GetPageProofResponse{IsEncrypted: isEncrypted, Nonce: nonce, N: n, Proof: proof}, nil
}

// GetPageProofContinuedResponse carries a subsequent chunk of proof hashes.
type GetPageProofContinuedResponse struct {
	Proof []accumulator.Hash
}

func (m GetPageProofContinuedResponse) Encode(dst []byte) []byte {
	dst = append(dst, uint8(len(m.Proof)))
	for _, h := range m.Proof {
		dst = append(dst, h[:]...)
	}
	return dst
}

func DecodeGetPageProofContinuedResponse(data []byte) (GetPageProofContinuedResponse, error) {
	if len(data) < 1 {
		return GetPageProofContinuedResponse{}, ErrInvalidDataLength
	}
	t := data[0]
	proof, err := decodeHashes(data[1:], int(t))
	if err != nil {
		return GetPageProofContinuedResponse{}, err
	}
	return GetPageProofContinuedResponse{Proof: proof}, nil
}

// ---------------------------------------------------------------------------
// CommitPage / CommitPageContent
// ---------------------------------------------------------------------------

// CommitPageMessage begins a page write-back, declaring its encryption
// metadata ahead of the content.
type CommitPageMessage struct {
	Kind        SectionKind
	PageIndex   uint32
	IsEncrypted bool
	Nonce       [12]byte
}

func (m CommitPageMessage) Encode(dst []byte) []byte {
	dst = append(dst, byte(CommitPage), byte(m.Kind))
	dst = appendUint32(dst, m.PageIndex)
	if m.IsEncrypted {
		dst = append(dst, 1)
		dst = append(dst, m.Nonce[:]...)
	} else {
		var zero [13]byte
		dst = append(dst, zero[:]...)
	}
	return dst
}

func DecodeCommitPageMessage(data []byte) (CommitPageMessage, error) {
	const want = 1 + 1 + 4 + 1 + 12
	if len(data) != want {
		return CommitPageMessage{}, ErrInvalidDataLength
	}
	code, err := ParseClientCommandCode(data[0])
	if err != nil {
		return CommitPageMessage{}, err
	}
	if code != CommitPage {
		return CommitPageMessage{}, ErrMismatchingClientCommandCode
	}
	kind, err := ParseSectionKind(data[1])
	if err != nil {
		return CommitPageMessage{}, err
	}
	pageIndex := binary.BigEndian.Uint32(data[2:6])
	isEncrypted := data[6] == 1
	var nonce [12]byte
	if isEncrypted {
		copy(nonce[:], data[7:19])
	}
	return CommitPageMessage{Kind: kind, PageIndex: pageIndex, IsEncrypted: isEncrypted, Nonce: nonce}, nil
}

// CommitPageContentMessage carries the exact PageSize bytes of a page
// write-back. Constructing one with the wrong length is a programmer error,
// matching the original client's panic-on-misuse contract.
type CommitPageContentMessage struct {
	Data []byte
}

func NewCommitPageContentMessage(data []byte) CommitPageContentMessage {
	if len(data) != PageSize {
		panic(fmt.Sprintf("wire: CommitPageContentMessage requires exactly %d bytes, got %d", PageSize, len(data)))
	}
	return CommitPageContentMessage{Data: data}
}

func (m CommitPageContentMessage) Encode(dst []byte) []byte {
	dst = append(dst, byte(CommitPageContent))
	return append(dst, m.Data...)
}

func DecodeCommitPageContentMessage(data []byte) (CommitPageContentMessage, error) {
	if len(data) != PageSize+1 {
		return CommitPageContentMessage{}, ErrInvalidDataLength
	}
	code, err := ParseClientCommandCode(data[0])
	if err != nil {
		return CommitPageContentMessage{}, err
	}
	if code != CommitPageContent {
		return CommitPageContentMessage{}, ErrMismatchingClientCommandCode
	}
	return CommitPageContentMessage{Data: data[1:]}, nil
}

// ---------------------------------------------------------------------------
// CommitPageProofResponse / CommitPageProofContinued
// ---------------------------------------------------------------------------

// CommitPageProofResponse is the host's reply to CommitPageContentMessage:
// the new segment root plus as many update-proof hashes as fit in the
// chunk budget.
type CommitPageProofResponse struct {
	N       uint8
	NewRoot accumulator.Hash
	Proof   []accumulator.Hash
}

func (m CommitPageProofResponse) Encode(dst []byte) []byte {
	dst = append(dst, m.N, uint8(len(m.Proof)))
	dst = append(dst, m.NewRoot[:]...)
	for _, h := range m.Proof {
		dst = append(dst, h[:]...)
	}
	return dst
}

func DecodeCommitPageProofResponse(data []byte) (CommitPageProofResponse, error) {
	if len(data) < 2+HashSize {
		return CommitPageProofResponse{}, ErrInvalidDataLength
	}
	n := data[0]
	t := data[1]
	var newRoot accumulator.Hash
	copy(newRoot[:], data[2:2+HashSize])
	proof, err := decodeHashes(data[2+HashSize:], int(t))
	if err != nil {
		return CommitPageProofResponse{}, err
	}
	return CommitPageProofResponse{N: n, NewRoot: newRoot, Proof: proof}, nil
}

// CommitPageProofContinuedMessage asks for the next chunk of an update
// proof in progress.
type CommitPageProofContinuedMessage struct{}

func (CommitPageProofContinuedMessage) Encode(dst []byte) []byte {
	return append(dst, byte(CommitPageProofContinued))
}

func DecodeCommitPageProofContinuedMessage(data []byte) (CommitPageProofContinuedMessage, error) {
	if err := expectTag(data, CommitPageProofContinued); err != nil {
		return CommitPageProofContinuedMessage{}, err
	}
	return CommitPageProofContinuedMessage{}, nil
}

// CommitPageProofContinuedResponse carries a subsequent chunk of
// update-proof hashes.
type CommitPageProofContinuedResponse struct {
	Proof []accumulator.Hash
}

func (m CommitPageProofContinuedResponse) Encode(dst []byte) []byte {
	dst = append(dst, uint8(len(m.Proof)))
	for _, h := range m.Proof {
		dst = append(dst, h[:]...)
	}
	return dst
}

func DecodeCommitPageProofContinuedResponse(data []byte) (CommitPageProofContinuedResponse, error) {
	if len(data) < 1 {
		return CommitPageProofContinuedResponse{}, ErrInvalidDataLength
	}
	t := data[0]
	proof, err := decodeHashes(data[1:], int(t))
	if err != nil {
		return CommitPageProofContinuedResponse{}, err
	}
	return CommitPageProofContinuedResponse{Proof: proof}, nil
}

// ---------------------------------------------------------------------------
// SendBuffer / SendBufferContinued
// ---------------------------------------------------------------------------

// SendBufferMessage delivers the first fragment of an xsend buffer (or a
// panic/print buffer, tagged by Type).
type SendBufferMessage struct {
	Type      BufferType
	TotalSize uint32
	Data      []byte
}

func NewSendBufferMessage(totalSize uint32, typ BufferType, data []byte) SendBufferMessage {
	if uint32(len(data)) > totalSize {
		panic("wire: SendBufferMessage data exceeds total size")
	}
	return SendBufferMessage{Type: typ, TotalSize: totalSize, Data: data}
}

func (m SendBufferMessage) Encode(dst []byte) []byte {
	dst = append(dst, byte(SendBuffer), byte(m.Type))
	dst = appendUint32(dst, m.TotalSize)
	return append(dst, m.Data...)
}

func DecodeSendBufferMessage(data []byte) (SendBufferMessage, error) {
	if len(data) < 6 {
		return SendBufferMessage{}, ErrInvalidDataLength
	}
	code, err := ParseClientCommandCode(data[0])
	if err != nil {
		return SendBufferMessage{}, err
	}
	if code != SendBuffer {
		return SendBufferMessage{}, ErrMismatchingClientCommandCode
	}
	typ, err := ParseBufferType(data[1])
	if err != nil {
		return SendBufferMessage{}, err
	}
	totalSize := binary.BigEndian.Uint32(data[2:6])
	body := data[6:]
	if uint32(len(body)) > totalSize {
		return SendBufferMessage{}, ErrInvalidDataLength
	}
	return SendBufferMessage{Type: typ, TotalSize: totalSize, Data: body}, nil
}

// SendBufferContinuedMessage carries a subsequent fragment of a buffer
// started with SendBufferMessage.
type SendBufferContinuedMessage struct {
	Data []byte
}

func (m SendBufferContinuedMessage) Encode(dst []byte) []byte {
	dst = append(dst, byte(SendBufferContinued))
	return append(dst, m.Data...)
}

func DecodeSendBufferContinuedMessage(data []byte) (SendBufferContinuedMessage, error) {
	if len(data) < 1 {
		return SendBufferContinuedMessage{}, ErrInvalidDataLength
	}
	code, err := ParseClientCommandCode(data[0])
	if err != nil {
		return SendBufferContinuedMessage{}, err
	}
	if code != SendBufferContinued {
		return SendBufferContinuedMessage{}, ErrMismatchingClientCommandCode
	}
	return SendBufferContinuedMessage{Data: data[1:]}, nil
}

// ---------------------------------------------------------------------------
// ReceiveBuffer
// ---------------------------------------------------------------------------

// ReceiveBufferMessage asks the host for the next chunk of a pending
// to_app message, as part of an xrecv ECALL.
type ReceiveBufferMessage struct{}

func (ReceiveBufferMessage) Encode(dst []byte) []byte { return append(dst, byte(ReceiveBuffer)) }

func DecodeReceiveBufferMessage(data []byte) (ReceiveBufferMessage, error) {
	if err := expectTag(data, ReceiveBuffer); err != nil {
		return ReceiveBufferMessage{}, err
	}
	return ReceiveBufferMessage{}, nil
}

// ReceiveBufferResponse is the host's reply: RemainingLength is the byte
// count still to be delivered after Content, reaching zero on the final
// frame.
type ReceiveBufferResponse struct {
	RemainingLength uint32
	Content         []byte
}

func (m ReceiveBufferResponse) Encode(dst []byte) []byte {
	dst = appendUint32(dst, m.RemainingLength)
	return append(dst, m.Content...)
}

func DecodeReceiveBufferResponse(data []byte) (ReceiveBufferResponse, error) {
	if len(data) < 4 {
		return ReceiveBufferResponse{}, ErrInvalidDataLength
	}
	remaining := binary.BigEndian.Uint32(data[:4])
	content := data[4:]
	return ReceiveBufferResponse{RemainingLength: remaining, Content: content}, nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func appendUint32(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func expectTag(data []byte, want ClientCommandCode) error {
	if len(data) != 1 {
		return ErrInvalidDataLength
	}
	code, err := ParseClientCommandCode(data[0])
	if err != nil {
		return err
	}
	if code != want {
		return ErrMismatchingClientCommandCode
	}
	return nil
}

func decodeHashes(data []byte, count int) ([]accumulator.Hash, error) {
	if len(data) != count*HashSize {
		return nil, ErrInvalidDataLength
	}
	out := make([]accumulator.Hash, count)
	for i := range out {
		copy(out[i][:], data[i*HashSize:(i+1)*HashSize])
	}
	return out, nil
}
