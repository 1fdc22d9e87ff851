package wire

import (
	"errors"
	"fmt"
)

// ClientCommandCode tags every device-to-host request sent while the
// device is in the InterruptedExecution state.
type ClientCommandCode uint8

const (
	GetPage                  ClientCommandCode = 0
	GetPageProof              ClientCommandCode = 1
	GetPageProofContinued     ClientCommandCode = 2
	CommitPage                ClientCommandCode = 3
	CommitPageContent          ClientCommandCode = 4
	CommitPageProofContinued   ClientCommandCode = 5
	SendBuffer                 ClientCommandCode = 6
	SendBufferContinued        ClientCommandCode = 7
	ReceiveBuffer               ClientCommandCode = 8
)

func (c ClientCommandCode) String() string {
	switch c {
	case GetPage:
		return "GetPage"
	case GetPageProof:
		return "GetPageProof"
	case GetPageProofContinued:
		return "GetPageProofContinued"
	case CommitPage:
		return "CommitPage"
	case CommitPageContent:
		return "CommitPageContent"
	case CommitPageProofContinued:
		return "CommitPageProofContinued"
	case SendBuffer:
		return "SendBuffer"
	case SendBufferContinued:
		return "SendBufferContinued"
	case ReceiveBuffer:
		return "ReceiveBuffer"
	default:
		return fmt.Sprintf("ClientCommandCode(%d)", uint8(c))
	}
}

// ParseClientCommandCode validates a raw tag byte.
func ParseClientCommandCode(b byte) (ClientCommandCode, error) {
	switch ClientCommandCode(b) {
	case GetPage, GetPageProof, GetPageProofContinued, CommitPage, CommitPageContent,
		CommitPageProofContinued, SendBuffer, SendBufferContinued, ReceiveBuffer:
		return ClientCommandCode(b), nil
	default:
		return 0, ErrInvalidClientCommandCode
	}
}

// SectionKind identifies which of a V-App's three memory segments a page
// request or commit refers to.
type SectionKind uint8

const (
	Code  SectionKind = 0
	Data  SectionKind = 1
	Stack SectionKind = 2
)

func (k SectionKind) String() string {
	switch k {
	case Code:
		return "Code"
	case Data:
		return "Data"
	case Stack:
		return "Stack"
	default:
		return fmt.Sprintf("SectionKind(%d)", uint8(k))
	}
}

// ParseSectionKind validates a raw section-kind byte.
func ParseSectionKind(b byte) (SectionKind, error) {
	switch SectionKind(b) {
	case Code, Data, Stack:
		return SectionKind(b), nil
	default:
		return 0, ErrInvalidSectionKind
	}
}

// BufferType tags the purpose of a SendBuffer/SendBufferContinued exchange.
type BufferType uint8

const (
	VAppMessage BufferType = 0
	Panic       BufferType = 1
	Print       BufferType = 2
)

func (t BufferType) String() string {
	switch t {
	case VAppMessage:
		return "VAppMessage"
	case Panic:
		return "Panic"
	case Print:
		return "Print"
	default:
		return fmt.Sprintf("BufferType(%d)", uint8(t))
	}
}

// ParseBufferType validates a raw buffer-type byte.
func ParseBufferType(b byte) (BufferType, error) {
	switch BufferType(b) {
	case VAppMessage, Panic, Print:
		return BufferType(b), nil
	default:
		return 0, ErrInvalidBufferType
	}
}

// Deserialization errors, exhaustive per the wire format's validation rules.
var (
	ErrInvalidClientCommandCode   = errors.New("wire: invalid client command code")
	ErrMismatchingClientCommandCode = errors.New("wire: mismatching client command code")
	ErrInvalidSectionKind         = errors.New("wire: invalid section kind")
	ErrInvalidDataLength          = errors.New("wire: invalid data length")
	ErrInvalidBufferType          = errors.New("wire: invalid buffer type")
)
