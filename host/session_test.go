package host_test

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/vanadium-project/vanadium-go/accumulator"
	"github.com/vanadium-project/vanadium-go/host"
	"github.com/vanadium-project/vanadium-go/riscv"
	"github.com/vanadium-project/vanadium-go/vapp"
	"github.com/vanadium-project/vanadium-go/wire"
)

const (
	codeStart  = 0x0000
	dataStart  = 0x1000
	stackStart = 0x2000
)

func encLUI(rd uint8, imm20 uint32) uint32 {
	return imm20<<12 | uint32(rd)<<7 | 0x37
}

func encI(opcode uint32, rd uint8, funct3 uint32, rs1 uint8, imm int32) uint32 {
	return uint32(imm&0xfff)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | opcode
}

const (
	opAddi  = 0x13
	opEcall = 0x73
)

const (
	regZero = 0
	regA0   = 10
	regA1   = 11
	regT0   = 5
)

func putWord(page []byte, offset int, word uint32) {
	binary.LittleEndian.PutUint32(page[offset:offset+4], word)
}

// program writes a riscv.CPU does exactly what spec §8's third seed
// scenario describes: the device's first Data-segment access is the
// argument read inside an xsend ecall, so the Data page fault and the
// SendBuffer exchange happen back to back on one shared transport.
func buildXsendAfterPageFaultProgram() []byte {
	page := make([]byte, wire.PageSize)
	off := 0
	emit := func(w uint32) {
		putWord(page, off, w)
		off += 4
	}

	emit(encLUI(regA0, dataStart>>12))                 // lui a0, dataStart>>12      (a0 = dataStart)
	emit(encI(opAddi, regT0, 0, regZero, int32(riscv.EcallXsend))) // addi t0, x0, EcallXsend
	emit(encI(opAddi, regA1, 0, regZero, 8))            // addi a1, x0, 8            (message length)
	emit(uint32(opEcall))                               // ecall                     (xsend: page-faults on read, then sends)
	emit(encI(opAddi, regT0, 0, regZero, int32(riscv.EcallExit)))  // addi t0, x0, EcallExit
	emit(encI(opAddi, regA0, 0, regZero, 0))            // addi a0, x0, 0
	emit(uint32(opEcall))                                // ecall (exit 0)
	return page
}

func buildDataPage() []byte {
	page := make([]byte, wire.PageSize)
	copy(page, []byte("hi-host\x00"))
	return page
}

func newXsendSession(t *testing.T, onMessage func(typ wire.BufferType, data []byte)) *host.Session {
	t.Helper()

	codePage := buildXsendAfterPageFaultProgram()
	dataPage := buildDataPage()

	m := &vapp.Manifest{
		Code:       vapp.SegmentDescriptor{Start: codeStart, End: codeStart + wire.PageSize, Root: accumulator.HashElement(codePage)},
		Data:       vapp.SegmentDescriptor{Start: dataStart, End: dataStart + wire.PageSize, Root: accumulator.HashElement(dataPage)},
		Stack:      vapp.StackDescriptor{Start: stackStart, End: stackStart + wire.PageSize},
		Entrypoint: codeStart,
	}

	sess, err := host.NewSession(m, [][]byte{codePage}, [][]byte{dataPage}, []byte("test-device-key"), func(typ wire.BufferType, data []byte) error {
		onMessage(typ, data)
		return nil
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return sess
}

func TestSessionPageFaultDuringXsendThenCleanExit(t *testing.T) {
	var mu sync.Mutex
	var gotType wire.BufferType
	var gotData []byte

	sess := newXsendSession(t, func(typ wire.BufferType, data []byte) {
		mu.Lock()
		gotType, gotData = typ, append([]byte(nil), data...)
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	outcome, err := sess.Run(ctx, stackStart+wire.PageSize)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Kind != host.ExitedCleanly {
		t.Fatalf("outcome = %+v, want ExitedCleanly", outcome)
	}
	if outcome.Status != 0 {
		t.Fatalf("exit status = %d, want 0", outcome.Status)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotType != wire.VAppMessage {
		t.Fatalf("buffer type = %v, want VAppMessage", gotType)
	}
	if string(gotData) != "hi-host\x00" {
		t.Fatalf("xsend payload = %q, want %q", gotData, "hi-host\x00")
	}
}
