package riscv

import (
	"errors"
	"fmt"

	"github.com/vanadium-project/vanadium-go/log"
	"github.com/vanadium-project/vanadium-go/msgchannel"
	"github.com/vanadium-project/vanadium-go/wire"
)

var logger = log.Default().Module("riscv")

// Register ABI names, matching the RISC-V calling convention used by the
// V-App SDK's ecall wrappers (syscall number in t0/x5, arguments in
// a0-a7/x10-x17, a single return value in a0).
const (
	regZero = 0
	regRA   = 1
	regSP   = 2
	regT0   = 5
	regA0   = 10
	regA1   = 11
)

// Ecall numbers the interpreter gives first-class handling to. Every other
// value is forwarded opaquely to UnknownEcall, mirroring the wide ECALL
// surface the original SDK exposes (randomness, hashing, curve operations,
// UX) that this execution protocol does not need to interpret itself.
const (
	EcallExit  uint32 = 0
	EcallFatal uint32 = 1
	EcallXsend uint32 = 2
	EcallXrecv uint32 = 3
	EcallPrint uint32 = 4
)

// ErrUnhandledInstruction is returned when the decoder produces Unknown for
// the word at the current program counter.
var ErrUnhandledInstruction = errors.New("riscv: unhandled or invalid instruction")

// ExitError is returned by Run when the V-App called exit() with the given
// status code.
type ExitError struct{ Status int32 }

func (e *ExitError) Error() string { return fmt.Sprintf("riscv: exited with status %d", e.Status) }

// PanicError is returned by Run when the V-App called fatal() with the
// given message.
type PanicError struct{ Message string }

func (e *PanicError) Error() string { return fmt.Sprintf("riscv: panicked: %s", e.Message) }

// CPU is a single-hart RV32IM(+C) interpreter. Memory accesses are routed
// through a PagedMemory, which transparently drives the page-fault
// protocol on a miss or a commit; ECALL traps for xsend/xrecv are routed
// through a msgchannel Sender/Receiver.
type CPU struct {
	regs [32]uint32
	pc   uint64

	mem      *PagedMemory
	sender   *msgchannel.Sender
	receiver *msgchannel.Receiver

	// UnknownEcall is invoked for any ECALL number this interpreter does
	// not give first-class handling to. It receives the syscall number
	// and the raw a0/a1 argument registers and returns the value to
	// place in a0. A nil UnknownEcall leaves a0 unchanged.
	UnknownEcall func(num, a0, a1 uint32) uint32
}

// NewCPU builds a CPU starting execution at entry, with sp initialized to
// stackTop (the RISC-V calling convention requires sp to point just past
// the top of the stack segment).
func NewCPU(mem *PagedMemory, sender *msgchannel.Sender, receiver *msgchannel.Receiver, entry uint64, stackTop uint32) *CPU {
	c := &CPU{mem: mem, sender: sender, receiver: receiver, pc: entry}
	c.regs[regSP] = stackTop
	return c
}

// PC returns the current program counter.
func (c *CPU) PC() uint64 { return c.pc }

// Reg returns the value of register i (0-31).
func (c *CPU) Reg(i int) uint32 { return c.regs[i] }

func (c *CPU) setReg(i uint8, v uint32) {
	if i == regZero {
		return
	}
	c.regs[i] = v
}

// Step fetches, decodes, and executes exactly one instruction, returning
// *ExitError or *PanicError if the V-App terminated, or any page-fault or
// message-channel error encountered along the way.
func (c *CPU) Step() error {
	word, err := c.mem.FetchInstruction(c.pc)
	if err != nil {
		return err
	}
	op, length := Decode(word)
	return c.execute(op, length)
}

// Run steps the CPU until it terminates or an error occurs. A clean exit or
// a fatal panic is reported as *ExitError / *PanicError respectively, both
// of which Run returns as an ordinary error for the caller to type-switch
// on.
func (c *CPU) Run() error {
	for {
		if err := c.Step(); err != nil {
			return err
		}
	}
}

func (c *CPU) execute(op Op, length int) error {
	nextPC := c.pc + uint64(length)

	switch op.Kind {
	case Lui:
		c.setReg(op.Rd, uint32(op.Imm))
	case Auipc:
		c.setReg(op.Rd, uint32(c.pc)+uint32(op.Imm))
	case Jal:
		c.setReg(op.Rd, uint32(nextPC))
		nextPC = uint64(int64(c.pc) + int64(op.Imm))
	case Jalr:
		target := uint64(int64(int32(c.regs[op.Rs1])) + int64(op.Imm))
		c.setReg(op.Rd, uint32(nextPC))
		nextPC = target &^ 1
	case Beq:
		if c.regs[op.Rs1] == c.regs[op.Rs2] {
			nextPC = uint64(int64(c.pc) + int64(op.Imm))
		}
	case Bne:
		if c.regs[op.Rs1] != c.regs[op.Rs2] {
			nextPC = uint64(int64(c.pc) + int64(op.Imm))
		}
	case Blt:
		if int32(c.regs[op.Rs1]) < int32(c.regs[op.Rs2]) {
			nextPC = uint64(int64(c.pc) + int64(op.Imm))
		}
	case Bge:
		if int32(c.regs[op.Rs1]) >= int32(c.regs[op.Rs2]) {
			nextPC = uint64(int64(c.pc) + int64(op.Imm))
		}
	case Bltu:
		if c.regs[op.Rs1] < c.regs[op.Rs2] {
			nextPC = uint64(int64(c.pc) + int64(op.Imm))
		}
	case Bgeu:
		if c.regs[op.Rs1] >= c.regs[op.Rs2] {
			nextPC = uint64(int64(c.pc) + int64(op.Imm))
		}
	case Lb:
		v, err := c.mem.ReadByte(c.effAddr(op))
		if err != nil {
			return err
		}
		c.setReg(op.Rd, uint32(int32(int8(v))))
	case Lbu:
		v, err := c.mem.ReadByte(c.effAddr(op))
		if err != nil {
			return err
		}
		c.setReg(op.Rd, uint32(v))
	case Lh:
		v, err := c.mem.ReadHalf(c.effAddr(op))
		if err != nil {
			return err
		}
		c.setReg(op.Rd, uint32(int32(int16(v))))
	case Lhu:
		v, err := c.mem.ReadHalf(c.effAddr(op))
		if err != nil {
			return err
		}
		c.setReg(op.Rd, uint32(v))
	case Lw:
		v, err := c.mem.ReadWord(c.effAddr(op))
		if err != nil {
			return err
		}
		c.setReg(op.Rd, v)
	case Sb:
		if err := c.mem.WriteByte(c.storeAddr(op), byte(c.regs[op.Rs2])); err != nil {
			return err
		}
	case Sh:
		if err := c.mem.WriteHalf(c.storeAddr(op), uint16(c.regs[op.Rs2])); err != nil {
			return err
		}
	case Sw:
		if err := c.mem.WriteWord(c.storeAddr(op), c.regs[op.Rs2]); err != nil {
			return err
		}
	case Addi:
		c.setReg(op.Rd, c.regs[op.Rs1]+uint32(op.Imm))
	case Slti:
		c.setReg(op.Rd, boolU32(int32(c.regs[op.Rs1]) < op.Imm))
	case Sltiu:
		c.setReg(op.Rd, boolU32(c.regs[op.Rs1] < uint32(op.Imm)))
	case Xori:
		c.setReg(op.Rd, c.regs[op.Rs1]^uint32(op.Imm))
	case Ori:
		c.setReg(op.Rd, c.regs[op.Rs1]|uint32(op.Imm))
	case Andi:
		c.setReg(op.Rd, c.regs[op.Rs1]&uint32(op.Imm))
	case Slli:
		c.setReg(op.Rd, c.regs[op.Rs1]<<(uint32(op.Imm)&0x1f))
	case Srli:
		c.setReg(op.Rd, c.regs[op.Rs1]>>(uint32(op.Imm)&0x1f))
	case Srai:
		c.setReg(op.Rd, uint32(int32(c.regs[op.Rs1])>>(uint32(op.Imm)&0x1f)))
	case Add:
		c.setReg(op.Rd, c.regs[op.Rs1]+c.regs[op.Rs2])
	case Sub:
		c.setReg(op.Rd, c.regs[op.Rs1]-c.regs[op.Rs2])
	case Sll:
		c.setReg(op.Rd, c.regs[op.Rs1]<<(c.regs[op.Rs2]&0x1f))
	case Slt:
		c.setReg(op.Rd, boolU32(int32(c.regs[op.Rs1]) < int32(c.regs[op.Rs2])))
	case Sltu:
		c.setReg(op.Rd, boolU32(c.regs[op.Rs1] < c.regs[op.Rs2]))
	case Xor:
		c.setReg(op.Rd, c.regs[op.Rs1]^c.regs[op.Rs2])
	case Srl:
		c.setReg(op.Rd, c.regs[op.Rs1]>>(c.regs[op.Rs2]&0x1f))
	case Sra:
		c.setReg(op.Rd, uint32(int32(c.regs[op.Rs1])>>(c.regs[op.Rs2]&0x1f)))
	case Or:
		c.setReg(op.Rd, c.regs[op.Rs1]|c.regs[op.Rs2])
	case And:
		c.setReg(op.Rd, c.regs[op.Rs1]&c.regs[op.Rs2])
	case Mul:
		c.setReg(op.Rd, c.regs[op.Rs1]*c.regs[op.Rs2])
	case Mulh:
		p := int64(int32(c.regs[op.Rs1])) * int64(int32(c.regs[op.Rs2]))
		c.setReg(op.Rd, uint32(p>>32))
	case Mulhsu:
		p := int64(int32(c.regs[op.Rs1])) * int64(c.regs[op.Rs2])
		c.setReg(op.Rd, uint32(p>>32))
	case Mulhu:
		p := uint64(c.regs[op.Rs1]) * uint64(c.regs[op.Rs2])
		c.setReg(op.Rd, uint32(p>>32))
	case Div:
		a, b := int32(c.regs[op.Rs1]), int32(c.regs[op.Rs2])
		if b == 0 {
			c.setReg(op.Rd, 0xffffffff)
		} else if a == -(1<<31) && b == -1 {
			c.setReg(op.Rd, uint32(a))
		} else {
			c.setReg(op.Rd, uint32(a/b))
		}
	case Divu:
		a, b := c.regs[op.Rs1], c.regs[op.Rs2]
		if b == 0 {
			c.setReg(op.Rd, 0xffffffff)
		} else {
			c.setReg(op.Rd, a/b)
		}
	case Rem:
		a, b := int32(c.regs[op.Rs1]), int32(c.regs[op.Rs2])
		if b == 0 {
			c.setReg(op.Rd, uint32(a))
		} else if a == -(1<<31) && b == -1 {
			c.setReg(op.Rd, 0)
		} else {
			c.setReg(op.Rd, uint32(a%b))
		}
	case Remu:
		a, b := c.regs[op.Rs1], c.regs[op.Rs2]
		if b == 0 {
			c.setReg(op.Rd, a)
		} else {
			c.setReg(op.Rd, a%b)
		}
	case Ecall:
		if err := c.ecall(); err != nil {
			return err
		}
	case Break:
		return &PanicError{Message: "ebreak"}
	default:
		return ErrUnhandledInstruction
	}

	c.pc = nextPC
	return nil
}

func (c *CPU) effAddr(op Op) uint64 {
	return uint64(int64(int32(c.regs[op.Rs1])) + int64(op.Imm))
}

func (c *CPU) storeAddr(op Op) uint64 {
	return uint64(int64(int32(c.regs[op.Rs1])) + int64(op.Imm))
}

func boolU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// ecall dispatches a trapped ECALL by the syscall number in t0, matching
// the ABI the V-App SDK's ecall macros use: arguments in a0/a1, a single
// return value (when any) written back to a0.
func (c *CPU) ecall() error {
	num := c.regs[regT0]
	a0, a1 := c.regs[regA0], c.regs[regA1]

	switch num {
	case EcallExit:
		logger.Debug("vapp exited", "status", int32(a0))
		return &ExitError{Status: int32(a0)}
	case EcallFatal:
		msg, err := c.readCString(uint64(a0), a1)
		if err != nil {
			return err
		}
		logger.Error("vapp called fatal", "message", msg)
		if c.sender != nil {
			if err := c.sender.Send(wire.Panic, []byte(msg)); err != nil {
				return err
			}
		}
		return &PanicError{Message: msg}
	case EcallXsend:
		buf, err := c.readCString(uint64(a0), a1)
		if err != nil {
			return err
		}
		return c.sender.Send(wire.VAppMessage, []byte(buf))
	case EcallXrecv:
		data, err := c.receiver.Recv()
		if err != nil {
			return err
		}
		n := uint32(len(data))
		if n > a1 {
			n = a1
		}
		if err := c.writeBytesAt(uint64(a0), data[:n]); err != nil {
			return err
		}
		c.regs[regA0] = n
	case EcallPrint:
		buf, err := c.readCString(uint64(a0), a1)
		if err != nil {
			return err
		}
		if err := c.sender.Send(wire.Print, []byte(buf)); err != nil {
			return err
		}
	default:
		logger.Debug("unhandled ecall forwarded", "num", num)
		if c.UnknownEcall != nil {
			c.regs[regA0] = c.UnknownEcall(num, a0, a1)
		}
	}
	return nil
}

func (c *CPU) readCString(addr uint64, size uint32) (string, error) {
	buf := make([]byte, size)
	for i := uint32(0); i < size; i++ {
		b, err := c.mem.ReadByte(addr + uint64(i))
		if err != nil {
			return "", err
		}
		buf[i] = b
	}
	return string(buf), nil
}

func (c *CPU) writeBytesAt(addr uint64, data []byte) error {
	for i, b := range data {
		if err := c.mem.WriteByte(addr+uint64(i), b); err != nil {
			return err
		}
	}
	return nil
}
