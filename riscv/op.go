// Package riscv implements an RV32IM interpreter (the base integer ISA plus
// the M extension, and the C compressed-instruction extension, decoded by
// expansion into the same uncompressed op set) that traps to the
// page-fault and message-channel protocols instead of touching real
// memory or a real I/O device directly.
package riscv

// OpKind identifies a decoded RV32IM instruction's operation.
type OpKind uint8

const (
	Unknown OpKind = iota
	Lui
	Auipc
	Jal
	Jalr
	Beq
	Bne
	Blt
	Bge
	Bltu
	Bgeu
	Lb
	Lh
	Lw
	Lbu
	Lhu
	Sb
	Sh
	Sw
	Addi
	Slti
	Sltiu
	Xori
	Ori
	Andi
	Slli
	Srli
	Srai
	Add
	Sub
	Sll
	Slt
	Sltu
	Xor
	Srl
	Sra
	Or
	And
	Mul
	Mulh
	Mulhsu
	Mulhu
	Div
	Divu
	Rem
	Remu
	Ecall
	Break
)

// Op is a decoded instruction. Not every field is meaningful for every
// Kind; this flat layout mirrors the RISC-V instruction formats (R/I/S/B/
// U/J) rather than modeling each as a distinct Go type, which keeps the
// decoder and interpreter's dispatch a single flat switch each.
type Op struct {
	Kind OpKind
	Rd   uint8
	Rs1  uint8
	Rs2  uint8
	Imm  int32
}
