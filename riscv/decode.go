package riscv

// Decode decodes one instruction at the given 32-bit fetch word. If the low
// two bits are not both set the instruction is a 16-bit compressed (RVC)
// encoding and only the low half of word is significant; otherwise it is a
// full 32-bit encoding. The returned length is 2 or 4, the number of bytes
// the caller should advance the program counter by.
func Decode(word uint32) (Op, int) {
	if word&0x3 != 0x3 {
		return decodeCompressed(uint16(word)), 2
	}
	return decodeUncompressed(word), 4
}

// --- immediate-field extractors for the uncompressed formats ---

func bImm(inst uint32) int32 {
	imm := (inst >> 7) & 0x1e
	imm |= (inst >> 20) & 0x7e0
	imm |= (inst << 4) & 0x800
	imm |= (inst >> 19) & 0x1000
	v := int32(imm << 19)
	return v >> 19
}

func iImm(inst uint32) int32 {
	return int32(inst) >> 20
}

func jImm(inst uint32) int32 {
	imm := (inst >> 20) & 0x7fe
	imm |= (inst >> 9) & 0x800
	imm |= inst & 0xff000
	imm |= (inst >> 11) & 0x100000
	v := int32(imm << 11)
	return v >> 11
}

func sImm(inst uint32) int32 {
	imm := (inst >> 7) & 0x1f
	imm |= (inst >> 20) & 0xfe0
	v := int32(imm << 20)
	return v >> 20
}

func uImm(inst uint32) int32 {
	return int32(inst & 0xfffff000)
}

func rd(inst uint32) uint8  { return uint8((inst >> 7) & 0x1f) }
func rs1(inst uint32) uint8 { return uint8((inst >> 15) & 0x1f) }
func rs2(inst uint32) uint8 { return uint8((inst >> 20) & 0x1f) }
func funct3(inst uint32) uint32 { return (inst >> 12) & 0x7 }
func funct7(inst uint32) uint32 { return (inst >> 25) & 0x7f }

func decodeUncompressed(inst uint32) Op {
	opcode := inst & 0x7f
	f3 := funct3(inst)
	f7 := funct7(inst)

	switch opcode {
	case 0x37: // LUI
		return Op{Kind: Lui, Rd: rd(inst), Imm: uImm(inst)}
	case 0x17: // AUIPC
		return Op{Kind: Auipc, Rd: rd(inst), Imm: uImm(inst)}
	case 0x6f: // JAL
		return Op{Kind: Jal, Rd: rd(inst), Imm: jImm(inst)}
	case 0x67: // JALR
		return Op{Kind: Jalr, Rd: rd(inst), Rs1: rs1(inst), Imm: iImm(inst)}
	case 0x63: // branches
		imm := bImm(inst)
		switch f3 {
		case 0x0:
			return Op{Kind: Beq, Rs1: rs1(inst), Rs2: rs2(inst), Imm: imm}
		case 0x1:
			return Op{Kind: Bne, Rs1: rs1(inst), Rs2: rs2(inst), Imm: imm}
		case 0x4:
			return Op{Kind: Blt, Rs1: rs1(inst), Rs2: rs2(inst), Imm: imm}
		case 0x5:
			return Op{Kind: Bge, Rs1: rs1(inst), Rs2: rs2(inst), Imm: imm}
		case 0x6:
			return Op{Kind: Bltu, Rs1: rs1(inst), Rs2: rs2(inst), Imm: imm}
		case 0x7:
			return Op{Kind: Bgeu, Rs1: rs1(inst), Rs2: rs2(inst), Imm: imm}
		}
	case 0x03: // loads
		imm := iImm(inst)
		switch f3 {
		case 0x0:
			return Op{Kind: Lb, Rd: rd(inst), Rs1: rs1(inst), Imm: imm}
		case 0x1:
			return Op{Kind: Lh, Rd: rd(inst), Rs1: rs1(inst), Imm: imm}
		case 0x2:
			return Op{Kind: Lw, Rd: rd(inst), Rs1: rs1(inst), Imm: imm}
		case 0x4:
			return Op{Kind: Lbu, Rd: rd(inst), Rs1: rs1(inst), Imm: imm}
		case 0x5:
			return Op{Kind: Lhu, Rd: rd(inst), Rs1: rs1(inst), Imm: imm}
		}
	case 0x23: // stores
		imm := sImm(inst)
		switch f3 {
		case 0x0:
			return Op{Kind: Sb, Rs1: rs1(inst), Rs2: rs2(inst), Imm: imm}
		case 0x1:
			return Op{Kind: Sh, Rs1: rs1(inst), Rs2: rs2(inst), Imm: imm}
		case 0x2:
			return Op{Kind: Sw, Rs1: rs1(inst), Rs2: rs2(inst), Imm: imm}
		}
	case 0x13: // immediate ALU ops
		imm := iImm(inst)
		switch f3 {
		case 0x0:
			return Op{Kind: Addi, Rd: rd(inst), Rs1: rs1(inst), Imm: imm}
		case 0x2:
			return Op{Kind: Slti, Rd: rd(inst), Rs1: rs1(inst), Imm: imm}
		case 0x3:
			return Op{Kind: Sltiu, Rd: rd(inst), Rs1: rs1(inst), Imm: imm}
		case 0x4:
			return Op{Kind: Xori, Rd: rd(inst), Rs1: rs1(inst), Imm: imm}
		case 0x6:
			return Op{Kind: Ori, Rd: rd(inst), Rs1: rs1(inst), Imm: imm}
		case 0x7:
			return Op{Kind: Andi, Rd: rd(inst), Rs1: rs1(inst), Imm: imm}
		case 0x1:
			return Op{Kind: Slli, Rd: rd(inst), Rs1: rs1(inst), Imm: int32(rs2(inst))}
		case 0x5:
			if f7&0x20 != 0 {
				return Op{Kind: Srai, Rd: rd(inst), Rs1: rs1(inst), Imm: int32(rs2(inst))}
			}
			return Op{Kind: Srli, Rd: rd(inst), Rs1: rs1(inst), Imm: int32(rs2(inst))}
		}
	case 0x33: // register ALU ops (base + M extension)
		r := Op{Rd: rd(inst), Rs1: rs1(inst), Rs2: rs2(inst)}
		if f7 == 0x01 {
			switch f3 {
			case 0x0:
				r.Kind = Mul
			case 0x1:
				r.Kind = Mulh
			case 0x2:
				r.Kind = Mulhsu
			case 0x3:
				r.Kind = Mulhu
			case 0x4:
				r.Kind = Div
			case 0x5:
				r.Kind = Divu
			case 0x6:
				r.Kind = Rem
			case 0x7:
				r.Kind = Remu
			}
			return r
		}
		switch f3 {
		case 0x0:
			if f7&0x20 != 0 {
				r.Kind = Sub
			} else {
				r.Kind = Add
			}
		case 0x1:
			r.Kind = Sll
		case 0x2:
			r.Kind = Slt
		case 0x3:
			r.Kind = Sltu
		case 0x4:
			r.Kind = Xor
		case 0x5:
			if f7&0x20 != 0 {
				r.Kind = Sra
			} else {
				r.Kind = Srl
			}
		case 0x6:
			r.Kind = Or
		case 0x7:
			r.Kind = And
		}
		return r
	case 0x73: // ECALL/EBREAK
		if inst>>20 == 1 {
			return Op{Kind: Break}
		}
		return Op{Kind: Ecall}
	}
	return Op{Kind: Unknown}
}

// --- RV32C (compressed) decoding ---
//
// Each case expands a 16-bit compressed instruction into the equivalent
// uncompressed Op, so the interpreter's execute switch only needs to
// handle the full op set once.

func decodeCompressed(inst uint16) Op {
	quadrant := inst & 0x3
	switch quadrant {
	case 0x0:
		return decodeCompressedQ0(inst)
	case 0x1:
		return decodeCompressedQ1(inst)
	case 0x2:
		return decodeCompressedQ2(inst)
	}
	return Op{Kind: Unknown}
}

func cRdRs2Short(inst uint16) uint8 { return uint8((inst>>2)&0x7) + 8 }
func cRs1Short(inst uint16) uint8   { return uint8((inst>>7)&0x7) + 8 }

func decodeCompressedQ0(inst uint16) Op {
	f3 := (inst >> 13) & 0x7
	switch f3 {
	case 0x0: // C.ADDI4SPN
		imm := uint32((inst>>7)&0x30) | uint32((inst>>1)&0x3c0) | uint32((inst>>4)&0x4) | uint32((inst>>2)&0x8)
		if imm == 0 {
			return Op{Kind: Unknown}
		}
		return Op{Kind: Addi, Rd: cRdRs2Short(inst), Rs1: 2, Imm: int32(imm)}
	case 0x2: // C.LW
		imm := uint32((inst>>7)&0x38) | uint32((inst>>4)&0x4) | uint32((inst<<1)&0x40)
		return Op{Kind: Lw, Rd: cRdRs2Short(inst), Rs1: cRs1Short(inst), Imm: int32(imm)}
	case 0x6: // C.SW
		imm := uint32((inst>>7)&0x38) | uint32((inst>>4)&0x4) | uint32((inst<<1)&0x40)
		return Op{Kind: Sw, Rs1: cRs1Short(inst), Rs2: cRdRs2Short(inst), Imm: int32(imm)}
	}
	return Op{Kind: Unknown}
}

func decodeCompressedQ1(inst uint16) Op {
	f3 := (inst >> 13) & 0x7
	rd5 := uint8((inst >> 7) & 0x1f)

	switch f3 {
	case 0x0: // C.ADDI (rd5==0 is a HINT/nop; still a valid ADDI x0, 0)
		imm := cImm6(inst)
		return Op{Kind: Addi, Rd: rd5, Rs1: rd5, Imm: imm}
	case 0x1: // C.JAL is RV32C-only (x1 link); modeled as JAL ra, imm
		imm := cJImm(inst)
		return Op{Kind: Jal, Rd: 1, Imm: imm}
	case 0x2: // C.LI
		imm := cImm6(inst)
		return Op{Kind: Addi, Rd: rd5, Rs1: 0, Imm: imm}
	case 0x3:
		if rd5 == 2 { // C.ADDI16SP
			imm := cAddi16spImm(inst)
			return Op{Kind: Addi, Rd: 2, Rs1: 2, Imm: imm}
		}
		// C.LUI
		imm := cImm6(inst) << 12
		return Op{Kind: Lui, Rd: rd5, Imm: imm}
	case 0x4:
		funct2 := (inst >> 10) & 0x3
		switch funct2 {
		case 0x0: // C.SRLI
			shamt := int32((inst >> 2) & 0x1f)
			return Op{Kind: Srli, Rd: cRs1Short(inst), Rs1: cRs1Short(inst), Imm: shamt}
		case 0x1: // C.SRAI
			shamt := int32((inst >> 2) & 0x1f)
			return Op{Kind: Srai, Rd: cRs1Short(inst), Rs1: cRs1Short(inst), Imm: shamt}
		case 0x2: // C.ANDI
			imm := cImm6(inst)
			return Op{Kind: Andi, Rd: cRs1Short(inst), Rs1: cRs1Short(inst), Imm: imm}
		case 0x3:
			funct1 := (inst >> 12) & 0x1
			funct2b := (inst >> 5) & 0x3
			rdShort := cRs1Short(inst)
			rs2Short := cRdRs2Short(inst)
			if funct1 == 0 {
				switch funct2b {
				case 0x0:
					return Op{Kind: Sub, Rd: rdShort, Rs1: rdShort, Rs2: rs2Short}
				case 0x1:
					return Op{Kind: Xor, Rd: rdShort, Rs1: rdShort, Rs2: rs2Short}
				case 0x2:
					return Op{Kind: Or, Rd: rdShort, Rs1: rdShort, Rs2: rs2Short}
				case 0x3:
					return Op{Kind: And, Rd: rdShort, Rs1: rdShort, Rs2: rs2Short}
				}
			}
		}
	case 0x5: // C.J
		imm := cJImm(inst)
		return Op{Kind: Jal, Rd: 0, Imm: imm}
	case 0x6: // C.BEQZ
		imm := cBImm(inst)
		return Op{Kind: Beq, Rs1: cRs1Short(inst), Rs2: 0, Imm: imm}
	case 0x7: // C.BNEZ
		imm := cBImm(inst)
		return Op{Kind: Bne, Rs1: cRs1Short(inst), Rs2: 0, Imm: imm}
	}
	return Op{Kind: Unknown}
}

func decodeCompressedQ2(inst uint16) Op {
	f3 := (inst >> 13) & 0x7
	rd5 := uint8((inst >> 7) & 0x1f)
	rs2 := uint8((inst >> 2) & 0x1f)

	switch f3 {
	case 0x0: // C.SLLI
		shamt := int32((inst >> 2) & 0x1f)
		return Op{Kind: Slli, Rd: rd5, Rs1: rd5, Imm: shamt}
	case 0x2: // C.LWSP
		imm := uint32((inst>>7)&0x20) | uint32((inst>>2)&0x1c) | uint32((inst<<4)&0xc0)
		return Op{Kind: Lw, Rd: rd5, Rs1: 2, Imm: int32(imm)}
	case 0x4:
		funct1 := (inst >> 12) & 0x1
		if funct1 == 0 {
			if rs2 == 0 { // C.JR
				return Op{Kind: Jalr, Rd: 0, Rs1: rd5, Imm: 0}
			}
			// C.MV
			return Op{Kind: Add, Rd: rd5, Rs1: 0, Rs2: rs2}
		}
		if rd5 == 0 && rs2 == 0 { // C.EBREAK
			return Op{Kind: Break}
		}
		if rs2 == 0 { // C.JALR
			return Op{Kind: Jalr, Rd: 1, Rs1: rd5, Imm: 0}
		}
		// C.ADD
		return Op{Kind: Add, Rd: rd5, Rs1: rd5, Rs2: rs2}
	case 0x6: // C.SWSP
		imm := uint32((inst>>7)&0x3c) | uint32((inst>>1)&0xc0)
		return Op{Kind: Sw, Rs1: 2, Rs2: rs2, Imm: int32(imm)}
	}
	return Op{Kind: Unknown}
}

// cImm6 extracts the sign-extended 6-bit immediate shared by C.ADDI/C.LI/
// C.LUI/C.ANDI (bit 12 is the sign bit, bits [6:2] are the low 5 bits).
func cImm6(inst uint16) int32 {
	imm := uint32((inst>>2)&0x1f) | uint32((inst>>7)&0x20)
	v := int32(imm << 26)
	return v >> 26
}

// cJImm extracts the sign-extended 11-bit jump offset used by C.J/C.JAL.
func cJImm(inst uint16) int32 {
	i := uint32(inst)
	imm := (i >> 1) & 0x800
	imm |= (i << 2) & 0x400
	imm |= (i >> 1) & 0x300
	imm |= (i << 1) & 0x80
	imm |= (i >> 1) & 0x40
	imm |= (i << 3) & 0x20
	imm |= (i >> 7) & 0x10
	imm |= (i >> 2) & 0xe
	v := int32(imm << 20)
	return v >> 20
}

// cBImm extracts the sign-extended 8-bit branch offset used by C.BEQZ/C.BNEZ.
func cBImm(inst uint16) int32 {
	i := uint32(inst)
	imm := (i >> 4) & 0x100
	imm |= (i << 1) & 0xc0
	imm |= (i << 3) & 0x20
	imm |= (i >> 7) & 0x18
	imm |= (i >> 2) & 0x6
	v := int32(imm << 23)
	return v >> 23
}

// cAddi16spImm extracts the sign-extended immediate for C.ADDI16SP.
func cAddi16spImm(inst uint16) int32 {
	i := uint32(inst)
	imm := (i >> 3) & 0x200
	imm |= (i >> 2) & 0x10
	imm |= (i << 1) & 0x40
	imm |= (i << 4) & 0x180
	imm |= (i << 3) & 0x20
	v := int32(imm << 22)
	return v >> 22
}
